package streamparse

import (
	"math"
)

// SaturatingAdd returns a+b, clamped to the range of int instead of wrapping.
func SaturatingAdd(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

// SaturatingSub returns a-b for counts, flooring at zero.
func SaturatingSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}

// RecursionGuard tracks nesting depth during parsing of a single unit.
//
// Grammar parsers call Enter before descending into a nested structure and
// Exit on the way out:
//
//	if err := guard.Enter(); err != nil {
//		return nil, err
//	}
//	defer guard.Exit()
type RecursionGuard struct {
	depth int
	max   int
}

// NewRecursionGuard creates a guard allowing at most limit nested levels.
func NewRecursionGuard(limit int) *RecursionGuard {
	return &RecursionGuard{max: limit}
}

// Enter a nested level.
//
// The limit is checked before the depth is modified, so a failed Enter must
// not be paired with an Exit.
func (g *RecursionGuard) Enter() error {
	if g.depth >= g.max {
		return limitError(RecursionLimitExceeded, SaturatingAdd(g.depth, 1), g.max)
	}
	g.depth++
	return nil
}

// Exit a nested level. Extra calls do not underflow.
func (g *RecursionGuard) Exit() {
	g.depth = SaturatingSub(g.depth, 1)
}

// Guard runs fn one level deeper, restoring the depth however fn exits,
// including by panic.
func (g *RecursionGuard) Guard(fn func() error) error {
	if err := g.Enter(); err != nil {
		return err
	}
	defer g.Exit()
	return fn()
}

// Depth returns the current nesting depth.
func (g *RecursionGuard) Depth() int { return g.depth }

// Max returns the maximum nesting depth.
func (g *RecursionGuard) Max() int { return g.max }

// Reset depth to zero.
func (g *RecursionGuard) Reset() { g.depth = 0 }

func (g *RecursionGuard) restore(depth int) { g.depth = depth }

// Counter is a bounded, saturating resource counter.
type Counter struct {
	resource string
	n        int
	max      int
}

// NewCounter creates a counter for resource that may reach, but not exceed, limit.
func NewCounter(resource string, limit int) *Counter {
	return &Counter{resource: resource, max: limit}
}

// Check returns the error Add(n) would return, without modifying the counter.
func (c *Counter) Check(n int) error {
	// Compared against the headroom so that a sum saturating at MaxInt still fails.
	if n > 0 && n > c.max-c.n {
		return resourceLimit(c.resource, SaturatingAdd(c.n, n), c.max)
	}
	return nil
}

// Add n to the counter, failing before any modification if max would be exceeded.
func (c *Counter) Add(n int) error {
	if err := c.Check(n); err != nil {
		return err
	}
	c.n = max(SaturatingAdd(c.n, n), 0)
	return nil
}

// Sub n from the counter, flooring at zero.
func (c *Counter) Sub(n int) {
	c.n = SaturatingSub(c.n, n)
}

// Value of the counter.
func (c *Counter) Value() int { return c.n }

// Max value of the counter.
func (c *Counter) Max() int { return c.max }

// Remaining headroom before the limit is reached.
func (c *Counter) Remaining() int { return SaturatingSub(c.max, c.n) }
