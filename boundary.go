package streamparse

import (
	"fmt"
	"sort"

	"github.com/alecthomas/streamparse/lexer"
)

// BoundaryRule describes how one token type affects boundary detection.
type BoundaryRule struct {
	// Depth is the change in nesting depth caused by the token: -1, 0 or +1.
	Depth int
	// Boundary marks the token as a record delimiter. A delimiter at nesting
	// depth zero ends a unit.
	//
	// Delimiters must not be extensible by following text (eg. a single "\n"),
	// as the incremental lexer emits tokens up to the last delimiter it sees.
	Boundary bool
	// Ignorable tokens are skipped by boundary detection and elided from the
	// slices handed to the grammar parser.
	Ignorable bool
}

// BoundaryPolicy maps token types to their BoundaryRule.
//
// Token types without an entry have no effect on depth and are not boundaries.
type BoundaryPolicy map[rune]BoundaryRule

// NewBoundaryPolicy builds a BoundaryPolicy from rules keyed by symbol name.
func NewBoundaryPolicy(symbols map[string]rune, rules map[string]BoundaryRule) (BoundaryPolicy, error) {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)
	policy := BoundaryPolicy{}
	for _, name := range names {
		typ, ok := symbols[name]
		if !ok {
			return nil, fmt.Errorf("lexer does not support symbol %q", name)
		}
		rule := rules[name]
		if rule.Depth < -1 || rule.Depth > 1 {
			return nil, fmt.Errorf("symbol %q: depth delta must be -1, 0 or 1 but is %d", name, rule.Depth)
		}
		policy[typ] = rule
	}
	return policy, nil
}

// MustBoundaryPolicy is like NewBoundaryPolicy but panics on error.
func MustBoundaryPolicy(symbols map[string]rune, rules map[string]BoundaryRule) BoundaryPolicy {
	policy, err := NewBoundaryPolicy(symbols, rules)
	if err != nil {
		panic(err)
	}
	return policy
}

// IsBoundary returns true if the token is a record delimiter.
func (p BoundaryPolicy) IsBoundary(token lexer.Token) bool { return p[token.Type].Boundary }

// IsIgnorable returns true if the token is elided from grammar slices.
func (p BoundaryPolicy) IsIgnorable(token lexer.Token) bool { return p[token.Type].Ignorable }

// FindBoundary finds the end of the next unit in tokens, starting at start.
//
// It returns the index just past the delimiter ending the unit, or false if
// tokens do not yet contain a complete unit.
//
// A closing token without a matching opener takes the depth negative. This does
// not stop the scan: the next delimiter at a depth of zero or less ends the
// unit, and the grammar parser reports the imbalance.
func (p BoundaryPolicy) FindBoundary(tokens []lexer.Token, start int) (int, bool) {
	depth := 0
	for i := max(start, 0); i < len(tokens); i++ {
		rule := p[tokens[i].Type]
		if rule.Ignorable && rule.Depth == 0 {
			continue
		}
		depth += rule.Depth
		if depth <= 0 && rule.Boundary {
			return i + 1, true
		}
	}
	return 0, false
}

// HasBoundary returns true if FindBoundary would succeed.
func (p BoundaryPolicy) HasBoundary(tokens []lexer.Token, start int) bool {
	_, ok := p.FindBoundary(tokens, start)
	return ok
}

// Closed returns true if the tokens from start leave no structure open.
func (p BoundaryPolicy) Closed(tokens []lexer.Token, start int) bool {
	depth := 0
	for i := max(start, 0); i < len(tokens); i++ {
		depth += p[tokens[i].Type].Depth
	}
	return depth <= 0
}

// significant appends the tokens of a unit that are handed to the grammar
// parser to dst: ignorable tokens are dropped, as is a trailing delimiter.
func (p BoundaryPolicy) significant(dst, tokens []lexer.Token) []lexer.Token {
	if n := len(tokens); n > 0 && p.IsBoundary(tokens[n-1]) {
		tokens = tokens[:n-1]
	}
	for _, token := range tokens {
		if !p.IsIgnorable(token) {
			dst = append(dst, token)
		}
	}
	return dst
}
