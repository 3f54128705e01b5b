package streamparse

import (
	"fmt"

	"github.com/alecthomas/streamparse/lexer"
)

// Parser attempts to parse units from a token sequence, resuming from a Checkpoint.
//
// A Parser holds no position of its own. It is not safe for concurrent use,
// as the recursion guard and scratch space are shared between attempts.
type Parser[T any] struct {
	grammar Grammar[T]
	policy  BoundaryPolicy
	guard   *RecursionGuard
	scratch []lexer.Token
}

// NewParser creates a Parser for grammar, bounded by budget.MaxRecursionDepth.
func NewParser[T any](grammar Grammar[T], budget Budget) *Parser[T] {
	return &Parser[T]{
		grammar: grammar,
		policy:  grammar.Policy(),
		guard:   NewRecursionGuard(budget.MaxRecursionDepth),
	}
}

// Guard returns the recursion guard handed to the grammar.
func (p *Parser[T]) Guard() *RecursionGuard { return p.guard }

// CanParse returns true if tokens contain a complete unit from cp.
//
// It never invokes the grammar.
func (p *Parser[T]) CanParse(tokens []lexer.Token, cp Checkpoint) bool {
	return p.policy.HasBoundary(tokens, cp.Cursor)
}

// Parse the next unit of tokens starting at cp.
//
// If tokens do not yet contain a complete unit ok is false and no error is
// returned. Slices holding nothing but ignorable tokens and delimiters are
// skipped, and the returned checkpoint reflects the skip even when ok is
// false or err is non-nil. A failing slice is never skipped: retrying from the
// returned checkpoint reproduces the same error.
func (p *Parser[T]) Parse(tokens []lexer.Token, cp Checkpoint) (unit T, ok bool, next Checkpoint, err error) {
	if err := p.check(tokens, cp); err != nil {
		return unit, false, cp, err
	}
	for {
		end, found := p.policy.FindBoundary(tokens, cp.Cursor)
		if !found {
			return unit, false, cp, nil
		}
		slice := p.policy.significant(p.scratch[:0], tokens[cp.Cursor:end])
		if len(slice) == 0 {
			cp = cp.advance(end)
			continue
		}
		unit, err = p.attempt(slice, tokens[cp.Cursor:end])
		if err != nil {
			return unit, false, cp, err
		}
		return unit, true, cp.advance(end), nil
	}
}

// ParseFinal parses the trailing tokens of a finished stream from cp.
//
// Any complete units must already have been taken with Parse. The remainder
// is parsed as a final unit without a delimiter if it leaves no structure
// open, otherwise IncompleteInput is returned. A remainder of ignorable
// tokens is consumed without producing a unit.
func (p *Parser[T]) ParseFinal(tokens []lexer.Token, cp Checkpoint) (unit T, ok bool, next Checkpoint, err error) {
	if err := p.check(tokens, cp); err != nil {
		return unit, false, cp, err
	}
	rest := tokens[cp.Cursor:]
	slice := p.policy.significant(p.scratch[:0], rest)
	if len(slice) == 0 {
		return unit, false, cp.advance(len(tokens)), nil
	}
	if !p.policy.Closed(tokens, cp.Cursor) {
		span := slice[0].Span.Join(rest[len(rest)-1].Span)
		return unit, false, cp, incompleteInput(span, "unclosed structure")
	}
	unit, err = p.attempt(slice, rest)
	if err != nil {
		return unit, false, cp, err
	}
	return unit, true, cp.advance(len(tokens)), nil
}

// Skip returns a checkpoint past the next delimited slice from cp, whether or
// not it parses. It is used to resume after a ParseError.
func (p *Parser[T]) Skip(tokens []lexer.Token, cp Checkpoint) (Checkpoint, bool) {
	end, ok := p.policy.FindBoundary(tokens, cp.Cursor)
	if !ok {
		return cp, false
	}
	return cp.advance(end), true
}

func (p *Parser[T]) check(tokens []lexer.Token, cp Checkpoint) error {
	if cp.Cursor < 0 || cp.Cursor > len(tokens) {
		return resourceLimit("checkpoint cursor", cp.Cursor, len(tokens))
	}
	return nil
}

// attempt hands one slice to the grammar. The guard depth is restored however
// the grammar exits.
func (p *Parser[T]) attempt(slice, raw []lexer.Token) (unit T, err error) {
	p.scratch = slice
	span := raw[0].Span.Join(raw[len(raw)-1].Span)
	depth := p.guard.Depth()
	defer func() {
		p.guard.restore(depth)
		if msg := recover(); msg != nil {
			err = &StreamError{Kind: ParseError, Span: span, Detail: fmt.Sprintf("panic: %v", msg)}
		}
	}()
	unit, err = p.grammar.Parse(slice, p.guard)
	if err != nil {
		if KindOf(err) != 0 {
			return unit, err
		}
		return unit, wrapError(ParseError, span, err)
	}
	return unit, nil
}
