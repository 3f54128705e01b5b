package streamparse

import (
	"github.com/alecthomas/streamparse/lexer"
)

// Grammar supplies the language specific collaborators used by the engine.
//
// T is the type of the parse units produced by the grammar.
type Grammar[T any] interface {
	// Scanner tokenizes complete in-memory text.
	lexer.Scanner
	// Policy returns the boundary policy for the grammar's token types.
	Policy() BoundaryPolicy
	// Parse one unit from a delimited slice of tokens.
	//
	// Ignorable tokens and the trailing delimiter have already been removed.
	// The whole slice must be consumed. Nested structures must be bracketed by
	// guard.Enter() and guard.Exit(). The slice is only valid for the duration
	// of the call.
	Parse(tokens []lexer.Token, guard *RecursionGuard) (T, error)
}

// ParseFunc parses one unit from a delimited slice of tokens.
type ParseFunc[T any] func(tokens []lexer.Token, guard *RecursionGuard) (T, error)

// NewGrammar assembles a Grammar from its parts.
func NewGrammar[T any](scanner lexer.Scanner, policy BoundaryPolicy, parse ParseFunc[T]) Grammar[T] {
	return &grammar[T]{Scanner: scanner, policy: policy, parse: parse}
}

type grammar[T any] struct {
	lexer.Scanner
	policy BoundaryPolicy
	parse  ParseFunc[T]
}

func (g *grammar[T]) Policy() BoundaryPolicy { return g.policy }

func (g *grammar[T]) Parse(tokens []lexer.Token, guard *RecursionGuard) (T, error) {
	return g.parse(tokens, guard)
}
