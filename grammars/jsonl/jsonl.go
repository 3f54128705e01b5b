// Package jsonl is a JSON Lines grammar for the streaming engine.
//
// Each line of input holds one JSON value. Blank lines are skipped, and values
// may span lines while inside an array or object.
package jsonl

import (
	"github.com/alecthomas/streamparse"
	"github.com/alecthomas/streamparse/lexer"
)

// Policy splits the stream at newlines outside of arrays and objects.
var Policy = streamparse.MustBoundaryPolicy(Symbols, map[string]streamparse.BoundaryRule{
	"Newline":    {Boundary: true},
	"LBrace":     {Depth: 1},
	"RBrace":     {Depth: -1},
	"LBracket":   {Depth: 1},
	"RBracket":   {Depth: -1},
	"Whitespace": {Ignorable: true},
})

// Grammar for JSON Lines.
type Grammar struct{}

var _ streamparse.Grammar[*Line] = (*Grammar)(nil)

// New returns the JSON Lines grammar.
func New() *Grammar { return &Grammar{} }

func (*Grammar) Scan(text string) ([]lexer.Token, error) { return Scan(text) }

func (*Grammar) Policy() streamparse.BoundaryPolicy { return Policy }

func (*Grammar) Parse(tokens []lexer.Token, guard *streamparse.RecursionGuard) (*Line, error) {
	return Parse(tokens, guard)
}
