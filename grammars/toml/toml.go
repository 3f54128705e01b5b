// Package toml parses a line oriented subset of TOML as a stream of items.
//
// Each item is a table header or a key/value pair. Arrays and inline tables
// may span lines. Tokens are produced by a participle lexer and each item is
// parsed by a participle struct grammar.
package toml

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	plexer "github.com/alecthomas/participle/v2/lexer"

	"github.com/alecthomas/streamparse"
	"github.com/alecthomas/streamparse/lexer"
)

var (
	tomlLexer = plexer.MustSimple([]plexer.SimpleRule{
		{"Comment", `#[^\n]*`},
		{"String", `"(\\.|[^"\\\n])*"`},
		{"Number", `[-+]?\d+(\.\d*)?`},
		{"Ident", `[A-Za-z_][A-Za-z0-9_-]*`},
		{"LBracket", `\[`},
		{"RBracket", `\]`},
		{"LBrace", `\{`},
		{"RBrace", `\}`},
		{"Punct", `[=,.]`},
		{"Newline", `\n`},
		{"Whitespace", `[ \t\r]+`},
	})
	// Text that may still become a token given more input.
	scanner = lexer.MustParticiple(tomlLexer,
		`"(\\.|[^"\\\n])*\\?`,
		`[-+]`,
	)
	parser = participle.MustBuild[Item](
		participle.Lexer(tomlLexer),
		participle.UseLookahead(2),
	)

	symbols = scanner.Symbols()
	newline = symbols["Newline"]
	openers = map[rune]bool{symbols["LBracket"]: true, symbols["LBrace"]: true}
	closers = map[rune]bool{symbols["RBracket"]: true, symbols["RBrace"]: true}
)

// Policy splits the stream at newlines outside of arrays and inline tables.
var Policy = streamparse.MustBoundaryPolicy(symbols, map[string]streamparse.BoundaryRule{
	"Newline":    {Boundary: true},
	"LBracket":   {Depth: 1},
	"RBracket":   {Depth: -1},
	"LBrace":     {Depth: 1},
	"RBrace":     {Depth: -1},
	"Comment":    {Ignorable: true},
	"Whitespace": {Ignorable: true},
})

// Item is a table header or a key/value pair.
type Item struct {
	Pos    plexer.Position
	EndPos plexer.Position

	Table *Table `  @@`
	Pair  *Pair  `| @@`

	Span lexer.Span
}

// Table header, eg. [server] or [[servers]].
type Table struct {
	Array bool `"[" @"["?`
	Key   *Key `@@ "]"`
	Close bool `@"]"?`
}

// Key is a dotted key. Quoted parts keep their quotes.
type Key struct {
	Parts []string `@(Ident | String) ("." @(Ident | String))*`
}

// Path returns the unquoted parts of the key.
func (k *Key) Path() []string {
	out := make([]string, len(k.Parts))
	for i, part := range k.Parts {
		if s, err := unquote(part); err == nil {
			part = s
		}
		out[i] = part
	}
	return out
}

// Pair is a key/value pair.
type Pair struct {
	Key   *Key   `@@ "="`
	Value *Value `@@`
}

// Value of a pair.
type Value struct {
	String *Str     `  @String`
	Number *float64 `| @Number`
	Bool   *Boolean `| @("true" | "false")`
	Array  *Array   `| @@`
	Inline *Inline  `| @@`
}

// Str is an unquoted string.
type Str string

func (s *Str) Capture(values []string) error {
	v, err := unquote(values[0])
	if err != nil {
		return err
	}
	*s = Str(v)
	return nil
}

// Boolean is true or false.
type Boolean bool

func (b *Boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

// Array of values.
type Array struct {
	Values []*Value `"[" (@@ ("," @@)* ","?)? "]"`
}

// Inline table.
type Inline struct {
	Pairs []*Pair `"{" (@@ ("," @@)*)? "}"`
}

func unquote(s string) (string, error) {
	if len(s) == 0 || s[0] != '"' {
		return s, nil
	}
	return strconv.Unquote(s)
}

// Grammar for TOML items.
type Grammar struct{}

var _ streamparse.Grammar[*Item] = (*Grammar)(nil)

// New returns the TOML item grammar.
func New() *Grammar { return &Grammar{} }

func (*Grammar) Scan(text string) ([]lexer.Token, error) { return scanner.Scan(text) }

func (*Grammar) Policy() streamparse.BoundaryPolicy { return Policy }

// Parse one item from tokens.
//
// Nesting is checked against guard before the tokens are handed to participle.
func (*Grammar) Parse(tokens []lexer.Token, guard *streamparse.RecursionGuard) (*Item, error) {
	filtered := make([]lexer.Token, 0, len(tokens))
	for _, t := range tokens {
		switch {
		case t.Type == newline:
			continue
		case openers[t.Type]:
			if err := guard.Enter(); err != nil {
				return nil, err
			}
		case closers[t.Type]:
			guard.Exit()
		}
		filtered = append(filtered, t)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("empty item")
	}
	peek, err := lexer.Upgrade(filtered)
	if err != nil {
		return nil, err
	}
	item, err := parser.ParseFromLexer(peek)
	if err != nil {
		return nil, err
	}
	if t := item.Table; t != nil && t.Array != t.Close {
		return nil, fmt.Errorf("mismatched brackets in table header %v", t.Key.Path())
	}
	item.Span = filtered[0].Span.Join(filtered[len(filtered)-1].Span)
	return item, nil
}
