package lexer

import (
	"fmt"
)

// SyntheticSpan is the Span of a token that was generated rather than read from the input.
var SyntheticSpan = Span{Start: -1, End: -1}

// Span is a half-open byte range [Start, End) in the cumulative input of a stream.
type Span struct {
	Start int
	End   int
}

// Synthetic returns true if the span does not refer to a source position.
func (s Span) Synthetic() bool {
	return s == SyntheticSpan
}

// Len of the span in bytes.
//
// Inverted and synthetic spans have length zero.
func (s Span) Len() int {
	if s.End < s.Start || s.Synthetic() {
		return 0
	}
	return s.End - s.Start
}

// Join returns a span covering both s and other.
//
// A synthetic span is absorbed by a real one.
func (s Span) Join(other Span) Span {
	switch {
	case s.Synthetic():
		return other
	case other.Synthetic():
		return s
	}
	return Span{Start: min(s.Start, other.Start), End: max(s.End, other.End)}
}

// Shift the span by n bytes. Synthetic spans are left untouched.
func (s Span) Shift(n int) Span {
	if s.Synthetic() {
		return s
	}
	return Span{Start: s.Start + n, End: s.End + n}
}

func (s Span) String() string {
	if s.Synthetic() {
		return "<synthetic>"
	}
	return fmt.Sprintf("%d:%d", s.Start, s.End)
}

func (s Span) GoString() string {
	return fmt.Sprintf("Span{Start: %d, End: %d}", s.Start, s.End)
}

// A Token produced by a Scanner.
type Token struct {
	// Type of token. This is the value keyed by symbol in the grammar's symbol table.
	Type  rune
	Value string
	Span  Span
}

// SyntheticToken creates a token with no source position.
func SyntheticToken(typ rune, value string) Token {
	return Token{Type: typ, Value: value, Span: SyntheticSpan}
}

func (t Token) String() string {
	return t.Value
}

func (t Token) GoString() string {
	if t.Span.Synthetic() {
		return fmt.Sprintf("Token{%d, %q}", t.Type, t.Value)
	}
	return fmt.Sprintf("Token@%s{%d, %q}", t.Span, t.Type, t.Value)
}

// A Scanner tokenizes one complete in-memory text.
//
// Spans are relative to the start of text. On failure Scan returns the tokens
// recognised before the failure along with an error. Failures caused purely by
// running out of text in the middle of a token must be reported as an *Error
// with Incomplete set, so that incremental callers know more input may fix them.
type Scanner interface {
	Scan(text string) ([]Token, error)
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(text string) ([]Token, error)

func (f ScannerFunc) Scan(text string) ([]Token, error) { return f(text) }

// SymbolsByRune returns a map of symbol names keyed by token type.
func SymbolsByRune(symbols map[string]rune) map[rune]string {
	out := make(map[rune]string, len(symbols))
	for s, r := range symbols {
		out[r] = s
	}
	return out
}
