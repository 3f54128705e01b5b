package jsonl

import (
	"encoding/json"
	"fmt"

	"github.com/alecthomas/streamparse"
	"github.com/alecthomas/streamparse/lexer"
)

// UnexpectedTokenError is returned by Parse when an unexpected token is encountered.
type UnexpectedTokenError struct {
	Unexpected lexer.Token
	Expected   string
}

func (u UnexpectedTokenError) Error() string {
	return fmt.Sprintf("%s: %s", u.Unexpected.Span, u.Message())
}

func (u UnexpectedTokenError) Message() string { // nolint: golint
	var expected string
	if u.Expected != "" {
		expected = fmt.Sprintf(" (expected %s)", u.Expected)
	}
	if u.Unexpected.Type == EOF {
		return "unexpected end of line" + expected
	}
	return fmt.Sprintf("unexpected token %q%s", u.Unexpected.Value, expected)
}

// Parse one line from tokens.
//
// Whitespace and the trailing newline must already have been removed. Newlines
// nested within arrays and objects are skipped.
func Parse(tokens []lexer.Token, guard *streamparse.RecursionGuard) (*Line, error) {
	p := &parser{tokens: tokens, guard: guard}
	value, err := p.value()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != EOF {
		return nil, UnexpectedTokenError{Unexpected: t, Expected: "end of line"}
	}
	return &Line{Value: value, Span: value.Span}, nil
}

type parser struct {
	tokens []lexer.Token
	pos    int
	guard  *streamparse.RecursionGuard
}

func (p *parser) peek() lexer.Token {
	for p.pos < len(p.tokens) && p.tokens[p.pos].Type == Newline {
		p.pos++
	}
	if p.pos == len(p.tokens) {
		eof := lexer.SyntheticSpan
		if n := len(p.tokens); n > 0 {
			end := p.tokens[n-1].Span.End
			eof = lexer.Span{Start: end, End: end}
		}
		return lexer.Token{Type: EOF, Span: eof}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() lexer.Token {
	t := p.peek()
	if t.Type != EOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ rune, expected string) (lexer.Token, error) {
	t := p.next()
	if t.Type != typ {
		return t, UnexpectedTokenError{Unexpected: t, Expected: expected}
	}
	return t, nil
}

func (p *parser) value() (*Value, error) {
	t := p.peek()
	switch t.Type {
	case LBrace:
		return p.object()
	case LBracket:
		return p.array()
	}
	p.next()
	v := &Value{Span: t.Span}
	switch t.Type {
	case Null:
		v.Kind = NullKind
	case True, False:
		v.Kind = BoolKind
		v.Bool = t.Type == True
	case Number:
		v.Kind = NumberKind
		v.Number = t.Value
	case String:
		s, err := unquote(t)
		if err != nil {
			return nil, err
		}
		v.Kind = StringKind
		v.String = s
	default:
		return nil, UnexpectedTokenError{Unexpected: t, Expected: "value"}
	}
	return v, nil
}

func (p *parser) array() (*Value, error) {
	if err := p.guard.Enter(); err != nil {
		return nil, err
	}
	defer p.guard.Exit()
	open := p.next()
	v := &Value{Kind: ArrayKind, Array: []*Value{}}
	if t := p.peek(); t.Type == RBracket {
		p.next()
		v.Span = open.Span.Join(t.Span)
		return v, nil
	}
	for {
		elem, err := p.value()
		if err != nil {
			return nil, err
		}
		v.Array = append(v.Array, elem)
		t := p.next()
		switch t.Type {
		case Comma:
			continue
		case RBracket:
			v.Span = open.Span.Join(t.Span)
			return v, nil
		}
		return nil, UnexpectedTokenError{Unexpected: t, Expected: `"," or "]"`}
	}
}

func (p *parser) object() (*Value, error) {
	if err := p.guard.Enter(); err != nil {
		return nil, err
	}
	defer p.guard.Exit()
	open := p.next()
	v := &Value{Kind: ObjectKind, Object: []*Member{}}
	if t := p.peek(); t.Type == RBrace {
		p.next()
		v.Span = open.Span.Join(t.Span)
		return v, nil
	}
	for {
		key, err := p.expect(String, "string key")
		if err != nil {
			return nil, err
		}
		name, err := unquote(key)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(Colon, `":"`); err != nil {
			return nil, err
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		v.Object = append(v.Object, &Member{Key: name, KeySpan: key.Span, Value: value})
		t := p.next()
		switch t.Type {
		case Comma:
			continue
		case RBrace:
			v.Span = open.Span.Join(t.Span)
			return v, nil
		}
		return nil, UnexpectedTokenError{Unexpected: t, Expected: `"," or "}"`}
	}
}

func unquote(t lexer.Token) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(t.Value), &s); err != nil {
		return "", fmt.Errorf("%s: invalid string %s: %w", t.Span, t.Value, err)
	}
	return s, nil
}
