package jsonl

import (
	"github.com/alecthomas/streamparse/lexer"
)

// Token types.
const (
	EOF rune = -(iota + 1)
	LBrace
	RBrace
	LBracket
	RBracket
	Colon
	Comma
	String
	Number
	True
	False
	Null
	Newline
	Whitespace
)

// Symbols maps symbol names to token types, as participle lexer definitions do.
var Symbols = map[string]rune{
	"EOF":        EOF,
	"LBrace":     LBrace,
	"RBrace":     RBrace,
	"LBracket":   LBracket,
	"RBracket":   RBracket,
	"Colon":      Colon,
	"Comma":      Comma,
	"String":     String,
	"Number":     Number,
	"True":       True,
	"False":      False,
	"Null":       Null,
	"Newline":    Newline,
	"Whitespace": Whitespace,
}

var punctuation = map[byte]rune{
	'{': LBrace,
	'}': RBrace,
	'[': LBracket,
	']': RBracket,
	':': Colon,
	',': Comma,
}

var literals = map[byte]struct {
	text string
	typ  rune
}{
	't': {"true", True},
	'f': {"false", False},
	'n': {"null", Null},
}

// Scan tokenizes JSON Lines text.
//
// Token values are the source text of the token, strings included their quotes.
func Scan(text string) ([]lexer.Token, error) {
	s := &scanner{text: text}
	for s.pos < len(s.text) {
		start := s.pos
		typ, err := s.next()
		if err != nil {
			return s.tokens, err
		}
		s.tokens = append(s.tokens, lexer.Token{
			Type:  typ,
			Value: s.text[start:s.pos],
			Span:  lexer.Span{Start: start, End: s.pos},
		})
	}
	return s.tokens, nil
}

type scanner struct {
	text   string
	pos    int
	tokens []lexer.Token
}

func (s *scanner) next() (rune, error) {
	c := s.text[s.pos]
	if typ, ok := punctuation[c]; ok {
		s.pos++
		return typ, nil
	}
	if lit, ok := literals[c]; ok {
		return s.literal(lit.text, lit.typ)
	}
	switch {
	case c == '\n':
		s.pos++
		return Newline, nil
	case c == ' ' || c == '\t' || c == '\r':
		for s.pos < len(s.text) && (s.text[s.pos] == ' ' || s.text[s.pos] == '\t' || s.text[s.pos] == '\r') {
			s.pos++
		}
		return Whitespace, nil
	case c == '"':
		return s.string()
	case c == '-' || isDigit(c):
		return s.number()
	}
	return 0, lexer.Errorf(s.pos, "invalid character %q", c)
}

func (s *scanner) literal(text string, typ rune) (rune, error) {
	rest := s.text[s.pos:]
	switch {
	case len(rest) >= len(text) && rest[:len(text)] == text:
		s.pos += len(text)
		return typ, nil
	case len(rest) < len(text) && text[:len(rest)] == rest:
		return 0, lexer.Incompletef(s.pos, "truncated literal %q", rest)
	}
	return 0, lexer.Errorf(s.pos, "invalid literal, expected %q", text)
}

func (s *scanner) string() (rune, error) {
	start := s.pos
	s.pos++
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == '"':
			s.pos++
			return String, nil
		case c == '\\':
			if err := s.escape(start); err != nil {
				return 0, err
			}
			continue
		case c < 0x20:
			return 0, lexer.Errorf(s.pos, "invalid control character %q in string", c)
		}
		s.pos++
	}
	return 0, lexer.Incompletef(start, "unterminated string")
}

func (s *scanner) escape(start int) error {
	s.pos++
	if s.pos >= len(s.text) {
		return lexer.Incompletef(start, "unterminated string")
	}
	switch s.text[s.pos] {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		s.pos++
		return nil
	case 'u':
		s.pos++
		for i := 0; i < 4; i++ {
			if s.pos >= len(s.text) {
				return lexer.Incompletef(start, "unterminated string")
			}
			if !isHex(s.text[s.pos]) {
				return lexer.Errorf(s.pos, "invalid unicode escape")
			}
			s.pos++
		}
		return nil
	}
	return lexer.Errorf(s.pos, "invalid escape %q", s.text[s.pos])
}

// number scans -?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?
func (s *scanner) number() (rune, error) {
	start := s.pos
	if s.peek() == '-' {
		s.pos++
	}
	switch c := s.peek(); {
	case c == '0':
		s.pos++
	case isDigit(c):
		s.digits()
	case s.pos == len(s.text):
		return 0, lexer.Incompletef(start, "truncated number")
	default:
		return 0, lexer.Errorf(s.pos, "invalid number")
	}
	if s.peek() == '.' {
		s.pos++
		if err := s.requireDigits(start); err != nil {
			return 0, err
		}
	}
	if c := s.peek(); c == 'e' || c == 'E' {
		s.pos++
		if c := s.peek(); c == '+' || c == '-' {
			s.pos++
		}
		if err := s.requireDigits(start); err != nil {
			return 0, err
		}
	}
	return Number, nil
}

func (s *scanner) requireDigits(start int) error {
	switch {
	case s.pos == len(s.text):
		return lexer.Incompletef(start, "truncated number")
	case !isDigit(s.text[s.pos]):
		return lexer.Errorf(s.pos, "invalid number")
	}
	s.digits()
	return nil
}

func (s *scanner) digits() {
	for s.pos < len(s.text) && isDigit(s.text[s.pos]) {
		s.pos++
	}
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.text) {
		return 0
	}
	return s.text[s.pos]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
