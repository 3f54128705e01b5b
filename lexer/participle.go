package lexer

import (
	"regexp"
	"strings"

	plexer "github.com/alecthomas/participle/v2/lexer"
)

// ParticipleScanner is a Scanner backed by a participle lexer definition.
type ParticipleScanner struct {
	def     plexer.Definition
	partial []*regexp.Regexp
	symbols map[string]rune
}

var _ Scanner = &ParticipleScanner{}

// Participle adapts a participle lexer definition to a Scanner.
//
// Participle lexers report a generic error when no rule matches. "partial" is a
// list of patterns describing prefixes of tokens that may still be completed by
// more input, eg. an unterminated string. When scanning fails and the unscanned
// remainder of the text matches one of them in its entirety, the failure is
// reported as incomplete input rather than as a lexing error.
//
// The definition should not elide tokens (lowercase rule names), as elided text
// is included in the remainder that "partial" is matched against.
func Participle(def plexer.Definition, partial ...string) (*ParticipleScanner, error) {
	s := &ParticipleScanner{
		def:     def,
		symbols: map[string]rune{},
	}
	for name, typ := range def.Symbols() {
		s.symbols[name] = rune(typ)
	}
	for _, pattern := range partial {
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			return nil, err
		}
		s.partial = append(s.partial, re)
	}
	return s, nil
}

// MustParticiple is like Participle but panics on error.
func MustParticiple(def plexer.Definition, partial ...string) *ParticipleScanner {
	s, err := Participle(def, partial...)
	if err != nil {
		panic(err)
	}
	return s
}

// Symbols returns the symbol table of the underlying definition.
func (p *ParticipleScanner) Symbols() map[string]rune {
	return p.symbols
}

func (p *ParticipleScanner) Scan(text string) ([]Token, error) {
	lex, err := p.lex(text)
	if err != nil {
		return nil, Errorf(0, "%s", err)
	}
	var (
		out []Token
		end int
	)
	for {
		t, err := lex.Next()
		if err != nil {
			if p.isPartial(text[end:]) {
				return out, Incompletef(end, "%s", err)
			}
			return out, Errorf(end, "%s", err)
		}
		if t.EOF() {
			return out, nil
		}
		span := Span{Start: t.Pos.Offset, End: t.Pos.Offset + len(t.Value)}
		out = append(out, Token{Type: rune(t.Type), Value: t.Value, Span: span})
		end = span.End
	}
}

func (p *ParticipleScanner) lex(text string) (plexer.Lexer, error) {
	if sd, ok := p.def.(plexer.StringDefinition); ok {
		return sd.LexString("", text)
	}
	return p.def.Lex("", strings.NewReader(text))
}

func (p *ParticipleScanner) isPartial(rest string) bool {
	for _, re := range p.partial {
		if re.MatchString(rest) {
			return true
		}
	}
	return false
}

// Upgrade converts tokens into a participle PeekingLexer, so that a slice
// delimited by the streaming engine can be handed to a participle grammar.
//
// Token positions carry the absolute byte offset of each token.
func Upgrade(tokens []Token) (*plexer.PeekingLexer, error) {
	return plexer.Upgrade(&sliceLexer{tokens: tokens})
}

type sliceLexer struct {
	tokens []Token
	eof    plexer.Position
}

func (s *sliceLexer) Next() (plexer.Token, error) {
	if len(s.tokens) == 0 {
		return plexer.EOFToken(s.eof), nil
	}
	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	pos := plexer.Position{Offset: t.Span.Start}
	if !t.Span.Synthetic() {
		s.eof = plexer.Position{Offset: t.Span.End}
	}
	return plexer.Token{Type: plexer.TokenType(t.Type), Value: t.Value, Pos: pos}, nil
}
