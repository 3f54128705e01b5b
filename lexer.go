package streamparse

import (
	"errors"
	"math"

	"github.com/alecthomas/streamparse/lexer"
)

// Lexer turns chunks of text into tokens incrementally.
//
// Tokens are only emitted once they are known to be complete: up to and
// including the last record delimiter of the pending text, or otherwise every
// token except the last, which may have been cut by a chunk boundary. For any
// split of an input into chunks, the concatenation of all tokens returned by
// Feed and Finish equals the tokens the scanner produces for the whole input in
// one pass, with identical spans. This relies on the scanner being stateless at
// the start of each token.
type Lexer struct {
	scanner  lexer.Scanner
	policy   BoundaryPolicy
	maxChunk int
	tokens   *Counter
	pending  []byte
	offset   int
	finished bool
	// err is the LexError that ended the input.
	err error
}

// NewLexer creates an incremental lexer over scanner, using the boundary
// markers of policy as record delimiters.
func NewLexer(scanner lexer.Scanner, policy BoundaryPolicy, budget Budget) *Lexer {
	maxChunk := budget.MaxChunkSize
	if maxChunk <= 0 {
		maxChunk = math.MaxInt
	}
	maxTokens := budget.MaxTokens
	if maxTokens <= 0 {
		maxTokens = math.MaxInt
	}
	return &Lexer{
		scanner:  scanner,
		policy:   policy,
		maxChunk: maxChunk,
		tokens:   NewCounter("tokens", maxTokens),
		pending:  make([]byte, 0, budget.LexerHint.BufferCapacity),
	}
}

// Offset returns the number of bytes consumed so far. Tokens emitted later
// start at or after this offset.
func (l *Lexer) Offset() int { return l.offset }

// Tokens returns the number of tokens emitted so far.
func (l *Lexer) Tokens() int { return l.tokens.Value() }

// Pending returns the number of bytes received but not yet consumed.
func (l *Lexer) Pending() int { return len(l.pending) }

// Feed a chunk of text to the lexer, returning the tokens that are complete.
//
// Size and token limit errors leave the lexer exactly as it was before the
// call, so the caller may retry with a smaller chunk, skip the chunk or give
// up. A LexError ends the input instead: the tokens of the records completed
// before the failure are returned with it, and every later Feed or Finish
// returns the same error.
func (l *Lexer) Feed(chunk string) ([]lexer.Token, error) {
	if len(chunk) > l.maxChunk {
		return nil, limitError(ChunkTooLarge, len(chunk), l.maxChunk)
	}
	if l.err != nil {
		return nil, l.err
	}
	if l.finished {
		return nil, ErrFinished
	}
	// Appending may write into spare capacity, but l.pending itself is only
	// replaced once the call succeeds.
	text := append(l.pending, chunk...)
	tokens, err := l.scanner.Scan(string(text))
	failed := err != nil && !lexer.IsIncomplete(err)
	var emit, consumed int
	if failed {
		emit, consumed, _ = l.lastRecord(tokens)
	} else {
		emit, consumed = l.safePrefix(tokens)
	}
	if err := l.tokens.Add(emit); err != nil {
		return nil, limitError(TokenLimitExceeded, SaturatingAdd(l.tokens.Value(), emit), l.tokens.Max())
	}
	var lexErr error
	if failed {
		l.err = lexError(l.errorPoint(err, len(text)), err)
		lexErr = l.err
	}
	out := l.shift(tokens[:emit])
	n := copy(text, text[consumed:])
	l.pending = text[:n]
	l.offset += consumed
	return out, lexErr
}

// Finish lexes any pending text as final input.
//
// Pending text that ends in the middle of a token is reported as IncompleteInput.
// Calling Finish again returns no tokens.
func (l *Lexer) Finish() ([]lexer.Token, error) {
	if l.finished {
		return nil, nil
	}
	l.finished = true
	if l.err != nil {
		return nil, l.err
	}
	if len(l.pending) == 0 {
		return nil, nil
	}
	text := string(l.pending)
	tokens, err := l.scanner.Scan(text)
	if err != nil {
		if lexer.IsIncomplete(err) {
			return nil, incompleteInput(l.errorSpan(err, len(text)), scanMessage(err))
		}
		l.err = lexError(l.errorPoint(err, len(text)), err)
		return nil, l.err
	}
	if err := l.tokens.Add(len(tokens)); err != nil {
		return nil, limitError(TokenLimitExceeded, SaturatingAdd(l.tokens.Value(), len(tokens)), l.tokens.Max())
	}
	out := l.shift(tokens)
	l.offset += len(l.pending)
	l.pending = nil
	return out, nil
}

// safePrefix returns how many of tokens may be emitted and how many bytes of
// the scanned text they consume.
func (l *Lexer) safePrefix(tokens []lexer.Token) (emit int, consumed int) {
	if emit, consumed, ok := l.lastRecord(tokens); ok {
		return emit, consumed
	}
	if len(tokens) < 2 {
		return 0, 0
	}
	last := len(tokens) - 1
	return last, tokens[last].Span.Start
}

// lastRecord returns the tokens and bytes up to and including the last
// record delimiter.
func (l *Lexer) lastRecord(tokens []lexer.Token) (emit int, consumed int, ok bool) {
	for i := len(tokens) - 1; i >= 0; i-- {
		if l.policy.IsBoundary(tokens[i]) {
			return i + 1, tokens[i].Span.End, true
		}
	}
	return 0, 0, false
}

func (l *Lexer) shift(tokens []lexer.Token) []lexer.Token {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]lexer.Token, len(tokens))
	for i, token := range tokens {
		token.Span = token.Span.Shift(l.offset)
		out[i] = token
	}
	return out
}

// errorSpan locates a scanner error in the cumulative input.
func (l *Lexer) errorSpan(err error, length int) lexer.Span {
	var lerr *lexer.Error
	if errors.As(err, &lerr) {
		return lexer.Span{Start: l.offset + lerr.Offset, End: l.offset + length}
	}
	return lexer.Span{Start: l.offset, End: l.offset + length}
}

// errorPoint locates a scanner failure at the character it failed on.
func (l *Lexer) errorPoint(err error, length int) lexer.Span {
	span := l.errorSpan(err, length)
	span.End = min(span.Start+1, span.End)
	return span
}
