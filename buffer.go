package streamparse

import (
	"math"

	"github.com/alecthomas/streamparse/lexer"
)

// Checkpoint is a resumable parsing position.
//
// A Checkpoint is a plain value re-resolved against the Buffer on every use,
// never a reference into it, so compaction cannot invalidate it.
type Checkpoint struct {
	// Cursor is the index of the next unconsumed token, relative to the
	// buffer's current base.
	Cursor int
	// Consumed is the total number of tokens consumed over the stream.
	Consumed int
	// State is opaque grammar specific continuation data.
	State uint64
}

func (c Checkpoint) advance(end int) Checkpoint {
	return Checkpoint{
		Cursor:   end,
		Consumed: SaturatingAdd(c.Consumed, end-c.Cursor),
		State:    c.State,
	}
}

// Buffer holds the tokens of a stream between lexing and parsing.
//
// Tokens are appended at the end and consumed from a logical cursor at the
// front. Compact physically discards consumed tokens.
type Buffer struct {
	tokens  []lexer.Token
	cursor  int
	dropped int
	max     int
}

// NewBuffer creates a Buffer with the given initial capacity, holding at most
// limit unconsumed tokens. A non-positive limit means unbounded.
func NewBuffer(capacity, limit int) *Buffer {
	if limit <= 0 {
		limit = math.MaxInt
	}
	return &Buffer{tokens: make([]lexer.Token, 0, capacity), max: limit}
}

// Append tokens to the buffer.
//
// If the unconsumed tokens would exceed the maximum a BufferOverflow error is
// returned and the buffer is left unchanged. Append never compacts, so cursors
// held by the caller stay valid.
func (b *Buffer) Append(tokens ...lexer.Token) error {
	if next := SaturatingAdd(b.Len(), len(tokens)); next > b.max {
		return limitError(BufferOverflow, next, b.max)
	}
	b.tokens = append(b.tokens, tokens...)
	return nil
}

// Tokens returns all tokens from the buffer's base, including consumed tokens
// not yet compacted away. Checkpoint cursors index into this slice.
//
// The slice is only valid until the next call to Append or Compact.
func (b *Buffer) Tokens() []lexer.Token { return b.tokens }

// Remaining returns the unconsumed tokens.
//
// The slice is only valid until the next call to Append or Compact.
func (b *Buffer) Remaining() []lexer.Token { return b.tokens[b.cursor:] }

// Consume n tokens, clamped to the number of unconsumed tokens.
func (b *Buffer) Consume(n int) {
	if n <= 0 {
		return
	}
	b.cursor = min(SaturatingAdd(b.cursor, n), len(b.tokens))
}

// Cursor returns the index of the first unconsumed token.
func (b *Buffer) Cursor() int { return b.cursor }

// Len returns the number of unconsumed tokens.
func (b *Buffer) Len() int { return len(b.tokens) - b.cursor }

// Max returns the maximum number of unconsumed tokens.
func (b *Buffer) Max() int { return b.max }

// Pending returns the number of consumed tokens awaiting compaction.
func (b *Buffer) Pending() int { return b.cursor }

// TotalTokens returns the number of tokens ever appended, including compacted ones.
func (b *Buffer) TotalTokens() int { return b.dropped + len(b.tokens) }

// Compact discards consumed tokens, rebasing the cursor to zero. It returns
// the number of tokens discarded. Remaining is unaffected.
func (b *Buffer) Compact() int {
	n := b.cursor
	if n == 0 {
		return 0
	}
	kept := copy(b.tokens, b.tokens[n:])
	clear(b.tokens[kept:])
	b.tokens = b.tokens[:kept]
	b.cursor = 0
	b.dropped += n
	return n
}

// Checkpoint returns a checkpoint at the buffer's cursor carrying state.
func (b *Buffer) Checkpoint(state uint64) Checkpoint {
	return Checkpoint{Cursor: b.cursor, Consumed: b.dropped + b.cursor, State: state}
}

// Reset discards all tokens and releases the backing storage.
func (b *Buffer) Reset() {
	b.tokens = nil
	b.cursor = 0
	b.dropped = 0
}
