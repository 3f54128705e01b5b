package streamparse

import (
	"fmt"
	"math"
)

// LexerCapacityHint pre-sizes the incremental lexer's buffers.
type LexerCapacityHint struct {
	// BufferCapacity is the expected size in bytes of pending source text.
	BufferCapacity int
	// TokensPerChunk is the expected number of tokens produced per chunk.
	TokensPerChunk int
}

// SmallHint is tuned for inputs under 1KB.
func SmallHint() LexerCapacityHint { return LexerCapacityHint{BufferCapacity: 256, TokensPerChunk: 32} }

// MediumHint is tuned for inputs between 1KB and 64KB. This is the default.
func MediumHint() LexerCapacityHint {
	return LexerCapacityHint{BufferCapacity: 4096, TokensPerChunk: 256}
}

// LargeHint is tuned for inputs over 64KB.
func LargeHint() LexerCapacityHint {
	return LexerCapacityHint{BufferCapacity: 65536, TokensPerChunk: 2048}
}

// HintFromChunkSize estimates capacity from the expected chunk size, assuming
// roughly one token per four bytes.
func HintFromChunkSize(chunkSize int) LexerCapacityHint {
	return LexerCapacityHint{BufferCapacity: chunkSize, TokensPerChunk: chunkSize / 4}
}

// Budget bounds the resources used by one pipeline.
//
// A pipeline copies its Budget at construction, so it cannot change while the
// stream is running.
type Budget struct {
	// MaxChunkSize is the maximum number of bytes accepted by a single Feed.
	MaxChunkSize int
	// MaxTokens is the maximum number of tokens lexed over the whole stream.
	MaxTokens int
	// MaxRecursionDepth is the maximum grammar nesting depth of one unit.
	MaxRecursionDepth int
	// TokenQueueCapacity is the capacity of the queue between the lexing and parsing stages.
	TokenQueueCapacity int
	// UnitQueueCapacity is the capacity of the queue of completed units.
	UnitQueueCapacity int
	// MaxBufferTokens is the maximum number of unconsumed tokens held by the
	// parsing stage. Zero means twice TokenQueueCapacity.
	MaxBufferTokens int
	// CompactThreshold is the number of consumed tokens that triggers
	// compaction of the token buffer. Zero means half of TokenQueueCapacity.
	CompactThreshold int
	LexerHint        LexerCapacityHint
}

// DefaultBudget returns the default budget.
func DefaultBudget() Budget {
	return Budget{
		MaxChunkSize:       64 * 1024,
		MaxTokens:          math.MaxInt,
		MaxRecursionDepth:  128,
		TokenQueueCapacity: 1024,
		UnitQueueCapacity:  64,
		MaxBufferTokens:    64 * 1024,
		LexerHint:          MediumHint(),
	}
}

// SmallBudget is tuned for small messages and low memory use.
func SmallBudget() Budget {
	b := DefaultBudget()
	b.MaxChunkSize = 4 * 1024
	b.TokenQueueCapacity = 128
	b.UnitQueueCapacity = 16
	b.MaxBufferTokens = 4 * 1024
	b.LexerHint = SmallHint()
	return b
}

// LargeBudget is tuned for throughput on large inputs.
func LargeBudget() Budget {
	b := DefaultBudget()
	b.MaxChunkSize = 256 * 1024
	b.TokenQueueCapacity = 8192
	b.UnitQueueCapacity = 512
	b.MaxBufferTokens = 1024 * 1024
	b.LexerHint = LargeHint()
	return b
}

// BudgetFromChunkSize derives the queue and chunk limits from the expected
// chunk size. The token buffer keeps the default limit, as one unit may span
// many chunks.
func BudgetFromChunkSize(chunkSize int) Budget {
	tokens := max(chunkSize/4, 1)
	b := DefaultBudget()
	b.MaxChunkSize = SaturatingAdd(chunkSize, chunkSize)
	b.TokenQueueCapacity = tokens
	b.UnitQueueCapacity = max(tokens/16, 1)
	b.LexerHint = HintFromChunkSize(chunkSize)
	return b
}

// Validate the budget.
func (b Budget) Validate() error {
	for _, field := range []struct {
		name  string
		value int
	}{
		{"MaxChunkSize", b.MaxChunkSize},
		{"MaxTokens", b.MaxTokens},
		{"MaxRecursionDepth", b.MaxRecursionDepth},
		{"TokenQueueCapacity", b.TokenQueueCapacity},
		{"UnitQueueCapacity", b.UnitQueueCapacity},
	} {
		if field.value <= 0 {
			return fmt.Errorf("%s must be positive but is %d", field.name, field.value)
		}
	}
	if b.MaxBufferTokens < 0 || b.CompactThreshold < 0 {
		return fmt.Errorf("MaxBufferTokens and CompactThreshold must not be negative")
	}
	if b.LexerHint.BufferCapacity < 0 || b.LexerHint.TokensPerChunk < 0 {
		return fmt.Errorf("LexerHint capacities must not be negative")
	}
	return nil
}

func (b Budget) bufferLimit() int {
	if b.MaxBufferTokens > 0 {
		return b.MaxBufferTokens
	}
	return SaturatingAdd(b.TokenQueueCapacity, b.TokenQueueCapacity)
}

// bufferCapacity is the initial capacity of the parsing stage's token buffer.
func (b Budget) bufferCapacity() int {
	return max(b.TokenQueueCapacity, b.LexerHint.TokensPerChunk)
}

func (b Budget) compactThreshold() int {
	if b.CompactThreshold > 0 {
		return b.CompactThreshold
	}
	return b.TokenQueueCapacity / 2
}
