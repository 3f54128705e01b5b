package streamparse

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/streamparse/lexer"
)

// ErrorKind identifies the class of a StreamError.
type ErrorKind int

const (
	// ChunkTooLarge is returned when a single Feed exceeds Budget.MaxChunkSize.
	ChunkTooLarge ErrorKind = iota + 1
	// BufferOverflow is returned when the unconsumed token buffer would exceed its maximum.
	BufferOverflow
	// TokenLimitExceeded is returned when the stream produces more than Budget.MaxTokens tokens.
	TokenLimitExceeded
	// RecursionLimitExceeded is returned when grammar nesting exceeds Budget.MaxRecursionDepth.
	RecursionLimitExceeded
	// ResourceLimit is a generic counter overflow.
	ResourceLimit
	// LexError wraps a scanner failure.
	LexError
	// ParseError wraps a grammar parser failure for one unit.
	ParseError
	// IncompleteInput is returned when the stream finishes with a partial unit pending.
	IncompleteInput
	// ChannelClosed indicates an internal queue closed unexpectedly. It is always an engine defect.
	ChannelClosed
	// Timeout is returned when the pipeline deadline expires.
	Timeout
)

var kindNames = map[ErrorKind]string{
	ChunkTooLarge:          "ChunkTooLarge",
	BufferOverflow:         "BufferOverflow",
	TokenLimitExceeded:     "TokenLimitExceeded",
	RecursionLimitExceeded: "RecursionLimitExceeded",
	ResourceLimit:          "ResourceLimit",
	LexError:               "LexError",
	ParseError:             "ParseError",
	IncompleteInput:        "IncompleteInput",
	ChannelClosed:          "ChannelClosed",
	Timeout:                "Timeout",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinel errors for use with errors.Is. A *StreamError matches the sentinel of its Kind.
var (
	ErrChunkTooLarge          = &StreamError{Kind: ChunkTooLarge}
	ErrBufferOverflow         = &StreamError{Kind: BufferOverflow}
	ErrTokenLimitExceeded     = &StreamError{Kind: TokenLimitExceeded}
	ErrRecursionLimitExceeded = &StreamError{Kind: RecursionLimitExceeded}
	ErrResourceLimit          = &StreamError{Kind: ResourceLimit}
	ErrLex                    = &StreamError{Kind: LexError}
	ErrParse                  = &StreamError{Kind: ParseError}
	ErrIncompleteInput        = &StreamError{Kind: IncompleteInput}
	ErrChannelClosed          = &StreamError{Kind: ChannelClosed}
	ErrTimeout                = &StreamError{Kind: Timeout}
)

// ErrFinished is returned when input is fed after the end of input. It is a
// usage error, not a StreamError.
var ErrFinished = errors.New("streamparse: feed after finish")

// StreamError is the error type returned by every component of the engine.
//
// Which fields are populated depends on Kind.
type StreamError struct {
	Kind ErrorKind
	// Resource names the exhausted resource for ResourceLimit.
	Resource string
	// Current and Max are set for the size and limit kinds.
	Current int
	Max     int
	// Detail is a free form description, typically the collaborator's message.
	Detail string
	// Span of the offending input for LexError, ParseError and IncompleteInput,
	// or lexer.SyntheticSpan if unknown.
	Span lexer.Span
	// Err is the underlying collaborator error, if any.
	Err error
}

func (e *StreamError) Error() string {
	switch e.Kind {
	case ChunkTooLarge:
		return fmt.Sprintf("chunk size %d exceeds maximum %d", e.Current, e.Max)
	case BufferOverflow:
		return fmt.Sprintf("buffer size %d exceeds maximum %d", e.Current, e.Max)
	case TokenLimitExceeded:
		return fmt.Sprintf("token limit exceeded: %d > %d", e.Current, e.Max)
	case RecursionLimitExceeded:
		return fmt.Sprintf("recursion limit exceeded: %d > %d", e.Current, e.Max)
	case ResourceLimit:
		return fmt.Sprintf("%s limit exceeded: %d > %d", e.Resource, e.Current, e.Max)
	case LexError:
		return "lex error" + e.located()
	case ParseError:
		return "parse error" + e.located()
	case IncompleteInput:
		if e.Detail == "" {
			return "incomplete input at end of stream"
		}
		return "incomplete input at end of stream" + e.located()
	case ChannelClosed:
		if e.Detail != "" {
			return "channel closed unexpectedly: " + e.Detail
		}
		return "channel closed unexpectedly"
	case Timeout:
		return "timeout waiting for input"
	}
	return e.Kind.String()
}

func (e *StreamError) located() string {
	if e.Span.Synthetic() {
		return ": " + e.Detail
	}
	return fmt.Sprintf(" at %s: %s", e.Span, e.Detail)
}

// Is matches any *StreamError of the same Kind.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	return ok && t.Kind == e.Kind
}

func (e *StreamError) Unwrap() error { return e.Err }

// KindOf returns the Kind of err if it is a *StreamError, or zero.
func KindOf(err error) ErrorKind {
	var serr *StreamError
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return 0
}

func limitError(kind ErrorKind, current, limit int) *StreamError {
	return &StreamError{Kind: kind, Current: current, Max: limit, Span: lexer.SyntheticSpan}
}

func resourceLimit(resource string, current, limit int) *StreamError {
	return &StreamError{Kind: ResourceLimit, Resource: resource, Current: current, Max: limit, Span: lexer.SyntheticSpan}
}

func wrapError(kind ErrorKind, span lexer.Span, err error) *StreamError {
	return &StreamError{Kind: kind, Span: span, Detail: err.Error(), Err: err}
}

// Errorf creates a ParseError at the given span.
//
// Grammar parsers may use it to report structural errors with a position.
func Errorf(span lexer.Span, format string, args ...interface{}) error {
	return &StreamError{Kind: ParseError, Span: span, Detail: fmt.Sprintf(format, args...)}
}

func lexError(span lexer.Span, err error) *StreamError {
	return &StreamError{Kind: LexError, Span: span, Detail: scanMessage(err), Err: err}
}

// scanMessage strips the scanner's relative offset from err.
func scanMessage(err error) string {
	var lerr *lexer.Error
	if errors.As(err, &lerr) {
		return lerr.Message
	}
	return err.Error()
}

func incompleteInput(span lexer.Span, detail string) *StreamError {
	return &StreamError{Kind: IncompleteInput, Span: span, Detail: detail}
}

func channelClosed(detail string) *StreamError {
	return &StreamError{Kind: ChannelClosed, Detail: detail, Span: lexer.SyntheticSpan}
}

func timeout(err error) *StreamError {
	return &StreamError{Kind: Timeout, Err: err, Detail: err.Error(), Span: lexer.SyntheticSpan}
}

// contextError translates a context error into the error reported by the engine.
//
// Deadline expiry is a Timeout, plain cancellation is reported as is.
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeout(err)
	}
	return err
}
