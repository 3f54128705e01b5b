package streamparse_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	require "github.com/alecthomas/assert/v2"

	"github.com/alecthomas/streamparse"
	"github.com/alecthomas/streamparse/lexer"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err      *streamparse.StreamError
		expected string
	}{
		{&streamparse.StreamError{Kind: streamparse.ChunkTooLarge, Current: 10, Max: 4}, "chunk size 10 exceeds maximum 4"},
		{&streamparse.StreamError{Kind: streamparse.ResourceLimit, Resource: "bytes", Current: 3, Max: 2}, "bytes limit exceeded: 3 > 2"},
		{&streamparse.StreamError{Kind: streamparse.ParseError, Span: lexer.SyntheticSpan, Detail: "bad"}, "parse error: bad"},
		{&streamparse.StreamError{Kind: streamparse.LexError, Span: lexer.Span{Start: 1, End: 2}, Detail: "bad"}, "lex error at 1:2: bad"},
		{&streamparse.StreamError{Kind: streamparse.IncompleteInput}, "incomplete input at end of stream"},
		{&streamparse.StreamError{Kind: streamparse.ChannelClosed}, "channel closed unexpectedly"},
		{&streamparse.StreamError{Kind: streamparse.Timeout}, "timeout waiting for input"},
	}
	for _, test := range tests {
		require.EqualError(t, test.err, test.expected)
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("feeding: %w", streamparse.Errorf(lexer.Span{Start: 3, End: 5}, "unexpected %q", "x"))
	require.IsError(t, err, streamparse.ErrParse)
	require.False(t, errors.Is(err, streamparse.ErrLex))
	require.Equal(t, streamparse.ParseError, streamparse.KindOf(err))
	require.Equal(t, streamparse.ErrorKind(0), streamparse.KindOf(errors.New("other")))
	require.EqualError(t, err, `feeding: parse error at 3:5: unexpected "x"`)

	cause := errors.New("cause")
	wrapped := &streamparse.StreamError{Kind: streamparse.LexError, Err: cause, Detail: cause.Error()}
	require.Equal(t, cause, errors.Unwrap(wrapped))
	require.IsError(t, wrapped, cause)
}

func TestErrorKindString(t *testing.T) {
	require.Equal(t, "RecursionLimitExceeded", streamparse.RecursionLimitExceeded.String())
	require.Equal(t, "ErrorKind(99)", streamparse.ErrorKind(99).String())
}

func TestTimeoutWrapsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	p := newPipeline(t)
	_, err := p.Next(ctx)
	require.IsError(t, err, streamparse.ErrTimeout)
	require.IsError(t, err, context.DeadlineExceeded)
}
