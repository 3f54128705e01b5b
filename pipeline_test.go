package streamparse_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	require "github.com/alecthomas/assert/v2"

	"github.com/alecthomas/streamparse"
	"github.com/alecthomas/streamparse/grammars/jsonl"
	"github.com/alecthomas/streamparse/lexer"
)

func newPipeline(t *testing.T, options ...streamparse.Option) *streamparse.Pipeline[*jsonl.Line] {
	t.Helper()
	p, err := streamparse.NewPipeline[*jsonl.Line](context.Background(), jsonl.New(), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// feed chunks to p in the background, returning the error from Finish or the
// first failing Feed.
func feed(p *streamparse.Pipeline[*jsonl.Line], chunks ...string) <-chan error {
	done := make(chan error, 1)
	go func() {
		for _, chunk := range chunks {
			if err := p.Feed(chunk); err != nil {
				done <- err
				return
			}
		}
		done <- p.Finish()
	}()
	return done
}

// drain units from p until an error.
func drain(t *testing.T, p *streamparse.Pipeline[*jsonl.Line]) ([]*jsonl.Line, error) {
	t.Helper()
	var out []*jsonl.Line
	for {
		line, err := p.Next(context.Background())
		if err != nil {
			return out, err
		}
		out = append(out, line)
	}
}

func parseChunks(t *testing.T, chunks []string, options ...streamparse.Option) ([]*jsonl.Line, error) {
	t.Helper()
	p := newPipeline(t, options...)
	feed(p, chunks...)
	lines, err := drain(t, p)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return lines, err
}

func split(input string, size int) []string {
	var chunks []string
	for i := 0; i < len(input); i += size {
		chunks = append(chunks, input[i:min(i+size, len(input))])
	}
	return chunks
}

func TestPipelineTwoUnits(t *testing.T) {
	p := newPipeline(t)
	done := feed(p, `{"a":1}`+"\n", `{"b":2}`+"\n")
	lines, err := drain(t, p)
	require.IsError(t, err, io.EOF)
	require.NoError(t, <-done)
	require.Equal(t, 2, len(lines))
	require.Equal(t, lexer.Span{Start: 0, End: 7}, lines[0].Span)
	require.Equal(t, lexer.Span{Start: 8, End: 15}, lines[1].Span)
	require.Equal(t, "1", lines[0].Value.Get("a").Number)
	require.Equal(t, "2", lines[1].Value.Get("b").Number)
	require.NoError(t, p.Wait())
	require.Equal(t, streamparse.Stats{Bytes: 16, Tokens: 12, Units: 2}, p.Stats())

	// The end of the stream is sticky.
	_, err = p.Next(context.Background())
	require.IsError(t, err, io.EOF)
}

func TestPipelineUnitSplitAcrossChunks(t *testing.T) {
	p := newPipeline(t)
	require.NoError(t, p.Feed(`{"a":1}`+"\n"))
	first, err := p.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, lexer.Span{Start: 0, End: 7}, first.Span)
	require.Equal(t, "1", first.Value.Get("a").Number)

	require.NoError(t, p.Feed(`{"b":2`))
	require.NoError(t, p.Feed("}\n"))
	require.NoError(t, p.Finish())
	lines, err := drain(t, p)
	require.IsError(t, err, io.EOF)
	require.Equal(t, 1, len(lines))
	require.Equal(t, lexer.Span{Start: 8, End: 15}, lines[0].Span)
	require.Equal(t, lexer.Span{Start: 13, End: 14}, lines[0].Value.Get("b").Span)
	require.Equal(t, "2", lines[0].Value.Get("b").Number)
}

func TestPipelineUnitInvariance(t *testing.T) {
	expected, err := parseChunks(t, []string{jsonlInput})
	require.NoError(t, err)
	require.Equal(t, 5, len(expected))
	for size := 1; size <= len(jsonlInput); size++ {
		actual, err := parseChunks(t, split(jsonlInput, size))
		require.NoError(t, err)
		require.Equal(t, expected, actual, "chunks of %d", size)
	}
}

func TestPipelineEmptyStream(t *testing.T) {
	lines, err := parseChunks(t, nil)
	require.NoError(t, err)
	require.Zero(t, lines)

	lines, err = parseChunks(t, []string{"", "\n\n", "  \n"})
	require.NoError(t, err)
	require.Zero(t, lines)
}

func TestPipelineUnitAtEndWithoutDelimiter(t *testing.T) {
	lines, err := parseChunks(t, []string{`{"a":`, `[1,`, "\n2]}"})
	require.NoError(t, err)
	require.Equal(t, 1, len(lines))
	require.Equal(t, lexer.Span{Start: 0, End: 12}, lines[0].Span)
}

func TestPipelineIncompleteInput(t *testing.T) {
	lines, err := parseChunks(t, []string{"1\n[1,\n2\n"})
	require.IsError(t, err, streamparse.ErrIncompleteInput)
	require.Equal(t, 1, len(lines))

	p := newPipeline(t)
	done := feed(p, "1\n", `{"a`)
	lines, err = drain(t, p)
	require.IsError(t, err, streamparse.ErrIncompleteInput)
	require.Equal(t, 1, len(lines))
	require.IsError(t, <-done, streamparse.ErrIncompleteInput)
}

func TestPipelineStopsOnParseError(t *testing.T) {
	p := newPipeline(t)
	feed(p, "1\n2]\n3\n")
	lines, err := drain(t, p)
	require.IsError(t, err, streamparse.ErrParse)
	require.Equal(t, 1, len(lines))
	_, again := p.Next(context.Background())
	require.Equal(t, err, again)
	require.IsError(t, p.Wait(), streamparse.ErrParse)
}

func TestPipelineSkipInvalid(t *testing.T) {
	p := newPipeline(t, streamparse.SkipInvalid())
	feed(p, "1\n2]\n{\"a\" 1}\n3\n[")
	var (
		numbers []string
		errs    []error
	)
	for {
		line, err := p.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, err)
			if !errors.Is(err, streamparse.ErrParse) {
				break
			}
			continue
		}
		numbers = append(numbers, line.Value.Number)
	}
	require.Equal(t, []string{"1", "3"}, numbers)
	require.Equal(t, 3, len(errs))
	require.IsError(t, errs[0], streamparse.ErrParse)
	require.IsError(t, errs[1], streamparse.ErrParse)
	require.IsError(t, errs[2], streamparse.ErrIncompleteInput)
}

func TestPipelineResourceLimits(t *testing.T) {
	_, err := parseChunks(t, []string{"[[1]]\n"}, streamparse.MaxRecursionDepth(2))
	require.NoError(t, err)
	_, err = parseChunks(t, []string{"[[[1]]]\n"}, streamparse.MaxRecursionDepth(2))
	require.IsError(t, err, streamparse.ErrRecursionLimitExceeded)

	_, err = parseChunks(t, []string{"[1]\n[2]\n"}, streamparse.MaxBufferTokens(4))
	require.NoError(t, err)
	_, err = parseChunks(t, []string{"[1,2]\n"}, streamparse.MaxBufferTokens(4))
	require.IsError(t, err, streamparse.ErrBufferOverflow)
	require.EqualError(t, err, "buffer size 5 exceeds maximum 4")

	_, err = parseChunks(t, []string{"1\n2\n"}, streamparse.MaxTokens(4))
	require.NoError(t, err)
}

func TestPipelineTokenLimit(t *testing.T) {
	p := newPipeline(t, streamparse.MaxTokens(4))
	require.NoError(t, p.Feed("1\n2\n"))
	err := p.Feed("3\n")
	require.IsError(t, err, streamparse.ErrTokenLimitExceeded)
	require.EqualError(t, err, "token limit exceeded: 6 > 4")
	require.NoError(t, p.Finish())
	lines, err := drain(t, p)
	require.IsError(t, err, io.EOF)
	require.Equal(t, 2, len(lines))
	require.Equal(t, int64(4), p.Stats().Tokens)
}

func TestPipelineLexErrorAfterUnits(t *testing.T) {
	const input = "1\n[2]\n@\n3\n"
	for size := 1; size <= len(input); size++ {
		lines, err := parseChunks(t, split(input, size))
		require.IsError(t, err, streamparse.ErrLex, "chunks of %d", size)
		require.EqualError(t, err, `lex error at 6:7: invalid character '@'`)
		require.Equal(t, 2, len(lines), "chunks of %d", size)
	}

	p := newPipeline(t)
	err := p.Feed("1\n@")
	require.IsError(t, err, streamparse.ErrLex)
	require.IsError(t, p.Feed("2\n"), streamparse.ErrFinished)
	require.NoError(t, p.Finish())
	lines, again := drain(t, p)
	require.Equal(t, err, again)
	require.Equal(t, 1, len(lines))
}

func TestPipelineCompactionDuringUnit(t *testing.T) {
	p := newPipeline(t, streamparse.TokenQueueCapacity(4), streamparse.MaxBufferTokens(10), streamparse.CompactThreshold(100))
	feed(p, "1\n[1,2,3,4]\n")
	lines, err := drain(t, p)
	require.IsError(t, err, io.EOF)
	require.Equal(t, 2, len(lines))
	require.Equal(t, lexer.Span{Start: 2, End: 11}, lines[1].Span)
	require.Equal(t, 4, len(lines[1].Value.Array))
	require.Equal(t, int64(1), p.Stats().Compactions)
}

func TestPipelineChunkSizeBudget(t *testing.T) {
	input := `{"a": [1, 2]}` + "\n[2]\n" + `"three"`
	lines, err := parseChunks(t, split(input, 3), streamparse.WithBudget(streamparse.BudgetFromChunkSize(3)))
	require.NoError(t, err)
	require.Equal(t, 3, len(lines))
	require.Equal(t, "three", lines[2].Value.String)
}

func TestPipelineChunkTooLarge(t *testing.T) {
	p := newPipeline(t, streamparse.MaxChunkSize(4))
	require.NoError(t, p.Feed("1234"))
	err := p.Feed("12345")
	require.IsError(t, err, streamparse.ErrChunkTooLarge)
	require.NoError(t, p.Feed("\n"))
	require.NoError(t, p.Finish())
	require.NoError(t, p.Finish())
	lines, err := drain(t, p)
	require.IsError(t, err, io.EOF)
	require.Equal(t, 1, len(lines))
	require.Equal(t, "1234", lines[0].Value.Number)
}

func TestPipelineCompaction(t *testing.T) {
	input := strings.Repeat(`{"k": [1, 2, 3]}`+"\n", 100)
	lines, err := parseChunks(t, split(input, 7), streamparse.TokenQueueCapacity(8), streamparse.MaxBufferTokens(64), streamparse.CompactThreshold(16))
	require.NoError(t, err)
	require.Equal(t, 100, len(lines))
	require.Equal(t, lexer.Span{Start: 99 * 17, End: 99*17 + 16}, lines[99].Span)

	p := newPipeline(t, streamparse.CompactThreshold(16))
	feed(p, split(input, 7)...)
	_, err = drain(t, p)
	require.IsError(t, err, io.EOF)
	stats := p.Stats()
	require.True(t, stats.Compactions > 0)
	require.Equal(t, int64(100), stats.Units)
	require.Equal(t, int64(len(input)), stats.Bytes)
}

func TestPipelineCancel(t *testing.T) {
	p := newPipeline(t)
	require.NoError(t, p.Feed("1\n"))
	line, err := p.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1", line.Value.Number)

	p.Cancel()
	_, err = p.Next(context.Background())
	require.IsError(t, err, context.Canceled)
	require.IsError(t, p.Wait(), context.Canceled)
	require.IsError(t, p.Feed("2\n"), context.Canceled)
}

func TestPipelineParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := streamparse.NewPipeline[*jsonl.Line](ctx, jsonl.New())
	require.NoError(t, err)
	defer p.Close()
	cancel()
	require.IsError(t, p.Wait(), context.Canceled)
	_, err = p.Next(context.Background())
	require.IsError(t, err, context.Canceled)
}

func TestPipelineNextContext(t *testing.T) {
	p := newPipeline(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Next(ctx)
	require.IsError(t, err, streamparse.ErrTimeout)

	// The pipeline itself is unaffected.
	feed(p, "1\n")
	lines, err := drain(t, p)
	require.IsError(t, err, io.EOF)
	require.Equal(t, 1, len(lines))
}

func TestPipelineTimeout(t *testing.T) {
	p := newPipeline(t, streamparse.WithTimeout(10*time.Millisecond))
	_, err := p.Next(context.Background())
	require.IsError(t, err, streamparse.ErrTimeout)
	require.IsError(t, err, context.DeadlineExceeded)
	require.EqualError(t, err, "timeout waiting for input")
	require.IsError(t, p.Feed("1\n"), streamparse.ErrTimeout)
}

func TestPipelineOptions(t *testing.T) {
	_, err := streamparse.NewPipeline[*jsonl.Line](context.Background(), jsonl.New(), streamparse.TokenQueueCapacity(0))
	require.EqualError(t, err, "TokenQueueCapacity must be positive but is 0")
	_, err = streamparse.NewPipeline[*jsonl.Line](context.Background(), jsonl.New(), streamparse.WithTimeout(-time.Second))
	require.Error(t, err)
	_, err = streamparse.NewPipeline[*jsonl.Line](context.Background(), jsonl.New(), streamparse.Logger(nil))
	require.Error(t, err)
}
