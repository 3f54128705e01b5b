package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"
	"golang.org/x/sync/errgroup"

	"github.com/alecthomas/streamparse"
	"github.com/alecthomas/streamparse/grammars/jsonl"
	"github.com/alecthomas/streamparse/grammars/toml"
)

type streamCmd struct {
	Version kong.VersionFlag `help:"Show version."`
	Config  kong.ConfigFlag  `help:"Load flags from a JSON file."`

	Grammar      string        `short:"g" enum:"jsonl,toml" default:"jsonl" help:"Grammar of the input (${enum})."`
	ChunkSize    int           `default:"4096" help:"Size of the chunks fed to the parser."`
	MaxChunkSize int           `help:"Maximum chunk size, defaults to the budget's."`
	MaxTokens    int           `help:"Maximum number of tokens in the stream."`
	MaxDepth     int           `help:"Maximum nesting depth of a unit."`
	TokenQueue   int           `help:"Capacity of the token queue."`
	UnitQueue    int           `help:"Capacity of the unit queue."`
	Timeout      time.Duration `help:"Abort if the stream takes longer than this."`
	SkipInvalid  bool          `help:"Report invalid units and continue."`
	Format       string        `short:"f" enum:"repr,json" default:"repr" help:"Output format (${enum})."`
	LogLevel     string        `default:"warn" enum:"debug,info,warn,error" help:"Log level (${enum})."`
	LogFile      string        `type:"path" help:"Also log as JSON to this file."`

	Input string `arg:"" default:"-" help:"File to parse (read from stdin if omitted)."`
}

func (c *streamCmd) Run() error {
	logger, closer, err := newLogger(os.Stderr, c.LogLevel, c.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	r := os.Stdin
	if c.Input != "-" {
		r, err = os.Open(c.Input)
		if err != nil {
			return err
		}
		defer r.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	options := c.options(logger)
	switch c.Grammar {
	case "toml":
		return run[*toml.Item](ctx, c, r, os.Stdout, toml.New(), options, logger)
	default:
		return run[*jsonl.Line](ctx, c, r, os.Stdout, jsonl.New(), options, logger)
	}
}

func (c *streamCmd) options(logger *slog.Logger) []streamparse.Option {
	options := []streamparse.Option{
		streamparse.WithBudget(streamparse.BudgetFromChunkSize(c.ChunkSize)),
		streamparse.Logger(logger),
	}
	for _, opt := range []struct {
		value int
		apply func(int) streamparse.Option
	}{
		{c.MaxChunkSize, streamparse.MaxChunkSize},
		{c.MaxTokens, streamparse.MaxTokens},
		{c.MaxDepth, streamparse.MaxRecursionDepth},
		{c.TokenQueue, streamparse.TokenQueueCapacity},
		{c.UnitQueue, streamparse.UnitQueueCapacity},
	} {
		if opt.value > 0 {
			options = append(options, opt.apply(opt.value))
		}
	}
	if c.Timeout > 0 {
		options = append(options, streamparse.WithTimeout(c.Timeout))
	}
	if c.SkipInvalid {
		options = append(options, streamparse.SkipInvalid())
	}
	return options
}

func run[T any](ctx context.Context, c *streamCmd, r io.Reader, w io.Writer, grammar streamparse.Grammar[T], options []streamparse.Option, logger *slog.Logger) error {
	// The pipeline is cancelled by either side failing, so neither is left blocked.
	wg, ctx := errgroup.WithContext(ctx)
	p, err := streamparse.NewPipeline(ctx, grammar, options...)
	if err != nil {
		return err
	}
	defer p.Close()

	wg.Go(func() error {
		return feed(p, r, c.ChunkSize)
	})
	wg.Go(func() error {
		return consume(ctx, c, p, w)
	})
	err = wg.Wait()
	stats := p.Stats()
	logger.Info("stream complete", "bytes", stats.Bytes, "tokens", stats.Tokens, "units", stats.Units, "compactions", stats.Compactions)
	return err
}

func feed[T any](p *streamparse.Pipeline[T], r io.Reader, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := p.Feed(string(buf[:n])); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return p.Finish()
		} else if err != nil {
			return err
		}
	}
}

func consume[T any](ctx context.Context, c *streamCmd, p *streamparse.Pipeline[T], w io.Writer) error {
	enc := json.NewEncoder(w)
	printer := repr.New(w, repr.Indent("  "), repr.OmitEmpty(true))
	for {
		unit, err := p.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, streamparse.ErrParse) && c.SkipInvalid:
			fmt.Fprintln(os.Stderr, err)
			continue
		case err != nil:
			return err
		}
		if c.Format == "json" {
			if err := enc.Encode(unit); err != nil {
				return err
			}
			continue
		}
		printer.Println(unit)
	}
}
