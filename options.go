package streamparse

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// An Option to modify the behaviour of a Pipeline.
type Option func(o *options) error

type options struct {
	budget      Budget
	timeout     time.Duration
	skipInvalid bool
	logger      *slog.Logger
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		budget: DefaultBudget(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range opts {
		if err := option(o); err != nil {
			return nil, err
		}
	}
	if err := o.budget.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// WithBudget replaces the whole budget. Options applied after it modify the replacement.
func WithBudget(budget Budget) Option {
	return func(o *options) error {
		o.budget = budget
		return nil
	}
}

// MaxChunkSize sets the maximum size in bytes of a single Feed.
func MaxChunkSize(n int) Option {
	return func(o *options) error {
		o.budget.MaxChunkSize = n
		return nil
	}
}

// MaxTokens sets the maximum number of tokens lexed over the whole stream.
func MaxTokens(n int) Option {
	return func(o *options) error {
		o.budget.MaxTokens = n
		return nil
	}
}

// MaxRecursionDepth sets the maximum grammar nesting depth.
func MaxRecursionDepth(n int) Option {
	return func(o *options) error {
		o.budget.MaxRecursionDepth = n
		return nil
	}
}

// TokenQueueCapacity sets the capacity of the queue between the lexing and parsing stages.
func TokenQueueCapacity(n int) Option {
	return func(o *options) error {
		o.budget.TokenQueueCapacity = n
		return nil
	}
}

// UnitQueueCapacity sets the capacity of the queue of completed units.
func UnitQueueCapacity(n int) Option {
	return func(o *options) error {
		o.budget.UnitQueueCapacity = n
		return nil
	}
}

// MaxBufferTokens sets the maximum number of unconsumed tokens buffered by the parsing stage.
func MaxBufferTokens(n int) Option {
	return func(o *options) error {
		o.budget.MaxBufferTokens = n
		return nil
	}
}

// CompactThreshold sets the number of consumed tokens that triggers buffer compaction.
//
// Higher values copy less often at the cost of a larger peak buffer.
func CompactThreshold(n int) Option {
	return func(o *options) error {
		o.budget.CompactThreshold = n
		return nil
	}
}

// CapacityHint pre-sizes the lexer buffers.
func CapacityHint(hint LexerCapacityHint) Option {
	return func(o *options) error {
		o.budget.LexerHint = hint
		return nil
	}
}

// WithTimeout cancels the pipeline once d has elapsed. Expiry is reported as a Timeout error.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative but is %s", d)
		}
		o.timeout = d
		return nil
	}
}

// SkipInvalid makes parse errors non-terminal.
//
// The error is still delivered to the consumer, after which the failing unit
// is skipped and the stream continues with the next one.
func SkipInvalid() Option {
	return func(o *options) error {
		o.skipInvalid = true
		return nil
	}
}

// Logger sets the logger used by the pipeline. Logging is disabled by default.
func Logger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}
