package streamparse

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/alecthomas/streamparse/lexer"
)

// message is sent from the lexing stage to the parsing stage.
type message struct {
	token lexer.Token
	// eof marks the end of input, with err set if the lexer failed to finish.
	eof bool
	err error
}

// result is sent from the parsing stage to the consumer.
type result[T any] struct {
	unit T
	err  error
	// terminal errors end the stream.
	terminal bool
	eof      bool
}

// Stats reports the progress of a Pipeline.
type Stats struct {
	Bytes       int64
	Tokens      int64
	Units       int64
	Compactions int64
}

// Pipeline streams chunks of text through a grammar, producing parse units.
//
// The goroutine calling Feed and Finish is the lexing stage. Tokens are passed
// through a bounded queue to a parsing stage goroutine, which owns the token
// buffer and checkpoint, and completed units are passed through a second
// bounded queue to the goroutine calling Next. A full queue blocks the stage
// feeding it.
//
// Feed and Finish must be called from one goroutine, and Next from one
// goroutine, which may be a different one. Close must be called to release
// the pipeline's resources.
type Pipeline[T any] struct {
	grammar     Grammar[T]
	budget      Budget
	skipInvalid bool
	logger      *slog.Logger

	lexer    *Lexer
	finished bool

	tokens chan message
	units  chan result[T]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	// err is the parsing stage's terminal error, valid once done is closed.
	err error

	// sticky is the consumer's terminal error.
	sticky error

	bytes       atomic.Int64
	lexed       atomic.Int64
	emitted     atomic.Int64
	compactions atomic.Int64
}

// NewPipeline creates a Pipeline for grammar and starts its parsing stage.
//
// Cancelling ctx cancels the pipeline.
func NewPipeline[T any](ctx context.Context, grammar Grammar[T], opts ...Option) (*Pipeline[T], error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	p := &Pipeline[T]{
		grammar:     grammar,
		budget:      o.budget,
		skipInvalid: o.skipInvalid,
		logger:      o.logger,
		lexer:       NewLexer(grammar, grammar.Policy(), o.budget),
		tokens:      make(chan message, o.budget.TokenQueueCapacity),
		units:       make(chan result[T], o.budget.UnitQueueCapacity),
		done:        make(chan struct{}),
	}
	if o.timeout > 0 {
		p.ctx, p.cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		p.ctx, p.cancel = context.WithCancel(ctx)
	}
	go p.run()
	return p, nil
}

// Feed a chunk of input to the pipeline.
//
// Feed blocks while the token queue is full. Size and token limit errors leave
// the pipeline unchanged, so the caller may retry with a smaller chunk or give
// up. A LexError ends the input: it is delivered to the consumer after the
// units preceding it, as if Finish had been called. If the parsing stage has
// stopped, its error is returned.
func (p *Pipeline[T]) Feed(chunk string) error {
	if err := p.ctx.Err(); err != nil {
		return contextError(err)
	}
	if p.finished {
		return ErrFinished
	}
	tokens, err := p.lexer.Feed(chunk)
	if KindOf(err) == LexError {
		return p.end(tokens, err)
	} else if err != nil {
		return err
	}
	p.bytes.Add(int64(len(chunk)))
	for _, token := range tokens {
		if err := p.send(message{token: token}); err != nil {
			return err
		}
	}
	return nil
}

// Finish signals the end of input.
//
// Any error finishing the lexer is returned and also delivered to the consumer
// after the units preceding it. Calling Finish again does nothing.
func (p *Pipeline[T]) Finish() error {
	if p.finished {
		return nil
	}
	tokens, err := p.lexer.Finish()
	return p.end(tokens, err)
}

// end sends the last tokens of the input followed by the end of input marker
// carrying lexErr.
func (p *Pipeline[T]) end(tokens []lexer.Token, lexErr error) error {
	p.finished = true
	for _, token := range tokens {
		if err := p.send(message{token: token}); err != nil {
			return err
		}
	}
	if err := p.send(message{eof: true, err: lexErr}); err != nil {
		return err
	}
	return lexErr
}

func (p *Pipeline[T]) send(msg message) error {
	if err := p.ctx.Err(); err != nil {
		return contextError(err)
	}
	select {
	case p.tokens <- msg:
		if !msg.eof {
			p.lexed.Add(1)
		}
		return nil
	case <-p.done:
		if p.err != nil {
			return p.err
		}
		return channelClosed("parsing stage stopped")
	case <-p.ctx.Done():
		return contextError(p.ctx.Err())
	}
}

// Next returns the next parse unit, blocking until one is available.
//
// io.EOF is returned once every unit has been delivered. An error that ends the
// stream is returned by every subsequent call. With SkipInvalid a ParseError
// is returned once and the following call continues with the next unit.
func (p *Pipeline[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if p.sticky != nil {
		return zero, p.sticky
	}
	if err := p.ctx.Err(); err != nil {
		p.sticky = contextError(err)
		return zero, p.sticky
	}
	select {
	case r, ok := <-p.units:
		switch {
		case !ok:
			p.sticky = p.closedError()
			return zero, p.sticky
		case r.eof:
			p.sticky = io.EOF
			return zero, io.EOF
		case r.err != nil:
			if r.terminal {
				p.sticky = r.err
			}
			return zero, r.err
		}
		return r.unit, nil
	case <-p.ctx.Done():
		p.sticky = contextError(p.ctx.Err())
		return zero, p.sticky
	case <-ctx.Done():
		return zero, contextError(ctx.Err())
	}
}

func (p *Pipeline[T]) closedError() error {
	if err := p.ctx.Err(); err != nil {
		return contextError(err)
	}
	return channelClosed("unit queue closed before end of stream")
}

// Wait for the parsing stage to stop, returning the error that stopped it.
//
// Wait returns nil once the whole stream has been parsed, though the consumer
// may not yet have read every unit.
func (p *Pipeline[T]) Wait() error {
	<-p.done
	return p.err
}

// Cancel the pipeline. Blocked calls to Feed, Finish and Next return.
func (p *Pipeline[T]) Cancel() { p.cancel() }

// Close cancels the pipeline and waits for the parsing stage to stop.
func (p *Pipeline[T]) Close() error {
	p.cancel()
	<-p.done
	return nil
}

// Stats returns a snapshot of the pipeline's counters. It is safe to call
// from any goroutine.
func (p *Pipeline[T]) Stats() Stats {
	return Stats{
		Bytes:       p.bytes.Load(),
		Tokens:      p.lexed.Load(),
		Units:       p.emitted.Load(),
		Compactions: p.compactions.Load(),
	}
}

// parseStage is the state owned by the parsing stage goroutine.
type parseStage[T any] struct {
	p      *Pipeline[T]
	policy BoundaryPolicy
	buf    *Buffer
	parser *Parser[T]
	cp     Checkpoint
}

func (p *Pipeline[T]) run() {
	s := &parseStage[T]{
		p:      p,
		policy: p.grammar.Policy(),
		buf:    NewBuffer(p.budget.bufferCapacity(), p.budget.bufferLimit()),
		parser: NewParser(p.grammar, p.budget),
	}
	s.cp = s.buf.Checkpoint(0)
	defer close(p.done)
	defer close(p.units)
	defer func() {
		s.parser.Guard().Reset()
		s.buf.Reset()
	}()
	p.logger.Debug("parsing stage started")
	for {
		var msg message
		select {
		case msg = <-p.tokens:
		case <-p.ctx.Done():
			s.cancelled()
			return
		}
		if msg.eof {
			s.finish(msg.err)
			return
		}
		if s.buf.Pending() > 0 && len(s.buf.Tokens()) >= s.buf.Max() {
			s.compact()
		}
		if err := s.buf.Append(msg.token); err != nil {
			s.fail(err)
			return
		}
		if !s.policy.IsBoundary(msg.token) {
			continue
		}
		if err := s.drain(); err != nil {
			s.fail(err)
			return
		}
	}
}

// drain emits every complete unit in the buffer then compacts it by policy.
func (s *parseStage[T]) drain() error {
	for {
		unit, ok, next, err := s.parser.Parse(s.buf.Tokens(), s.cp)
		s.cp = next
		if err != nil {
			if !s.recoverable(err) {
				return err
			}
			if !s.emit(result[T]{err: err}) {
				return contextError(s.p.ctx.Err())
			}
			next, ok := s.parser.Skip(s.buf.Tokens(), s.cp)
			if !ok {
				return err
			}
			s.cp = next
			continue
		}
		if !ok {
			break
		}
		if !s.emit(result[T]{unit: unit}) {
			return contextError(s.p.ctx.Err())
		}
		s.p.emitted.Add(1)
	}
	s.buf.Consume(s.cp.Cursor - s.buf.Cursor())
	if s.buf.Pending() > s.p.budget.compactThreshold() {
		s.compact()
	}
	return nil
}

// compact the buffer and rebase the checkpoint onto it. The checkpoint must be
// at the buffer's cursor.
func (s *parseStage[T]) compact() {
	n := s.buf.Compact()
	s.cp = s.buf.Checkpoint(s.cp.State)
	s.p.compactions.Add(1)
	s.p.logger.Debug("compacted token buffer", "dropped", n, "retained", s.buf.Len(), "consumed", s.cp.Consumed)
}

func (s *parseStage[T]) recoverable(err error) bool {
	if !s.p.skipInvalid || KindOf(err) != ParseError {
		return false
	}
	s.p.logger.Warn("skipping invalid unit", "error", err)
	return true
}

func (s *parseStage[T]) finish(lexErr error) {
	if err := s.drain(); err != nil {
		s.fail(err)
		return
	}
	if lexErr != nil {
		s.fail(lexErr)
		return
	}
	unit, ok, next, err := s.parser.ParseFinal(s.buf.Tokens(), s.cp)
	s.cp = next
	switch {
	case err != nil && !s.recoverable(err):
		s.fail(err)
		return
	case err != nil:
		if !s.emit(result[T]{err: err}) {
			s.cancelled()
			return
		}
	case ok:
		if !s.emit(result[T]{unit: unit}) {
			s.cancelled()
			return
		}
		s.p.emitted.Add(1)
	}
	if !s.emit(result[T]{eof: true}) {
		s.cancelled()
		return
	}
	s.p.logger.Debug("parsing stage finished", "units", s.p.emitted.Load(), "tokens", s.cp.Consumed)
}

// fail records err as terminal and delivers it to the consumer.
func (s *parseStage[T]) fail(err error) {
	s.p.err = err
	s.p.logger.Debug("parsing stage failed", "error", err)
	s.emit(result[T]{err: err, terminal: true})
}

func (s *parseStage[T]) cancelled() {
	s.p.err = contextError(s.p.ctx.Err())
	s.p.logger.Debug("parsing stage cancelled", "error", s.p.err)
}

func (s *parseStage[T]) emit(r result[T]) bool {
	select {
	case s.p.units <- r:
		return true
	case <-s.p.ctx.Done():
		return false
	}
}
