package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrSkip marks a message that can never be handled, such as one that
// fails to decode. It is committed and dropped.
var ErrSkip = errors.New("skip message")

// Handler processes one message. Returning an error wrapping ErrSkip commits
// the message; any other error retries the same message.
type Handler func(ctx context.Context, msg kafka.Message) error

// MessageSource is the part of Consumer the runner needs.
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Runner consumes messages one at a time and commits after each success.
// Group commits are per-partition watermarks, so the runner never moves past
// a failing message: it retries it with exponential backoff until it
// succeeds or the runner stops. An uncommitted message is read again by the
// next consumer of the partition.
type Runner struct {
	source     MessageSource
	handler    Handler
	logger     *zap.Logger
	backoff    time.Duration
	maxBackoff time.Duration
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewRunner creates a runner. Retry delays start at backoff and double up
// to maxBackoff.
func NewRunner(source MessageSource, handler Handler, backoff, maxBackoff time.Duration, logger *zap.Logger) *Runner {
	if maxBackoff < backoff {
		maxBackoff = backoff
	}
	return &Runner{
		source:     source,
		handler:    handler,
		logger:     logger,
		backoff:    backoff,
		maxBackoff: maxBackoff,
	}
}

// Start begins consuming in the background
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop stops consuming and waits for the in-flight message
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		msg, err := r.source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("consumer error", zap.Error(err))
			if !r.sleep(ctx, r.backoff) {
				return
			}
			continue
		}

		r.logger.Debug("consumed message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		r.process(ctx, msg)
	}
}

func (r *Runner) process(ctx context.Context, msg kafka.Message) {
	delay := r.backoff
	for attempt := 1; ; attempt++ {
		err := r.handler(ctx, msg)
		if err == nil || errors.Is(err, ErrSkip) {
			if err != nil {
				r.logger.Warn("dropping message", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
			if cerr := r.source.Commit(ctx, msg); cerr != nil {
				r.logger.Error("failed to commit offset", zap.Error(cerr))
			}
			return
		}

		r.logger.Warn("failed to process message, retrying",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		if !r.sleep(ctx, delay) {
			return
		}
		if delay *= 2; delay > r.maxBackoff {
			delay = r.maxBackoff
		}
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
