// Package scheduler runs the background loops of the settlement service
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// CompletionRetrier re-sends property completions whose first attempt failed
type CompletionRetrier interface {
	RetryPendingCompletions(ctx context.Context) (int, error)
}

// CompletionRelay periodically drains the pending property completion queue
type CompletionRelay struct {
	retrier  CompletionRetrier
	interval time.Duration
	timeout  time.Duration
	logger   logrus.FieldLogger
}

// NewCompletionRelay creates a relay ticking every interval
func NewCompletionRelay(retrier CompletionRetrier, interval time.Duration, logger logrus.FieldLogger) *CompletionRelay {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CompletionRelay{
		retrier:  retrier,
		interval: interval,
		timeout:  interval,
		logger:   logger.WithField("component", "completion_relay"),
	}
}

// Start launches the relay loop in a background goroutine and returns a stop function
func (r *CompletionRelay) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (r *CompletionRelay) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.retrier.RetryPendingCompletions(runCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.WithError(err).Error("Pending completion relay failed")
		return
	}
	if n > 0 {
		r.logger.WithField("attempted", n).Info("Pending completions relayed")
	}
}
