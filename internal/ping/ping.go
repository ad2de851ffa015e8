// Package ping runs the "Enable ping." demo: a counter posted to a channel on
// a fixed interval for a bounded window.
package ping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/leveler/internal/metrics"
)

// Trigger is the exact message content that starts a runner.
const Trigger = "Enable ping."

const defaultPeriod = 60 * time.Second

// SayFunc posts text to a channel.
type SayFunc func(ctx context.Context, channelID, text string) error

// Runner starts ping sequences and tracks them until they finish.
type Runner struct {
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewRunner creates a Runner. Non-positive durations fall back to 60s.
func NewRunner(interval, window time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = defaultPeriod
	}
	if window <= 0 {
		window = defaultPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{interval: interval, window: window, logger: logger}
}

// Start posts "Pong! (1)" to channelID right away and "Pong! (n)" on every
// interval tick that falls within the window. It returns immediately.
// Cancelling ctx stops the sequence early.
func (r *Runner) Start(ctx context.Context, channelID string, say SayFunc) {
	ticks := int(r.window / r.interval)

	r.wg.Add(1)
	metrics.PingRunnersActive.Inc()
	go func() {
		defer r.wg.Done()
		defer metrics.PingRunnersActive.Dec()

		n := 1
		r.say(ctx, channelID, n, say)
		if ticks == 0 {
			return
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for n <= ticks {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n++
				r.say(ctx, channelID, n, say)
			}
		}
		r.logger.Debug("ping finished", slog.String("channel_id", channelID), slog.Int("count", n))
	}()
}

func (r *Runner) say(ctx context.Context, channelID string, n int, say SayFunc) {
	text := fmt.Sprintf("Pong! (%d)", n)
	if err := say(ctx, channelID, text); err != nil {
		r.logger.Warn("ping send failed",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()))
	}
}

// Wait blocks until every started sequence has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
