// Package resilience provides a bounded polling primitive for values that
// another actor writes asynchronously.
package resilience

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// PollConfig controls a fixed-delay polling loop.
type PollConfig struct {
	// MaxAttempts is the total number of reads before giving up. Default: 10.
	MaxAttempts int

	// Delay is the fixed wait before each re-read. Default: 500ms.
	Delay time.Duration

	// Clock is the time source for the delay. Defaults to the real clock;
	// tests inject a fake so the loop runs without wall-clock sleeps.
	Clock clockwork.Clock

	// OnAttempt is called before each re-read with the 1-based attempt number.
	OnAttempt func(attempt int)
}

func (cfg PollConfig) withDefaults() PollConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return cfg
}

// Poll re-invokes read until it reports done, up to cfg.MaxAttempts reads
// with cfg.Delay before each one. It returns the last value read and whether
// the predicate was satisfied. A read error is logged and counts as a
// not-done attempt; exhaustion is not an error, the caller decides how to
// degrade. Context cancellation stops the loop immediately.
func Poll[T any](ctx context.Context, cfg PollConfig, read func(ctx context.Context) (T, bool, error)) (T, bool) {
	cfg = cfg.withDefaults()

	var last T
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return last, false
		case <-cfg.Clock.After(cfg.Delay):
		}

		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt)
		}

		val, done, err := read(ctx)
		if err != nil {
			zap.L().Warn("poll read failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		last = val
		if done {
			return last, true
		}
	}
	return last, false
}
