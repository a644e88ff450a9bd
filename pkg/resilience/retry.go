package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

// RetryConfig controls the backoff between attempts. Zero values take
// defaults.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable decides whether a failed attempt is worth repeating. The
	// default is Transient.
	Retryable func(error) bool
	// OnRetry runs before each backoff pause.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	if c.Retryable == nil {
		c.Retryable = Transient
	}
	return c
}

// Transient reports errors a later attempt may not hit: an unavailable
// store, a timeout, or an open circuit that closes again after its cooldown.
func Transient(err error) bool {
	return apperrors.Retryable(err) || errors.Is(err, ErrCircuitOpen)
}

// ExhaustedError is returned once every attempt failed with a retryable
// error. It unwraps to the last one.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Retry calls fn until it succeeds, fails with an error cfg.Retryable
// rejects, runs out of attempts or ctx ends. A rejected error is returned
// as is.
func Retry(ctx context.Context, op string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	log := slog.Default().With("component", "retry", "op", op)
	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempts", attempt)
			}
			return nil
		}
		if !cfg.Retryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			return &ExhaustedError{Op: op, Attempts: attempt, Err: err}
		}

		wait := jittered(delay, cfg.JitterFraction)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		log.Warn("attempt failed, backing off", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "delay", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry abandoned after %d attempts: %w (last error: %w)", op, attempt, ctx.Err(), err)
		}
		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
}

// jittered spreads d by up to ±fraction of itself.
func jittered(d time.Duration, fraction float64) time.Duration {
	spread := float64(d) * fraction * (2*rand.Float64() - 1)
	return d + time.Duration(spread)
}
