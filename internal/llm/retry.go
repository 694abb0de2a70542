package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 2 * time.Second
	backoffGrowthFactor   = 2
)

// Backoff configures retries of rate-limited requests.
type Backoff struct {
	MaxRetries int
	Initial    time.Duration
}

// DefaultBackoff waits 2s, 4s and 8s before the three retries.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries: defaultMaxRetries,
		Initial:    defaultInitialBackoff,
	}
}

// Retrying retries rate-limited requests of the wrapped extractor with
// exponential backoff. Every other error is returned on the first attempt.
// All terminal errors wrap ErrExtractionFailed.
type Retrying struct {
	next    Extractor
	backoff Backoff
	sleep   func(ctx context.Context, d time.Duration) error
	log     *slog.Logger
}

// NewRetrying wraps next with the backoff policy.
func NewRetrying(next Extractor, backoff Backoff, log *slog.Logger) *Retrying {
	return &Retrying{
		next:    next,
		backoff: backoff,
		sleep:   sleepContext,
		log:     log,
	}
}

func (r *Retrying) Extract(ctx context.Context, contract Contract) (string, error) {
	delay := r.backoff.Initial

	for attempt := 0; ; attempt++ {
		out, err := r.next.Extract(ctx, contract)
		if err == nil {
			return out, nil
		}

		if !errors.Is(err, ErrRateLimited) || attempt >= r.backoff.MaxRetries {
			return "", fmt.Errorf("%w (attempts = %d): %w", ErrExtractionFailed, attempt+1, err)
		}

		r.log.WarnContext(ctx, "Model endpoint is rate limiting, retrying",
			"error", err,
			"attempt", attempt+1,
			"maxRetries", r.backoff.MaxRetries,
			"delay", delay)

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return "", fmt.Errorf("%w: wait for retry: %w", ErrExtractionFailed, sleepErr)
		}

		delay *= backoffGrowthFactor
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
