package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const queueSize = 1000

type request struct {
	key     string
	granted chan error
}

// Limiter hands out permits so that two requests sharing a key are at least
// the key's interval apart. The caller performs the request itself after Wait
// returns, so slow requests do not hold up the queue.
type Limiter struct {
	queue     chan request
	intervals map[string]time.Duration
	fallback  time.Duration
	lastSent  map[string]time.Time
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	log       *slog.Logger
}

// New starts a limiter. fallback applies to keys without their own interval.
func New(fallback time.Duration, intervals map[string]time.Duration, log *slog.Logger) *Limiter {
	ctx, cancel := context.WithCancel(context.Background())

	if intervals == nil {
		intervals = make(map[string]time.Duration)
	}

	rl := &Limiter{
		queue:     make(chan request, queueSize),
		intervals: intervals,
		fallback:  fallback,
		lastSent:  make(map[string]time.Time),
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}

	go rl.processQueue()

	return rl
}

// Wait blocks until a permit for key is granted, ctx is done or the limiter
// is stopped.
func (rl *Limiter) Wait(ctx context.Context, key string) error {
	if rl == nil {
		return nil
	}

	req := request{
		key:     key,
		granted: make(chan error, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.ctx.Done():
		return rl.ctx.Err()
	}

	select {
	case err := <-req.granted:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *Limiter) Stop() {
	rl.cancel()
}

func (rl *Limiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.granted <- rl.ctx.Err()
				default:
					return
				}
			}
		}
	}
}

func (rl *Limiter) handleRequest(req request) {
	rl.mu.Lock()
	lastSent, exists := rl.lastSent[req.key]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(rl.interval(req.key), lastSent, time.Now())

		if delay > 0 {
			rl.log.DebugContext(rl.ctx, "Rate limiting request",
				"key", req.key,
				"delay", delay,
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-rl.ctx.Done():
				req.granted <- rl.ctx.Err()

				return
			}
		}
	}

	rl.mu.Lock()
	rl.lastSent[req.key] = time.Now()
	rl.mu.Unlock()

	req.granted <- nil
}

func (rl *Limiter) interval(key string) time.Duration {
	if d, ok := rl.intervals[key]; ok {
		return d
	}

	return rl.fallback
}

func getDelay(interval time.Duration, lastSent time.Time, now time.Time) time.Duration {
	elapsed := now.Sub(lastSent)

	return max(interval-elapsed, 0)
}
