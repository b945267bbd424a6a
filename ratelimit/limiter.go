// Package ratelimit provides per-source admission control for outbound fetches:
// a sliding hourly cap plus a randomized inter-request delay. Every fetch for a
// source goes through exactly one WaitForSlot call on that source's limiter.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Config is the per-source admission policy, normally loaded from the
// platform's YAML.
type Config struct {
	Capacity int           // max requests per window; <=0 disables the cap
	Window   time.Duration // sliding window, default 1h
	MinDelay time.Duration // randomized gap since previous request
	MaxDelay time.Duration
}

// Limiter serializes admission for one source. Waiters are released strictly
// in arrival order: the baton channel below has a single token and the runtime
// queues blocked receivers FIFO.
type Limiter struct {
	source string
	cfg    Config

	admit chan struct{}

	mu         sync.Mutex
	timestamps []time.Time
	last       time.Time

	// injectable for tests
	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
	randFn  func(min, max time.Duration) time.Duration
}

func NewLimiter(source string, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	l := &Limiter{
		source:  source,
		cfg:     cfg,
		admit:   make(chan struct{}, 1),
		nowFn:   time.Now,
		sleepFn: sleepCtx,
		randFn:  randBetween,
	}
	l.admit <- struct{}{}
	return l
}

func (l *Limiter) Source() string { return l.source }

// WaitForSlot blocks until the caller may issue one request: it prunes the
// window, sleeps out the hourly cap if saturated, otherwise enforces the
// randomized delay since the previous request, then records the slot.
// Cancellable at every sleep; a cancelled wait does not consume a slot.
func (l *Limiter) WaitForSlot(ctx context.Context) error {
	select {
	case <-l.admit:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { l.admit <- struct{}{} }()

	for {
		now := l.nowFn()
		l.prune(now)
		if l.cfg.Capacity <= 0 || l.windowLen() < l.cfg.Capacity {
			break
		}
		wait := l.oldest().Add(l.cfg.Window).Sub(now)
		if err := l.sleepFn(ctx, wait); err != nil {
			return err
		}
	}

	if !l.last.IsZero() && l.cfg.MaxDelay > 0 {
		gap := l.randFn(l.cfg.MinDelay, l.cfg.MaxDelay)
		elapsed := l.nowFn().Sub(l.last)
		if elapsed < gap {
			if err := l.sleepFn(ctx, gap-elapsed); err != nil {
				return err
			}
		}
	}

	now := l.nowFn()
	l.mu.Lock()
	l.timestamps = append(l.timestamps, now)
	l.last = now
	l.mu.Unlock()
	return nil
}

func (l *Limiter) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	l.timestamps = l.timestamps[i:]
}

func (l *Limiter) windowLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timestamps)
}

func (l *Limiter) oldest() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timestamps[0]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
