// Package ratelimit provides the politeness delays the crawler owes the
// target site.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Delayer interface {
	Wait(ctx context.Context) error
}

// JitterDelay sleeps a uniformly jittered duration in [min, max] on every
// call. Used for the inter-batch pause and post-navigation settling, where
// a fixed interval would itself be a fingerprint.
type JitterDelay struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
}

func NewJitterDelay(minDelay, maxDelay time.Duration) *JitterDelay {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitterDelay{minDelay: minDelay, maxDelay: maxDelay}
}

func (j *JitterDelay) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(j.duration()):
		return nil
	}
}

func (j *JitterDelay) SetDelay(minDelay, maxDelay time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.minDelay = minDelay
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	j.maxDelay = maxDelay
}

func (j *JitterDelay) duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxDelay == j.minDelay {
		return j.minDelay
	}
	delta := j.maxDelay - j.minDelay
	return j.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// PacedLimiter enforces a minimum jittered spacing between consecutive
// actions, counting time already spent working against the delay.
type PacedLimiter struct {
	jitter     *JitterDelay
	lastAction time.Time
	mu         sync.Mutex
}

func NewPacedLimiter(minDelay, maxDelay time.Duration) *PacedLimiter {
	return &PacedLimiter{jitter: NewJitterDelay(minDelay, maxDelay)}
}

func (p *PacedLimiter) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.lastAction)
	delay := p.jitter.duration()

	if !p.lastAction.IsZero() && elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	p.lastAction = time.Now()
	return nil
}
