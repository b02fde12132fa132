package reconciler

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxSteps bounds the walk to the cap; with a multiplier of 2 any sane Base
// reaches Max long before this.
const maxSteps = 64

// Backoff computes retry delays: exponential growth from Base, capped at
// Max, randomized by ±RandomizationFactor.
type Backoff struct {
	Base                time.Duration
	Max                 time.Duration
	RandomizationFactor float64
}

// NewBackoff uses the library's default randomization factor.
func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, RandomizationFactor: backoff.DefaultRandomizationFactor}
}

// Delay returns the wait before retry number attempt, counted from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	maxInterval := b.Max
	if maxInterval <= 0 {
		maxInterval = b.Base
	}

	exp := &backoff.ExponentialBackOff{
		InitialInterval:     b.Base,
		RandomizationFactor: b.RandomizationFactor,
		Multiplier:          2,
		MaxInterval:         maxInterval,
	}
	exp.Reset()

	steps := min(max(attempt, 1), maxSteps)
	var delay time.Duration
	for range steps {
		delay = exp.NextBackOff()
	}
	return delay
}
