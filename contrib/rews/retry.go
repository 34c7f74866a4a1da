package rews

import (
	"math"
	"time"

	"github.com/flatplan/flatplan.go/internal/rand"
)

// Retryer decides how long to wait before another connection attempt.
type Retryer interface {
	// NextDelay is the wait before retry number attempt, counted from 0, and
	// whether to retry at all.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)
	// Reset is called after a successful connection.
	Reset()
}

// ExponentialBackoffRetryer multiplies the delay after every attempt, up to
// MaxDelay, optionally spreading it by JitterFactor in both directions.
type ExponentialBackoffRetryer struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxRetries of 0 retries forever.
	MaxRetries   int
	Jitter       bool
	JitterFactor float64
	// Rand defaults to the process-wide source.
	Rand rand.Source
}

// NewExponentialBackoffRetryer starts at 1s, doubles up to 30s, retries
// forever and jitters by 30%.
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       true,
		JitterFactor: 0.3,
	}
}

func (r *ExponentialBackoffRetryer) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}

	delay := math.Min(float64(r.InitialDelay)*math.Pow(r.Multiplier, float64(attempt)), float64(r.MaxDelay))
	if r.Jitter && r.JitterFactor > 0 {
		rnd := r.Rand
		if rnd == nil {
			rnd = rand.Default()
		}
		delay += delay * r.JitterFactor * (2*rnd.Float64() - 1)
		if delay < 0 {
			delay = float64(r.InitialDelay)
		}
	}
	return time.Duration(delay), true
}

func (r *ExponentialBackoffRetryer) Reset() {}

// FixedDelayRetryer waits the same Delay before every attempt.
type FixedDelayRetryer struct {
	Delay time.Duration
	// MaxRetries of 0 retries forever.
	MaxRetries int
}

func NewFixedDelayRetryer(delay time.Duration, maxRetries int) *FixedDelayRetryer {
	return &FixedDelayRetryer{Delay: delay, MaxRetries: maxRetries}
}

func (r *FixedDelayRetryer) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}
	return r.Delay, true
}

func (r *FixedDelayRetryer) Reset() {}
