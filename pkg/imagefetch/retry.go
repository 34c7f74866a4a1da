package imagefetch

import (
	"math"
	"time"

	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
)

// Retryer decides how long to wait before the next attempt.
type Retryer interface {
	// NextDelay returns the delay before retry number attempt (0 for the
	// first retry) and whether to retry at all.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset is called after a successful fetch.
	Reset()
}

// ExponentialBackoff multiplies the delay after every failed attempt.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	// MaxDelay caps a single delay. Zero means no cap.
	MaxDelay   time.Duration
	Multiplier float64
	// MaxRetries is the number of retries after the first attempt. Zero
	// retries forever.
	MaxRetries int
	// JitterFactor spreads each delay by up to that fraction either way.
	JitterFactor float64
	Rand         rand.Source
}

// NewExponentialBackoff waits 1s, 2s and 4s and then gives up.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: constants.ImageRetryBase,
		Multiplier:   constants.ImageRetryFactor,
		MaxRetries:   constants.ImageRetries,
	}
}

func (r *ExponentialBackoff) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}

	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.JitterFactor > 0 {
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

func (r *ExponentialBackoff) Reset() {}

// FixedDelay waits the same time before every retry.
type FixedDelay struct {
	Delay time.Duration
	// MaxRetries is the number of retries after the first attempt. Zero
	// retries forever.
	MaxRetries int
}

func NewFixedDelay(delay time.Duration, maxRetries int) *FixedDelay {
	return &FixedDelay{Delay: delay, MaxRetries: maxRetries}
}

func (r *FixedDelay) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}
	return r.Delay, true
}

func (r *FixedDelay) Reset() {}
