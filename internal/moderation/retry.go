package moderation

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy describes a bounded exponential backoff.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint64
	BaseDelay  time.Duration
	Multiplier float64
	// MaxDelay caps a single delay. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy retries three times, starting at 100ms and doubling.
var DefaultPolicy = Policy{
	MaxRetries: 3,
	BaseDelay:  100 * time.Millisecond,
	Multiplier: 2,
	MaxDelay:   2 * time.Second,
}

// Classifier reports whether a failure may succeed when tried again.
type Classifier func(err error) bool

// Attempt is one invocation of the decorated call. attempt starts at 1.
type Attempt func(ctx context.Context, attempt int) error

func (p Policy) backoff() retry.Backoff {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := p.BaseDelay

	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		next := delay
		delay = time.Duration(float64(delay) * multiplier)
		return next, false
	})
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Retry runs fn until it succeeds, fails with an error classify rejects, the
// policy is exhausted or ctx is done. The last error from fn is returned
// unwrapped; if ctx ends first, ctx.Err() is returned.
func Retry(ctx context.Context, policy Policy, classify Classifier, fn Attempt) error {
	attempt := 0
	return retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err != nil && classify(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
