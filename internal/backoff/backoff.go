// Package backoff implements capped exponential retry for outbound
// provider calls.
package backoff

import (
	"context"
	"time"
)

type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		Initial:     250 * time.Millisecond,
		Max:         2 * time.Second,
		Multiplier:  2,
	}
}

// Execute runs op, retrying while retryable reports the error as
// transient, sleeping between attempts. The last error is returned when
// attempts run out or the context ends first.
func (p Policy) Execute(ctx context.Context, retryable func(error) bool, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Initial
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil || !retryable(err) || attempt == attempts {
			return err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
	}
	return err
}
