package provider

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/martinemde/tmcore/failure"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries          int           // retry attempts after the initial one
	BaseDelay           time.Duration // delay before the first retry
	MaxDelay            time.Duration // cap on a single delay; zero means uncapped
	BackoffMultiplier   float64       // exponential backoff factor
	RetryOnNetworkError bool
	RetryOnRateLimit    bool
	OnRetry             func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the default retry policy: three retries starting
// at one second and doubling each time, with no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          3,
		BaseDelay:           time.Second,
		BackoffMultiplier:   2.0,
		RetryOnNetworkError: true,
		RetryOnRateLimit:    true,
	}
}

// Delay calculates the delay before retry n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.BackoffMultiplier
	if mult == 0 {
		mult = 2.0
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	// Durations past MaxInt64 would wrap negative and skip the sleep.
	if delay >= math.MaxInt64 || math.IsNaN(delay) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Class groups failures by how the retry loop treats them.
type Class string

const (
	ClassNone      Class = "none"
	ClassNetwork   Class = "network"
	ClassRateLimit Class = "rate_limit"
	ClassServer    Class = "server"
	ClassClient    Class = "client"
	ClassInvalid   Class = "invalid"
)

// Classify sorts err into a Class. API failures are classified by status;
// a status-less API failure or an error outside the taxonomy is a network
// failure; every other taxonomy member is invalid input.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	var apiErr *failure.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsNetworkError():
			return ClassNetwork
		case apiErr.IsRateLimitError():
			return ClassRateLimit
		case apiErr.IsServerError():
			return ClassServer
		default:
			return ClassClient
		}
	}
	if _, ok := failure.As(err); ok {
		return ClassInvalid
	}
	return ClassNetwork
}

// Verdict is the outcome of a single attempt.
type Verdict int

const (
	Succeed Verdict = iota
	Retry
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Succeed:
		return "succeed"
	case Retry:
		return "retry"
	default:
		return "fail"
	}
}

// Decision is what the retry loop does after an attempt.
type Decision struct {
	Verdict Verdict
	Class   Class
	Delay   time.Duration
}

// Decide maps the result of attempt (0-indexed) to the next step. It has no
// side effects.
func Decide(err error, attempt, maxRetries int, policy RetryPolicy) Decision {
	class := Classify(err)
	d := Decision{Verdict: Fail, Class: class}
	switch class {
	case ClassNone:
		d.Verdict = Succeed
		return d
	case ClassNetwork:
		if !policy.RetryOnNetworkError {
			return d
		}
	case ClassRateLimit:
		if !policy.RetryOnRateLimit {
			return d
		}
	case ClassServer:
	default:
		return d
	}
	if attempt >= maxRetries {
		return d
	}
	d.Verdict = Retry
	d.Delay = policy.Delay(attempt)
	return d
}

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryWithBackoff calls fn until it succeeds or Decide says to stop. The
// last failure is returned unchanged. If ctx ends during a backoff the
// result joins ctx.Err() with the last failure.
func RetryWithBackoff[T any](ctx context.Context, policy RetryPolicy, sleep SleepFunc, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if sleep == nil {
		sleep = sleepContext
	}
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx, attempt)
		d := Decide(err, attempt, policy.MaxRetries, policy)
		switch d.Verdict {
		case Succeed:
			return result, nil
		case Fail:
			return zero, err
		}

		if cerr := ctx.Err(); cerr != nil {
			return zero, errors.Join(cerr, err)
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, d.Delay)
		}
		if serr := sleep(ctx, d.Delay); serr != nil {
			return zero, errors.Join(serr, err)
		}
	}
}
