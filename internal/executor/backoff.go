package executor

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy computes the delay before retrying a failed job, given its
// 1-indexed attempt number (spec.md §4.5 "Backoff"). The policy is chosen
// by the handler; the executor only ever calls it.
type BackoffPolicy func(attempt int) time.Duration

// ConstantBackoff retries every d regardless of attempt, the executor's
// default (spec.md §4.5: "Defaults: constant 3 s").
func ConstantBackoff(d time.Duration) BackoffPolicy {
	return func(attempt int) time.Duration { return d }
}

// ExponentialBackoff retries after base^attempt seconds, capped at ceiling,
// optionally with up to 50% jitter to avoid synchronized retry storms
// across many jobs that failed at the same moment.
func ExponentialBackoff(base float64, ceiling time.Duration, jitter bool) BackoffPolicy {
	return func(attempt int) time.Duration {
		seconds := math.Pow(base, float64(attempt))
		d := time.Duration(seconds * float64(time.Second))
		if d > ceiling {
			d = ceiling
		}
		if jitter {
			d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
		}
		return d
	}
}

const defaultBackoffSeconds = 3 * time.Second

var DefaultBackoff BackoffPolicy = ConstantBackoff(defaultBackoffSeconds)
