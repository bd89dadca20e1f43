// Package backoff computes retry delays for classified call outcomes.
// It decides delay-or-give-up only; sleeping and retrying are the
// dispatcher's responsibility.
package backoff

import (
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for backoff decisions.
var (
	backoffDelaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghactivity_backoff_delay_seconds",
		Help:    "Computed backoff delay by outcome",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"outcome"})

	backoffGiveUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_backoff_give_ups_total",
		Help: "Total give-up decisions by outcome",
	}, []string{"outcome"})
)

// Outcome classifies the result of one API call.
type Outcome string

const (
	// OutcomeSuccess means the call succeeded; no retry needed.
	OutcomeSuccess Outcome = "success"

	// OutcomeThrottled means the pool's quota was exhausted or the
	// server answered with a rate-limit response.
	OutcomeThrottled Outcome = "throttled"

	// OutcomeTransient means a server or network error worth retrying.
	OutcomeTransient Outcome = "transient"

	// OutcomeClientError means a non-retryable request error
	// (not found, invalid query, missing scope).
	OutcomeClientError Outcome = "client_error"
)

// Policy holds backoff configuration.
type Policy struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential delay.
	MaxDelay time.Duration

	// MaxAttempts is how many failed attempts may be retried.
	MaxAttempts int
}

// DefaultPolicy returns the standard policy: 1s base, 30s cap,
// 3 attempts.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 3,
	}
}

// Next computes the delay before retrying after the given failed
// attempt (1-based). It returns retry=false when the caller should
// give up: non-retryable outcomes immediately, retryable ones once
// MaxAttempts is exceeded.
//
// For throttled outcomes with a known pool reset time the delay is
// the time until reset rather than a blind exponential value.
func (p Policy) Next(attempt int, outcome Outcome, resetAt time.Time) (time.Duration, bool) {
	switch outcome {
	case OutcomeSuccess:
		return 0, false
	case OutcomeClientError:
		backoffGiveUpsTotal.WithLabelValues(string(outcome)).Inc()
		return 0, false
	}

	if attempt > p.MaxAttempts {
		backoffGiveUpsTotal.WithLabelValues(string(outcome)).Inc()
		return 0, false
	}

	if outcome == OutcomeThrottled && !resetAt.IsZero() {
		if wait := time.Until(resetAt); wait > 0 {
			backoffDelaySeconds.WithLabelValues(string(outcome)).Observe(wait.Seconds())
			return wait, true
		}
	}

	delay := p.exponential(attempt)
	backoffDelaySeconds.WithLabelValues(string(outcome)).Observe(delay.Seconds())
	return delay, true
}

// exponential returns base * 2^(attempt-1) with ±20% jitter, capped.
// The jitter band is narrower than the factor of two between attempts,
// so successive delays are strictly increasing.
func (p Policy) exponential(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	jittered := time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
	if jittered > p.MaxDelay {
		jittered = p.MaxDelay
	}
	return jittered
}
