package collect

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/codetrail/ghactivity/pkg/backoff"
	"github.com/codetrail/ghactivity/pkg/ghapi"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

// dispatcher gates every outbound call through the quota tracker and
// the retry policy. Adapters never talk to the API client directly:
// the tracker stays non-blocking, so all waiting (denied reservations
// and backoff delays) happens here, context-aware.
type dispatcher struct {
	client  *ghapi.Client
	tracker *ratelimit.Tracker
	policy  backoff.Policy
	logger  zerolog.Logger
}

// get issues one gated GET. endpoint may be a path or an absolute
// continuation URL from a Link header.
func (d *dispatcher) get(ctx context.Context, pool ratelimit.Pool, endpoint string) (*ghapi.Response, error) {
	return d.call(ctx, pool, func(ctx context.Context) (*ghapi.Response, error) {
		return d.client.Get(ctx, pool, endpoint)
	})
}

// graphql issues one gated GraphQL query on the graph pool.
func (d *dispatcher) graphql(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	var data json.RawMessage
	_, err := d.call(ctx, ratelimit.PoolGraph, func(ctx context.Context) (*ghapi.Response, error) {
		var resp *ghapi.Response
		var err error
		data, resp, err = d.client.GraphQL(ctx, query, variables)
		return resp, err
	})
	return data, err
}

// call runs one request through the full loop: reserve quota, wait out
// a denial, issue the call, feed response headers back into the
// tracker, classify the outcome and retry per policy.
func (d *dispatcher) call(ctx context.Context, pool ratelimit.Pool, fn func(context.Context) (*ghapi.Response, error)) (*ghapi.Response, error) {
	for attempt := 1; ; attempt++ {
		if err := d.reserve(ctx, pool); err != nil {
			return nil, err
		}

		resp, err := fn(ctx)

		if resp == nil && err != nil {
			// The request never reached the server; hand back the
			// reservation it would have spent.
			d.tracker.Release(pool)
		}

		if resp != nil {
			if resp.FromCache {
				// 304 revalidations are free on the server side; hand
				// the speculative reservation back before the header
				// update overwrites the count.
				d.tracker.Release(pool)
			}
			if resp.Quota != nil {
				d.tracker.Update(pool, resp.Quota.Remaining, resp.Quota.Limit, resp.Quota.ResetAt)
			}
		}

		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return resp, err
		}

		outcome, resetAt := outcomeOf(err)
		if outcome == backoff.OutcomeThrottled && resetAt.IsZero() {
			resetAt = d.tracker.Snapshot(pool).ResetAt
		}

		delay, retry := d.policy.Next(attempt, outcome, resetAt)
		if !retry {
			return resp, err
		}

		d.logger.Warn().
			Str("pool", string(pool)).
			Str("outcome", string(outcome)).
			Int("attempt", attempt).
			Dur("wait", delay).
			Err(err).
			Msg("call failed, retrying")

		if err := sleep(ctx, delay); err != nil {
			return resp, err
		}
	}
}

// reserve obtains one unit of pool quota, sleeping through denials
// until the window resets or the context ends.
func (d *dispatcher) reserve(ctx context.Context, pool ratelimit.Pool) error {
	for {
		granted, waitUntil := d.tracker.Reserve(pool)
		if granted {
			return nil
		}

		wait := time.Until(waitUntil)
		d.logger.Info().
			Str("pool", string(pool)).
			Dur("wait", wait).
			Msg("quota exhausted, waiting for reset")

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func outcomeOf(err error) (backoff.Outcome, time.Time) {
	var apiErr *ghapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Outcome(), apiErr.ResetAt
	}
	// Raw network failures carry no classification; treat as transient.
	return backoff.OutcomeTransient, time.Time{}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
