package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ghactivity_quota_remaining",
		Help: "Calls remaining in the current rate limit window by pool",
	}, []string{"pool"})

	quotaDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_quota_denied_total",
		Help: "Total reservations denied because a pool was exhausted",
	}, []string{"pool"})

	quotaUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_quota_updates_total",
		Help: "Total authoritative quota updates applied from response headers",
	}, []string{"pool"})
)

// Tracker monitors remaining quota per pool and grants reservations.
// One Tracker is constructed per collection run and passed to the
// dispatcher; it is safe for concurrent use and never blocks.
type Tracker struct {
	mu     sync.Mutex
	pools  map[Pool]*State
	logger zerolog.Logger
}

// NewTracker creates a tracker with GitHub's documented default limits.
// Authenticated runs get the 5000/hour feed window, anonymous 60/hour.
func NewTracker(authenticated bool, logger zerolog.Logger) *Tracker {
	now := time.Now()

	feedLimit := FeedLimitAnonymous
	if authenticated {
		feedLimit = FeedLimitAuthenticated
	}

	return &Tracker{
		pools: map[Pool]*State{
			PoolFeed: {
				Pool:      PoolFeed,
				Remaining: feedLimit,
				Limit:     feedLimit,
				ResetAt:   now.Add(time.Hour),
				window:    time.Hour,
			},
			PoolSearch: {
				Pool:      PoolSearch,
				Remaining: SearchLimit,
				Limit:     SearchLimit,
				ResetAt:   now.Add(time.Minute),
				window:    time.Minute,
			},
			PoolGraph: {
				Pool:      PoolGraph,
				Remaining: GraphLimit,
				Limit:     GraphLimit,
				ResetAt:   now.Add(time.Hour),
				window:    time.Hour,
			},
		},
		logger: logger,
	}
}

// Reserve grants one call against the pool if quota remains.
// When denied, waitUntil is the pool's reset time; the caller decides
// whether to wait or abandon. Reserve itself never sleeps.
func (t *Tracker) Reserve(pool Pool) (granted bool, waitUntil time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(pool)
	s.rollIfLapsed(time.Now())

	if s.Exhausted() {
		quotaDeniedTotal.WithLabelValues(string(pool)).Inc()
		t.logger.Warn().
			Str("pool", string(pool)).
			Time("reset_at", s.ResetAt).
			Msg("Pool exhausted, reservation denied")
		return false, s.ResetAt
	}

	s.Remaining--
	quotaRemaining.WithLabelValues(string(pool)).Set(float64(s.Remaining))
	return true, time.Time{}
}

// Release returns an unused reservation, e.g. when the request never
// reached the server. The pool limit caps the result.
func (t *Tracker) Release(pool Pool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(pool)
	if s.Remaining < s.Limit {
		s.Remaining++
		quotaRemaining.WithLabelValues(string(pool)).Set(float64(s.Remaining))
	}
}

// Update applies authoritative values parsed from a response.
// Remaining and limit are replaced wholesale; resetAt only moves the
// window forward, a stale header never rewinds it.
func (t *Tracker) Update(pool Pool, remaining, limit int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(pool)
	if remaining >= 0 {
		s.Remaining = remaining
	}
	if limit > 0 {
		s.Limit = limit
	}
	if resetAt.After(s.ResetAt) {
		s.ResetAt = resetAt
	}

	quotaRemaining.WithLabelValues(string(pool)).Set(float64(s.Remaining))
	quotaUpdatesTotal.WithLabelValues(string(pool)).Inc()

	t.logger.Debug().
		Str("pool", string(pool)).
		Int("remaining", s.Remaining).
		Int("limit", s.Limit).
		Time("reset_at", s.ResetAt).
		Msg("Quota state updated")
}

// Snapshot returns a copy of the pool's current state.
func (t *Tracker) Snapshot(pool Pool) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.state(pool)
}

// Status returns a copy of all pool states, keyed by pool.
func (t *Tracker) Status() map[Pool]State {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Pool]State, len(t.pools))
	for p, s := range t.pools {
		out[p] = *s
	}
	return out
}

func (t *Tracker) state(pool Pool) *State {
	s, ok := t.pools[pool]
	if !ok {
		panic("ratelimit: unknown pool " + string(pool))
	}
	return s
}
