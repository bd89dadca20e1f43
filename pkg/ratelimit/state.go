// Package ratelimit tracks remaining call quota for the three
// independently limited GitHub API pools (feed, search, graph).
// The tracker is the single source of truth per pool within one
// collection run; it never blocks, the dispatcher owns all waiting.
package ratelimit

import (
	"time"
)

// Pool identifies one independently rate-limited API surface.
type Pool string

const (
	// PoolFeed covers the Events API (GitHub's "core" limit).
	PoolFeed Pool = "feed"

	// PoolSearch covers the Search API (separate per-minute limit).
	PoolSearch Pool = "search"

	// PoolGraph covers the GraphQL API (points per hour).
	PoolGraph Pool = "graph"
)

// Pools lists all tracked pools in a stable order.
var Pools = []Pool{PoolFeed, PoolSearch, PoolGraph}

// Default limits per GitHub documentation.
const (
	// FeedLimitAuthenticated is the core limit with a token (requests/hour).
	FeedLimitAuthenticated = 5000

	// FeedLimitAnonymous is the core limit without a token (requests/hour).
	FeedLimitAnonymous = 60

	// SearchLimit is the search limit (requests/minute).
	SearchLimit = 30

	// GraphLimit is the GraphQL limit (points/hour).
	GraphLimit = 5000
)

// State represents the quota state of one pool.
type State struct {
	// Pool this state belongs to.
	Pool Pool `json:"pool"`

	// Remaining is the number of calls left in the current window.
	// Never negative: exhaustion is a wait condition, not an error.
	Remaining int `json:"remaining"`

	// Limit is the total calls per window.
	Limit int `json:"limit"`

	// ResetAt is when the current window ends. Only ever moves forward.
	ResetAt time.Time `json:"reset_at"`

	// window is used to roll ResetAt forward when a window lapses
	// without an authoritative header update.
	window time.Duration
}

// Exhausted reports whether no calls remain in the current window.
func (s *State) Exhausted() bool {
	return s.Remaining <= 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// rollIfLapsed refreshes the window if ResetAt has passed.
func (s *State) rollIfLapsed(now time.Time) {
	if now.Before(s.ResetAt) {
		return
	}
	s.Remaining = s.Limit
	for !now.Before(s.ResetAt) {
		s.ResetAt = s.ResetAt.Add(s.window)
	}
}
