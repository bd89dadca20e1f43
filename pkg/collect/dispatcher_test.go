package collect

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/ghactivity/internal/testutil"
	"github.com/codetrail/ghactivity/pkg/backoff"
	"github.com/codetrail/ghactivity/pkg/cache"
	"github.com/codetrail/ghactivity/pkg/ghapi"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		testutil.SetQuotaHeaders(w.Header(), 4999, 5000, time.Now().Add(time.Hour))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"login": "octocat"}`))
	})

	d := newTestDispatcher(t, mock, "test-token")
	resp, err := d.get(context.Background(), ratelimit.PoolFeed, "/users/octocat")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcherGivesUpOnClientError(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	// Default handler answers 404 for everything.

	d := newTestDispatcher(t, mock, "test-token")
	_, err := d.get(context.Background(), ratelimit.PoolFeed, "/users/ghost")
	require.Error(t, err)
	assert.Equal(t, ghapi.ClassNotFound, ghapi.ClassOf(err))
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestDispatcherWaitsForAdvertisedReset(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	// First answer throttles with a near reset time; the dispatcher
	// must wait it out and the retry must succeed.
	resetAt := time.Now().Add(60 * time.Millisecond)
	var calls atomic.Int32
	mock.SetHandler("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			testutil.SetQuotaHeaders(w.Header(), 5, 30, resetAt)
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message": "You have exceeded a secondary rate limit"}`))
			return
		}
		testutil.SetQuotaHeaders(w.Header(), 29, 30, time.Now().Add(time.Minute))
		w.Write([]byte(`{"total_count": 0, "items": []}`))
	})

	d := newTestDispatcher(t, mock, "test-token")

	start := time.Now()
	resp, err := d.get(context.Background(), ratelimit.PoolSearch, "/search/issues?q=x")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDispatcherHonoursCancellationWhileWaiting(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	d := newTestDispatcher(t, mock, "test-token")
	d.tracker.Update(ratelimit.PoolSearch, 0, 30, time.Now().Add(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.get(ctx, ratelimit.PoolSearch, "/users/octocat")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestDispatcherReleasesQuotaOnTransportFailure(t *testing.T) {
	mock := testutil.NewMockGitHub()
	d := newTestDispatcher(t, mock, "test-token")
	mock.Close() // every attempt now fails before reaching a server

	before := d.tracker.Snapshot(ratelimit.PoolFeed).Remaining
	_, err := d.get(context.Background(), ratelimit.PoolFeed, "/users/octocat")
	require.Error(t, err)
	assert.Equal(t, ghapi.ClassTransient, ghapi.ClassOf(err))

	// No request spent server-side quota, so none of the retries may
	// leave a reservation consumed.
	after := d.tracker.Snapshot(ratelimit.PoolFeed).Remaining
	assert.Equal(t, before, after)
}

func TestDispatcherReleasesQuotaOnCachedResponse(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	var first atomic.Bool
	first.Store(true)
	mock.SetHandler("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		testutil.SetQuotaHeaders(w.Header(), 4999, 5000, time.Now().Add(time.Hour))
		w.Header().Set("ETag", `"v1"`)
		if !first.Swap(false) && r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte(`{"login": "octocat"}`))
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	client, err := ghapi.New(ghapi.Config{
		BaseURL:   mock.URL(),
		Token:     "test-token",
		UserAgent: "ghactivity-test/1.0",
		Cache:     cache.NewManager(rdb, cache.DefaultRetention),
	})
	require.NoError(t, err)

	d := &dispatcher{
		client:  client,
		tracker: ratelimit.NewTracker(true, zerolog.Nop()),
		policy:  backoff.DefaultPolicy(),
		logger:  zerolog.Nop(),
	}

	_, err = d.get(context.Background(), ratelimit.PoolFeed, "/users/octocat")
	require.NoError(t, err)
	before := d.tracker.Snapshot(ratelimit.PoolFeed).Remaining

	resp, err := d.get(context.Background(), ratelimit.PoolFeed, "/users/octocat")
	require.NoError(t, err)
	assert.True(t, resp.FromCache)

	// The 304 revalidation handed its reservation back, but the server
	// header update is authoritative, so remaining never went down.
	after := d.tracker.Snapshot(ratelimit.PoolFeed).Remaining
	assert.Equal(t, before, after)
	assert.Equal(t, 1, mock.GetConditionalCount())
}
