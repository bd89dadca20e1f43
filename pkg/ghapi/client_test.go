package ghapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/ghactivity/internal/testutil"
	"github.com/codetrail/ghactivity/pkg/cache"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

func newClient(t *testing.T, mock *testutil.MockGitHub, cfgFn func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:    mock.URL(),
		GraphQLURL: mock.URL() + "/graphql",
		Token:      "test-token",
		UserAgent:  "ghactivity-test/1.0",
	}
	if cfgFn != nil {
		cfgFn(&cfg)
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func TestNewRequiresUserAgent(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetParsesQuotaAndLink(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	next := mock.URL() + "/users/octocat/events/public?page=2"
	mock.SetHandler("/users/octocat/events/public", func(w http.ResponseWriter, r *http.Request) {
		testutil.SetQuotaHeaders(w.Header(), 4980, 5000, time.Now().Add(time.Hour))
		w.Header().Set("Link", testutil.LinkNext(next))
		w.Write([]byte(`[]`))
	})

	client := newClient(t, mock, nil)
	resp, err := client.Get(context.Background(), ratelimit.PoolFeed, "/users/octocat/events/public")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, resp.Quota)
	assert.Equal(t, 4980, resp.Quota.Remaining)
	assert.Equal(t, 5000, resp.Quota.Limit)
	assert.Equal(t, next, resp.NextPage)
}

func TestGetSendsAuthAndVersionHeaders(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetUserResponse("octocat", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{}`})

	client := newClient(t, mock, nil)
	_, err := client.Get(context.Background(), ratelimit.PoolFeed, "/users/octocat")
	require.NoError(t, err)

	h := mock.LastRequestHeader
	assert.Equal(t, "Bearer test-token", h.Get("Authorization"))
	assert.Equal(t, "ghactivity-test/1.0", h.Get("User-Agent"))
	assert.Equal(t, "2022-11-28", h.Get("X-GitHub-Api-Version"))
}

func TestGetErrorReturnsResponseForQuotaUpdate(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	// Default handler: 404 with quota headers.

	client := newClient(t, mock, nil)
	resp, err := client.Get(context.Background(), ratelimit.PoolFeed, "/users/ghost")
	require.Error(t, err)
	assert.Equal(t, ClassNotFound, ClassOf(err))

	// Even failures carry quota state for the tracker.
	require.NotNil(t, resp)
	require.NotNil(t, resp.Quota)
	assert.Equal(t, 4999, resp.Quota.Remaining)
}

func TestGetAbsoluteContinuationURL(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetResponse("/page2", testutil.MockResponse{StatusCode: http.StatusOK, Body: `[]`})

	client := newClient(t, mock, nil)
	resp, err := client.Get(context.Background(), ratelimit.PoolFeed, mock.URL()+"/page2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetConditionalRequestServesCache(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	body := `[{"id": "1"}]`
	mock.SetHandler("/users/octocat/events/public", func(w http.ResponseWriter, r *http.Request) {
		testutil.SetQuotaHeaders(w.Header(), 4999, 5000, time.Now().Add(time.Hour))
		w.Header().Set("ETag", `"v1"`)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte(body))
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	manager := cache.NewManager(rdb, cache.DefaultRetention)

	client := newClient(t, mock, func(cfg *Config) { cfg.Cache = manager })

	resp, err := client.Get(context.Background(), ratelimit.PoolFeed, "/users/octocat/events/public")
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Equal(t, body, string(resp.Body))

	resp, err = client.Get(context.Background(), ratelimit.PoolFeed, "/users/octocat/events/public")
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, body, string(resp.Body))
	assert.Equal(t, 1, mock.GetConditionalCount())
}

func TestGraphQLRequiresToken(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	client := newClient(t, mock, func(cfg *Config) { cfg.Token = "" })
	_, _, err := client.GraphQL(context.Background(), `query { viewer { login } }`, nil)
	require.Error(t, err)
	assert.Equal(t, ClassForbidden, ClassOf(err))
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestGraphQLReturnsData(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetHandler("/graphql", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		testutil.SetQuotaHeaders(w.Header(), 4999, 5000, time.Now().Add(time.Hour))
		w.Write([]byte(`{"data": {"user": {"login": "octocat"}}}`))
	})

	client := newClient(t, mock, nil)
	data, resp, err := client.GraphQL(context.Background(), `query { user { login } }`, map[string]any{"login": "octocat"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user": {"login": "octocat"}}`, string(data))
	require.NotNil(t, resp.Quota)
}

func TestGraphQLErrorsArray(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetHandler("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": null, "errors": [{"type": "NOT_FOUND", "message": "Could not resolve to a User"}]}`))
	})

	client := newClient(t, mock, nil)
	_, _, err := client.GraphQL(context.Background(), `query { user { login } }`, nil)
	require.Error(t, err)
	assert.Equal(t, ClassNotFound, ClassOf(err))
}
