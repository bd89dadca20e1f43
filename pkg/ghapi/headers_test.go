package ghapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuotaHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "4321")
	h.Set("X-RateLimit-Limit", "5000")
	h.Set("X-RateLimit-Reset", "1767225600")

	q := parseQuotaHeaders(h)
	require.NotNil(t, q)
	assert.Equal(t, 4321, q.Remaining)
	assert.Equal(t, 5000, q.Limit)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), q.ResetAt)
}

func TestParseQuotaHeadersAbsent(t *testing.T) {
	assert.Nil(t, parseQuotaHeaders(http.Header{}))
}

func TestParseQuotaHeadersGarbageRemaining(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "lots")
	assert.Nil(t, parseQuotaHeaders(h))
}

func TestParseQuotaHeadersRemainingOnly(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "12")

	q := parseQuotaHeaders(h)
	require.NotNil(t, q)
	assert.Equal(t, 12, q.Remaining)
	assert.Equal(t, -1, q.Limit)
	assert.True(t, q.ResetAt.IsZero())
}

func TestParseLinkNext(t *testing.T) {
	link := `<https://api.github.com/user/1/events/public?page=2>; rel="next", <https://api.github.com/user/1/events/public?page=10>; rel="last"`
	assert.Equal(t, "https://api.github.com/user/1/events/public?page=2", parseLinkNext(link))
}

func TestParseLinkNextLastPage(t *testing.T) {
	link := `<https://api.github.com/user/1/events/public?page=1>; rel="first"`
	assert.Equal(t, "", parseLinkNext(link))
	assert.Equal(t, "", parseLinkNext(""))
}
