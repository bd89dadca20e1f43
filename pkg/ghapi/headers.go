package ghapi

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// GitHub rate limit headers, shared by all three pools.
const (
	headerRateRemaining = "x-ratelimit-remaining"
	headerRateLimit     = "x-ratelimit-limit"
	headerRateReset     = "x-ratelimit-reset"
)

// QuotaInfo carries authoritative rate limit values parsed from a
// response. The dispatcher feeds these into the quota tracker.
type QuotaInfo struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// parseQuotaHeaders extracts rate limit state from response headers.
// Returns nil when the headers are absent (non-API responses).
func parseQuotaHeaders(headers http.Header) *QuotaInfo {
	remainStr := headers.Get(headerRateRemaining)
	if remainStr == "" {
		return nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil
	}

	q := &QuotaInfo{Remaining: remaining, Limit: -1}

	if limitStr := headers.Get(headerRateLimit); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			q.Limit = limit
		}
	}

	if resetStr := headers.Get(headerRateReset); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			q.ResetAt = time.Unix(resetUnix, 0).UTC()
		}
	}

	return q
}

// linkNextPattern matches the next-page entry of a Link header:
// <https://api.github.com/...?page=2>; rel="next"
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// parseLinkNext extracts the continuation URL from a Link header.
// Returns the empty string when there is no next page.
func parseLinkNext(linkHeader string) string {
	m := linkNextPattern.FindStringSubmatch(linkHeader)
	if m == nil {
		return ""
	}
	return m[1]
}
