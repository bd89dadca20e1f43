// Package ghapi provides the GitHub REST and GraphQL transport used by
// the collection adapters: request issuing with auth headers, response
// header parsing (rate limit state, Link continuation), failure
// classification, and optional conditional-request caching.
//
// The client issues exactly one call per invocation. Quota reservation,
// waiting, and retries are the dispatcher's responsibility.
package ghapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/codetrail/ghactivity/pkg/cache"
	"github.com/codetrail/ghactivity/pkg/logging"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

// Prometheus metrics for API transport.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_requests_total",
		Help: "Total API requests by pool and status",
	}, []string{"pool", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghactivity_request_duration_seconds",
		Help:    "API request duration in seconds by pool",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"pool"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Default endpoints and version header.
const (
	DefaultBaseURL    = "https://api.github.com"
	DefaultGraphQLURL = "https://api.github.com/graphql"

	apiVersion     = "2022-11-28"
	defaultTimeout = 30 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the REST API.
	BaseURL string

	// GraphQLURL of the graph pool endpoint.
	GraphQLURL string

	// Token is the bearer token. Feed and search calls work without
	// one at reduced limits; the graph pool requires it.
	Token string

	// UserAgent header, required by GitHub.
	UserAgent string

	// Timeout per request.
	Timeout time.Duration

	// HTTPClient overrides the default client (testing).
	HTTPClient *http.Client

	// Cache is the optional conditional-request cache. Nil disables
	// caching.
	Cache *cache.Manager
}

// DefaultConfig returns a config pointing at the public API.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		GraphQLURL: DefaultGraphQLURL,
		Token:      token,
		UserAgent:  "ghactivity/1.0",
		Timeout:    defaultTimeout,
	}
}

// Client issues single GitHub API calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logging.NewLogger("ghapi"),
	}, nil
}

// Authenticated reports whether a token is configured.
func (c *Client) Authenticated() bool {
	return c.cfg.Token != ""
}

// Response is one parsed API response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header

	// Quota is the rate limit state parsed from headers, nil if the
	// response carried none.
	Quota *QuotaInfo

	// NextPage is the Link rel="next" continuation URL, empty on the
	// last page.
	NextPage string

	// FromCache is true when the body was served from a 304
	// revalidation of a cached entry.
	FromCache bool
}

// Get issues one GET against the REST API. endpoint may be a path
// ("/users/octocat/events/public") or an absolute continuation URL
// from a Link header. Responses with status >= 400 return both the
// parsed response (for quota updates) and a classified *APIError.
func (c *Client) Get(ctx context.Context, pool ratelimit.Pool, endpoint string) (*Response, error) {
	target := endpoint
	if !strings.HasPrefix(target, "http") {
		target = c.cfg.BaseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	var cached *cache.Entry
	var cacheKey cache.Key
	if c.cfg.Cache != nil {
		cacheKey = cacheKeyFor(req.URL)
		cached, _ = c.cfg.Cache.Get(ctx, cacheKey)
		if cached != nil && cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(string(pool)).Observe(time.Since(start).Seconds())
	if err != nil {
		errorsTotal.WithLabelValues(string(ClassTransient)).Inc()
		requestsTotal.WithLabelValues(string(pool), "network_error").Inc()
		return nil, &APIError{Class: ClassTransient, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ClassTransient)).Inc()
		return nil, &APIError{Class: ClassTransient, Message: "read response body", Err: err}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Header:     httpResp.Header,
		Quota:      parseQuotaHeaders(httpResp.Header),
		NextPage:   parseLinkNext(httpResp.Header.Get("Link")),
	}
	requestsTotal.WithLabelValues(string(pool), fmt.Sprintf("%d", httpResp.StatusCode)).Inc()

	if httpResp.StatusCode == http.StatusNotModified && cached != nil {
		c.logger.Debug().
			Str("pool", string(pool)).
			Str("url", target).
			Msg("304 Not Modified, serving cached body")
		resp.StatusCode = http.StatusOK
		resp.Body = cached.Data
		resp.NextPage = cached.NextPage
		resp.FromCache = true
		return resp, nil
	}

	if httpResp.StatusCode >= 400 {
		apiErr := classify(httpResp.StatusCode, errorMessage(body), httpResp.Header)
		errorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		c.logger.Warn().
			Str("pool", string(pool)).
			Str("url", target).
			Int("status", httpResp.StatusCode).
			Str("class", string(apiErr.Class)).
			Msg("API request error")
		return resp, apiErr
	}

	if c.cfg.Cache != nil && httpResp.StatusCode == http.StatusOK {
		entry := &cache.Entry{
			Data:     body,
			ETag:     httpResp.Header.Get("ETag"),
			NextPage: resp.NextPage,
			CachedAt: time.Now(),
		}
		if err := c.cfg.Cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// graphQLRequest is the wire shape of a graph pool call.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQL issues one structured query against the graph pool.
// A token is required; without one the call fails as Forbidden.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any) (json.RawMessage, *Response, error) {
	if !c.Authenticated() {
		err := &APIError{
			StatusCode: http.StatusUnauthorized,
			Class:      ClassForbidden,
			Message:    "graph queries require an access token",
		}
		errorsTotal.WithLabelValues(string(ClassForbidden)).Inc()
		return nil, nil, err
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQLURL, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(string(ratelimit.PoolGraph)).Observe(time.Since(start).Seconds())
	if err != nil {
		errorsTotal.WithLabelValues(string(ClassTransient)).Inc()
		return nil, nil, &APIError{Class: ClassTransient, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, &APIError{Class: ClassTransient, Message: "read response body", Err: err}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Header:     httpResp.Header,
		Quota:      parseQuotaHeaders(httpResp.Header),
	}
	requestsTotal.WithLabelValues(string(ratelimit.PoolGraph), fmt.Sprintf("%d", httpResp.StatusCode)).Inc()

	if httpResp.StatusCode >= 400 {
		apiErr := classify(httpResp.StatusCode, errorMessage(body), httpResp.Header)
		errorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		return nil, resp, apiErr
	}

	var gql graphQLResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		return nil, resp, &APIError{Class: ClassInvalid, Message: "decode graphql response", Err: err}
	}

	if len(gql.Errors) > 0 {
		class := ClassInvalid
		if gql.Errors[0].Type == "NOT_FOUND" {
			class = ClassNotFound
		}
		apiErr := &APIError{
			StatusCode: httpResp.StatusCode,
			Class:      class,
			Message:    gql.Errors[0].Message,
		}
		errorsTotal.WithLabelValues(string(class)).Inc()
		return nil, resp, apiErr
	}

	return gql.Data, resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

// errorMessage pulls the "message" field from a GitHub error body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return "unexpected response"
	}
	return parsed.Message
}

func cacheKeyFor(u *url.URL) cache.Key {
	return cache.Key{Endpoint: u.Path, Query: u.Query()}
}
