package ghapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/codetrail/ghactivity/pkg/backoff"
)

// Class categorizes an API failure for retry and run-level policy.
type Class string

const (
	// ClassNotFound: the subject or resource is absent. Non-retryable;
	// yields an empty sub-result plus a warning.
	ClassNotFound Class = "not_found"

	// ClassThrottled: quota exhausted or a rate-limit response.
	// Always retried after the computed wait.
	ClassThrottled Class = "throttled"

	// ClassForbidden: missing auth or scope. The source is skipped.
	ClassForbidden Class = "forbidden"

	// ClassInvalid: malformed query or parameters. Non-retryable.
	ClassInvalid Class = "invalid"

	// ClassTransient: server or network error. Retried up to the
	// backoff cap.
	ClassTransient Class = "transient"
)

// APIError is a classified GitHub API failure.
type APIError struct {
	StatusCode int
	Class      Class
	Message    string

	// ResetAt carries the pool reset time for throttled errors, when
	// the response headers exposed one.
	ResetAt time.Time

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("github %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Outcome maps the error class onto a backoff outcome.
func (e *APIError) Outcome() backoff.Outcome {
	switch e.Class {
	case ClassThrottled:
		return backoff.OutcomeThrottled
	case ClassTransient:
		return backoff.OutcomeTransient
	default:
		return backoff.OutcomeClientError
	}
}

// ClassOf extracts the class from an error chain. Unclassified errors
// (raw network failures and similar) count as transient.
func ClassOf(err error) Class {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ClassTransient
}

// classify builds an APIError from a non-2xx response.
func classify(statusCode int, message string, headers http.Header) *APIError {
	e := &APIError{StatusCode: statusCode, Message: message}

	switch {
	case statusCode == http.StatusNotFound:
		e.Class = ClassNotFound
	case statusCode == http.StatusTooManyRequests:
		e.Class = ClassThrottled
	case statusCode == http.StatusUnauthorized:
		// Bad or expired token: no amount of retrying helps.
		e.Class = ClassForbidden
	case statusCode == http.StatusForbidden:
		// GitHub reports primary rate limiting as 403 with
		// x-ratelimit-remaining: 0, secondary limits via the message.
		if headers.Get(headerRateRemaining) == "0" ||
			strings.Contains(strings.ToLower(message), "rate limit") {
			e.Class = ClassThrottled
		} else {
			e.Class = ClassForbidden
		}
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		e.Class = ClassInvalid
	case statusCode >= 500:
		e.Class = ClassTransient
	default:
		e.Class = ClassInvalid
	}

	if e.Class == ClassThrottled {
		if q := parseQuotaHeaders(headers); q != nil {
			e.ResetAt = q.ResetAt
		}
	}

	return e
}
