package retry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError reports an HTTP 403/429 response. RetryAfter carries the
// server-supplied delay hint, zero when the header was absent or unparsable.
type RateLimitError struct {
	// URL is the requested URL.
	URL string
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// RetryAfter is the delay requested by the server before the next attempt.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s: HTTP %d, retry after %s", e.URL, e.StatusCode, e.RetryAfter)
	}

	return fmt.Sprintf("rate limited: %s: HTTP %d", e.URL, e.StatusCode)
}

// TransportError reports a connection failure, timeout or an unexpected
// HTTP status without a recognized retry path.
type TransportError struct {
	// URL is the requested URL.
	URL string
	// StatusCode is the HTTP status of the response, zero when the request never completed.
	StatusCode int
	// Err is the underlying transport error, nil for bad-status responses.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}

	return fmt.Sprintf("fetch %s: unexpected HTTP status %d", e.URL, e.StatusCode)
}

// Unwrap exposes the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseError classifies an HTTP response: nil for 2xx, RateLimitError for
// 403/429 (with the Retry-After hint parsed), TransportError otherwise.
func ResponseError(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	requestURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		requestURL = resp.Request.URL.String()
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return &TransportError{
		URL:        requestURL,
		StatusCode: resp.StatusCode,
	}
}

// parseRetryAfter converts the Retry-After header value (integer seconds) to a duration.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
