// Package retry wraps fallible network operations in an exponential backoff
// loop with rate-limit awareness.
//
// A rate-limited response (HTTP 403 or 429) carrying a Retry-After header is
// retried after exactly the hinted delay; every other failure is retried
// after 2^attempt seconds. Retries are uniform in kind: the policy does not
// distinguish retryable from non-retryable failures, it simply exhausts the
// attempt budget and surfaces the last error unmodified.
package retry
