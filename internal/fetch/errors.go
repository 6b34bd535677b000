package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNetworkExhausted matches every NetworkExhaustedError.
	ErrNetworkExhausted = errors.New("network retries exhausted")
	// ErrBodyNotReplayable is returned when a retry needs a request body that cannot be re-read.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// NetworkExhaustedError is returned when no attempt produced a response.
// It unwraps to ErrNetworkExhausted and to the last transport error.
type NetworkExhaustedError struct {
	Attempts int
	Err      error
}

func (e *NetworkExhaustedError) Error() string {
	return fmt.Sprintf("network retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *NetworkExhaustedError) Unwrap() []error {
	return []error{ErrNetworkExhausted, e.Err}
}

// StatusError reports a response whose status the caller did not accept.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// transportError marks a failed round trip as retryable.
type transportError struct {
	err error
}

func (e *transportError) Error() string   { return e.err.Error() }
func (e *transportError) Unwrap() error   { return e.err }
func (e *transportError) Temporary() bool { return true }

// rateLimitedError is a 429 answered while attempts remain.
type rateLimitedError struct {
	retryAfter time.Duration
	hinted     bool
}

func (e *rateLimitedError) Error() string   { return "rate limited by upstream" }
func (e *rateLimitedError) Temporary() bool { return true }

func (e *rateLimitedError) RetryDelay() (time.Duration, bool) {
	return e.retryAfter, e.hinted
}
