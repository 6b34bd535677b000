package retrier

import (
	"errors"
	"time"
)

// Temporary indicates if an error condition is temporary and may succeed if retried.
type Temporary interface {
	Temporary() bool
}

// DelayHint is implemented by errors that know how long to wait before the
// next attempt, e.g. from a server's Retry-After header.
type DelayHint interface {
	RetryDelay() (time.Duration, bool)
}

// IsTemporary checks if the provided error implements the Temporary interface and returns true if it does.
func IsTemporary(err error) bool {
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// HintedDelay returns the delay carried by err, if any.
func HintedDelay(err error) (time.Duration, bool) {
	var hint DelayHint
	if errors.As(err, &hint) {
		return hint.RetryDelay()
	}
	return 0, false
}
