package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff represents a backoff strategy where intervals exponentially increase.
// LinearBackoff represents a backoff strategy where intervals increase linearly.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
	// ErrMaxAttempts wraps the last error once every attempt has failed.
	ErrMaxAttempts = errors.New("max retry attempts reached")
)

// BackoffStrategy defines the strategy used for calculating backoff intervals in retry mechanisms.
type BackoffStrategy int

// Retrier provides functionality to execute a function with retry logic based on different backoff strategies.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	factor      float64
	jitter      float64
	strategy    BackoffStrategy

	TempErrorFunc func(error) bool                               // Custom temporary error function
	SleepFunc     func(ctx context.Context, d time.Duration) error // Replaces the timer wait, mainly in tests
}

// NewRetrier creates a new Retrier instance with specified parameters for handling retry logic.
// Parameters:
// - maxAttempts: maximum number of attempts, the first one included.
// - baseDelay: delay before the second attempt.
// - maxDelay: upper bound of a computed delay; zero or negative means uncapped.
// - factor: multiplier for exponential backoff calculation.
// - jitter: randomness factor to avoid retry storms; zero disables it.
// - strategy: backoff strategy to use (ExponentialBackoff or LinearBackoff).
// - tempErrorFunc: optional function to determine if an error is temporary.
func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration, factor, jitter float64, strategy BackoffStrategy, tempErrorFunc func(error) bool) (*Retrier, error) {
	if maxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if baseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if jitter < 0 || jitter > maxJitter {
		return nil, ErrInvalidJitter
	}

	return &Retrier{
		maxAttempts:   maxAttempts,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
		factor:        factor,
		jitter:        jitter,
		strategy:      strategy,
		TempErrorFunc: tempErrorFunc,
		SleepFunc:     Sleep,
	}, nil
}

// MaxAttempts returns the attempt ceiling.
func (r *Retrier) MaxAttempts() int {
	return r.maxAttempts
}

// Run executes fn until it succeeds, returns a non-temporary error, or the
// attempts run out. fn receives the zero-based attempt number. An error
// implementing DelayHint overrides the computed delay before the next attempt.
func (r *Retrier) Run(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		var isTemp bool
		if r.TempErrorFunc != nil {
			isTemp = r.TempErrorFunc(err)
		} else {
			isTemp = IsTemporary(err)
		}

		if !isTemp {
			// Non-temporary error, do not retry
			return err
		}

		if attempt == r.maxAttempts-1 {
			break
		}

		delay := r.Delay(attempt)
		if hint, ok := HintedDelay(err); ok {
			delay = hint
		}

		if err := r.SleepFunc(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %w", ErrMaxAttempts, err)
}

// Delay computes the backoff before attempt+1 based on the retry attempt and backoff strategy.
func (r *Retrier) Delay(attempt int) time.Duration {
	var delay float64

	switch r.strategy {
	case LinearBackoff:
		delay = float64(r.baseDelay) * float64(attempt+1)
	default:
		delay = float64(r.baseDelay) * math.Pow(r.factor, float64(attempt))
	}

	if r.maxDelay > 0 && delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}

	if r.jitter > 0 {
		delay += rand.Float64() * r.jitter * delay
	}
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
