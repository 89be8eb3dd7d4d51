// Package retry implements the fixed-wait retry harness described in
// spec.md §4.1: every remote call is wrapped with a bounded number of
// attempts and a constant wait between them. No exponential backoff is
// used; this is by design, to keep behavior predictable for an external
// REST catalog that rate-limits on a flat window.
package retry

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff"
)

// Classification is the outcome an Op reports for one attempt.
type Classification int

const (
	// Ok means the attempt succeeded; stop retrying.
	Ok Classification = iota
	// Transient means the attempt failed in a way that may succeed on
	// retry (5xx, timeout, connection reset).
	Transient
	// Fatal means the attempt failed in a way retrying cannot fix
	// (404 on an entity lookup, for instance).
	Fatal
)

// Op is one attempt at a retryable operation. It returns the classification
// of the outcome and an error describing it (nil only when Ok).
type Op func() (Classification, error)

// ErrExhausted wraps the final error after all attempts are spent.
type ErrExhausted struct {
	Attempts int
	Err      error
}

func (e *ErrExhausted) Error() string {
	return "retry: exhausted after " + itoa(e.Attempts) + " attempts: " + e.Err.Error()
}

func (e *ErrExhausted) Unwrap() error { return e.Err }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// ClassifyHTTPStatus implements the classification policy of spec.md §4.1:
// 200 -> ok, 404 -> fatal, 5xx/connection/timeout -> transient, anything
// else -> transient by default.
func ClassifyHTTPStatus(statusCode int, transportErr error) Classification {
	if transportErr != nil {
		return Transient
	}
	switch {
	case statusCode == 200:
		return Ok
	case statusCode == 404:
		return Fatal
	case statusCode >= 500:
		return Transient
	default:
		return Transient
	}
}

// Do runs op up to maxTries times, sleeping exactly wait between attempts,
// and surfaces the last error on exhaustion. maxTries counts the first
// attempt plus all retries (spec.md §4.1's "at most max_tries invocations").
func Do(op Op, maxTries int, wait time.Duration) error {
	if maxTries < 1 {
		maxTries = 1
	}

	var lastErr error
	attempts := 0
	fatal := false

	wrapped := func() error {
		attempts++
		class, err := op()
		switch class {
		case Ok:
			return nil
		case Fatal:
			lastErr = err
			fatal = true
			return backoff.Permanent(err)
		default: // Transient
			lastErr = err
			return err
		}
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), uint64(maxTries-1))
	err := backoff.Retry(wrapped, b)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if fatal || errors.As(err, &perm) {
		return lastErr
	}
	return &ErrExhausted{Attempts: attempts, Err: lastErr}
}
