package oracle

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrMalformedOutput marks replies whose payload could not be turned into
// a usable structure even after repair. These are never worth retrying
// with the same input.
var ErrMalformedOutput = errors.New("malformed oracle output")

// Error is a non-2xx reply from the scoring backend.
type Error struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("oracle returned status %d (retry after %s): %s", e.StatusCode, e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("oracle returned status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is a quota rejection from the backend.
func IsRateLimited(err error) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.StatusCode == http.StatusTooManyRequests
}

// IsStructural reports whether err means the reply itself was unusable,
// as opposed to the call failing in transit.
func IsStructural(err error) bool {
	return errors.Is(err, ErrMalformedOutput)
}

// retryAfter extracts the backend-requested delay, if the error carries one.
func retryAfter(err error) time.Duration {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.RetryAfter
	}
	return 0
}
