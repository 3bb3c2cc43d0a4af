package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrTimeout marks a fetch that exceeded its per-request deadline.
var ErrTimeout = errors.New("fetch timeout")

// ErrConnection marks a network-level failure before a response arrived.
var ErrConnection = errors.New("connection error")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// Gone reports whether the server signalled the resource as permanently gone.
func (e *StatusError) Gone() bool {
	return e.Code == http.StatusGone
}

// RetryError is the terminal outcome after all fetch attempts are exhausted.
// The crawl engine skips the URL; it never aborts the run.
type RetryError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error { return e.Last }

func normalizeNetErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
