package steamapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited is returned when Steam rejects a call with 429 Too Many Requests.
	ErrRateLimited = errors.New("steam api rate limited")
	// ErrTransport covers network failures, timeouts and non-2xx responses
	// other than 429.
	ErrTransport = errors.New("steam api transport error")
	// ErrQuarantine is returned when a rate-limited key could not be blocked.
	ErrQuarantine = errors.New("failed to quarantine api key")
	// ErrNoKeys is returned by New when the key pool is empty, and by Do when
	// no pool key is left to attach.
	ErrNoKeys = errors.New("no api keys configured")
)

// StatusError is a non-2xx response. It matches ErrRateLimited for 429 and
// ErrTransport for everything else.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrTransport
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
