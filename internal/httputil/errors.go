package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned for HTTP 401 responses. It is a global signal:
// every poller in the synchronization context must halt and hand off to
// re-authentication instead of retrying.
var ErrSessionExpired = errors.New("vigil: session expired")

// RequestError is a permanent request failure (4xx other than 401). It is
// surfaced once for the originating call and never retried with the same input.
type RequestError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("vigil: request to %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ClassifyStatus maps a non-2xx response status to the error taxonomy.
// 401 is session expiry, other 4xx are permanent, everything else is a
// transient failure retried on the next tick.
func ClassifyStatus(statusCode int, endpoint, body string) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w (endpoint %s)", ErrSessionExpired, endpoint)
	case statusCode >= 400 && statusCode < 500:
		return &RequestError{StatusCode: statusCode, Endpoint: endpoint, Body: body}
	default:
		return fmt.Errorf("vigil: transient failure on %s: status %d", endpoint, statusCode)
	}
}

// IsSessionExpired reports whether err carries the global 401 signal.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsPermanent reports whether err is a permanent request error.
func IsPermanent(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// ErrorClass returns the taxonomy label for err, used as a metric dimension.
func ErrorClass(err error) string {
	switch {
	case IsSessionExpired(err):
		return "session_expired"
	case IsPermanent(err):
		return "permanent"
	default:
		return "transient"
	}
}
