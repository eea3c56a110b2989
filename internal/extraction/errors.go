package extraction

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoFiles     = errors.New("extraction needs at least one file")
	ErrUnavailable = errors.New("extraction service unavailable")
)

// TransportError covers every way an upload can fail: a transport error, a
// non-2xx answer, or a body that is not the documented JSON.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("extraction service returned %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("extraction service returned %d", e.StatusCode)
	default:
		return fmt.Sprintf("extraction request failed: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary reports whether the failure should count against the circuit
// breaker. Client mistakes (4xx) and cancelled requests do not.
func (e *TransportError) Temporary() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode >= 500
}
