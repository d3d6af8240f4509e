package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrNetwork = errors.New("network error: unable to reach server")
	ErrTimeout = errors.New("request timed out")
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("Server error: %d - %s", e.StatusCode, msg)
}

// IsUnauthorized reports whether err is a 401 or 403 reply.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
}

// IsDuplicate reports whether the backend rejected a product because it
// already exists: a 409, or any rejection whose message says so.
func IsDuplicate(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(se.Message)
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}

// WrapTransport classifies a failed round trip. parent is the caller's
// context; a cancellation there is reported as such rather than as a network
// failure.
func WrapTransport(parent context.Context, op string, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrNetwork, err)
}
