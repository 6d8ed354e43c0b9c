package chat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated means no credential was available or the backend rejected it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrEmptyRoom means a room id was required but empty.
	ErrEmptyRoom = errors.New("room id required")
	// ErrNotOpen means a send was attempted while the live channel was not open.
	ErrNotOpen = errors.New("live channel not open")
	// ErrEmptyMessage means a send was attempted with blank content.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrClosed means the session was already torn down.
	ErrClosed = errors.New("session closed")
	// ErrInvalidIdentity means a display identity would not survive the backend unchanged.
	ErrInvalidIdentity = errors.New("invalid identity")

	errMissingFrameField = errors.New("frame missing sender or message")
)

// StatusError is returned when the history endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("history request failed: %s", e.Status)
	}
	return fmt.Sprintf("history request failed: status %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthenticated) match auth rejections.
func (e *StatusError) Is(target error) bool {
	if target != ErrUnauthenticated {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// FrameError describes an inbound live frame that could not be decoded.
type FrameError struct {
	Raw string
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
