package connection

import (
	"errors"
	"fmt"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// Connection errors.
var (
	// ErrNotConnected is returned for requests issued without a live handle.
	ErrNotConnected = errors.New("not connected")

	// ErrOperationRejected is returned when the primitive refuses a request
	// synchronously.
	ErrOperationRejected = errors.New("operation rejected")

	// ErrConnectionFailed terminates a stream whose link reported a failure.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionClosed is returned by Connect when the stream ended before
	// the link was established.
	ErrConnectionClosed = errors.New("connection closed")
)

// StatusError is the terminal stream error for a non-success status.
type StatusError struct {
	Status gatt.Status
	State  gatt.ProfileState
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("connection failed: status %s in state %s", e.Status, e.State)
}

// Unwrap returns ErrConnectionFailed.
func (e *StatusError) Unwrap() error {
	return ErrConnectionFailed
}
