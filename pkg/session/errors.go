package session

import "errors"

// Session errors. Waits cancelled by a disconnect return
// connection.ErrNotConnected.
var (
	// ErrCorrelationTimeout is returned when no matching response arrives
	// within the response timeout.
	ErrCorrelationTimeout = errors.New("correlation timeout")

	// ErrAttributeNotFound is returned when the attribute does not appear
	// within the lookup timeout.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrDiscoveryFailed is returned when attribute discovery did not start
	// or did not complete.
	ErrDiscoveryFailed = errors.New("discovery failed")
)
