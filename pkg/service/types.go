package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/oblakr24/blescanner/pkg/log"
	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/session"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrUnknownDevice  = errors.New("unknown device")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateRunning - service is running normally.
	StateRunning

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ExplorerConfig configures an Explorer.
type ExplorerConfig struct {
	// Scan is used by StartScan.
	Scan scan.Settings

	// ScanGrace delays stopping the radio after the last result subscriber
	// leaves.
	ScanGrace time.Duration

	// LookupTimeout and ResponseTimeout bound session operations.
	LookupTimeout   time.Duration
	ResponseTimeout time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trail records the session event trail. If nil, nothing is recorded.
	Trail log.Logger
}

// DefaultExplorerConfig returns the default configuration.
func DefaultExplorerConfig() ExplorerConfig {
	return ExplorerConfig{
		Scan:            scan.DefaultSettings(),
		ScanGrace:       scan.DefaultGrace,
		LookupTimeout:   session.DefaultLookupTimeout,
		ResponseTimeout: session.DefaultResponseTimeout,
	}
}

// Operation names the action an EventOperationCompleted reports.
type Operation uint8

const (
	OpRead Operation = iota
	OpWrite
	OpNotify
	OpDiscover
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpNotify:
		return "NOTIFY"
	case OpDiscover:
		return "DISCOVER"
	default:
		return "UNKNOWN"
	}
}

// EventType identifies an Explorer event.
type EventType uint8

const (
	// EventScanUpdated - scan state or results changed.
	EventScanUpdated EventType = iota

	// EventSessionUpdated - a session produced a new snapshot.
	EventSessionUpdated

	// EventSessionEnded - a session stream ended.
	EventSessionEnded

	// EventOperationCompleted - an attribute operation finished.
	EventOperationCompleted

	// EventError - an action failed.
	EventError
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventScanUpdated:
		return "SCAN_UPDATED"
	case EventSessionUpdated:
		return "SESSION_UPDATED"
	case EventSessionEnded:
		return "SESSION_ENDED"
	case EventOperationCompleted:
		return "OPERATION_COMPLETED"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event represents an Explorer event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Address is the device address (for session and operation events).
	Address string

	// Scan is the scan state (for EventScanUpdated).
	Scan scan.State

	// Snapshot is the session snapshot (for EventSessionUpdated and
	// EventSessionEnded).
	Snapshot session.Snapshot

	// Op, AttributeID, Value and Success describe a completed operation.
	Op          Operation
	AttributeID string
	Value       []byte
	Success     bool

	// Groups is set for a completed discovery.
	Groups []session.Group

	// Error is set for EventError, and for EventSessionEnded when the stream
	// failed.
	Error error
}

// EventHandler handles explorer events.
type EventHandler func(Event)
