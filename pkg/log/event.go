package log

import (
	"time"
)

// Event is one record of the session trail.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one connection attempt (UUID). Empty for scan events.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction is OUT for requests issued to the peripheral and IN for
	// everything the peripheral reports.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Address of the peripheral.
	Address string `cbor:"6,keyasint,omitempty"`

	// DeviceName is the advertised name, if known.
	DeviceName string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Attribute   *AttributeEvent   `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Scan        *ScanEvent        `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of the event relative to this host.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the stack captured the event.
type Layer uint8

const (
	// LayerRadio is the primitive boundary: requests and callbacks.
	LayerRadio Layer = 0
	// LayerBridge is the network bridge framing layer.
	LayerBridge Layer = 1
	// LayerSession is the session engine (lifecycle, correlation).
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerRadio:
		return "RADIO"
	case LayerBridge:
		return "BRIDGE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	CategoryAttribute Category = 0
	CategoryScan      Category = 1
	CategoryState     Category = 2
	CategoryError     Category = 3
	CategoryFrame     Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAttribute:
		return "ATTRIBUTE"
	case CategoryScan:
		return "SCAN"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryFrame:
		return "FRAME"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw bridge frame data.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// AttributeOp is the attribute operation an AttributeEvent describes.
type AttributeOp uint8

const (
	OpDiscover AttributeOp = 0
	OpRead     AttributeOp = 1
	OpWrite    AttributeOp = 2
	OpNotify   AttributeOp = 3
	OpChanged  AttributeOp = 4
)

// String returns the operation name.
func (o AttributeOp) String() string {
	switch o {
	case OpDiscover:
		return "DISCOVER"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpNotify:
		return "NOTIFY"
	case OpChanged:
		return "CHANGED"
	default:
		return "UNKNOWN"
	}
}

// AttributeEvent captures a request (OUT) or its response (IN).
type AttributeEvent struct {
	Op AttributeOp `cbor:"1,keyasint"`

	// AttributeID is the canonical characteristic identifier. Empty for discovery.
	AttributeID string `cbor:"2,keyasint,omitempty"`

	Value []byte `cbor:"3,keyasint,omitempty"`

	// Success is request acceptance for OUT events and the reported status
	// for IN events.
	Success bool `cbor:"4,keyasint"`

	// Status is the raw status code of IN events.
	Status uint16 `cbor:"5,keyasint,omitempty"`

	// Enable is the requested notification state for OpNotify.
	Enable bool `cbor:"6,keyasint,omitempty"`

	// Count is the number of services for OpDiscover responses.
	Count int `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures connection, session and scan lifecycle.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = 0
	StateEntitySession    StateEntity = 1
	StateEntityScan       StateEntity = 2
	StateEntityLink       StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityScan:
		return "SCAN"
	case StateEntityLink:
		return "LINK"
	default:
		return "UNKNOWN"
	}
}

// ScanEvent captures an advertisement or a scan failure.
type ScanEvent struct {
	Name        string `cbor:"1,keyasint,omitempty"`
	RSSI        int    `cbor:"2,keyasint,omitempty"`
	Connectable bool   `cbor:"3,keyasint,omitempty"`

	// FailureCode is set when the scan failed.
	FailureCode int `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
