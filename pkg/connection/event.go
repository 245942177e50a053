package connection

import (
	"fmt"
	"slices"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// PhaseState is the state part of a connection phase.
type PhaseState uint8

const (
	PhaseIdle PhaseState = iota
	PhaseConnecting
	PhaseConnected
	PhaseDisconnecting
	PhaseDisconnected
)

// String returns the phase state name.
func (s PhaseState) String() string {
	switch s {
	case PhaseIdle:
		return "IDLE"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseConnected:
		return "CONNECTED"
	case PhaseDisconnecting:
		return "DISCONNECTING"
	case PhaseDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Phase is a connection phase. DiscoveryStarted is only meaningful for
// PhaseConnected and records whether service discovery was requested.
type Phase struct {
	State            PhaseState
	DiscoveryStarted bool
}

// String returns the phase name.
func (p Phase) String() string {
	return p.State.String()
}

// Kind tags an Event.
type Kind uint8

const (
	KindStartingConnection Kind = iota
	KindPhaseChanged
	KindAttributesDiscovered
	KindAttributeRead
	KindAttributeWritten
	KindAttributeChanged
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStartingConnection:
		return "STARTING_CONNECTION"
	case KindPhaseChanged:
		return "PHASE_CHANGED"
	case KindAttributesDiscovered:
		return "ATTRIBUTES_DISCOVERED"
	case KindAttributeRead:
		return "ATTRIBUTE_READ"
	case KindAttributeWritten:
		return "ATTRIBUTE_WRITTEN"
	case KindAttributeChanged:
		return "ATTRIBUTE_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Event is one raw connection event. Fields not used by Kind are zero.
// Events are never mutated after they are published.
type Event struct {
	Kind Kind

	// Phase is set for KindPhaseChanged.
	Phase Phase

	// Services is the discovered tree for KindAttributesDiscovered.
	Services []*gatt.Service

	// Characteristic and AttributeID are set for attribute events.
	// AttributeID is in canonical form.
	Characteristic *gatt.Characteristic
	AttributeID    string

	// Value is the payload of read and changed events.
	Value []byte

	// Success reflects the reported status of discovery, read and write
	// events. Changed events are always successful.
	Success bool
	Status  gatt.Status

	// Log is a human-readable description.
	Log string
}

// Matches reports whether e is of kind k and concerns attribute id.
func (e Event) Matches(k Kind, id string) bool {
	return e.Kind == k && e.AttributeID == gatt.CanonicalID(id)
}

func startingConnection() Event {
	return Event{Kind: KindStartingConnection, Success: true, Log: "Connecting"}
}

func phaseChanged(p Phase) Event {
	return Event{
		Kind:    KindPhaseChanged,
		Phase:   p,
		Success: true,
		Log:     "Connection: " + p.String(),
	}
}

func attributesDiscovered(services []*gatt.Service, status gatt.Status) Event {
	return Event{
		Kind:     KindAttributesDiscovered,
		Services: slices.Clone(services),
		Success:  status.IsSuccess(),
		Status:   status,
		Log:      fmt.Sprintf("%d services discovered", len(services)),
	}
}

func attributeEvent(k Kind, c *gatt.Characteristic, value []byte, status gatt.Status) Event {
	id := gatt.CanonicalID(c.UUID)
	var verb string
	switch k {
	case KindAttributeRead:
		verb = "read"
	case KindAttributeWritten:
		verb = "write"
	default:
		verb = "changed"
	}
	return Event{
		Kind:           k,
		Characteristic: c,
		AttributeID:    id,
		Value:          slices.Clone(value),
		Success:        status.IsSuccess(),
		Status:         status,
		Log:            fmt.Sprintf("Characteristic %s: %s", verb, id),
	}
}
