package gatt

import "fmt"

// Status is the result code carried by connection callbacks.
type Status uint16

const (
	// StatusSuccess indicates the operation completed.
	StatusSuccess Status = 0x0000

	// StatusReadNotPermitted is reported for reads of write-only characteristics.
	StatusReadNotPermitted Status = 0x0002

	// StatusWriteNotPermitted is reported for writes to read-only characteristics.
	StatusWriteNotPermitted Status = 0x0003

	// StatusFailure is the generic failure code.
	StatusFailure Status = 0x0101
)

// IsSuccess returns true for StatusSuccess.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusReadNotPermitted:
		return "READ_NOT_PERMITTED"
	case StatusWriteNotPermitted:
		return "WRITE_NOT_PERMITTED"
	case StatusFailure:
		return "FAILURE"
	default:
		return fmt.Sprintf("STATUS(0x%04x)", uint16(s))
	}
}

// ProfileState is the link state reported by OnConnectionStateChange.
type ProfileState uint8

const (
	StateDisconnected  ProfileState = 0
	StateConnecting    ProfileState = 1
	StateConnected     ProfileState = 2
	StateDisconnecting ProfileState = 3
)

// String returns the state name.
func (s ProfileState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}

// Property is the characteristic properties bitmask.
type Property uint8

const (
	PropBroadcast            Property = 0x01
	PropRead                 Property = 0x02
	PropWriteWithoutResponse Property = 0x04
	PropWrite                Property = 0x08
	PropNotify               Property = 0x10
	PropIndicate             Property = 0x20
)

// Has returns true if all bits of p2 are set.
func (p Property) Has(p2 Property) bool {
	return p&p2 == p2
}

// Readable returns true if the characteristic supports reads.
func (p Property) Readable() bool { return p.Has(PropRead) }

// Writable returns true if the characteristic accepts writes with or without response.
func (p Property) Writable() bool { return p&(PropWrite|PropWriteWithoutResponse) != 0 }

// Notifiable returns true if the characteristic supports notifications.
func (p Property) Notifiable() bool { return p.Has(PropNotify) }

// Indicatable returns true if the characteristic supports indications.
func (p Property) Indicatable() bool { return p.Has(PropIndicate) }

// String returns a compact flag list such as "read|notify".
func (p Property) String() string {
	names := []struct {
		bit  Property
		name string
	}{
		{PropBroadcast, "broadcast"},
		{PropRead, "read"},
		{PropWriteWithoutResponse, "write-nr"},
		{PropWrite, "write"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	}
	s := ""
	for _, n := range names {
		if p&n.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n.name
	}
	if s == "" {
		return "none"
	}
	return s
}

// ParseProperty parses a single property name as produced by String.
func ParseProperty(name string) (Property, error) {
	switch name {
	case "broadcast":
		return PropBroadcast, nil
	case "read":
		return PropRead, nil
	case "write-nr", "write-without-response":
		return PropWriteWithoutResponse, nil
	case "write":
		return PropWrite, nil
	case "notify":
		return PropNotify, nil
	case "indicate":
		return PropIndicate, nil
	default:
		return 0, fmt.Errorf("unknown property: %s", name)
	}
}

// Service is a group of characteristics exposed by a peripheral.
// Values handed to callbacks are treated as read-only.
type Service struct {
	UUID            string
	Characteristics []*Characteristic
}

// Characteristic is a single attribute of a service.
type Characteristic struct {
	UUID        string
	ServiceUUID string
	Properties  Property

	// Handle is the backend's attribute handle, zero when unknown.
	Handle uint16
}
