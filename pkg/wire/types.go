package wire

import "fmt"

// Type identifies a bridge message.
type Type uint8

const (
	TypeList       Type = 1
	TypeConnect    Type = 2
	TypeDiscover   Type = 3
	TypeRead       Type = 4
	TypeWrite      Type = 5
	TypeNotify     Type = 6
	TypeDisconnect Type = 7
	TypeRelease    Type = 8

	TypeAck     Type = 16
	TypeDevices Type = 17

	TypeStateChanged       Type = 32
	TypeServicesDiscovered Type = 33
	TypeCharRead           Type = 34
	TypeCharWritten        Type = 35
	TypeCharChanged        Type = 36

	TypePing  Type = 48
	TypePong  Type = 49
	TypeClose Type = 50
)

// Class groups message types.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassRequest
	ClassResponse
	ClassEvent
	ClassControl
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassRequest:
		return "REQUEST"
	case ClassResponse:
		return "RESPONSE"
	case ClassEvent:
		return "EVENT"
	case ClassControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// Class returns the class of t.
func (t Type) Class() Class {
	switch {
	case t >= TypeList && t <= TypeRelease:
		return ClassRequest
	case t == TypeAck || t == TypeDevices:
		return ClassResponse
	case t >= TypeStateChanged && t <= TypeCharChanged:
		return ClassEvent
	case t >= TypePing && t <= TypeClose:
		return ClassControl
	default:
		return ClassUnknown
	}
}

// linked reports whether t refers to an open link.
func (t Type) linked() bool {
	switch t {
	case TypeDiscover, TypeRead, TypeWrite, TypeNotify, TypeDisconnect, TypeRelease:
		return true
	}
	return t.Class() == ClassEvent
}

// characteristic reports whether t names a characteristic.
func (t Type) characteristic() bool {
	switch t {
	case TypeRead, TypeWrite, TypeNotify, TypeCharRead, TypeCharWritten, TypeCharChanged:
		return true
	}
	return false
}

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeList:
		return "LIST"
	case TypeConnect:
		return "CONNECT"
	case TypeDiscover:
		return "DISCOVER"
	case TypeRead:
		return "READ"
	case TypeWrite:
		return "WRITE"
	case TypeNotify:
		return "NOTIFY"
	case TypeDisconnect:
		return "DISCONNECT"
	case TypeRelease:
		return "RELEASE"
	case TypeAck:
		return "ACK"
	case TypeDevices:
		return "DEVICES"
	case TypeStateChanged:
		return "STATE_CHANGED"
	case TypeServicesDiscovered:
		return "SERVICES_DISCOVERED"
	case TypeCharRead:
		return "CHAR_READ"
	case TypeCharWritten:
		return "CHAR_WRITTEN"
	case TypeCharChanged:
		return "CHAR_CHANGED"
	case TypePing:
		return "PING"
	case TypePong:
		return "PONG"
	case TypeClose:
		return "CLOSE"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}
