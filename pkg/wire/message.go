package wire

import (
	"errors"
	"fmt"
)

// EventMessageID is the message ID carried by every event.
const EventMessageID uint32 = 0

// Validation errors.
var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownType    = errors.New("unknown message type")
)

// Message is one bridge frame.
//
// CBOR encoding:
//
//	{
//	  1: messageId,       // uint32, 0 for events
//	  2: type,            // uint8
//	  3: link,            // string, bridge link ID
//	  4: address,         // string
//	  5: characteristic,  // string, canonical ID
//	  6: value,           // bytes
//	  7: enable,          // bool
//	  8: status,          // uint16, gatt status
//	  9: state,           // uint8, gatt profile state
//	  10: services,       // array of Service
//	  11: devices,        // array of Device
//	  12: accepted,       // bool
//	  13: error,          // string
//	  14: sequence        // uint32, control messages
//	}
type Message struct {
	MessageID      uint32    `cbor:"1,keyasint"`
	Type           Type      `cbor:"2,keyasint"`
	Link           string    `cbor:"3,keyasint,omitempty"`
	Address        string    `cbor:"4,keyasint,omitempty"`
	Characteristic string    `cbor:"5,keyasint,omitempty"`
	Value          []byte    `cbor:"6,keyasint,omitempty"`
	Enable         bool      `cbor:"7,keyasint,omitempty"`
	Status         uint16    `cbor:"8,keyasint,omitempty"`
	State          uint8     `cbor:"9,keyasint,omitempty"`
	Services       []Service `cbor:"10,keyasint,omitempty"`
	Devices        []Device  `cbor:"11,keyasint,omitempty"`
	Accepted       bool      `cbor:"12,keyasint,omitempty"`
	Error          string    `cbor:"13,keyasint,omitempty"`
	Sequence       uint32    `cbor:"14,keyasint,omitempty"`
}

// Validate checks the fields required by the message type.
func (m *Message) Validate() error {
	class := m.Type.Class()
	switch class {
	case ClassUnknown:
		return fmt.Errorf("%w: %d", ErrUnknownType, m.Type)
	case ClassRequest, ClassResponse:
		if m.MessageID == EventMessageID {
			return fmt.Errorf("%w: %s requires a message ID", ErrInvalidMessage, m.Type)
		}
	case ClassEvent:
		if m.MessageID != EventMessageID {
			return fmt.Errorf("%w: event with message ID %d", ErrInvalidMessage, m.MessageID)
		}
	}
	if m.Type.linked() && m.Link == "" {
		return fmt.Errorf("%w: %s requires a link", ErrInvalidMessage, m.Type)
	}
	if m.Type.characteristic() && m.Characteristic == "" {
		return fmt.Errorf("%w: %s requires a characteristic", ErrInvalidMessage, m.Type)
	}
	if m.Type == TypeConnect && m.Address == "" {
		return fmt.Errorf("%w: CONNECT requires an address", ErrInvalidMessage)
	}
	return nil
}

// Class returns the message class.
func (m *Message) Class() Class {
	return m.Type.Class()
}

// Ack builds the acknowledgement of req. A nil err accepts it.
func Ack(req *Message, err error) *Message {
	ack := &Message{MessageID: req.MessageID, Type: TypeAck, Link: req.Link, Accepted: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	return ack
}
