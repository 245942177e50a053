// Package wire defines the CBOR message format of the bridge protocol.
//
// A bridge exposes remote peripherals to a central over a length-prefixed
// stream. Every frame carries one Message encoded as CBOR with integer keys.
//
// # Message Classes
//
// The Type field selects the class:
//   - Request: central to bridge (List, Connect, Discover, Read, Write,
//     Notify, Disconnect, Release). Carries a non-zero MessageID.
//   - Response: bridge to central (Ack, Devices). Echoes the MessageID.
//   - Event: bridge to central, MessageID 0. Mirrors one gatt callback of
//     the link named by Link.
//   - Control: Ping, Pong and Close, used by the transport.
//
// A request is acknowledged as soon as the bridge has handed it to its
// peripheral. The outcome arrives later as an event, exactly like a local
// gatt callback.
package wire
