// Package transport carries bridge messages over TCP.
//
// The transport layer handles:
//   - Length-prefixed message framing
//   - Keep-alive ping/pong for connection liveness
//   - Dialing with exponential backoff
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   wire.Message (CBOR)          │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Keep-Alive
//
// The dialing side pings; the accepting side answers. Defaults:
//   - Ping interval: 10 seconds
//   - Pong timeout: 3 seconds
//   - Max missed pongs: 3
package transport
