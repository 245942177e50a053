// Package session builds the per-device session engine on top of a
// connection.Manager.
//
// # Snapshots
//
// Every raw connection event is folded into an immutable Snapshot by
// Accumulate. A Snapshot carries the connection flags, the discovered
// attribute groups and the complete ordered event history, so the latest
// snapshot determines everything the session has seen. Snapshots are
// published to observers one per event.
//
// # Correlation
//
// Requests are addressed by attribute identifier. A request first waits for
// the attribute to appear in the snapshot (discovery may still be running),
// then issues the low-level request and waits for the next matching response
// event. Only events appended after the request was issued can satisfy it.
//
// # Registry
//
// Registry keeps one Manager per device address so repeated lookups share
// connection state.
package session
