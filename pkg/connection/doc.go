// Package connection manages the lifecycle of one physical link to a
// peripheral.
//
// A Manager turns the callback-driven gatt primitive into a single shared
// event stream. The stream is created lazily by the first subscriber and
// memoized, so concurrent Connect and Observe calls share one physical
// connection attempt.
//
// # Lifecycle
//
//	Idle -> Connecting -> Connected -> [Disconnecting] -> Disconnected -> Idle
//
// Every transition is reported by the primitive; the manager never assumes
// a phase it has not observed. A Disconnected phase completes the stream and
// releases the handle, so the next Connect starts a new attempt.
//
// # Failures
//
// A non-success status reported outside a disconnect transition terminates
// the stream with a *StatusError (errors.Is ErrConnectionFailed). There is
// no automatic retry.
//
// # Requests
//
// ReadAttribute, WriteAttribute and SetNotification fail immediately with
// ErrNotConnected when no handle is assigned, and with ErrOperationRejected
// when the primitive refuses the request. Results arrive as stream events.
package connection
