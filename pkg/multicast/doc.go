// Package multicast provides the stream plumbing shared by the connection,
// session and scan layers.
//
// # Hub
//
// A Hub fans values out to any number of subscribers. Delivery is ordered
// and lossless per subscriber: each subscription owns an unbounded queue
// drained by its own goroutine, so a slow reader never stalls the
// publisher or other readers.
//
// Lifecycle hooks turn a Hub into a reference-counted hot stream:
//
//	hub := multicast.NewHub[Event](multicast.Options{
//	    OnStart: startRadio, // first subscriber
//	    OnIdle:  stopRadio,  // last subscriber gone for Grace
//	    Grace:   500 * time.Millisecond,
//	})
//
// A hub terminates once, with Complete or Fail. Subscribers see the channel
// close; Next returns io.EOF after Complete and the failure otherwise.
//
// # Value
//
// Value is a versioned cell for "last known state" with waiters. Reset bumps
// the generation, which releases every waiter started against an older
// generation with ErrReset.
package multicast
