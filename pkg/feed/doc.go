// Package feed publishes explorer state to websocket clients as JSON.
//
// A client receives a snapshot message with the scan state and every
// registered session, then one message per explorer event. Slow clients
// are disconnected rather than buffered without bound.
package feed
