package multicast

import (
	"sync"
	"time"
)

// Options configures a Hub.
type Options struct {
	// OnStart is called once, when the first subscriber arrives.
	OnStart func()

	// OnIdle is called when the subscriber count returns to zero and stays
	// there for Grace. A new subscription within Grace cancels it.
	OnIdle func()

	// Grace delays OnIdle. Zero calls OnIdle synchronously from the
	// unsubscribing goroutine.
	Grace time.Duration

	// Replay delivers the most recently published value to new subscribers.
	Replay bool
}

// Hub is a multicast stream with reference-counted lifecycle.
type Hub[T any] struct {
	opts Options

	mu        sync.Mutex
	subs      map[*Subscription[T]]struct{}
	started   bool
	done      bool
	err       error
	latest    T
	hasLatest bool
	idleGen   uint64
	doneCh    chan struct{}
}

// NewHub creates a hub with the given options.
func NewHub[T any](opts Options) *Hub[T] {
	return &Hub[T]{
		opts:   opts,
		subs:   make(map[*Subscription[T]]struct{}),
		doneCh: make(chan struct{}),
	}
}

// Subscribe registers a new subscriber. Subscribing to a terminated hub
// returns a subscription that is already closed with the hub's result.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	sub := newSubscription(h)

	h.mu.Lock()
	if h.done {
		err := h.err
		h.mu.Unlock()
		sub.finish(err)
		return sub
	}

	// Cancel a pending idle timer.
	h.idleGen++

	if h.opts.Replay && h.hasLatest {
		sub.push(h.latest)
	}
	h.subs[sub] = struct{}{}
	start := !h.started
	h.started = true
	h.mu.Unlock()

	if start && h.opts.OnStart != nil {
		h.opts.OnStart()
	}
	return sub
}

// Publish delivers v to every current subscriber.
// It returns false once the hub has terminated.
func (h *Hub[T]) Publish(v T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return false
	}
	if h.opts.Replay {
		h.latest = v
		h.hasLatest = true
	}
	for sub := range h.subs {
		sub.push(v)
	}
	return true
}

// Latest returns the last published value when Replay is enabled.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.hasLatest
}

// Complete terminates the hub normally. Queued values are still delivered.
func (h *Hub[T]) Complete() bool {
	return h.terminate(nil)
}

// Fail terminates the hub with err.
func (h *Hub[T]) Fail(err error) bool {
	return h.terminate(err)
}

// Done is closed when the hub terminates.
func (h *Hub[T]) Done() <-chan struct{} {
	return h.doneCh
}

// Err returns the failure the hub terminated with, if any.
func (h *Hub[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Terminated returns true after Complete or Fail.
func (h *Hub[T]) Terminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Subscribers returns the current subscriber count.
func (h *Hub[T]) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub[T]) terminate(err error) bool {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return false
	}
	h.done = true
	h.err = err
	h.idleGen++
	subs := h.subs
	h.subs = make(map[*Subscription[T]]struct{})
	close(h.doneCh)
	h.mu.Unlock()

	for sub := range subs {
		sub.finish(err)
	}
	return true
}

func (h *Hub[T]) unsubscribe(sub *Subscription[T]) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub)

	if len(h.subs) > 0 || h.done || h.opts.OnIdle == nil {
		h.mu.Unlock()
		return
	}

	h.idleGen++
	gen := h.idleGen
	grace := h.opts.Grace
	h.mu.Unlock()

	if grace <= 0 {
		h.opts.OnIdle()
		return
	}
	time.AfterFunc(grace, func() { h.fireIdle(gen) })
}

func (h *Hub[T]) fireIdle(gen uint64) {
	h.mu.Lock()
	ok := gen == h.idleGen && len(h.subs) == 0 && !h.done
	h.mu.Unlock()

	if ok {
		h.opts.OnIdle()
	}
}
