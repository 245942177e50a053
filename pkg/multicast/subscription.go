package multicast

import (
	"context"
	"io"
	"sync"
)

// Subscription is one subscriber's view of a Hub.
type Subscription[T any] struct {
	hub *Hub[T]
	c   chan T

	mu       sync.Mutex
	queue    []T
	finished bool
	err      error

	signal   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newSubscription[T any](h *Hub[T]) *Subscription[T] {
	s := &Subscription[T]{
		hub:    h,
		c:      make(chan T),
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// C returns the delivery channel. It is closed when the hub terminates or
// the subscription is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.c
}

// Done is closed after C has been closed.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the hub failure once C is closed. It is nil after a normal
// completion or Close.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Next waits for the next value. It returns io.EOF when the stream
// completed, the hub failure when it failed, or ctx.Err().
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-s.c:
		if !ok {
			if err := s.Err(); err != nil {
				return zero, err
			}
			return zero, io.EOF
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close unsubscribes. Undelivered values are dropped. Safe to call more
// than once.
func (s *Subscription[T]) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.hub != nil {
			s.hub.unsubscribe(s)
		}
	})
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription[T]) finish(err error) {
	s.mu.Lock()
	if !s.finished {
		s.finished = true
		s.err = err
	}
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription[T]) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.done)
	defer close(s.c)

	var zero T
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			finished := s.finished
			s.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-s.signal:
				continue
			case <-s.stop:
				return
			}
		}
		v := s.queue[0]
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.c <- v:
		case <-s.stop:
			return
		}
	}
}

// Drain reads values until the subscription ends and returns them with the
// terminal error (nil after a normal completion).
func Drain[T any](ctx context.Context, s *Subscription[T]) ([]T, error) {
	var out []T
	for {
		v, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
