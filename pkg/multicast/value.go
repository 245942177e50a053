package multicast

import (
	"context"
	"errors"
	"sync"
)

// ErrReset is returned by Value.Wait when the value was reset after the
// wait started.
var ErrReset = errors.New("value reset")

// Value is a versioned cell with change notification.
type Value[T any] struct {
	mu      sync.Mutex
	v       T
	gen     uint64
	changed chan struct{}
}

// NewValue creates a Value holding v at generation 0.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v, changed: make(chan struct{})}
}

// Current returns the value and its generation.
func (x *Value[T]) Current() (T, uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.v, x.gen
}

// Load returns the current value.
func (x *Value[T]) Load() T {
	v, _ := x.Current()
	return v
}

// Set stores v if gen is still current.
func (x *Value[T]) Set(gen uint64, v T) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if gen != x.gen {
		return false
	}
	x.v = v
	x.notifyLocked()
	return true
}

// Reset stores v under a new generation and returns it.
func (x *Value[T]) Reset(v T) uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.gen++
	x.v = v
	x.notifyLocked()
	return x.gen
}

// ResetIf resets to v only if gen is still current.
func (x *Value[T]) ResetIf(gen uint64, v T) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if gen != x.gen {
		return false
	}
	x.gen++
	x.v = v
	x.notifyLocked()
	return true
}

// Wait blocks until match accepts the value. It fails with ErrReset if the
// generation moves past gen, or with ctx.Err().
func (x *Value[T]) Wait(ctx context.Context, gen uint64, match func(T) bool) (T, error) {
	for {
		x.mu.Lock()
		v, g, ch := x.v, x.gen, x.changed
		x.mu.Unlock()

		if g != gen {
			return v, ErrReset
		}
		if match(v) {
			return v, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

func (x *Value[T]) notifyLocked() {
	close(x.changed)
	x.changed = make(chan struct{})
}
