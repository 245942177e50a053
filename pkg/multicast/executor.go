package multicast

import "sync"

// Executor runs submitted functions one at a time in submission order on a
// dedicated goroutine. Submit never blocks, so a running function may
// submit more work without deadlocking.
type Executor struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	signal chan struct{}
	done   chan struct{}
}

// NewExecutor starts an executor.
func NewExecutor() *Executor {
	e := &Executor{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

// Submit queues fn. It returns false after Close.
func (e *Executor) Submit(fn func()) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting work. Queued functions still run.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// Done is closed after Close once the queue has drained.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			<-e.signal
			continue
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		fn()
	}
}
