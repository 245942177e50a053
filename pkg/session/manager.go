package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oblakr24/blescanner/pkg/connection"
	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/log"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// Default timeouts.
const (
	DefaultLookupTimeout   = 5 * time.Second
	DefaultResponseTimeout = 10 * time.Second
)

// UnknownDeviceName is shown for peripherals that advertise no name.
const UnknownDeviceName = "Unknown device"

// Config configures session managers.
type Config struct {
	// LookupTimeout bounds the wait for an attribute to be discovered.
	LookupTimeout time.Duration

	// ResponseTimeout bounds the wait for a response event.
	ResponseTimeout time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trail records raw events, requests and correlation failures.
	Trail log.Logger
}

func (c Config) withDefaults() Config {
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = DefaultLookupTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	return c
}

// Manager is the session with one device.
type Manager struct {
	conn   *connection.Manager
	config Config
	logger *slog.Logger
	trail  log.Logger

	// state is the last known snapshot. Its generation changes whenever a
	// run starts or ends, which cancels pending waits.
	state *multicast.Value[Snapshot]

	mu     sync.Mutex
	run    *run
	pinned bool
}

// run is one pass over a connection stream.
type run struct {
	gen uint64
	hub *multicast.Hub[Snapshot]
	sub *multicast.Subscription[connection.Event]

	// ready is closed once sub is set.
	ready chan struct{}

	// mu orders state updates with their publication.
	mu sync.Mutex
}

// New creates a session for p.
func New(p gatt.Peripheral, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		conn:   connection.NewManager(p, connection.Config{Logger: cfg.Logger, Trail: cfg.Trail}),
		config: cfg,
		logger: cfg.Logger,
		trail:  log.OrNoop(cfg.Trail),
		state:  multicast.NewValue(Snapshot{}),
	}
}

// Address returns the device address.
func (m *Manager) Address() string {
	return m.conn.Address()
}

// Name returns the advertised name, or UnknownDeviceName.
func (m *Manager) Name() string {
	if n := m.conn.Name(); n != "" {
		return n
	}
	return UnknownDeviceName
}

// Last returns the last known snapshot.
func (m *Manager) Last() Snapshot {
	return m.state.Load()
}

// Observe subscribes to the snapshot stream, opening the connection if
// needed. The latest snapshot is delivered first. Without Connect, the
// session disconnects when the last observer leaves.
func (m *Manager) Observe() *multicast.Subscription[Snapshot] {
	return m.ensureRun(false, true)
}

// Connect opens the connection and waits for the Connected phase. It returns
// immediately if the last snapshot is connected. The session stays open
// until Disconnect.
func (m *Manager) Connect(ctx context.Context) error {
	m.ensureRun(true, false)
	if m.state.Load().Connected {
		return nil
	}
	return m.conn.Connect(ctx)
}

// Disconnect resets the snapshot and closes the connection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	r := m.run
	m.run = nil
	m.pinned = false
	m.mu.Unlock()

	m.debugLog("Disconnect", "address", m.Address())
	if r != nil {
		r.mu.Lock()
		m.state.Reset(Snapshot{})
		r.hub.Publish(Snapshot{})
		r.mu.Unlock()
	} else {
		m.state.Reset(Snapshot{})
	}

	m.conn.Disconnect()
	if r != nil {
		r.release()
	}
}

// ensureRun starts a run if none is active. When observe is set, the
// returned subscription is registered before the run publishes anything
// beyond its initial empty snapshot. The connection stream is opened
// outside m.mu since the peripheral may block while connecting; later
// callers wait for it without holding m.mu.
func (m *Manager) ensureRun(pin, observe bool) *multicast.Subscription[Snapshot] {
	m.mu.Lock()
	if pin {
		m.pinned = true
	}

	r := m.run
	fresh := r == nil
	if fresh {
		r = &run{ready: make(chan struct{})}
		r.hub = multicast.NewHub[Snapshot](multicast.Options{
			Replay: true,
			OnIdle: func() { m.idle(r) },
		})
		r.gen = m.state.Reset(Snapshot{})
		r.hub.Publish(Snapshot{})
		m.run = r
	}

	var sub *multicast.Subscription[Snapshot]
	if observe {
		sub = r.hub.Subscribe()
	}
	m.mu.Unlock()

	if !fresh {
		<-r.ready
		return sub
	}
	r.sub = m.conn.Observe()
	close(r.ready)
	go m.pump(r)
	return sub
}

// release drops the run's hold on the connection stream.
func (r *run) release() {
	<-r.ready
	r.sub.Close()
}

// idle ends an unpinned run once its last observer has left.
func (m *Manager) idle(r *run) {
	m.mu.Lock()
	stop := m.run == r && !m.pinned
	if stop {
		m.run = nil
	}
	m.mu.Unlock()

	if stop {
		m.debugLog("Last observer left", "address", m.Address())
		r.release()
	}
}

func (m *Manager) pump(r *run) {
	var snap Snapshot
	for {
		ev, err := r.sub.Next(context.Background())
		if err != nil {
			m.end(r, snap, err)
			return
		}

		snap = Accumulate(snap, ev, time.Now())

		r.mu.Lock()
		if m.state.Set(r.gen, snap) {
			r.hub.Publish(snap)
		}
		r.mu.Unlock()
	}
}

// end finishes r after its connection stream ended. The history is kept,
// the connection flags are cleared and pending waits are cancelled.
func (m *Manager) end(r *run, last Snapshot, err error) {
	final := last
	final.Connecting = false
	final.Connected = false

	r.mu.Lock()
	if m.state.ResetIf(r.gen, final) && (last.Connected || last.Connecting) {
		r.hub.Publish(final)
	}
	r.mu.Unlock()

	m.mu.Lock()
	if m.run == r {
		m.run = nil
		m.pinned = false
	}
	m.mu.Unlock()

	if err == io.EOF {
		r.hub.Complete()
		return
	}
	m.debugLog("Session stream failed", "address", m.Address(), "error", err)
	r.hub.Fail(err)
}

func (m *Manager) active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run != nil
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
