package connection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/log"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// Config configures a Manager.
type Config struct {
	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trail receives every event and request. If nil, nothing is recorded.
	Trail log.Logger
}

// Manager owns the connection to one peripheral.
type Manager struct {
	peripheral gatt.Peripheral
	logger     *slog.Logger
	trail      log.Logger

	mu     sync.Mutex
	stream *connStream
}

// connStream is one memoized connection attempt. Fields other than hub and
// id are guarded by Manager.mu.
type connStream struct {
	id  string
	hub *multicast.Hub[Event]

	handle    gatt.Handle
	observe   bool
	connected bool
	closed    bool
	phase     PhaseState
}

// NewManager creates a manager for p. No connection is attempted until the
// first Connect or Observe.
func NewManager(p gatt.Peripheral, cfg Config) *Manager {
	return &Manager{
		peripheral: p,
		logger:     cfg.Logger,
		trail:      log.OrNoop(cfg.Trail),
	}
}

// Address returns the peripheral address.
func (m *Manager) Address() string {
	return m.peripheral.Address()
}

// Name returns the advertised peripheral name.
func (m *Manager) Name() string {
	return m.peripheral.Name()
}

// Connected returns true while the current stream has reached Connected and
// not yet ended.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil && m.stream.connected && !m.stream.closed
}

// ConnectionID returns the identifier of the current stream, or "".
func (m *Manager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return ""
	}
	return m.stream.id
}

// Observe subscribes to the shared event stream, opening it if needed.
// Once a stream has been observed, it disconnects the link when its last
// subscriber leaves.
func (m *Manager) Observe() *multicast.Subscription[Event] {
	_, sub := m.subscribe(true)
	return sub
}

// Connect opens the connection, or joins the one in progress, and returns
// when the Connected phase is reached.
func (m *Manager) Connect(ctx context.Context) error {
	cs, sub := m.subscribe(false)
	defer sub.Close()

	m.mu.Lock()
	connected := cs.connected && !cs.closed
	m.mu.Unlock()
	if connected {
		return nil
	}

	for {
		ev, err := sub.Next(ctx)
		if err == io.EOF {
			return ErrConnectionClosed
		}
		if err != nil {
			return err
		}
		if ev.Kind != KindPhaseChanged {
			continue
		}
		switch ev.Phase.State {
		case PhaseConnected:
			return nil
		case PhaseDisconnected:
			return ErrConnectionClosed
		}
	}
}

// Disconnect tears down the link and ends the stream. Calling it without a
// stream does nothing.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cs := m.stream
	if cs == nil {
		m.mu.Unlock()
		return
	}
	m.stream = nil
	h := m.detachLocked(cs)
	m.mu.Unlock()

	m.debugLog("Disconnecting", "address", m.Address(), "conn_id", cs.id)
	if h != nil {
		h.Disconnect()
		h.Close()
	}
	m.recordState(cs, "", "CLOSED", "disconnect requested")
	cs.hub.Complete()
}

// ReadAttribute requests a read of c. The value arrives as a
// KindAttributeRead event.
func (m *Manager) ReadAttribute(c *gatt.Characteristic) error {
	cs, h := m.current()
	if h == nil {
		return ErrNotConnected
	}
	ok := h.ReadCharacteristic(c)
	m.recordRequest(cs, &log.AttributeEvent{Op: log.OpRead, AttributeID: gatt.CanonicalID(c.UUID), Success: ok})
	if !ok {
		return fmt.Errorf("%w: read %s", ErrOperationRejected, c.UUID)
	}
	return nil
}

// WriteAttribute requests a write of value to c. Completion arrives as a
// KindAttributeWritten event.
func (m *Manager) WriteAttribute(c *gatt.Characteristic, value []byte) error {
	cs, h := m.current()
	if h == nil {
		return ErrNotConnected
	}
	ok := h.WriteCharacteristic(c, value)
	m.recordRequest(cs, &log.AttributeEvent{Op: log.OpWrite, AttributeID: gatt.CanonicalID(c.UUID), Value: value, Success: ok})
	if !ok {
		return fmt.Errorf("%w: write %s", ErrOperationRejected, c.UUID)
	}
	return nil
}

// SetNotification enables or disables value-change events for c.
func (m *Manager) SetNotification(c *gatt.Characteristic, enable bool) error {
	cs, h := m.current()
	if h == nil {
		return ErrNotConnected
	}
	ok := h.SetNotification(c, enable)
	m.recordRequest(cs, &log.AttributeEvent{Op: log.OpNotify, AttributeID: gatt.CanonicalID(c.UUID), Enable: enable, Success: ok})
	if !ok {
		return fmt.Errorf("%w: set notification %s", ErrOperationRejected, c.UUID)
	}
	return nil
}

// DiscoverServices requests a new service discovery. The result arrives as
// a KindAttributesDiscovered event.
func (m *Manager) DiscoverServices() error {
	cs, h := m.current()
	if h == nil {
		return ErrNotConnected
	}
	ok := h.DiscoverServices()
	m.recordRequest(cs, &log.AttributeEvent{Op: log.OpDiscover, Success: ok})
	if !ok {
		return fmt.Errorf("%w: discover services", ErrOperationRejected)
	}
	return nil
}

func (m *Manager) subscribe(observe bool) (*connStream, *multicast.Subscription[Event]) {
	m.mu.Lock()
	cs := m.stream
	if cs == nil {
		cs = m.newStream()
		m.stream = cs
	}
	if observe {
		cs.observe = true
	}
	m.mu.Unlock()

	return cs, cs.hub.Subscribe()
}

func (m *Manager) newStream() *connStream {
	cs := &connStream{id: uuid.NewString()}
	cs.hub = multicast.NewHub[Event](multicast.Options{
		OnStart: func() { m.open(cs) },
		OnIdle:  func() { m.idle(cs) },
	})
	return cs
}

// open starts the physical connection for cs. It runs once, on the first
// subscription.
func (m *Manager) open(cs *connStream) {
	m.debugLog("Connecting", "address", m.Address(), "conn_id", cs.id)
	m.emit(cs, startingConnection())

	h, err := m.peripheral.Connect(&sink{m: m, cs: cs})
	if err != nil {
		m.fail(cs, fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		return
	}

	m.mu.Lock()
	if cs.closed {
		m.mu.Unlock()
		h.Disconnect()
		h.Close()
		return
	}
	if cs.handle == nil {
		cs.handle = h
	}
	m.mu.Unlock()
}

func (m *Manager) idle(cs *connStream) {
	m.mu.Lock()
	current := m.stream == cs && cs.observe
	m.mu.Unlock()

	if current {
		m.debugLog("Last observer left, disconnecting", "address", m.Address())
		m.Disconnect()
	}
}

// current returns the live stream and its handle, if any.
func (m *Manager) current() (*connStream, gatt.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil || m.stream.closed {
		return nil, nil
	}
	return m.stream, m.stream.handle
}

// detachLocked marks cs closed and returns its handle for release.
func (m *Manager) detachLocked(cs *connStream) gatt.Handle {
	if m.stream == cs {
		m.stream = nil
	}
	cs.closed = true
	h := cs.handle
	cs.handle = nil
	return h
}

// fail terminates cs with err. A handle not yet adopted is released by open.
func (m *Manager) fail(cs *connStream, err error) {
	m.mu.Lock()
	if cs.closed {
		m.mu.Unlock()
		return
	}
	h := m.detachLocked(cs)
	m.mu.Unlock()

	if h != nil {
		h.Disconnect()
		h.Close()
	}

	m.debugLog("Connection failed", "address", m.Address(), "error", err)
	m.trail.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: cs.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryError,
		Address:      m.Address(),
		Error:        &log.ErrorEventData{Layer: log.LayerRadio, Message: err.Error(), Context: "connection"},
	})
	cs.hub.Fail(err)
}

// finish ends cs after a Disconnected phase.
func (m *Manager) finish(cs *connStream) {
	m.mu.Lock()
	if cs.closed {
		m.mu.Unlock()
		return
	}
	h := m.detachLocked(cs)
	m.mu.Unlock()

	if h != nil {
		h.Close()
	}
	cs.hub.Complete()
}

func (m *Manager) emit(cs *connStream, ev Event) {
	m.record(cs, ev)
	cs.hub.Publish(ev)
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

// sink adapts gatt callbacks for one stream. Callbacks for a stream that has
// ended are dropped by the terminated hub.
type sink struct {
	m  *Manager
	cs *connStream
}

func (s *sink) OnConnectionStateChange(h gatt.Handle, status gatt.Status, state gatt.ProfileState) {
	m, cs := s.m, s.cs

	if !status.IsSuccess() && state != gatt.StateDisconnected {
		m.fail(cs, &StatusError{Status: status, State: state})
		return
	}

	switch state {
	case gatt.StateConnecting:
		m.emit(cs, phaseChanged(Phase{State: PhaseConnecting}))

	case gatt.StateConnected:
		m.mu.Lock()
		if cs.closed {
			m.mu.Unlock()
			return
		}
		if cs.handle == nil {
			cs.handle = h
		}
		m.mu.Unlock()

		started := h.DiscoverServices()
		m.recordRequest(cs, &log.AttributeEvent{Op: log.OpDiscover, Success: started})

		m.mu.Lock()
		cs.connected = true
		m.mu.Unlock()
		m.emit(cs, phaseChanged(Phase{State: PhaseConnected, DiscoveryStarted: started}))

	case gatt.StateDisconnecting:
		m.emit(cs, phaseChanged(Phase{State: PhaseDisconnecting}))

	case gatt.StateDisconnected:
		m.emit(cs, phaseChanged(Phase{State: PhaseDisconnected}))
		m.finish(cs)

	default:
		m.debugLog("Ignoring unknown connection state", "address", m.Address(), "state", state.String())
	}
}

func (s *sink) OnServicesDiscovered(_ gatt.Handle, services []*gatt.Service, status gatt.Status) {
	s.m.emit(s.cs, attributesDiscovered(services, status))
}

func (s *sink) OnCharacteristicRead(_ gatt.Handle, c *gatt.Characteristic, value []byte, status gatt.Status) {
	s.m.emit(s.cs, attributeEvent(KindAttributeRead, c, value, status))
}

func (s *sink) OnCharacteristicWrite(_ gatt.Handle, c *gatt.Characteristic, status gatt.Status) {
	s.m.emit(s.cs, attributeEvent(KindAttributeWritten, c, nil, status))
}

func (s *sink) OnCharacteristicChanged(_ gatt.Handle, c *gatt.Characteristic, value []byte) {
	s.m.emit(s.cs, attributeEvent(KindAttributeChanged, c, value, gatt.StatusSuccess))
}

var _ gatt.Callback = (*sink)(nil)
