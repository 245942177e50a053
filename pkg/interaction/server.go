package interaction

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/wire"
)

// Server errors, reported to the client in the Ack.
var (
	ErrUnknownPeripheral     = errors.New("unknown peripheral")
	ErrUnknownLink           = errors.New("unknown link")
	ErrUnknownCharacteristic = errors.New("unknown characteristic")
	ErrRejected              = errors.New("rejected by peripheral")
	ErrUnsupportedRequest    = errors.New("unsupported request")
)

// Sender sends a message to one peer.
type Sender interface {
	Send(m *wire.Message) error
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Directory provides the exposed peripherals.
	Directory Directory

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Server executes bridge requests against local peripherals.
type Server struct {
	directory Directory
	logger    *slog.Logger

	mu    sync.Mutex
	links map[string]*link
}

// link is one open peripheral connection owned by a peer.
type link struct {
	id    string
	peer  Sender
	chars map[string]*gatt.Characteristic

	mu     sync.Mutex
	ready  bool
	queued []*wire.Message
	handle gatt.Handle
}

// NewServer creates a server.
func NewServer(config ServerConfig) *Server {
	return &Server{
		directory: config.Directory,
		logger:    config.Logger,
		links:     make(map[string]*link),
	}
}

// Handle processes one request from peer and sends the reply.
func (s *Server) Handle(peer Sender, m *wire.Message) {
	if m.Class() != wire.ClassRequest {
		s.debugLog("Ignoring non-request message", "type", m.Type)
		return
	}

	switch m.Type {
	case wire.TypeList:
		peer.Send(&wire.Message{MessageID: m.MessageID, Type: wire.TypeDevices, Devices: s.directory.Devices()})
	case wire.TypeConnect:
		s.handleConnect(peer, m)
	case wire.TypeRelease:
		l, err := s.link(m.Link)
		if err == nil {
			s.release(l)
		}
		peer.Send(wire.Ack(m, err))
	default:
		peer.Send(wire.Ack(m, s.handleLinked(m)))
	}
}

// Release closes every link owned by peer. Call it when the peer
// disconnects.
func (s *Server) Release(peer Sender) {
	s.mu.Lock()
	var owned []*link
	for _, l := range s.links {
		if l.peer == peer {
			owned = append(owned, l)
		}
	}
	s.mu.Unlock()

	for _, l := range owned {
		l.mu.Lock()
		h := l.handle
		l.mu.Unlock()
		if h != nil {
			h.Disconnect()
		}
		s.release(l)
	}
}

// Links returns the number of open links.
func (s *Server) Links() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

func (s *Server) handleConnect(peer Sender, m *wire.Message) {
	p, ok := s.directory.Lookup(m.Address)
	if !ok {
		peer.Send(wire.Ack(m, fmt.Errorf("%w: %s", ErrUnknownPeripheral, m.Address)))
		return
	}

	l := &link{id: uuid.New().String(), peer: peer, chars: make(map[string]*gatt.Characteristic)}
	s.mu.Lock()
	s.links[l.id] = l
	s.mu.Unlock()

	h, err := p.Connect(&linkCallback{link: l})
	if err != nil {
		s.mu.Lock()
		delete(s.links, l.id)
		s.mu.Unlock()
		peer.Send(wire.Ack(m, err))
		return
	}

	// Events queued by the callback are flushed after the Ack.
	l.mu.Lock()
	l.handle = h
	ack := wire.Ack(m, nil)
	ack.Link = l.id
	peer.Send(ack)
	for _, ev := range l.queued {
		peer.Send(ev)
	}
	l.queued = nil
	l.ready = true
	l.mu.Unlock()

	s.debugLog("Link opened", "link", l.id, "address", m.Address)
}

func (s *Server) handleLinked(m *wire.Message) error {
	l, err := s.link(m.Link)
	if err != nil {
		return err
	}
	l.mu.Lock()
	h := l.handle
	l.mu.Unlock()
	if h == nil {
		return fmt.Errorf("%w: %s", ErrUnknownLink, m.Link)
	}

	switch m.Type {
	case wire.TypeDiscover:
		return accepted(h.DiscoverServices())
	case wire.TypeDisconnect:
		h.Disconnect()
		return nil
	}

	c, err := l.characteristic(m.Characteristic)
	if err != nil {
		return err
	}
	switch m.Type {
	case wire.TypeRead:
		return accepted(h.ReadCharacteristic(c))
	case wire.TypeWrite:
		return accepted(h.WriteCharacteristic(c, m.Value))
	case wire.TypeNotify:
		return accepted(h.SetNotification(c, m.Enable))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRequest, m.Type)
	}
}

func (s *Server) link(id string) (*link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLink, id)
	}
	return l, nil
}

func (s *Server) release(l *link) {
	s.mu.Lock()
	delete(s.links, l.id)
	s.mu.Unlock()

	l.mu.Lock()
	h := l.handle
	l.handle = nil
	l.mu.Unlock()
	if h != nil {
		h.Close()
	}
	s.debugLog("Link released", "link", l.id)
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func accepted(ok bool) error {
	if !ok {
		return ErrRejected
	}
	return nil
}

func (l *link) characteristic(id string) (*gatt.Characteristic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.chars[gatt.CanonicalID(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharacteristic, id)
	}
	return c, nil
}

// send forwards an event, queueing it until the link is acknowledged.
func (l *link) send(m *wire.Message) {
	m.MessageID = wire.EventMessageID
	m.Link = l.id

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		l.queued = append(l.queued, m)
		return
	}
	l.peer.Send(m)
}

// linkCallback forwards gatt callbacks as events.
type linkCallback struct {
	link *link
}

func (c *linkCallback) OnConnectionStateChange(_ gatt.Handle, status gatt.Status, state gatt.ProfileState) {
	c.link.send(&wire.Message{Type: wire.TypeStateChanged, Status: uint16(status), State: uint8(state)})
}

func (c *linkCallback) OnServicesDiscovered(_ gatt.Handle, services []*gatt.Service, status gatt.Status) {
	c.link.mu.Lock()
	for _, svc := range services {
		for _, ch := range svc.Characteristics {
			c.link.chars[gatt.CanonicalID(ch.UUID)] = ch
		}
	}
	c.link.mu.Unlock()
	c.link.send(&wire.Message{Type: wire.TypeServicesDiscovered, Status: uint16(status), Services: wire.FromServices(services)})
}

func (c *linkCallback) OnCharacteristicRead(_ gatt.Handle, ch *gatt.Characteristic, value []byte, status gatt.Status) {
	c.link.send(&wire.Message{Type: wire.TypeCharRead, Characteristic: ch.UUID, Value: value, Status: uint16(status)})
}

func (c *linkCallback) OnCharacteristicWrite(_ gatt.Handle, ch *gatt.Characteristic, status gatt.Status) {
	c.link.send(&wire.Message{Type: wire.TypeCharWritten, Characteristic: ch.UUID, Status: uint16(status)})
}

func (c *linkCallback) OnCharacteristicChanged(_ gatt.Handle, ch *gatt.Characteristic, value []byte) {
	c.link.send(&wire.Message{Type: wire.TypeCharChanged, Characteristic: ch.UUID, Value: value})
}

var _ gatt.Callback = (*linkCallback)(nil)
