package interaction

import (
	"fmt"
	"sync"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/multicast"
	"github.com/oblakr24/blescanner/pkg/wire"
)

// remotePeripheral is a bridged device.
type remotePeripheral struct {
	client *Client
	device wire.Device
}

func (p *remotePeripheral) Address() string { return p.device.Address }
func (p *remotePeripheral) Name() string    { return p.device.Name }

// Connect opens a link on the bridge. It blocks until the bridge
// acknowledges, then reports progress through cb.
func (p *remotePeripheral) Connect(cb gatt.Callback) (gatt.Handle, error) {
	var l *remoteLink
	_, err := p.client.ack(&wire.Message{Type: wire.TypeConnect, Address: p.device.Address}, func(reply *wire.Message) {
		if reply.Accepted && reply.Link != "" {
			l = newRemoteLink(p.client, reply.Link, cb)
			p.client.register(l)
		}
	})
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: connect accepted without a link", ErrUnexpectedReply)
	}
	return l, nil
}

// remoteLink is the gatt.Handle of one bridged connection.
type remoteLink struct {
	client *Client
	id     string
	cb     gatt.Callback
	exec   *multicast.Executor

	mu     sync.Mutex
	chars  map[string]*gatt.Characteristic
	closed bool
}

func newRemoteLink(c *Client, id string, cb gatt.Callback) *remoteLink {
	return &remoteLink{
		client: c,
		id:     id,
		cb:     cb,
		exec:   multicast.NewExecutor(),
		chars:  make(map[string]*gatt.Characteristic),
	}
}

func (l *remoteLink) DiscoverServices() bool {
	return l.request(&wire.Message{Type: wire.TypeDiscover})
}

func (l *remoteLink) ReadCharacteristic(c *gatt.Characteristic) bool {
	return l.request(&wire.Message{Type: wire.TypeRead, Characteristic: c.UUID})
}

func (l *remoteLink) WriteCharacteristic(c *gatt.Characteristic, value []byte) bool {
	return l.request(&wire.Message{Type: wire.TypeWrite, Characteristic: c.UUID, Value: value})
}

func (l *remoteLink) SetNotification(c *gatt.Characteristic, enable bool) bool {
	return l.request(&wire.Message{Type: wire.TypeNotify, Characteristic: c.UUID, Enable: enable})
}

func (l *remoteLink) Disconnect() {
	l.request(&wire.Message{Type: wire.TypeDisconnect})
}

// Close releases the link. No callback runs afterwards.
func (l *remoteLink) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.client.unregister(l)
	l.exec.Close()
	l.client.ack(&wire.Message{Type: wire.TypeRelease, Link: l.id}, nil)
}

func (l *remoteLink) request(m *wire.Message) bool {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return false
	}
	m.Link = l.id
	_, err := l.client.ack(m, nil)
	if err != nil {
		l.client.debugLog("Bridge request rejected", "link", l.id, "type", m.Type, "error", err)
	}
	return err == nil
}

// dispatch delivers an event to the callback in arrival order.
func (l *remoteLink) dispatch(m *wire.Message) {
	l.exec.Submit(func() {
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return
		}
		l.deliver(m)
	})
}

func (l *remoteLink) deliver(m *wire.Message) {
	status := gatt.Status(m.Status)
	switch m.Type {
	case wire.TypeStateChanged:
		l.cb.OnConnectionStateChange(l, status, gatt.ProfileState(m.State))
	case wire.TypeServicesDiscovered:
		services := wire.ToServices(m.Services)
		l.mu.Lock()
		for _, svc := range services {
			for _, c := range svc.Characteristics {
				l.chars[c.UUID] = c
			}
		}
		l.mu.Unlock()
		l.cb.OnServicesDiscovered(l, services, status)
	case wire.TypeCharRead:
		l.cb.OnCharacteristicRead(l, l.characteristic(m.Characteristic), m.Value, status)
	case wire.TypeCharWritten:
		l.cb.OnCharacteristicWrite(l, l.characteristic(m.Characteristic), status)
	case wire.TypeCharChanged:
		l.cb.OnCharacteristicChanged(l, l.characteristic(m.Characteristic), m.Value)
	}
}

// characteristic returns the discovered characteristic for id, or a bare
// one when discovery has not reported it.
func (l *remoteLink) characteristic(id string) *gatt.Characteristic {
	id = gatt.CanonicalID(id)
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.chars[id]; ok {
		return c
	}
	return &gatt.Characteristic{UUID: id}
}

// lost reports the bridge connection as gone.
func (l *remoteLink) lost() {
	l.dispatch(&wire.Message{Type: wire.TypeStateChanged, Status: uint16(gatt.StatusFailure), State: uint8(gatt.StateDisconnected)})
}

var (
	_ gatt.Peripheral = (*remotePeripheral)(nil)
	_ gatt.Handle     = (*remoteLink)(nil)
)
