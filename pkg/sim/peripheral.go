package sim

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// ErrRefused is returned by Connect when the peripheral refuses connections.
var ErrRefused = errors.New("connection refused")

// Characteristic describes a simulated characteristic.
type Characteristic struct {
	UUID       string
	Properties gatt.Property
	Value      []byte

	// NotifyInterval makes the value change periodically while
	// notifications are enabled. Zero only notifies on writes.
	NotifyInterval time.Duration
}

// Peripheral is a simulated device.
type Peripheral struct {
	address string
	name    string
	rssi    int

	mu       sync.Mutex
	services []*gatt.Service
	chars    map[string]*charState
	latency  time.Duration
	refuse   bool
	status   gatt.Status
	conn     *conn
	connects int
}

type charState struct {
	c        *gatt.Characteristic
	value    []byte
	interval time.Duration
}

// NewPeripheral creates a peripheral with no services.
func NewPeripheral(address, name string, rssi int) *Peripheral {
	return &Peripheral{
		address: address,
		name:    name,
		rssi:    rssi,
		chars:   make(map[string]*charState),
	}
}

// Address returns the device address.
func (p *Peripheral) Address() string { return p.address }

// Name returns the advertised name.
func (p *Peripheral) Name() string { return p.name }

// RSSI returns the advertised signal strength.
func (p *Peripheral) RSSI() int { return p.rssi }

// AddService adds a service with the given characteristics.
func (p *Peripheral) AddService(uuid string, chars ...Characteristic) {
	p.mu.Lock()
	defer p.mu.Unlock()

	svc := &gatt.Service{UUID: gatt.CanonicalID(uuid)}
	for _, c := range chars {
		gc := &gatt.Characteristic{
			UUID:        gatt.CanonicalID(c.UUID),
			ServiceUUID: svc.UUID,
			Properties:  c.Properties,
			Handle:      uint16(len(p.chars) + 1),
		}
		svc.Characteristics = append(svc.Characteristics, gc)
		p.chars[gc.UUID] = &charState{c: gc, value: slices.Clone(c.Value), interval: c.NotifyInterval}
	}
	p.services = append(p.services, svc)
}

// Services returns the service tree.
func (p *Peripheral) Services() []*gatt.Service {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.services)
}

// Value returns the current value of a characteristic.
func (p *Peripheral) Value(id string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cs, ok := p.chars[gatt.CanonicalID(id)]
	if !ok {
		return nil, false
	}
	return slices.Clone(cs.value), true
}

// SetValue changes a characteristic value and notifies a subscribed
// connection.
func (p *Peripheral) SetValue(id string, value []byte) {
	p.mu.Lock()
	cs, ok := p.chars[gatt.CanonicalID(id)]
	if ok {
		cs.value = slices.Clone(value)
	}
	c := p.conn
	p.mu.Unlock()

	if ok && c != nil {
		c.changed(cs.c)
	}
}

// SetLatency delays every callback by d.
func (p *Peripheral) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

// SetRefuse makes Connect fail synchronously.
func (p *Peripheral) SetRefuse(refuse bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refuse = refuse
}

// SetConnectStatus makes the next connection attempts report status with
// the Connected state. StatusSuccess restores normal behaviour.
func (p *Peripheral) SetConnectStatus(status gatt.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// Connects returns the number of Connect calls.
func (p *Peripheral) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}

// Drop simulates a link loss on the current connection.
func (p *Peripheral) Drop() {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()

	if c != nil {
		c.drop()
	}
}

// Connect starts a connection. Progress is reported through cb.
func (p *Peripheral) Connect(cb gatt.Callback) (gatt.Handle, error) {
	p.mu.Lock()
	p.connects++
	if p.refuse {
		p.mu.Unlock()
		return nil, ErrRefused
	}
	c := newConn(p, cb, p.latency)
	prev := p.conn
	p.conn = c
	status := p.status
	p.mu.Unlock()

	if prev != nil {
		prev.drop()
	}

	c.post(func() {
		cb.OnConnectionStateChange(c, gatt.StatusSuccess, gatt.StateConnecting)
	})
	c.post(func() {
		if !status.IsSuccess() {
			cb.OnConnectionStateChange(c, status, gatt.StateConnected)
			c.setState(gatt.StateDisconnected)
			return
		}
		c.setState(gatt.StateConnected)
		cb.OnConnectionStateChange(c, gatt.StatusSuccess, gatt.StateConnected)
	})
	return c, nil
}

func (p *Peripheral) release(c *conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == c {
		p.conn = nil
	}
}

func (p *Peripheral) lookup(id string) (*charState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cs, ok := p.chars[gatt.CanonicalID(id)]
	return cs, ok
}

var _ gatt.Peripheral = (*Peripheral)(nil)
