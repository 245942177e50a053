package sim

import (
	"slices"
	"sync"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// conn is one simulated connection. Callbacks run on its executor.
type conn struct {
	p       *Peripheral
	cb      gatt.Callback
	latency time.Duration
	exec    *multicast.Executor

	mu       sync.Mutex
	state    gatt.ProfileState
	closed   bool
	notify   map[string]chan struct{}
	notified map[string]bool
}

func newConn(p *Peripheral, cb gatt.Callback, latency time.Duration) *conn {
	return &conn{
		p:        p,
		cb:       cb,
		latency:  latency,
		exec:     multicast.NewExecutor(),
		notify:   make(map[string]chan struct{}),
		notified: make(map[string]bool),
	}
}

// post queues a callback. Nothing runs after Close.
func (c *conn) post(fn func()) {
	c.exec.Submit(func() {
		if c.latency > 0 {
			time.Sleep(c.latency)
		}
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			fn()
		}
	})
}

func (c *conn) setState(s gatt.ProfileState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *conn) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == gatt.StateConnected && !c.closed
}

func (c *conn) DiscoverServices() bool {
	if !c.connected() {
		return false
	}
	services := c.p.Services()
	c.post(func() {
		c.cb.OnServicesDiscovered(c, services, gatt.StatusSuccess)
	})
	return true
}

func (c *conn) ReadCharacteristic(ch *gatt.Characteristic) bool {
	if !c.connected() {
		return false
	}
	cs, ok := c.p.lookup(ch.UUID)
	if !ok {
		return false
	}
	c.post(func() {
		if !cs.c.Properties.Readable() {
			c.cb.OnCharacteristicRead(c, cs.c, nil, gatt.StatusReadNotPermitted)
			return
		}
		value, _ := c.p.Value(cs.c.UUID)
		c.cb.OnCharacteristicRead(c, cs.c, value, gatt.StatusSuccess)
	})
	return true
}

func (c *conn) WriteCharacteristic(ch *gatt.Characteristic, value []byte) bool {
	if !c.connected() {
		return false
	}
	cs, ok := c.p.lookup(ch.UUID)
	if !ok {
		return false
	}
	value = slices.Clone(value)
	c.post(func() {
		if !cs.c.Properties.Writable() {
			c.cb.OnCharacteristicWrite(c, cs.c, gatt.StatusWriteNotPermitted)
			return
		}
		c.p.mu.Lock()
		cs.value = value
		c.p.mu.Unlock()
		c.cb.OnCharacteristicWrite(c, cs.c, gatt.StatusSuccess)
		c.changed(cs.c)
	})
	return true
}

func (c *conn) SetNotification(ch *gatt.Characteristic, enable bool) bool {
	if !c.connected() {
		return false
	}
	cs, ok := c.p.lookup(ch.UUID)
	if !ok || !(cs.c.Properties.Notifiable() || cs.c.Properties.Indicatable()) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := cs.c.UUID
	if stop, ok := c.notify[id]; ok {
		close(stop)
		delete(c.notify, id)
	}
	c.notified[id] = enable
	if enable && cs.interval > 0 {
		stop := make(chan struct{})
		c.notify[id] = stop
		go c.tick(cs, stop)
	}
	return true
}

// tick advances the value periodically while notifications are enabled.
func (c *conn) tick(cs *charState, stop chan struct{}) {
	t := time.NewTicker(cs.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.p.mu.Lock()
			cs.value = nextValue(cs.value)
			c.p.mu.Unlock()
			c.changed(cs.c)
		case <-stop:
			return
		}
	}
}

// nextValue increments the first byte, wrapping at 0xff.
func nextValue(v []byte) []byte {
	if len(v) == 0 {
		return []byte{1}
	}
	out := slices.Clone(v)
	out[0]++
	return out
}

// changed reports the current value if notifications are enabled.
func (c *conn) changed(ch *gatt.Characteristic) {
	c.mu.Lock()
	enabled := c.notified[ch.UUID] && c.state == gatt.StateConnected
	c.mu.Unlock()
	if !enabled {
		return
	}
	value, _ := c.p.Value(ch.UUID)
	c.post(func() {
		c.cb.OnCharacteristicChanged(c, ch, value)
	})
}

func (c *conn) stopNotifications() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, stop := range c.notify {
		close(stop)
		delete(c.notify, id)
	}
	clear(c.notified)
}

func (c *conn) Disconnect() {
	c.mu.Lock()
	if c.state == gatt.StateDisconnected || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = gatt.StateDisconnecting
	c.mu.Unlock()

	c.stopNotifications()
	c.post(func() {
		c.cb.OnConnectionStateChange(c, gatt.StatusSuccess, gatt.StateDisconnecting)
	})
	c.post(func() {
		c.setState(gatt.StateDisconnected)
		c.p.release(c)
		c.cb.OnConnectionStateChange(c, gatt.StatusSuccess, gatt.StateDisconnected)
	})
}

// drop reports a link loss: Disconnected with a non-success status.
func (c *conn) drop() {
	c.stopNotifications()
	c.setState(gatt.StateDisconnected)
	c.p.release(c)
	c.post(func() {
		c.cb.OnConnectionStateChange(c, gatt.Status(0x08), gatt.StateDisconnected)
	})
}

func (c *conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stopNotifications()
	c.p.release(c)
	c.exec.Close()
}

var _ gatt.Handle = (*conn)(nil)
