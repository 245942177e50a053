package goble

import (
	"context"
	"errors"
	"sync"

	"github.com/go-ble/ble"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// StatusLinkLost is reported when the controller drops the link.
const StatusLinkLost gatt.Status = 0x08

// link is one connection. ATT requests and callbacks run in order on exec.
type link struct {
	radio *Radio
	addr  ble.Addr
	cb    gatt.Callback
	exec  *multicast.Executor

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	client     ble.Client
	chars      map[string]*ble.Characteristic
	subscribed map[string]bool
	state      gatt.ProfileState
	leaving    bool
	closed     bool
}

func newLink(r *Radio, addr ble.Addr, cb gatt.Callback) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		radio:      r,
		addr:       addr,
		cb:         cb,
		exec:       multicast.NewExecutor(),
		ctx:        ctx,
		cancel:     cancel,
		chars:      make(map[string]*ble.Characteristic),
		subscribed: make(map[string]bool),
		state:      gatt.StateConnecting,
	}
}

// post queues fn. Nothing runs after Close.
func (l *link) post(fn func()) bool {
	return l.exec.Submit(func() {
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if !closed {
			fn()
		}
	})
}

func (l *link) dial() {
	l.post(func() {
		l.cb.OnConnectionStateChange(l, gatt.StatusSuccess, gatt.StateConnecting)

		ctx, cancel := context.WithTimeout(l.ctx, l.radio.config.ConnectTimeout)
		defer cancel()
		client, err := l.radio.dev.Dial(ctx, l.addr)
		if err != nil {
			l.radio.debugLog("connect failed", "address", l.addr.String(), "error", err)
			l.setState(gatt.StateDisconnected)
			l.cb.OnConnectionStateChange(l, gatt.StatusFailure, gatt.StateDisconnected)
			return
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			_ = client.CancelConnection()
			return
		}
		l.client = client
		l.state = gatt.StateConnected
		l.mu.Unlock()

		go l.watch(client)
		l.radio.debugLog("connected", "address", l.addr.String())
		l.cb.OnConnectionStateChange(l, gatt.StatusSuccess, gatt.StateConnected)
	})
}

// watch reports the end of the link. A drop the caller did not ask for
// carries StatusLinkLost.
func (l *link) watch(client ble.Client) {
	select {
	case <-client.Disconnected():
	case <-l.ctx.Done():
		return
	}
	l.post(func() {
		l.mu.Lock()
		status := StatusLinkLost
		if l.leaving {
			status = gatt.StatusSuccess
		}
		l.client = nil
		l.state = gatt.StateDisconnected
		l.subscribed = make(map[string]bool)
		l.mu.Unlock()
		l.radio.debugLog("disconnected", "address", l.addr.String(), "status", status)
		l.cb.OnConnectionStateChange(l, status, gatt.StateDisconnected)
	})
}

func (l *link) setState(s gatt.ProfileState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// connected returns the client when the link is up.
func (l *link) connected() ble.Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.state != gatt.StateConnected {
		return nil
	}
	return l.client
}

func (l *link) characteristic(c *gatt.Characteristic) *ble.Characteristic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chars[gatt.CanonicalID(c.UUID)]
}

func (l *link) DiscoverServices() bool {
	if l.connected() == nil {
		return false
	}
	return l.post(func() {
		client := l.connected()
		if client == nil {
			l.cb.OnServicesDiscovered(l, nil, gatt.StatusFailure)
			return
		}
		profile, err := client.DiscoverProfile(true)
		if err != nil {
			l.radio.debugLog("discovery failed", "address", l.addr.String(), "error", err)
			l.cb.OnServicesDiscovered(l, nil, statusOf(err))
			return
		}
		services, chars := fromProfile(profile)
		l.mu.Lock()
		l.chars = chars
		l.mu.Unlock()
		l.cb.OnServicesDiscovered(l, services, gatt.StatusSuccess)
	})
}

func (l *link) ReadCharacteristic(c *gatt.Characteristic) bool {
	bc := l.characteristic(c)
	if l.connected() == nil || bc == nil || bc.Property&ble.CharRead == 0 {
		return false
	}
	return l.post(func() {
		client := l.connected()
		if client == nil {
			l.cb.OnCharacteristicRead(l, c, nil, gatt.StatusFailure)
			return
		}
		value, err := client.ReadCharacteristic(bc)
		l.cb.OnCharacteristicRead(l, c, value, statusOf(err))
	})
}

func (l *link) WriteCharacteristic(c *gatt.Characteristic, value []byte) bool {
	bc := l.characteristic(c)
	if l.connected() == nil || bc == nil || bc.Property&(ble.CharWrite|ble.CharWriteNR) == 0 {
		return false
	}
	noRsp := bc.Property&ble.CharWrite == 0
	value = append([]byte(nil), value...)
	return l.post(func() {
		client := l.connected()
		if client == nil {
			l.cb.OnCharacteristicWrite(l, c, gatt.StatusFailure)
			return
		}
		err := client.WriteCharacteristic(bc, value, noRsp)
		l.cb.OnCharacteristicWrite(l, c, statusOf(err))
	})
}

// SetNotification subscribes to notifications, or to indications when the
// characteristic only indicates.
func (l *link) SetNotification(c *gatt.Characteristic, enable bool) bool {
	bc := l.characteristic(c)
	if l.connected() == nil || bc == nil || bc.Property&(ble.CharNotify|ble.CharIndicate) == 0 {
		return false
	}
	ind := bc.Property&ble.CharNotify == 0
	id := gatt.CanonicalID(c.UUID)
	return l.post(func() {
		client := l.connected()
		if client == nil {
			return
		}
		l.mu.Lock()
		active := l.subscribed[id]
		l.mu.Unlock()
		if active == enable {
			return
		}

		var err error
		if enable {
			err = client.Subscribe(bc, ind, func(value []byte) {
				value = append([]byte(nil), value...)
				l.post(func() { l.cb.OnCharacteristicChanged(l, c, value) })
			})
		} else {
			err = client.Unsubscribe(bc, ind)
		}
		if err != nil {
			l.radio.debugLog("subscription change failed", "address", l.addr.String(), "characteristic", id, "enable", enable, "error", err)
			return
		}
		l.mu.Lock()
		l.subscribed[id] = enable
		l.mu.Unlock()
	})
}

func (l *link) Disconnect() {
	l.mu.Lock()
	client := l.client
	if l.closed || client == nil || l.leaving {
		l.mu.Unlock()
		return
	}
	l.leaving = true
	l.state = gatt.StateDisconnecting
	l.mu.Unlock()

	l.post(func() {
		l.cb.OnConnectionStateChange(l, gatt.StatusSuccess, gatt.StateDisconnecting)
	})
	go func() {
		if err := client.CancelConnection(); err != nil {
			l.radio.debugLog("disconnect failed", "address", l.addr.String(), "error", err)
		}
	}()
}

func (l *link) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	client := l.client
	l.client = nil
	l.mu.Unlock()

	l.cancel()
	l.exec.Close()
	if client != nil {
		go func() { _ = client.CancelConnection() }()
	}
}

// statusOf maps an ATT error to its status code.
func statusOf(err error) gatt.Status {
	if err == nil {
		return gatt.StatusSuccess
	}
	var attErr ble.ATTError
	if errors.As(err, &attErr) {
		return gatt.Status(attErr)
	}
	return gatt.StatusFailure
}

var _ gatt.Handle = (*link)(nil)
