package goble

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-ble/ble"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// DefaultConnectTimeout bounds a connection attempt.
const DefaultConnectTimeout = 10 * time.Second

// ScanFailedInternal is reported through OnScanFailed when the controller
// aborts a scan.
const ScanFailedInternal = 3

// Errors.
var (
	ErrScanActive          = errors.New("scan already active")
	ErrRadioClosed         = errors.New("radio closed")
	ErrUnsupportedPlatform = errors.New("no bluetooth backend for this platform")
)

// Config configures a Radio.
type Config struct {
	// ConnectTimeout bounds each connection attempt (default: 10s).
	ConnectTimeout time.Duration

	// Duplicates reports every advertisement instead of one per device.
	// Low-latency scans always report duplicates.
	Duplicates bool

	// Logger is used for debug logging. Nil disables logging.
	Logger *slog.Logger
}

// Radio is a local controller.
type Radio struct {
	dev    ble.Device
	config Config

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// New wraps dev.
func New(dev ble.Device, config Config) *Radio {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &Radio{dev: dev, config: config}
}

// StartScan starts scanning. Results arrive in advertisement order.
func (r *Radio) StartScan(settings gatt.ScanSettings, cb gatt.ScanCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRadioClosed
	}
	if r.cancel != nil {
		return ErrScanActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	dup := r.config.Duplicates || settings.Mode == gatt.ScanModeLowLatency
	exec := multicast.NewExecutor()

	go func() {
		defer exec.Close()
		err := r.dev.Scan(ctx, dup, func(a ble.Advertisement) {
			res := r.result(a)
			exec.Submit(func() { cb.OnScanResult(res) })
		})
		if err != nil && ctx.Err() == nil {
			r.debugLog("scan aborted", "error", err)
			exec.Submit(func() { cb.OnScanFailed(ScanFailedInternal) })
		}
		r.mu.Lock()
		if ctx.Err() == nil {
			r.cancel = nil
		}
		r.mu.Unlock()
		cancel()
	}()
	r.debugLog("scan started", "duplicates", dup, "mode", settings.Mode)
	return nil
}

// StopScan stops scanning.
func (r *Radio) StopScan() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
		r.debugLog("scan stopped")
	}
}

// Supported reports whether a controller is present.
func (r *Radio) Supported() bool { return r.dev != nil }

// Enabled reports whether the controller is open.
func (r *Radio) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev != nil && !r.closed
}

// Close stops scanning and releases the controller.
func (r *Radio) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	return r.dev.Stop()
}

func (r *Radio) result(a ble.Advertisement) gatt.ScanResult {
	addr := a.Addr()
	return gatt.ScanResult{
		Address:     addr.String(),
		Name:        a.LocalName(),
		RSSI:        a.RSSI(),
		Connectable: a.Connectable(),
		Peripheral:  &peripheral{radio: r, addr: addr, name: a.LocalName()},
	}
}

func (r *Radio) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

// Peripheral returns a connectable peripheral for a known address, for
// reconnecting without a fresh scan.
func (r *Radio) Peripheral(address, name string) gatt.Peripheral {
	return &peripheral{radio: r, addr: ble.NewAddr(address), name: name}
}

type peripheral struct {
	radio *Radio
	addr  ble.Addr
	name  string
}

func (p *peripheral) Address() string { return p.addr.String() }
func (p *peripheral) Name() string    { return p.name }

func (p *peripheral) Connect(cb gatt.Callback) (gatt.Handle, error) {
	p.radio.mu.Lock()
	closed := p.radio.closed
	p.radio.mu.Unlock()
	if closed {
		return nil, ErrRadioClosed
	}
	l := newLink(p.radio, p.addr, cb)
	l.dial()
	return l, nil
}

var (
	_ gatt.Scanner    = (*Radio)(nil)
	_ gatt.Adapter    = (*Radio)(nil)
	_ gatt.Peripheral = (*peripheral)(nil)
)
