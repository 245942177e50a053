package sim

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// Radio errors.
var (
	ErrScanActive = errors.New("scan already active")
	ErrRadioOff   = errors.New("radio disabled")
)

// DefaultAdvertiseInterval is the interval between advertisement rounds.
const DefaultAdvertiseInterval = 100 * time.Millisecond

// Radio is a simulated adapter. While scanning it reports every added
// peripheral once per advertise interval.
type Radio struct {
	interval time.Duration

	mu          sync.Mutex
	peripherals map[string]*Peripheral
	supported   bool
	enabled     bool
	failCode    int
	stop        chan struct{}
	scans       int
}

// NewRadio creates an enabled radio advertising ps.
func NewRadio(interval time.Duration, ps ...*Peripheral) *Radio {
	if interval <= 0 {
		interval = DefaultAdvertiseInterval
	}
	r := &Radio{
		interval:    interval,
		peripherals: make(map[string]*Peripheral),
		supported:   true,
		enabled:     true,
	}
	for _, p := range ps {
		r.Add(p)
	}
	return r
}

// Add makes p visible to scans.
func (r *Radio) Add(p *Peripheral) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peripherals[gatt.CanonicalID(p.Address())] = p
}

// Remove hides the peripheral with the given address.
func (r *Radio) Remove(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peripherals, gatt.CanonicalID(address))
}

// Peripheral returns the peripheral with the given address.
func (r *Radio) Peripheral(address string) (*Peripheral, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peripherals[gatt.CanonicalID(address)]
	return p, ok
}

// Peripherals returns all peripherals sorted by address.
func (r *Radio) Peripherals() []*Peripheral {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Peripheral, 0, len(r.peripherals))
	for _, p := range r.peripherals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out
}

// SetSupported changes what Supported reports.
func (r *Radio) SetSupported(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supported = v
}

// SetEnabled changes what Enabled reports. Disabling stops a running scan.
func (r *Radio) SetEnabled(v bool) {
	r.mu.Lock()
	r.enabled = v
	r.mu.Unlock()
	if !v {
		r.StopScan()
	}
}

// FailNextScan makes the next scan report OnScanFailed(code) instead of
// results.
func (r *Radio) FailNextScan(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCode = code
}

// Scans returns the number of scans started.
func (r *Radio) Scans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

// Scanning reports whether a scan is running.
func (r *Radio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

func (r *Radio) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supported
}

func (r *Radio) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// StartScan begins advertising rounds delivered to cb.
func (r *Radio) StartScan(settings gatt.ScanSettings, cb gatt.ScanCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled || !r.supported {
		return ErrRadioOff
	}
	if r.stop != nil {
		return ErrScanActive
	}
	r.scans++
	stop := make(chan struct{})
	r.stop = stop

	if code := r.failCode; code != 0 {
		r.failCode = 0
		go cb.OnScanFailed(code)
		return nil
	}
	go r.advertise(cb, stop)
	return nil
}

// StopScan ends the current scan.
func (r *Radio) StopScan() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

func (r *Radio) advertise(cb gatt.ScanCallback, stop chan struct{}) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		for _, p := range r.Peripherals() {
			select {
			case <-stop:
				return
			default:
			}
			cb.OnScanResult(gatt.ScanResult{
				Address:     p.Address(),
				Name:        p.Name(),
				RSSI:        p.RSSI(),
				Connectable: true,
				Peripheral:  p,
			})
		}
		select {
		case <-t.C:
		case <-stop:
			return
		}
	}
}

var (
	_ gatt.Scanner = (*Radio)(nil)
	_ gatt.Adapter = (*Radio)(nil)
)
