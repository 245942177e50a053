package interaction

import (
	"slices"
	"strings"
	"sync"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/wire"
)

// Directory lists the peripherals a Server exposes.
type Directory interface {
	Devices() []wire.Device
	Lookup(address string) (gatt.Peripheral, bool)
}

// Advertiser is a peripheral with a signal strength.
type Advertiser interface {
	gatt.Peripheral
	RSSI() int
}

// StaticDirectory is a Directory over a fixed set of peripherals.
type StaticDirectory struct {
	mu          sync.RWMutex
	peripherals []Advertiser
}

// NewDirectory creates a directory.
func NewDirectory(ps ...Advertiser) *StaticDirectory {
	return &StaticDirectory{peripherals: ps}
}

// Add exposes p.
func (d *StaticDirectory) Add(p Advertiser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peripherals = append(d.peripherals, p)
}

// Devices describes every peripheral, sorted by address.
func (d *StaticDirectory) Devices() []wire.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]wire.Device, 0, len(d.peripherals))
	for _, p := range d.peripherals {
		out = append(out, wire.Device{Address: p.Address(), Name: p.Name(), RSSI: p.RSSI()})
	}
	slices.SortFunc(out, func(a, b wire.Device) int { return strings.Compare(a.Address, b.Address) })
	return out
}

// Lookup finds a peripheral by address, ignoring case.
func (d *StaticDirectory) Lookup(address string) (gatt.Peripheral, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.peripherals {
		if strings.EqualFold(p.Address(), address) {
			return p, true
		}
	}
	return nil, false
}

var _ Directory = (*StaticDirectory)(nil)
