package scan

import (
	"cmp"
	"slices"
	"strings"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// UnknownDeviceName is displayed for devices that advertise no name.
const UnknownDeviceName = "Unknown device"

// Device is one discovered peripheral.
type Device struct {
	Address     string
	Name        string
	RSSI        int
	Connectable bool

	// Result is the raw scan result, including the peripheral to connect to.
	Result gatt.ScanResult
}

// DisplayName returns Name, or UnknownDeviceName when it is empty.
func (d Device) DisplayName() string {
	if d.Name == "" {
		return UnknownDeviceName
	}
	return d.Name
}

func deviceOf(r gatt.ScanResult) Device {
	return Device{
		Address:     r.Address,
		Name:        r.Name,
		RSSI:        r.RSSI,
		Connectable: r.Connectable,
		Result:      r,
	}
}

// Fold adds r to devices and returns a new list. A device already present
// is replaced by the newer result. The list is sorted by display name, then
// address. devices is not modified.
func Fold(devices []Device, r gatt.ScanResult) []Device {
	out := make([]Device, 0, len(devices)+1)
	replaced := false
	for _, d := range devices {
		if d.Address == r.Address {
			out = append(out, deviceOf(r))
			replaced = true
			continue
		}
		out = append(out, d)
	}
	if !replaced {
		out = append(out, deviceOf(r))
	}

	slices.SortStableFunc(out, func(a, b Device) int {
		if c := cmp.Compare(a.DisplayName(), b.DisplayName()); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})
	return out
}

// Find returns the device with the given address.
func Find(devices []Device, address string) (Device, bool) {
	for _, d := range devices {
		if strings.EqualFold(d.Address, address) {
			return d, true
		}
	}
	return Device{}, false
}
