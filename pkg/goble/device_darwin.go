//go:build darwin

package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// NewDefaultDevice opens the CoreBluetooth central manager.
func NewDefaultDevice() (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to open CoreBluetooth device: %w", err)
	}
	return dev, nil
}
