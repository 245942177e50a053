//go:build linux

package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// NewDefaultDevice opens the first HCI controller.
func NewDefaultDevice() (ble.Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to open HCI device: %w", err)
	}
	return dev, nil
}
