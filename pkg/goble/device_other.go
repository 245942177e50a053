//go:build !linux && !darwin

package goble

import "github.com/go-ble/ble"

// NewDefaultDevice reports ErrUnsupportedPlatform.
func NewDefaultDevice() (ble.Device, error) {
	return nil, ErrUnsupportedPlatform
}
