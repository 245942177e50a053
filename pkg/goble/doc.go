// Package goble drives a local Bluetooth controller through go-ble.
//
// Radio implements gatt.Scanner and gatt.Adapter over a ble.Device, and the
// peripherals in its scan results open links that implement gatt.Handle.
// go-ble is blocking; each link runs its ATT requests one at a time on its
// own executor and reports completion through the gatt.Callback, so the
// session engine sees the same asynchronous contract as with any other
// backend.
//
// NewDefaultDevice opens the platform controller: HCI on Linux and
// CoreBluetooth on macOS. Other platforms report ErrUnsupportedPlatform.
package goble
