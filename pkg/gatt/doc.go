// Package gatt defines the boundary between the session engine and a raw
// Bluetooth Low Energy central stack.
//
// The engine never talks to a radio directly. A backend (simulated, bridged
// over the network, or HCI via go-ble) implements Peripheral, Handle and
// Scanner, and reports everything that happens through Callback and
// ScanCallback. Those callbacks are the only source of truth; nothing in the
// engine polls.
//
// # Connection primitive
//
// Peripheral.Connect returns a Handle straight away and then reports
// progress asynchronously:
//
//	OnConnectionStateChange(h, StatusSuccess, StateConnected)
//	OnServicesDiscovered(h, services, StatusSuccess)
//	OnCharacteristicRead(h, c, value, StatusSuccess)
//
// Handle requests return false when the stack refuses them synchronously.
// A refused request never produces a callback.
//
// # Identifiers
//
// Services and characteristics are addressed by UUID strings. CanonicalID
// brings short (16/32-bit) and long forms onto one lowercase dashed
// representation so identifiers compare with ==.
package gatt
