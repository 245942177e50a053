package gatt

// Peripheral is a remote device that can be connected to.
type Peripheral interface {
	// Address returns the stable device address (MAC or backend-specific key).
	Address() string

	// Name returns the advertised name, which may be empty.
	Name() string

	// Connect starts a connection attempt and returns its handle.
	// Progress is reported through cb. An error means the attempt could
	// not be started at all.
	Connect(cb Callback) (Handle, error)
}

// Handle is a live connection to a peripheral.
// Request methods return false if the stack rejects the request
// synchronously; accepted requests complete through the Callback.
type Handle interface {
	DiscoverServices() bool
	ReadCharacteristic(c *Characteristic) bool
	WriteCharacteristic(c *Characteristic, value []byte) bool
	SetNotification(c *Characteristic, enable bool) bool

	// Disconnect requests a graceful link teardown.
	Disconnect()

	// Close releases the handle. No callbacks follow a Close.
	Close()
}

// Callback receives asynchronous connection events.
// Implementations must not block for long; the stack may deliver the next
// event only after the current call returns.
type Callback interface {
	OnConnectionStateChange(h Handle, status Status, state ProfileState)
	OnServicesDiscovered(h Handle, services []*Service, status Status)
	OnCharacteristicRead(h Handle, c *Characteristic, value []byte, status Status)
	OnCharacteristicWrite(h Handle, c *Characteristic, status Status)
	OnCharacteristicChanged(h Handle, c *Characteristic, value []byte)
}
