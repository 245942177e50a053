// Package sim provides in-memory peripherals and a radio implementing the
// gatt boundary.
//
// Simulated peripherals answer discovery, reads, writes and notification
// requests asynchronously, in order, from a per-connection dispatcher, the
// way a platform stack delivers callbacks. Faults can be injected: refused
// connections, failure statuses, link drops and scan failures.
//
//	thermo := sim.NewPeripheral("AA:00:00:00:00:01", "Thermo", -55)
//	thermo.AddService("181a", sim.Characteristic{
//	    UUID:           "2a6e",
//	    Properties:     gatt.PropRead | gatt.PropNotify,
//	    Value:          []byte{0x10, 0x09},
//	    NotifyInterval: time.Second,
//	})
//	radio := sim.NewRadio(200*time.Millisecond, thermo)
package sim
