// Package interaction implements both ends of the bridge protocol.
//
// The Server runs next to real or simulated peripherals and executes
// requests against them. The Client runs next to the session engine and
// presents every bridged device as a gatt.Peripheral, so sessions cannot
// tell a bridged peripheral from a local one.
//
// # Server Usage
//
//	dir := interaction.NewDirectory(thermo, lock)
//	srv := interaction.NewServer(interaction.ServerConfig{Directory: dir})
//	ts := transport.NewServer(transport.ServerConfig{
//	    OnMessage:    func(c *transport.Conn, m *wire.Message) { srv.Handle(c, m) },
//	    OnDisconnect: func(c *transport.Conn) { srv.Release(c) },
//	})
//
// # Client Usage
//
//	client, err := interaction.Dial(ctx, "bridge.local:7420", interaction.ClientConfig{})
//	devices, err := client.Devices(ctx)
//	p := client.Peripheral(devices[0])
//	manager := session.New(p, session.Config{})
//
// # Ordering
//
// A Connect is acknowledged before any event of the new link is sent, and
// the client registers the link while handling the acknowledgement. Events
// of one link are delivered to its callback in order from a dedicated
// goroutine, so callbacks may issue further requests.
package interaction
