// Package service provides the upward-facing Explorer that views drive.
//
// Explorer ties a scan.Aggregator and a session.Registry together behind
// fire-and-forget actions:
//
//	explorer := service.NewExplorer(radio, adapter, nil, service.DefaultExplorerConfig())
//	explorer.OnEvent(func(e service.Event) { ... })
//	explorer.Start(ctx)
//	defer explorer.Stop()
//
//	explorer.StartScan()
//	explorer.Connect("AA:BB:CC:DD:EE:FF")
//	explorer.Read("AA:BB:CC:DD:EE:FF", "2a37")
//
// # Event Callbacks
//
// Results are delivered as events, in order, from a single dispatcher:
//   - EventScanUpdated: scan state and discovered devices
//   - EventSessionUpdated: a new session snapshot
//   - EventSessionEnded: a session stream ended
//   - EventOperationCompleted: a read, write, notification or discovery result
//   - EventError: any failure; also delivered on Errors
//
// Sessions can only be opened for devices present in the scan results or
// already known to the registry.
package service
