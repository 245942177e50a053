// Package log records the session event trail.
//
// Every raw connection event, every request issued to a peripheral, scan
// results and bridge frames can be captured as an Event. The trail is
// separate from operational logging (slog): it is a complete,
// machine-readable record of what a session saw, for replay and analysis
// with blescan-log.
//
// # Basic Usage
//
//	// Console while developing
//	trail := log.NewSlogAdapter(slog.Default())
//
//	// Binary file
//	trail, _ := log.NewFileLogger("/var/log/blescan/session.blog")
//
//	// Both
//	trail := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are tagged by layer (radio, bridge, session) and carry one
// payload: AttributeEvent for requests and responses, StateChangeEvent for
// connection and scan lifecycle, ScanEvent for advertisements, FrameEvent
// for bridge traffic, ErrorEventData for failures.
//
// # File Format
//
// Trail files are a concatenation of CBOR maps with integer keys, usually
// with a .blog extension.
package log
