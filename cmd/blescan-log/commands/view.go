// Package commands implements the blescan-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/log"
)

// timeFormat is used by view and export.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timeFormat)
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, shortenConnID(event.ConnectionID),
		event.Direction.String(), event.Layer.String(), eventLabel(event))
	if event.Address != "" {
		fmt.Fprintf(w, " %s", event.Address)
		if event.DeviceName != "" {
			fmt.Fprintf(w, " (%s)", event.DeviceName)
		}
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Attribute != nil:
		formatAttributeDetails(w, event.Direction, event.Attribute)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Scan != nil:
		formatScanDetails(w, event.Scan)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventLabel names the payload an event carries.
func eventLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Attribute != nil:
		return event.Attribute.Op.String()
	case event.StateChange != nil:
		return "State"
	case event.Scan != nil:
		return "Scan"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatAttributeDetails(w io.Writer, dir log.Direction, attr *log.AttributeEvent) {
	if attr.AttributeID != "" {
		fmt.Fprintf(w, "  Attribute: %s\n", gatt.ShortID(attr.AttributeID))
	}
	if attr.Op == log.OpNotify {
		fmt.Fprintf(w, "  Enable: %t\n", attr.Enable)
	}
	if len(attr.Value) > 0 {
		fmt.Fprintf(w, "  Value: %s\n", hex.EncodeToString(attr.Value))
	}
	if dir == log.DirectionOut {
		fmt.Fprintf(w, "  Accepted: %t\n", attr.Success)
		return
	}
	if attr.Op == log.OpChanged {
		return
	}
	fmt.Fprintf(w, "  Status: %s\n", gatt.Status(attr.Status))
	if attr.Op == log.OpDiscover {
		fmt.Fprintf(w, "  Services: %d\n", attr.Count)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatScanDetails(w io.Writer, s *log.ScanEvent) {
	if s.FailureCode != 0 {
		fmt.Fprintf(w, "  Failed: code %d\n", s.FailureCode)
		return
	}
	if s.Name != "" {
		fmt.Fprintf(w, "  Name: %s\n", s.Name)
	}
	fmt.Fprintf(w, "  RSSI: %d dBm  Connectable: %t\n", s.RSSI, s.Connectable)
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from a command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "radio":
		return log.LayerRadio, nil
	case "bridge":
		return log.LayerBridge, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be radio, bridge, or session)", s)
	}
}

// ParseDirectionFlag parses a direction string from a command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from a command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "attribute":
		return log.CategoryAttribute, nil
	case "scan":
		return log.CategoryScan, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "frame":
		return log.CategoryFrame, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be attribute, scan, state, error, or frame)", s)
	}
}

// RunView prints every event of path matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trail file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
