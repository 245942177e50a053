package gatt

import (
	"fmt"
	"strings"
	"time"
)

// ScanMode trades discovery latency for power.
type ScanMode uint8

const (
	ScanModeLowPower ScanMode = iota
	ScanModeBalanced
	ScanModeLowLatency
	ScanModeOpportunistic
)

// String returns the mode name as accepted by ParseScanMode.
func (m ScanMode) String() string {
	switch m {
	case ScanModeLowPower:
		return "low-power"
	case ScanModeBalanced:
		return "balanced"
	case ScanModeLowLatency:
		return "low-latency"
	case ScanModeOpportunistic:
		return "opportunistic"
	default:
		return "unknown"
	}
}

// ParseScanMode parses a scan mode name.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low-power", "lowpower":
		return ScanModeLowPower, nil
	case "balanced":
		return ScanModeBalanced, nil
	case "low-latency", "lowlatency":
		return ScanModeLowLatency, nil
	case "opportunistic":
		return ScanModeOpportunistic, nil
	default:
		return 0, fmt.Errorf("unknown scan mode: %s", s)
	}
}

// ScanSettings is passed to Scanner.StartScan.
type ScanSettings struct {
	// Timeout bounds the total scan duration.
	Timeout time.Duration

	// Mode is a hint for the backend.
	Mode ScanMode
}

// ScanResult is one advertisement seen during a scan.
type ScanResult struct {
	Address     string
	Name        string
	RSSI        int
	Connectable bool

	// Peripheral opens a connection to the advertiser.
	Peripheral Peripheral
}

// Scanner is the raw discovery primitive.
type Scanner interface {
	// StartScan begins delivering results to cb until StopScan.
	StartScan(settings ScanSettings, cb ScanCallback) error

	// StopScan ends the current scan. Results already in flight may still
	// be delivered.
	StopScan()
}

// ScanCallback receives discovery events.
type ScanCallback interface {
	OnScanResult(r ScanResult)
	OnScanFailed(code int)
}

// Adapter reports radio availability.
type Adapter interface {
	Supported() bool
	Enabled() bool
}

// PermissionChecker reports whether the process may scan and connect.
type PermissionChecker interface {
	PermissionGranted() bool
}

// AlwaysGranted is a PermissionChecker for platforms without a permission model.
type AlwaysGranted struct{}

// PermissionGranted always returns true.
func (AlwaysGranted) PermissionGranted() bool { return true }
