package scan

import (
	"errors"
	"fmt"
)

// Scan errors.
var (
	ErrPermissionDenied     = errors.New("scan permission denied")
	ErrRadioUnavailable     = errors.New("radio unavailable")
	ErrRadioDisabled        = errors.New("radio disabled")
	ErrDiscoveryStartFailed = errors.New("discovery start failed")

	// ErrScanFailed is wrapped by ScanFailedError.
	ErrScanFailed = errors.New("scan failed")
)

// ScanFailedError reports a failure code from the discovery primitive.
type ScanFailedError struct {
	Code int
}

func (e *ScanFailedError) Error() string {
	return fmt.Sprintf("scan failed: code %d", e.Code)
}

// Unwrap returns ErrScanFailed.
func (e *ScanFailedError) Unwrap() error {
	return ErrScanFailed
}
