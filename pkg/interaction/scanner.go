package interaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// DefaultPollInterval is the interval between device list refreshes.
const DefaultPollInterval = time.Second

// ScanFailedUnreachable is reported through OnScanFailed when the device
// list cannot be fetched.
const ScanFailedUnreachable = 1

// ErrScanActive is returned when a scan is already running.
var ErrScanActive = errors.New("scan already active")

// Scanner presents a bridge's device list as a radio. Every poll reports
// each listed device as a scan result.
type Scanner struct {
	client   *Client
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScanner creates a scanner polling client. A zero interval means
// DefaultPollInterval.
func NewScanner(client *Client, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scanner{client: client, interval: interval}
}

// StartScan begins polling.
func (s *Scanner) StartScan(_ gatt.ScanSettings, cb gatt.ScanCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrScanActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.poll(ctx, cb)
	return nil
}

// StopScan ends polling.
func (s *Scanner) StopScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scanner) poll(ctx context.Context, cb gatt.ScanCallback) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		devices, err := s.client.Devices(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			cb.OnScanFailed(ScanFailedUnreachable)
			return
		}
		for _, d := range devices {
			if ctx.Err() != nil {
				return
			}
			cb.OnScanResult(gatt.ScanResult{
				Address:     d.Address,
				Name:        d.Name,
				RSSI:        d.RSSI,
				Connectable: true,
				Peripheral:  s.client.Peripheral(d),
			})
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

var _ gatt.Scanner = (*Scanner)(nil)
