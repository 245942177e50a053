package scan

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/log"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// Defaults.
const (
	DefaultTimeout = 8 * time.Second
	DefaultGrace   = 500 * time.Millisecond
)

// Settings bounds one scan burst.
type Settings struct {
	// Timeout ends the burst. Zero means DefaultTimeout.
	Timeout time.Duration

	// Mode is passed through to the radio.
	Mode gatt.ScanMode
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{Timeout: DefaultTimeout, Mode: gatt.ScanModeLowPower}
}

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	return s
}

// Config configures a Scanner and an Aggregator.
type Config struct {
	// Grace delays stopping the radio after the last subscriber leaves.
	// Zero means DefaultGrace.
	Grace time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trail records scan results and failures.
	Trail log.Logger
}

func (c Config) withDefaults() Config {
	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}
	return c
}

// Scanner runs discovery bursts against the radio, one at a time.
type Scanner struct {
	radio       gatt.Scanner
	adapter     gatt.Adapter
	permissions gatt.PermissionChecker
	logger      *slog.Logger
	trail       log.Logger

	mu     sync.Mutex
	active *burst
}

// NewScanner creates a Scanner. A nil permissions checker grants everything.
func NewScanner(radio gatt.Scanner, adapter gatt.Adapter, permissions gatt.PermissionChecker, cfg Config) *Scanner {
	if permissions == nil {
		permissions = gatt.AlwaysGranted{}
	}
	return &Scanner{
		radio:       radio,
		adapter:     adapter,
		permissions: permissions,
		logger:      cfg.Logger,
		trail:       log.OrNoop(cfg.Trail),
	}
}

// burst is one scan. The radio runs between start and finish.
type burst struct {
	s        *Scanner
	settings Settings
	hub      *multicast.Hub[gatt.ScanResult]

	mu      sync.Mutex
	started bool
	ended   bool
	timer   *time.Timer
}

// Scan returns the result stream of a new burst. The radio starts on the
// first subscription and stops on timeout, Stop, a failure, or when the
// last subscriber leaves.
func (s *Scanner) Scan(settings Settings) *multicast.Hub[gatt.ScanResult] {
	b := &burst{s: s, settings: settings.withDefaults()}
	b.hub = multicast.NewHub[gatt.ScanResult](multicast.Options{
		OnStart: b.start,
		OnIdle:  func() { b.finish(nil) },
	})
	return b.hub
}

// Stop ends the active burst. Results already queued may still be
// delivered.
func (s *Scanner) Stop() {
	s.mu.Lock()
	b := s.active
	s.mu.Unlock()

	if b != nil {
		b.finish(nil)
	}
}

// check returns the first unmet scan precondition.
func (s *Scanner) check() error {
	switch {
	case !s.permissions.PermissionGranted():
		return ErrPermissionDenied
	case !s.adapter.Supported():
		return ErrRadioUnavailable
	case !s.adapter.Enabled():
		return ErrRadioDisabled
	}
	return nil
}

func (b *burst) start() {
	s := b.s
	if err := s.check(); err != nil {
		b.finish(err)
		return
	}

	s.mu.Lock()
	prev := s.active
	s.active = b
	s.mu.Unlock()
	if prev != nil {
		prev.finish(nil)
	}

	gs := gatt.ScanSettings{Timeout: b.settings.Timeout, Mode: b.settings.Mode}
	if err := s.radio.StartScan(gs, (*burstCallback)(b)); err != nil {
		b.finish(fmt.Errorf("%w: %v", ErrDiscoveryStartFailed, err))
		return
	}

	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		s.radio.StopScan()
		return
	}
	b.started = true
	b.timer = time.AfterFunc(b.settings.Timeout, func() { b.finish(nil) })
	b.mu.Unlock()

	s.debugLog("Scan started", "timeout", b.settings.Timeout, "mode", b.settings.Mode.String())
	s.recordState("STARTED", "")
}

// finish ends the burst once. A nil err completes the stream.
func (b *burst) finish(err error) {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return
	}
	b.ended = true
	started := b.started
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()

	s := b.s
	s.mu.Lock()
	if s.active == b {
		s.active = nil
	}
	s.mu.Unlock()

	if started {
		s.radio.StopScan()
	}

	if err != nil {
		s.debugLog("Scan failed", "error", err)
		s.recordState("FAILED", err.Error())
		b.hub.Fail(err)
		return
	}
	if started {
		s.debugLog("Scan stopped")
		s.recordState("STOPPED", "")
	}
	b.hub.Complete()
}

func (s *Scanner) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Scanner) recordState(state, reason string) {
	s.trail.Log(log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionIn,
		Layer:       log.LayerSession,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityScan, NewState: state, Reason: reason},
	})
}

// burstCallback receives radio callbacks for one burst.
type burstCallback burst

func (c *burstCallback) OnScanResult(r gatt.ScanResult) {
	b := (*burst)(c)
	if !b.hub.Publish(r) {
		return
	}
	b.s.trail.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerRadio,
		Category:   log.CategoryScan,
		Address:    r.Address,
		DeviceName: r.Name,
		Scan:       &log.ScanEvent{Name: r.Name, RSSI: r.RSSI, Connectable: r.Connectable},
	})
}

func (c *burstCallback) OnScanFailed(code int) {
	b := (*burst)(c)
	b.s.trail.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerRadio,
		Category:  log.CategoryScan,
		Scan:      &log.ScanEvent{FailureCode: code},
	})
	b.finish(&ScanFailedError{Code: code})
}

var _ gatt.ScanCallback = (*burstCallback)(nil)
