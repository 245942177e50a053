package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/interaction"
	"github.com/oblakr24/blescanner/pkg/transport"
)

// Scanner errors.
var (
	ErrScanActive    = errors.New("scan already active")
	ErrScannerClosed = errors.New("scanner closed")
)

// Source yields bridges. Browser is the mDNS source.
type Source interface {
	Browse(ctx context.Context) (<-chan *BridgeService, error)
}

// ScannerConfig configures a bridge scanner.
type ScannerConfig struct {
	// PollInterval is how often each bridge's device list is fetched.
	PollInterval time.Duration

	// DialTimeout bounds connecting to one bridge (default: 5s).
	DialTimeout time.Duration

	// Client configures the interaction client of each bridge.
	Client interaction.ClientConfig

	// Transport configures the connection to each bridge.
	Transport transport.ClientConfig

	// Logger is used for debug logging. Nil disables logging.
	Logger *slog.Logger
}

type bridge struct {
	service *BridgeService
	conn    *interaction.Conn
	scanner *interaction.Scanner
}

// Scanner merges the device lists of every bridge a Source finds into
// one scan. Bridge connections stay open across scans so peripherals
// handed out in results remain usable until Close.
type Scanner struct {
	source Source
	config ScannerConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	closed  bool
	bridges map[string]*bridge
}

// NewScanner creates a scanner over source.
func NewScanner(source Source, config ScannerConfig) *Scanner {
	if config.DialTimeout <= 0 {
		config.DialTimeout = transport.DefaultConnectTimeout
	}
	return &Scanner{
		source:  source,
		config:  config,
		bridges: make(map[string]*bridge),
	}
}

// StartScan browses for bridges and polls each one found.
func (s *Scanner) StartScan(settings gatt.ScanSettings, cb gatt.ScanCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScannerClosed
	}
	if s.cancel != nil {
		return ErrScanActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	results, err := s.source.Browse(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to browse for bridges: %w", err)
	}
	s.cancel = cancel
	go s.run(ctx, settings, cb, results)
	return nil
}

// StopScan stops browsing and polling. Bridge connections stay open.
func (s *Scanner) StopScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Bridges returns the bridges currently connected.
func (s *Scanner) Bridges() []BridgeService {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BridgeService, 0, len(s.bridges))
	for _, b := range s.bridges {
		out = append(out, *b.service.clone())
	}
	return out
}

// Supported reports true; bridges are found over the network.
func (s *Scanner) Supported() bool { return true }

// Enabled reports whether the scanner is still open.
func (s *Scanner) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close stops scanning and disconnects from every bridge.
func (s *Scanner) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopLocked()
	bridges := s.bridges
	s.bridges = make(map[string]*bridge)
	s.mu.Unlock()

	var errs []error
	for _, b := range bridges {
		if err := b.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scanner) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	for _, b := range s.bridges {
		b.scanner.StopScan()
	}
}

func (s *Scanner) run(ctx context.Context, settings gatt.ScanSettings, cb gatt.ScanCallback, results <-chan *BridgeService) {
	for svc := range results {
		b, err := s.attach(ctx, svc)
		if err != nil {
			s.debugLog("skipping bridge", "instance", svc.InstanceName, "address", svc.DialAddress(), "error", err)
			continue
		}

		s.mu.Lock()
		if ctx.Err() == nil {
			if err := b.scanner.StartScan(settings, &bridgeCallback{s: s, b: b, cb: cb}); err != nil {
				s.debugLog("bridge scan not started", "instance", svc.InstanceName, "error", err)
			}
		}
		s.mu.Unlock()
	}
}

// attach returns the cached bridge for svc, dialing it when there is no
// live connection.
func (s *Scanner) attach(ctx context.Context, svc *BridgeService) (*bridge, error) {
	s.mu.Lock()
	if b, ok := s.bridges[svc.InstanceName]; ok {
		select {
		case <-b.conn.Done():
			delete(s.bridges, svc.InstanceName)
		default:
			s.mu.Unlock()
			return b, nil
		}
	}
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
	defer cancel()
	conn, err := interaction.Dial(dialCtx, svc.DialAddress(), s.config.Client, s.config.Transport)
	if err != nil {
		return nil, err
	}

	b := &bridge{
		service: svc,
		conn:    conn,
		scanner: interaction.NewScanner(conn.Client, s.config.PollInterval),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return nil, ErrScannerClosed
	}
	s.bridges[svc.InstanceName] = b
	s.debugLog("bridge connected", "instance", svc.InstanceName, "address", svc.DialAddress())
	return b, nil
}

// drop forgets a failed bridge so the next announcement redials it.
func (s *Scanner) drop(b *bridge) {
	s.mu.Lock()
	if cur, ok := s.bridges[b.service.InstanceName]; ok && cur == b {
		delete(s.bridges, b.service.InstanceName)
	}
	s.mu.Unlock()

	b.scanner.StopScan()
	_ = b.conn.Close()
}

func (s *Scanner) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

// bridgeCallback forwards one bridge's results. A failing bridge is
// dropped without failing the merged scan.
type bridgeCallback struct {
	s  *Scanner
	b  *bridge
	cb gatt.ScanCallback
}

func (c *bridgeCallback) OnScanResult(r gatt.ScanResult) {
	c.cb.OnScanResult(r)
}

func (c *bridgeCallback) OnScanFailed(code int) {
	c.s.debugLog("bridge lost during scan", "instance", c.b.service.InstanceName, "code", code)
	c.s.drop(c.b)
}

var (
	_ gatt.Scanner = (*Scanner)(nil)
	_ gatt.Adapter = (*Scanner)(nil)
	_ Source       = (*Browser)(nil)
)
