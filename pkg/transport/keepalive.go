package transport

import (
	"sync"
	"time"
)

// Keep-alive defaults.
const (
	DefaultPingInterval   = 10 * time.Second
	DefaultPongTimeout    = 3 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures keep-alive behavior. A zero PingInterval
// disables keep-alive.
type KeepAliveConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay is the longest time a dead peer can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// KeepAlive pings periodically and reports a dead peer once
// MaxMissedPongs consecutive pings go unanswered.
type KeepAlive struct {
	config    KeepAliveConfig
	sendPing  func(seq uint32) error
	onTimeout func()

	mu       sync.Mutex
	seq      uint32
	pending  bool
	sentAt   time.Time
	missed   int
	latency  time.Duration
	stopOnce sync.Once
	stop     chan struct{}
	pongs    chan uint32
}

// NewKeepAlive creates a keep-alive monitor. Zero config fields take the
// defaults.
func NewKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = DefaultPongTimeout
	}
	if config.MaxMissedPongs <= 0 {
		config.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return &KeepAlive{
		config:    config,
		sendPing:  sendPing,
		onTimeout: onTimeout,
		stop:      make(chan struct{}),
		pongs:     make(chan uint32, 1),
	}
}

// Start runs the ping loop until Stop.
func (ka *KeepAlive) Start() {
	go ka.loop()
}

// Stop ends the ping loop. Safe to call more than once.
func (ka *KeepAlive) Stop() {
	ka.stopOnce.Do(func() { close(ka.stop) })
}

// PongReceived reports a pong from the peer.
func (ka *KeepAlive) PongReceived(seq uint32) {
	select {
	case ka.pongs <- seq:
	default:
	}
}

// Latency returns the round trip of the last answered ping.
func (ka *KeepAlive) Latency() time.Duration {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.latency
}

// Missed returns the number of consecutive unanswered pings.
func (ka *KeepAlive) Missed() int {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.missed
}

func (ka *KeepAlive) loop() {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	ka.ping()
	for {
		select {
		case <-ka.stop:
			return
		case <-ticker.C:
			if ka.expired() {
				if ka.onTimeout != nil {
					ka.onTimeout()
				}
				return
			}
			ka.ping()
		case seq := <-ka.pongs:
			ka.pong(seq)
		}
	}
}

func (ka *KeepAlive) ping() {
	ka.mu.Lock()
	ka.seq++
	seq := ka.seq
	ka.sentAt = time.Now()
	ka.pending = true
	ka.mu.Unlock()

	// A failed send is detected by the pong timeout.
	_ = ka.sendPing(seq)
}

// expired counts an unanswered ping and reports whether the peer is dead.
func (ka *KeepAlive) expired() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if !ka.pending || time.Since(ka.sentAt) < ka.config.PongTimeout {
		return false
	}
	ka.pending = false
	ka.missed++
	return ka.missed >= ka.config.MaxMissedPongs
}

func (ka *KeepAlive) pong(seq uint32) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	// Late pongs for an earlier ping are ignored.
	if ka.pending && seq == ka.seq {
		ka.latency = time.Since(ka.sentAt)
		ka.pending = false
		ka.missed = 0
	}
}
