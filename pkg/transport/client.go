package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/oblakr24/blescanner/pkg/log"
)

// DefaultConnectTimeout bounds a single dial attempt.
const DefaultConnectTimeout = 5 * time.Second

// ClientConfig configures Dial.
type ClientConfig struct {
	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// ConnectTimeout bounds each attempt (default: 5s).
	ConnectTimeout time.Duration

	// MaxAttempts limits dial attempts. Zero retries until ctx is done.
	MaxAttempts int

	// Backoff spaces the attempts.
	Backoff BackoffConfig

	// KeepAlive pings the server. A zero PingInterval disables it.
	KeepAlive KeepAliveConfig

	// Trail records frames and connection state changes.
	Trail log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// OnMessage is called for every non-control message.
	OnMessage MessageHandler

	// OnError is called for read, decode and keep-alive errors.
	OnError func(c *Conn, err error)
}

// Dial connects to a bridge, retrying with backoff.
func Dial(ctx context.Context, address string, config ClientConfig) (*Conn, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	backoff := NewBackoff(config.Backoff)
	dialer := &net.Dialer{Timeout: config.ConnectTimeout}

	for {
		nc, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			c := newConn(nc, connConfig{
				maxMessageSize: config.MaxMessageSize,
				keepAlive:      config.KeepAlive,
				trail:          config.Trail,
				logger:         config.Logger,
				onMessage:      config.OnMessage,
				onError:        config.OnError,
			})
			c.start()
			return c, nil
		}

		if config.MaxAttempts > 0 && backoff.Attempts()+1 >= config.MaxAttempts {
			return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
		}
		delay := backoff.Next()
		if config.Logger != nil {
			config.Logger.Debug("Bridge dial failed, retrying", "address", address, "delay", delay, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to %s: %w", address, ctx.Err())
		case <-time.After(delay):
		}
	}
}
