package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oblakr24/blescanner/pkg/log"
	"github.com/oblakr24/blescanner/pkg/wire"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
)

// MessageHandler receives every non-control message read from a Conn.
// Handlers run on the connection's read goroutine.
type MessageHandler func(c *Conn, m *wire.Message)

// Conn is a framed bridge connection.
type Conn struct {
	nc        net.Conn
	framer    *Framer
	id        string
	trail     log.Logger
	logger    *slog.Logger
	onMessage MessageHandler
	onError   func(c *Conn, err error)
	keepAlive *KeepAlive

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex
	err       error
}

type connConfig struct {
	maxMessageSize uint32
	keepAlive      KeepAliveConfig
	trail          log.Logger
	logger         *slog.Logger
	onMessage      MessageHandler
	onError        func(c *Conn, err error)
}

func newConn(nc net.Conn, cfg connConfig) *Conn {
	c := &Conn{
		nc:        nc,
		framer:    NewFramer(nc, cfg.maxMessageSize),
		id:        uuid.New().String(),
		trail:     log.OrNoop(cfg.trail),
		logger:    cfg.logger,
		onMessage: cfg.onMessage,
		onError:   cfg.onError,
		closed:    make(chan struct{}),
	}
	if cfg.trail != nil {
		c.framer.SetTrail(cfg.trail, c.id)
	}
	if cfg.keepAlive.PingInterval > 0 {
		c.keepAlive = NewKeepAlive(cfg.keepAlive, c.sendPing, func() {
			c.fail(ErrKeepAliveTimeout)
		})
	}
	return c
}

// start launches the read loop and keep-alive.
func (c *Conn) start() {
	c.recordState("", "CONNECTED", c.RemoteAddr().String())
	if c.keepAlive != nil {
		c.keepAlive.Start()
	}
	go c.readLoop()
}

// ID returns the connection identifier used in trail records.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Done is closed when the connection has closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Err returns why the connection closed. It is nil after a clean close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send encodes and writes m.
func (c *Conn) Send(m *wire.Message) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	data, err := wire.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.Type, err)
	}
	return c.framer.WriteFrame(data)
}

// Close tells the peer and closes the connection.
func (c *Conn) Close() error {
	_ = c.Send(&wire.Message{Type: wire.TypeClose})
	c.shutdown(nil)
	return nil
}

func (c *Conn) fail(err error) {
	if c.onError != nil {
		c.onError(c, err)
	}
	c.shutdown(err)
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		if c.keepAlive != nil {
			c.keepAlive.Stop()
		}
		c.nc.Close()
		close(c.closed)

		reason := ""
		if err != nil {
			reason = err.Error()
		}
		c.recordState("CONNECTED", "DISCONNECTED", reason)
		c.debugLog("Bridge connection closed", "conn", c.id, "error", err)
	})
}

func (c *Conn) readLoop() {
	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			if err == io.EOF {
				c.shutdown(nil)
				return
			}
			c.fail(fmt.Errorf("read error: %w", err))
			return
		}

		m, err := wire.Decode(data)
		if err != nil {
			// One bad frame does not end the connection.
			if c.onError != nil {
				c.onError(c, err)
			}
			continue
		}

		if m.Class() == wire.ClassControl {
			c.handleControl(m)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c, m)
		}
	}
}

func (c *Conn) handleControl(m *wire.Message) {
	switch m.Type {
	case wire.TypePing:
		_ = c.Send(&wire.Message{Type: wire.TypePong, Sequence: m.Sequence})
	case wire.TypePong:
		if c.keepAlive != nil {
			c.keepAlive.PongReceived(m.Sequence)
		}
	case wire.TypeClose:
		c.shutdown(nil)
	}
}

func (c *Conn) sendPing(seq uint32) error {
	return c.Send(&wire.Message{Type: wire.TypePing, Sequence: seq})
}

func (c *Conn) recordState(oldState, newState, reason string) {
	c.trail.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerBridge,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityLink,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (c *Conn) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
