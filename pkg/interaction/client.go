package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/wire"
)

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrRequestFailed   = errors.New("request failed")
)

// DefaultRequestTimeout bounds the wait for an Ack.
const DefaultRequestTimeout = 5 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// Timeout bounds the wait for each reply (default: 5s).
	Timeout time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Client is the central end of a bridge connection.
type Client struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger

	nextMsgID atomic.Uint32

	mu      sync.Mutex
	closed  bool
	pending map[uint32]*pendingRequest
	links   map[string]*remoteLink
}

type pendingRequest struct {
	reply chan *wire.Message

	// onReply runs on the receiving goroutine before the reply is handed
	// over, so state it sets up is visible to the next message.
	onReply func(*wire.Message)
}

// NewClient creates a client sending through sender. Feed every received
// message to HandleMessage.
func NewClient(sender Sender, config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRequestTimeout
	}
	return &Client{
		sender:  sender,
		timeout: config.Timeout,
		logger:  config.Logger,
		pending: make(map[uint32]*pendingRequest),
		links:   make(map[string]*remoteLink),
	}
}

// Devices lists the peripherals served by the bridge.
func (c *Client) Devices(ctx context.Context) ([]wire.Device, error) {
	reply, err := c.request(ctx, &wire.Message{Type: wire.TypeList}, nil)
	if err != nil {
		return nil, err
	}
	if reply.Type != wire.TypeDevices {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedReply, reply.Type)
	}
	return reply.Devices, nil
}

// Peripheral returns a gatt.Peripheral for a bridged device.
func (c *Client) Peripheral(d wire.Device) gatt.Peripheral {
	return &remotePeripheral{client: c, device: d}
}

// Supported reports true; a bridge always has a radio.
func (c *Client) Supported() bool { return true }

// Enabled reports whether the client is still open.
func (c *Client) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// HandleMessage dispatches one received message.
func (c *Client) HandleMessage(m *wire.Message) {
	switch m.Class() {
	case wire.ClassResponse:
		c.mu.Lock()
		p, ok := c.pending[m.MessageID]
		delete(c.pending, m.MessageID)
		c.mu.Unlock()
		if !ok {
			c.debugLog("Dropping reply", "error", ErrUnexpectedReply, "id", m.MessageID)
			return
		}
		if p.onReply != nil {
			p.onReply(m)
		}
		p.reply <- m
	case wire.ClassEvent:
		c.mu.Lock()
		l, ok := c.links[m.Link]
		c.mu.Unlock()
		if !ok {
			c.debugLog("Dropping event for unknown link", "link", m.Link, "type", m.Type)
			return
		}
		l.dispatch(m)
	default:
		c.debugLog("Ignoring message", "type", m.Type)
	}
}

// Close fails pending requests and reports every open link as lost.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint32]*pendingRequest)
	links := c.links
	c.links = make(map[string]*remoteLink)
	c.mu.Unlock()

	for _, p := range pending {
		close(p.reply)
	}
	for _, l := range links {
		l.lost()
	}
	return nil
}

// request sends m and waits for its reply. onReply runs before the reply
// is returned.
func (c *Client) request(ctx context.Context, m *wire.Message, onReply func(*wire.Message)) (*wire.Message, error) {
	m.MessageID = c.nextMsgID.Add(1)
	p := &pendingRequest{reply: make(chan *wire.Message, 1), onReply: onReply}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[m.MessageID] = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, m.MessageID)
		c.mu.Unlock()
	}()

	if err := c.sender.Send(m); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("%w: %s", ErrRequestTimeout, m.Type)
	case reply, ok := <-p.reply:
		if !ok {
			return nil, ErrClientClosed
		}
		return reply, nil
	}
}

// ack sends m and returns the Ack, failing when it was not accepted.
func (c *Client) ack(m *wire.Message, onReply func(*wire.Message)) (*wire.Message, error) {
	reply, err := c.request(context.Background(), m, onReply)
	if err != nil {
		return nil, err
	}
	if reply.Type != wire.TypeAck {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedReply, reply.Type)
	}
	if !reply.Accepted {
		return reply, fmt.Errorf("%w: %s", ErrRequestFailed, reply.Error)
	}
	return reply, nil
}

func (c *Client) register(l *remoteLink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[l.id] = l
}

func (c *Client) unregister(l *remoteLink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, l.id)
}

func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

var _ gatt.Adapter = (*Client)(nil)
