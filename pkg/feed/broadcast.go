package feed

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/service"
	"github.com/oblakr24/blescanner/pkg/session"
)

// Defaults.
const (
	DefaultSendBuffer = 64
	DefaultLogTail    = 100
)

// Source provides the state a joining client starts from.
// *service.Explorer is a Source.
type Source interface {
	Scan() scan.State
	Registry() *session.Registry
}

// Config configures a Broadcaster.
type Config struct {
	// SendBuffer is the per-client queue length. A client whose queue is
	// full is disconnected.
	SendBuffer int

	// LogTail limits the session log lines sent per snapshot.
	LogTail int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn, buffer int) *client {
	c := &client{conn: conn, send: make(chan []byte, buffer)}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans explorer events out to websocket clients as JSON.
type Broadcaster struct {
	source Source
	config Config

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewBroadcaster creates a broadcaster. Register Handle with
// Explorer.OnEvent to feed it.
func NewBroadcaster(source Source, config Config) *Broadcaster {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultSendBuffer
	}
	if config.LogTail <= 0 {
		config.LogTail = DefaultLogTail
	}
	return &Broadcaster{
		source:  source,
		config:  config,
		clients: make(map[*client]bool),
	}
}

// Handle broadcasts one explorer event.
func (b *Broadcaster) Handle(e service.Event) {
	if msg, ok := message(e, b.config.LogTail); ok {
		b.broadcast(msg)
	}
}

// Snapshot returns the current scan state and every registered session.
func (b *Broadcaster) Snapshot() SnapshotPayload {
	p := SnapshotPayload{Scan: scanPayload(b.source.Scan())}
	reg := b.source.Registry()
	addrs := reg.Addresses()
	p.Sessions = make([]SessionPayload, 0, len(addrs))
	for _, addr := range addrs {
		if m, ok := reg.Get(addr); ok {
			p.Sessions = append(p.Sessions, sessionPayload(addr, m.Last(), b.config.LogTail))
		}
	}
	return p
}

// AddClient registers conn and queues the current snapshot for it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn, b.config.SendBuffer)

	data, err := json.Marshal(Message{Type: MsgSnapshot, Payload: b.Snapshot()})
	if err == nil {
		c.send <- data
	}

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	b.debugLog("feed client added", "remote", conn.RemoteAddr().String())
	return c
}

// RemoveClient unregisters c and closes its connection.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.debugLog("feed marshal failed", "type", msg.Type, "error", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		b.mu.RLock()
		slow := false
		if b.clients[c] {
			select {
			case c.send <- data:
			default:
				slow = true
			}
		}
		b.mu.RUnlock()
		if slow {
			b.debugLog("feed client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) debugLog(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}
