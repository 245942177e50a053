package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/oblakr24/blescanner/pkg/log"
)

// DefaultPort is the default bridge port.
const DefaultPort = 7420

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g. ":7420" or "127.0.0.1:0").
	Address string

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// Trail records frames and connection state changes.
	Trail log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// OnConnect is called when a connection is established.
	OnConnect func(c *Conn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(c *Conn)

	// OnMessage is called for every non-control message.
	OnMessage MessageHandler

	// OnError is called for accept, read and decode errors.
	OnError func(c *Conn, err error)
}

// Server accepts bridge connections.
type Server struct {
	config   ServerConfig
	listener net.Listener

	connsMu sync.RWMutex
	conns   map[*Conn]struct{}

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a server.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	return &Server{
		config: config,
		conns:  make(map[*Conn]struct{}),
	}
}

// Start listens and begins accepting connections. Cancelling ctx stops
// the server.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop closes the listener and every connection, then waits for the
// connection goroutines.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.listener.Close()

	s.connsMu.RLock()
	for c := range s.conns {
		c.Close()
	}
	s.connsMu.RUnlock()

	s.wg.Wait()
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			if s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(nc)
	}
}

func (s *Server) handleConnection(nc net.Conn) {
	defer s.wg.Done()

	c := newConn(nc, connConfig{
		maxMessageSize: s.config.MaxMessageSize,
		trail:          s.config.Trail,
		logger:         s.config.Logger,
		onMessage:      s.config.OnMessage,
		onError:        s.config.OnError,
	})

	s.connsMu.Lock()
	if !s.running.Load() {
		s.connsMu.Unlock()
		nc.Close()
		return
	}
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(c)
	}
	c.start()
	<-c.Done()

	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(c)
	}
}
