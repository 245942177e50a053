package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultAddress is the feed listen address.
const DefaultAddress = "127.0.0.1:7421"

// Server serves the websocket feed and JSON views of the current state.
//
// Routes:
//
//	/ws            websocket feed: a snapshot message, then live messages
//	/api/scan      current scan state
//	/api/sessions  last snapshot of every registered session
type Server struct {
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// NewServer creates a server over b. With no allowedOrigins only
// same-host browser origins may open the feed.
func NewServer(b *Broadcaster, allowedOrigins []string) *Server {
	s := &Server{broadcaster: b, allowedOrigins: make(map[string]bool)}
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			s.allowedOrigins[trimmed] = true
		}
	}
	return s
}

// Handler returns the feed routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	return mux
}

// Start listens on address and serves until ctx is done or Stop.
func (s *Server) Start(ctx context.Context, address string) error {
	if address == "" {
		address = DefaultAddress
	}
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.mu.Lock()
	s.listener = l
	s.http = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.broadcaster.debugLog("feed server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every feed client.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	s.broadcaster.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.broadcaster.debugLog("feed upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := s.broadcaster.AddClient(conn)
	go func() {
		defer s.broadcaster.RemoveClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(scanPayload(s.broadcaster.source.Scan()))
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.broadcaster.Snapshot().Sessions)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.allowedOrigins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return len(s.allowedOrigins) == 0 && strings.EqualFold(u.Host, r.Host)
}
