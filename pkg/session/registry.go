package session

import (
	"slices"
	"sync"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// Registry holds one Manager per device address.
type Registry struct {
	config Config

	mu       sync.Mutex
	sessions map[string]*Manager
}

// NewRegistry creates an empty registry. cfg is applied to every session.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		config:   cfg,
		sessions: make(map[string]*Manager),
	}
}

// GetOrCreate returns the session for p's address, creating it if absent.
func (r *Registry) GetOrCreate(p gatt.Peripheral) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.sessions[p.Address()]; ok {
		return m
	}
	m := New(p, r.config)
	r.sessions[p.Address()] = m
	return m
}

// Get returns the session for address.
func (r *Registry) Get(address string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.sessions[address]
	return m, ok
}

// Remove disconnects and forgets the session for address.
func (r *Registry) Remove(address string) {
	r.mu.Lock()
	m, ok := r.sessions[address]
	delete(r.sessions, address)
	r.mu.Unlock()

	if ok {
		m.Disconnect()
	}
}

// Addresses returns the registered addresses in sorted order.
func (r *Registry) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sessions))
	for addr := range r.sessions {
		out = append(out, addr)
	}
	slices.Sort(out)
	return out
}

// Close disconnects every session and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Manager)
	r.mu.Unlock()

	for _, m := range sessions {
		m.Disconnect()
	}
}
