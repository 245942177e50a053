package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/oblakr24/blescanner/pkg/connection"
)

// ReadAttribute reads the attribute and returns the response event. A
// failed read is reported through the event's Success and Status.
func (m *Manager) ReadAttribute(ctx context.Context, id string) (connection.Event, error) {
	a, err := m.lookup(ctx, id)
	if err != nil {
		return connection.Event{}, err
	}
	if err := m.conn.ReadAttribute(a.Characteristic); err != nil {
		return connection.Event{}, err
	}
	return m.awaitResponse(ctx, connection.KindAttributeRead, a.ID)
}

// WriteAttribute writes value to the attribute and returns the confirmation
// event.
func (m *Manager) WriteAttribute(ctx context.Context, id string, value []byte) (connection.Event, error) {
	a, err := m.lookup(ctx, id)
	if err != nil {
		return connection.Event{}, err
	}
	if err := m.conn.WriteAttribute(a.Characteristic, value); err != nil {
		return connection.Event{}, err
	}
	return m.awaitResponse(ctx, connection.KindAttributeWritten, a.ID)
}

// SetNotification enables or disables notifications for the attribute.
// Enabling returns the last value change, waiting for one if none arrived
// yet; disabling returns as soon as the request is accepted, with a zero
// event.
func (m *Manager) SetNotification(ctx context.Context, id string, enable bool) (connection.Event, error) {
	a, err := m.lookup(ctx, id)
	if err != nil {
		return connection.Event{}, err
	}
	if err := m.conn.SetNotification(a.Characteristic, enable); err != nil {
		return connection.Event{}, err
	}
	if !enable {
		return connection.Event{}, nil
	}
	return m.awaitResponse(ctx, connection.KindAttributeChanged, a.ID)
}

// DiscoverAttributes requests a new discovery and returns the groups found.
// Only a discovery completed after the request counts.
func (m *Manager) DiscoverAttributes(ctx context.Context) ([]Group, error) {
	if !m.active() {
		return nil, connection.ErrNotConnected
	}
	mk := m.mark()
	if err := m.conn.DiscoverServices(); err != nil {
		if errors.Is(err, connection.ErrOperationRejected) {
			return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
		}
		return nil, err
	}
	ev, err := m.awaitAfter(ctx, mk, connection.KindAttributesDiscovered, "")
	if err != nil {
		return nil, err
	}
	if !ev.Success && len(ev.Services) == 0 {
		return nil, fmt.Errorf("%w: status %s", ErrDiscoveryFailed, ev.Status)
	}
	return groupsOf(ev.Services), nil
}

// lookup fails fast for a session with no connection stream.
func (m *Manager) lookup(ctx context.Context, id string) (Attribute, error) {
	if !m.active() {
		return Attribute{}, connection.ErrNotConnected
	}
	return m.FindAttribute(ctx, id)
}
