package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oblakr24/blescanner/pkg/connection"
	"github.com/oblakr24/blescanner/pkg/log"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// FindAttribute returns the attribute with the given identifier, waiting up
// to the lookup timeout for discovery to produce it.
func (m *Manager) FindAttribute(ctx context.Context, id string) (Attribute, error) {
	snap, gen := m.state.Current()
	if a, ok := snap.Attribute(id); ok {
		return a, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.LookupTimeout)
	defer cancel()

	snap, err := m.state.Wait(ctx, gen, func(s Snapshot) bool {
		_, ok := s.Attribute(id)
		return ok
	})
	if err != nil {
		return Attribute{}, m.waitError(err, ErrAttributeNotFound, id)
	}
	a, _ := snap.Attribute(id)
	return a, nil
}

// mark is the position in the event history at which a request was issued.
type mark struct {
	gen   uint64
	index int
}

func (m *Manager) mark() mark {
	snap, gen := m.state.Current()
	return mark{gen: gen, index: len(snap.Events)}
}

// awaitResponse returns the last event of kind for id already in the
// history. Without one it waits for the first such event to arrive.
func (m *Manager) awaitResponse(ctx context.Context, kind connection.Kind, id string) (connection.Event, error) {
	snap, gen := m.state.Current()
	for i := len(snap.Events) - 1; i >= 0; i-- {
		if snap.Events[i].Matches(kind, id) {
			return snap.Events[i], nil
		}
	}
	return m.awaitAfter(ctx, mark{gen: gen, index: len(snap.Events)}, kind, id)
}

// awaitAfter waits for the first event of kind for id appended after mk.
func (m *Manager) awaitAfter(ctx context.Context, mk mark, kind connection.Kind, id string) (connection.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.ResponseTimeout)
	defer cancel()

	var found connection.Event
	_, err := m.state.Wait(ctx, mk.gen, func(s Snapshot) bool {
		for i := mk.index; i < len(s.Events); i++ {
			if s.Events[i].Matches(kind, id) {
				found = s.Events[i]
				return true
			}
		}
		return false
	})
	if err != nil {
		return connection.Event{}, m.waitError(err, ErrCorrelationTimeout, kind.String()+" "+id)
	}
	return found, nil
}

// waitError maps a wait failure onto the session error taxonomy.
func (m *Manager) waitError(err, timeout error, what string) error {
	switch {
	case errors.Is(err, multicast.ErrReset):
		return connection.ErrNotConnected
	case errors.Is(err, context.DeadlineExceeded):
		m.trail.Log(log.Event{
			Timestamp: time.Now(),
			Direction: log.DirectionIn,
			Layer:     log.LayerSession,
			Category:  log.CategoryError,
			Address:   m.Address(),
			Error:     &log.ErrorEventData{Layer: log.LayerSession, Message: timeout.Error(), Context: what},
		})
		return fmt.Errorf("%w: %s", timeout, what)
	default:
		return err
	}
}
