package connection

import (
	"time"

	"github.com/oblakr24/blescanner/pkg/log"
)

// record writes an incoming event to the trail.
func (m *Manager) record(cs *connStream, ev Event) {
	rec := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: cs.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerRadio,
		Address:      m.Address(),
		DeviceName:   m.Name(),
	}

	switch ev.Kind {
	case KindStartingConnection, KindPhaseChanged:
		next := "STARTING"
		if ev.Kind == KindPhaseChanged {
			next = ev.Phase.State.String()
		}
		m.mu.Lock()
		old := cs.phase
		if ev.Kind == KindPhaseChanged {
			cs.phase = ev.Phase.State
		}
		m.mu.Unlock()

		rec.Category = log.CategoryState
		rec.StateChange = &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old.String(),
			NewState: next,
		}
		if ev.Kind == KindStartingConnection {
			rec.Layer = log.LayerSession
		}

	case KindAttributesDiscovered:
		rec.Category = log.CategoryAttribute
		rec.Attribute = &log.AttributeEvent{Op: log.OpDiscover, Success: ev.Success, Status: uint16(ev.Status), Count: len(ev.Services)}

	case KindAttributeRead, KindAttributeWritten, KindAttributeChanged:
		op := log.OpRead
		switch ev.Kind {
		case KindAttributeWritten:
			op = log.OpWrite
		case KindAttributeChanged:
			op = log.OpChanged
		}
		rec.Category = log.CategoryAttribute
		rec.Attribute = &log.AttributeEvent{
			Op:          op,
			AttributeID: ev.AttributeID,
			Value:       ev.Value,
			Success:     ev.Success,
			Status:      uint16(ev.Status),
		}
	}

	m.trail.Log(rec)
}

// recordRequest writes an outgoing request to the trail. cs may be nil.
func (m *Manager) recordRequest(cs *connStream, attr *log.AttributeEvent) {
	rec := log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerRadio,
		Category:  log.CategoryAttribute,
		Address:   m.Address(),
		Attribute: attr,
	}
	if cs != nil {
		rec.ConnectionID = cs.id
	}
	m.trail.Log(rec)
}

func (m *Manager) recordState(cs *connStream, old, next, reason string) {
	m.trail.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: cs.id,
		Direction:    log.DirectionOut,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		Address:      m.Address(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old,
			NewState: next,
			Reason:   reason,
		},
	})
}
