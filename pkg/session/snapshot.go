package session

import (
	"slices"
	"time"

	"github.com/oblakr24/blescanner/pkg/connection"
	"github.com/oblakr24/blescanner/pkg/gatt"
)

// Snapshot is the accumulated state of one session. Snapshots are values;
// the slices they hold are never modified after publication.
type Snapshot struct {
	Connecting      bool
	Connected       bool
	DiscoveryFailed bool

	// Phase is the last observed connection phase.
	Phase connection.Phase

	Groups []Group
	Events []connection.Event
	Logs   []LogEntry
}

// LogEntry is one line of the session log.
type LogEntry struct {
	Time time.Time
	Text string
}

// Group is a service and its attributes.
type Group struct {
	ID         string
	Attributes []Attribute
}

// Attribute is a characteristic addressed by canonical identifier.
type Attribute struct {
	ID    string
	Group string

	Readable    bool
	Writable    bool
	Notifiable  bool
	Indicatable bool

	Characteristic *gatt.Characteristic
}

// Attributes returns all attributes across groups, in discovery order.
func (s Snapshot) Attributes() []Attribute {
	var out []Attribute
	for _, g := range s.Groups {
		out = append(out, g.Attributes...)
	}
	return out
}

// Attribute looks up an attribute by identifier in any accepted form.
func (s Snapshot) Attribute(id string) (Attribute, bool) {
	id = gatt.CanonicalID(id)
	for _, g := range s.Groups {
		for _, a := range g.Attributes {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Attribute{}, false
}

// LastEvent returns the newest event.
func (s Snapshot) LastEvent() (connection.Event, bool) {
	if len(s.Events) == 0 {
		return connection.Event{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// Accumulate folds ev into s and returns the new snapshot. at is the
// capture time of the log line.
func Accumulate(s Snapshot, ev connection.Event, at time.Time) Snapshot {
	switch ev.Kind {
	case connection.KindStartingConnection:
		if !s.Connected {
			s.Connecting = true
		}
		s.DiscoveryFailed = false

	case connection.KindPhaseChanged:
		s.Phase = ev.Phase
		switch ev.Phase.State {
		case connection.PhaseConnecting:
			s.Connecting = !s.Connected
		case connection.PhaseConnected:
			s.Connected = true
			s.Connecting = false
			s.DiscoveryFailed = !ev.Phase.DiscoveryStarted
		case connection.PhaseDisconnecting:
			s.Connecting = false
		case connection.PhaseDisconnected:
			s.Connected = false
			s.Connecting = false
		}

	case connection.KindAttributesDiscovered:
		s.Groups = groupsOf(ev.Services)
		s.DiscoveryFailed = !ev.Success && len(s.Groups) == 0
	}

	// Clip so appends never share a backing array with an earlier snapshot.
	s.Events = append(slices.Clip(s.Events), ev)
	s.Logs = append(slices.Clip(s.Logs), LogEntry{Time: at, Text: ev.Log})
	return s
}

func groupsOf(services []*gatt.Service) []Group {
	groups := make([]Group, 0, len(services))
	for _, svc := range services {
		g := Group{ID: gatt.CanonicalID(svc.UUID)}
		for _, c := range svc.Characteristics {
			g.Attributes = append(g.Attributes, Attribute{
				ID:             gatt.CanonicalID(c.UUID),
				Group:          g.ID,
				Readable:       c.Properties.Readable(),
				Writable:       c.Properties.Writable(),
				Notifiable:     c.Properties.Notifiable(),
				Indicatable:    c.Properties.Indicatable(),
				Characteristic: c,
			})
		}
		groups = append(groups, g)
	}
	return groups
}
