package feed

import (
	"encoding/hex"
	"time"

	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/service"
	"github.com/oblakr24/blescanner/pkg/session"
)

// MessageType names a feed message.
type MessageType string

const (
	MsgSnapshot     MessageType = "snapshot"
	MsgScan         MessageType = "scan"
	MsgSession      MessageType = "session"
	MsgSessionEnded MessageType = "session_ended"
	MsgOperation    MessageType = "operation"
	MsgError        MessageType = "error"
)

// Message is the envelope of every feed message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// SnapshotPayload is sent to a client when it joins.
type SnapshotPayload struct {
	Scan     ScanPayload      `json:"scan"`
	Sessions []SessionPayload `json:"sessions"`
}

type ScanPayload struct {
	RadioAvailable    bool            `json:"radioAvailable"`
	RadioEnabled      bool            `json:"radioEnabled"`
	PermissionGranted bool            `json:"permissionGranted"`
	Scanning          bool            `json:"scanning"`
	Devices           []DevicePayload `json:"devices"`
}

type DevicePayload struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	RSSI        int    `json:"rssi"`
	Connectable bool   `json:"connectable"`
}

type SessionPayload struct {
	Address         string         `json:"address"`
	Connecting      bool           `json:"connecting"`
	Connected       bool           `json:"connected"`
	DiscoveryFailed bool           `json:"discoveryFailed"`
	Phase           string         `json:"phase"`
	Groups          []GroupPayload `json:"groups"`
	EventCount      int            `json:"eventCount"`
	Logs            []LogPayload   `json:"logs"`
	Error           string         `json:"error,omitempty"`
}

type GroupPayload struct {
	ID         string             `json:"id"`
	Attributes []AttributePayload `json:"attributes"`
}

type AttributePayload struct {
	ID          string `json:"id"`
	Readable    bool   `json:"readable"`
	Writable    bool   `json:"writable"`
	Notifiable  bool   `json:"notifiable"`
	Indicatable bool   `json:"indicatable"`
}

type LogPayload struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

type OperationPayload struct {
	Address   string `json:"address"`
	Operation string `json:"operation"`
	Attribute string `json:"attribute,omitempty"`
	Value     string `json:"value,omitempty"`
	Success   bool   `json:"success"`
}

type ErrorPayload struct {
	Address string `json:"address,omitempty"`
	Error   string `json:"error"`
}

func scanPayload(s scan.State) ScanPayload {
	p := ScanPayload{
		RadioAvailable:    s.RadioAvailable,
		RadioEnabled:      s.RadioEnabled,
		PermissionGranted: s.PermissionGranted,
		Scanning:          s.Scanning,
		Devices:           make([]DevicePayload, 0, len(s.Devices)),
	}
	for _, d := range s.Devices {
		p.Devices = append(p.Devices, DevicePayload{
			Address:     d.Address,
			Name:        d.DisplayName(),
			RSSI:        d.RSSI,
			Connectable: d.Connectable,
		})
	}
	return p
}

// sessionPayload converts a snapshot, keeping at most logTail log lines.
func sessionPayload(address string, s session.Snapshot, logTail int) SessionPayload {
	p := SessionPayload{
		Address:         address,
		Connecting:      s.Connecting,
		Connected:       s.Connected,
		DiscoveryFailed: s.DiscoveryFailed,
		Phase:           s.Phase.String(),
		Groups:          make([]GroupPayload, 0, len(s.Groups)),
		EventCount:      len(s.Events),
	}
	for _, g := range s.Groups {
		gp := GroupPayload{ID: g.ID, Attributes: make([]AttributePayload, 0, len(g.Attributes))}
		for _, a := range g.Attributes {
			gp.Attributes = append(gp.Attributes, AttributePayload{
				ID:          a.ID,
				Readable:    a.Readable,
				Writable:    a.Writable,
				Notifiable:  a.Notifiable,
				Indicatable: a.Indicatable,
			})
		}
		p.Groups = append(p.Groups, gp)
	}

	logs := s.Logs
	if logTail > 0 && len(logs) > logTail {
		logs = logs[len(logs)-logTail:]
	}
	p.Logs = make([]LogPayload, 0, len(logs))
	for _, l := range logs {
		p.Logs = append(p.Logs, LogPayload{Time: l.Time, Text: l.Text})
	}
	return p
}

// message converts an explorer event. ok is false for events the feed
// does not carry.
func message(e service.Event, logTail int) (Message, bool) {
	switch e.Type {
	case service.EventScanUpdated:
		return Message{Type: MsgScan, Payload: scanPayload(e.Scan)}, true
	case service.EventSessionUpdated:
		return Message{Type: MsgSession, Payload: sessionPayload(e.Address, e.Snapshot, logTail)}, true
	case service.EventSessionEnded:
		p := sessionPayload(e.Address, e.Snapshot, logTail)
		if e.Error != nil {
			p.Error = e.Error.Error()
		}
		return Message{Type: MsgSessionEnded, Payload: p}, true
	case service.EventOperationCompleted:
		p := OperationPayload{
			Address:   e.Address,
			Operation: e.Op.String(),
			Attribute: e.AttributeID,
			Success:   e.Success,
		}
		if len(e.Value) > 0 {
			p.Value = hex.EncodeToString(e.Value)
		}
		return Message{Type: MsgOperation, Payload: p}, true
	case service.EventError:
		p := ErrorPayload{Address: e.Address}
		if e.Error != nil {
			p.Error = e.Error.Error()
		}
		return Message{Type: MsgError, Payload: p}, true
	default:
		return Message{}, false
	}
}
