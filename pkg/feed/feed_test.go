package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/service"
	"github.com/oblakr24/blescanner/pkg/sim"
)

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newExplorer(t *testing.T) *service.Explorer {
	t.Helper()
	thermo := sim.NewPeripheral("AA:00:00:00:00:01", "Thermo", -50)
	thermo.AddService("181a",
		sim.Characteristic{UUID: "2a6e", Properties: gatt.PropRead | gatt.PropNotify, Value: []byte{0x10}},
	)
	radio := sim.NewRadio(10*time.Millisecond, thermo)

	cfg := service.DefaultExplorerConfig()
	cfg.Scan = scan.Settings{Timeout: 5 * time.Second}
	cfg.ScanGrace = 10 * time.Millisecond
	cfg.LookupTimeout = time.Second
	cfg.ResponseTimeout = time.Second

	e := service.NewExplorer(radio, radio, nil, cfg)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(e.Stop)
	return e
}

func dialFeed(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(envelope) bool) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if match(env) {
			return env
		}
	}
}

func TestFeed(t *testing.T) {
	e := newExplorer(t)
	b := NewBroadcaster(e, Config{})
	e.OnEvent(b.Handle)
	srv := httptest.NewServer(NewServer(b, nil).Handler())
	defer srv.Close()

	conn := dialFeed(t, srv)

	first := readUntil(t, conn, func(envelope) bool { return true })
	if first.Type != MsgSnapshot {
		t.Fatalf("first message = %s, want snapshot", first.Type)
	}

	e.StartScan()
	env := readUntil(t, conn, func(env envelope) bool {
		if env.Type != MsgScan {
			return false
		}
		var p ScanPayload
		return json.Unmarshal(env.Payload, &p) == nil && len(p.Devices) > 0
	})
	var sp ScanPayload
	if err := json.Unmarshal(env.Payload, &sp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if sp.Devices[0].Name != "Thermo" || !sp.Devices[0].Connectable {
		t.Errorf("unexpected device %+v", sp.Devices[0])
	}

	e.Connect("AA:00:00:00:00:01")
	env = readUntil(t, conn, func(env envelope) bool {
		if env.Type != MsgSession {
			return false
		}
		var p SessionPayload
		return json.Unmarshal(env.Payload, &p) == nil && p.Connected && len(p.Groups) > 0
	})
	var sess SessionPayload
	if err := json.Unmarshal(env.Payload, &sess); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if sess.Phase != "CONNECTED" || !sess.Groups[0].Attributes[0].Notifiable {
		t.Errorf("unexpected session %+v", sess)
	}

	resp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	var sessions []SessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Address != "AA:00:00:00:00:01" {
		t.Errorf("sessions = %+v", sessions)
	}

	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d, want 1", n)
	}
	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMessage(t *testing.T) {
	msg, ok := message(service.Event{
		Type:        service.EventOperationCompleted,
		Address:     "AA",
		Op:          service.OpRead,
		AttributeID: "2a6e",
		Value:       []byte{0xca, 0xfe},
		Success:     true,
	}, DefaultLogTail)
	if !ok || msg.Type != MsgOperation {
		t.Fatalf("message = %+v, %v", msg, ok)
	}
	if p := msg.Payload.(OperationPayload); p.Value != "cafe" || p.Operation != "READ" {
		t.Errorf("payload = %+v", p)
	}

	msg, _ = message(service.Event{Type: service.EventError, Error: errors.New("boom")}, DefaultLogTail)
	if p := msg.Payload.(ErrorPayload); msg.Type != MsgError || p.Error != "boom" {
		t.Errorf("error message = %+v", msg)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin", nil, "", true},
		{"same host", nil, "http://feed.local", true},
		{"foreign", nil, "http://evil.example", false},
		{"allowed", []string{"http://ui.local"}, "http://ui.local", true},
		{"same host with allow list", []string{"http://ui.local"}, "http://feed.local", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(nil, tt.allowed)
			r := httptest.NewRequest(http.MethodGet, "http://feed.local/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}
