package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/sim"
)

const (
	thermoAddr = "AA:00:00:00:00:01"
	lockAddr   = "AA:00:00:00:00:02"
)

func testRadio() *sim.Radio {
	thermo := sim.NewPeripheral(thermoAddr, "Thermo", -50)
	thermo.AddService("181a",
		sim.Characteristic{UUID: "2a6e", Properties: gatt.PropRead | gatt.PropNotify, Value: []byte{0x10, 0x09}},
		sim.Characteristic{UUID: "2a6f", Properties: gatt.PropRead | gatt.PropWrite, Value: []byte{0x00}},
	)
	lock := sim.NewPeripheral(lockAddr, "", -70)
	lock.AddService("1800", sim.Characteristic{UUID: "2a00", Properties: gatt.PropRead, Value: []byte("lock")})
	return sim.NewRadio(10*time.Millisecond, thermo, lock)
}

func testConfig() ExplorerConfig {
	cfg := DefaultExplorerConfig()
	cfg.Scan = scan.Settings{Timeout: 5 * time.Second}
	cfg.ScanGrace = 10 * time.Millisecond
	cfg.LookupTimeout = time.Second
	cfg.ResponseTimeout = time.Second
	return cfg
}

type harness struct {
	explorer *Explorer
	radio    *sim.Radio
	events   chan Event
}

func newHarness(t *testing.T, start bool) *harness {
	t.Helper()
	h := &harness{radio: testRadio(), events: make(chan Event, 1024)}
	h.explorer = NewExplorer(h.radio, h.radio, nil, testConfig())
	h.explorer.OnEvent(func(ev Event) { h.events <- ev })
	if start {
		if err := h.explorer.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		t.Cleanup(h.explorer.Stop)
	}
	return h
}

// waitFor returns the first event satisfying match.
func (h *harness) waitFor(t *testing.T, what string, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
			return Event{}
		}
	}
}

func (h *harness) scanFor(t *testing.T, n int) scan.State {
	t.Helper()
	h.explorer.StartScan()
	ev := h.waitFor(t, "scan results", func(ev Event) bool {
		return ev.Type == EventScanUpdated && len(ev.Scan.Devices) >= n
	})
	return ev.Scan
}

func (h *harness) connect(t *testing.T, address string) {
	t.Helper()
	h.explorer.Connect(address)
	h.waitFor(t, "connected snapshot", func(ev Event) bool {
		return ev.Type == EventSessionUpdated && ev.Address == address &&
			ev.Snapshot.Connected && len(ev.Snapshot.Groups) > 0
	})
}

func TestExplorerLifecycle(t *testing.T) {
	h := newHarness(t, false)

	if h.explorer.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", h.explorer.State())
	}

	h.explorer.StartScan()
	ev := h.waitFor(t, "error", func(ev Event) bool { return ev.Type == EventError })
	if !errors.Is(ev.Error, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", ev.Error)
	}

	if err := h.explorer.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.explorer.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if h.explorer.State() != StateRunning {
		t.Errorf("expected RUNNING, got %s", h.explorer.State())
	}

	h.explorer.Stop()
	if h.explorer.State() != StateStopped {
		t.Errorf("expected STOPPED, got %s", h.explorer.State())
	}
	h.explorer.Stop()
}

func TestExplorerScan(t *testing.T) {
	h := newHarness(t, true)

	st := h.scanFor(t, 2)
	if !st.Scanning || !st.RadioAvailable || !st.RadioEnabled || !st.PermissionGranted {
		t.Errorf("unexpected scan state: %+v", st)
	}
	if st.Devices[0].Address != thermoAddr {
		t.Errorf("expected %s first, got %s", thermoAddr, st.Devices[0].Address)
	}
	if st.Devices[1].DisplayName() != scan.UnknownDeviceName {
		t.Errorf("expected unnamed device second, got %q", st.Devices[1].DisplayName())
	}

	h.explorer.StopScan()
	h.waitFor(t, "scan stopped", func(ev Event) bool {
		return ev.Type == EventScanUpdated && !ev.Scan.Scanning
	})
}

func TestExplorerUnknownDevice(t *testing.T) {
	h := newHarness(t, true)

	h.explorer.Connect("FF:FF:FF:FF:FF:FF")
	ev := h.waitFor(t, "error", func(ev Event) bool { return ev.Type == EventError })
	if !errors.Is(ev.Error, ErrUnknownDevice) {
		t.Errorf("expected ErrUnknownDevice, got %v", ev.Error)
	}

	select {
	case err := <-h.explorer.Errors():
		if !errors.Is(err, ErrUnknownDevice) {
			t.Errorf("side channel carried %v", err)
		}
	case <-time.After(time.Second):
		t.Error("error not delivered on the side channel")
	}

	h.explorer.Read("FF:FF:FF:FF:FF:FF", "2a6e")
	ev = h.waitFor(t, "error", func(ev Event) bool { return ev.Type == EventError })
	if !errors.Is(ev.Error, ErrUnknownDevice) {
		t.Errorf("expected ErrUnknownDevice, got %v", ev.Error)
	}
}

func TestExplorerOperations(t *testing.T) {
	h := newHarness(t, true)
	h.scanFor(t, 2)
	h.connect(t, thermoAddr)

	completed := func(op Operation) func(Event) bool {
		return func(ev Event) bool {
			return ev.Type == EventOperationCompleted && ev.Op == op
		}
	}

	t.Run("read", func(t *testing.T) {
		h.explorer.Read(thermoAddr, "2a6e")
		ev := h.waitFor(t, "read", completed(OpRead))
		if !ev.Success || !bytes.Equal(ev.Value, []byte{0x10, 0x09}) {
			t.Errorf("unexpected read result: %+v", ev)
		}
		if ev.AttributeID != gatt.CanonicalID("2a6e") {
			t.Errorf("AttributeID = %s", ev.AttributeID)
		}
	})

	t.Run("write", func(t *testing.T) {
		h.explorer.Write(thermoAddr, "2a6f", []byte{0x07})
		ev := h.waitFor(t, "write", completed(OpWrite))
		if !ev.Success {
			t.Errorf("write failed: %+v", ev)
		}
		p, _ := h.radio.Peripheral(thermoAddr)
		if v, _ := p.Value("2a6f"); !bytes.Equal(v, []byte{0x07}) {
			t.Errorf("peripheral value = %x", v)
		}
	})

	t.Run("notify", func(t *testing.T) {
		h.explorer.SetNotification(thermoAddr, "2a6e", true)
		p, _ := h.radio.Peripheral(thermoAddr)
		// The enable completes on the first notification.
		go func() {
			time.Sleep(20 * time.Millisecond)
			p.SetValue("2a6e", []byte{0x11, 0x09})
		}()
		ev := h.waitFor(t, "notify", completed(OpNotify))
		if !bytes.Equal(ev.Value, []byte{0x11, 0x09}) {
			t.Errorf("notified value = %x", ev.Value)
		}
	})

	t.Run("discover", func(t *testing.T) {
		h.explorer.DiscoverAttributes(thermoAddr)
		ev := h.waitFor(t, "discover", completed(OpDiscover))
		if len(ev.Groups) != 1 || len(ev.Groups[0].Attributes) != 2 {
			t.Errorf("unexpected groups: %+v", ev.Groups)
		}
	})

	t.Run("missing attribute", func(t *testing.T) {
		h.explorer.Read(thermoAddr, "ffff")
		ev := h.waitFor(t, "error", func(ev Event) bool { return ev.Type == EventError })
		if ev.Address != thermoAddr {
			t.Errorf("Address = %s", ev.Address)
		}
	})
}

func TestExplorerSessionEnded(t *testing.T) {
	h := newHarness(t, true)
	h.scanFor(t, 2)
	h.connect(t, thermoAddr)

	p, _ := h.radio.Peripheral(thermoAddr)
	p.Drop()

	ev := h.waitFor(t, "session ended", func(ev Event) bool {
		return ev.Type == EventSessionEnded && ev.Address == thermoAddr
	})
	if ev.Snapshot.Connected || ev.Snapshot.Connecting {
		t.Errorf("ended snapshot still connected: %+v", ev.Snapshot)
	}
	if len(ev.Snapshot.Events) == 0 {
		t.Error("ended snapshot lost its history")
	}

	// A reconnect starts a new connection on the peripheral.
	h.connect(t, thermoAddr)
	if p.Connects() != 2 {
		t.Errorf("Connects() = %d", p.Connects())
	}
}

func TestExplorerDisconnect(t *testing.T) {
	h := newHarness(t, true)
	h.scanFor(t, 2)
	h.connect(t, lockAddr)

	h.explorer.Disconnect(lockAddr)
	m, err := h.explorer.Session(lockAddr)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if m.Last().Connected {
		t.Error("session still connected after Disconnect")
	}
}

func TestExplorerStopWhileActionsArrive(t *testing.T) {
	radio := testRadio()
	e := NewExplorer(radio, radio, nil, testConfig())
	e.OnEvent(func(Event) {})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				e.StartScan()
				e.Connect(thermoAddr)
				e.Read(thermoAddr, "2a6e")
			}
		}()
	}
	e.Stop()
	wg.Wait()

	if e.State() != StateStopped {
		t.Fatalf("expected STOPPED, got %s", e.State())
	}

	// Actions after Stop start no background work.
	e.StartScan()
	e.Connect(thermoAddr)
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background work still running after Stop")
	}
}
