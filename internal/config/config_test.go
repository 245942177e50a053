package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blescan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	s := cfg.ScanSettings()
	if s.Timeout != 8*time.Second || s.Mode != gatt.ScanModeLowPower {
		t.Errorf("scan settings = %+v", s)
	}
	if cfg.Scan.Grace != 500*time.Millisecond {
		t.Errorf("grace = %s", cfg.Scan.Grace)
	}
	if cfg.Session.LookupTimeout != 5*time.Second || cfg.Session.ResponseTimeout != 10*time.Second {
		t.Errorf("session = %+v", cfg.Session)
	}

	radio, err := cfg.Radio()
	if err != nil {
		t.Fatalf("Radio failed: %v", err)
	}
	if n := len(radio.Peripherals()); n != 2 {
		t.Errorf("peripherals = %d, want 2", n)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
scan:
  timeout: 3s
  mode: low-latency
session:
  response_timeout: 250ms
log:
  level: debug
  trail: /tmp/session.blog
feed:
  listen: 127.0.0.1:9000
sim:
  advertise_interval: 50ms
  devices:
    - address: 11:22:33:44:55:66
      name: Heart
      rssi: -60
      latency: 5ms
      services:
        - uuid: 180d
          characteristics:
            - uuid: 2a37
              properties: [notify]
              value: "0048"
              notify_interval: 200ms
            - uuid: 2a39
              properties: [Write]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s := cfg.ScanSettings(); s.Timeout != 3*time.Second || s.Mode != gatt.ScanModeLowLatency {
		t.Errorf("scan settings = %+v", s)
	}
	if cfg.Scan.Grace != 500*time.Millisecond {
		t.Errorf("grace default lost: %s", cfg.Scan.Grace)
	}
	if cfg.Session.ResponseTimeout != 250*time.Millisecond || cfg.Session.LookupTimeout != 5*time.Second {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Level() != slog.LevelDebug || cfg.Log.Trail != "/tmp/session.blog" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Feed.Listen != "127.0.0.1:9000" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Bridge.Name != "blescan-bridge" {
		t.Errorf("bridge default lost: %+v", cfg.Bridge)
	}

	if len(cfg.Sim.Devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(cfg.Sim.Devices))
	}
	p, err := cfg.Sim.Devices[0].Peripheral()
	if err != nil {
		t.Fatalf("Peripheral failed: %v", err)
	}
	if p.Name() != "Heart" || p.RSSI() != -60 {
		t.Errorf("peripheral = %s %d", p.Name(), p.RSSI())
	}
	services := p.Services()
	if len(services) != 1 || len(services[0].Characteristics) != 2 {
		t.Fatalf("services = %+v", services)
	}
	if props := services[0].Characteristics[0].Properties; !props.Notifiable() || props.Readable() {
		t.Errorf("properties = %s", props)
	}
	if v, _ := p.Value("2a37"); !bytes.Equal(v, []byte{0x00, 0x48}) {
		t.Errorf("value = %x", v)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad mode", "scan:\n  mode: turbo\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"negative timeout", "scan:\n  timeout: -1s\n"},
		{"missing address", "sim:\n  devices:\n    - name: x\n"},
		{"duplicate address", "sim:\n  devices:\n    - address: aa:bb\n    - address: AA:BB\n"},
		{"bad property", "sim:\n  devices:\n    - address: aa\n      services:\n        - uuid: 180f\n          characteristics:\n            - uuid: 2a19\n              properties: [fly]\n"},
		{"bad value", "sim:\n  devices:\n    - address: aa\n      services:\n        - uuid: 180f\n          characteristics:\n            - uuid: 2a19\n              value: zz\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error = %v, want ErrInvalid", err)
			}
		})
	}

	if _, err := Load(writeConfig(t, "scan: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "": slog.LevelInfo, "INFO": slog.LevelInfo,
		"warn": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}
