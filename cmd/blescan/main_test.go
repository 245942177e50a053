package main

import (
	"context"
	"testing"

	"github.com/oblakr24/blescanner/internal/config"
	"github.com/oblakr24/blescanner/pkg/transport"
)

func TestBridgeAt(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort uint16
		wantErr  bool
	}{
		{"10.0.0.5:7500", "10.0.0.5", 7500, false},
		{"bench.local", "bench.local", transport.DefaultPort, false},
		{"[fe80::1]:7420", "fe80::1", 7420, false},
		{"host:99999", "", 0, true},
		{":7420", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			svc, err := bridgeAt(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", svc)
				}
				return
			}
			if err != nil {
				t.Fatalf("bridgeAt: %v", err)
			}
			if svc.Host != tt.wantHost || svc.Port != tt.wantPort {
				t.Errorf("got %s:%d, want %s:%d", svc.Host, svc.Port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestFixedSource(t *testing.T) {
	svc, err := bridgeAt("127.0.0.1:7420")
	if err != nil {
		t.Fatalf("bridgeAt: %v", err)
	}
	ch, err := fixedSource{svc}.Browse(context.Background())
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	if got := <-ch; got != svc {
		t.Errorf("got %+v", got)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
}

func TestOpenBackend(t *testing.T) {
	cfg := config.Default()

	r, closeFn, err := openBackend("sim", cfg, nil, nil)
	if err != nil {
		t.Fatalf("sim backend: %v", err)
	}
	defer closeFn()
	if !r.Supported() || !r.Enabled() {
		t.Error("sim radio should be available")
	}

	if _, _, err := openBackend("carrier-pigeon", cfg, nil, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
