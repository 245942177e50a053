package discovery

import (
	"context"
	"testing"
	"time"
)

func entry(instance string, addrs ...string) *ServiceEntry {
	return &ServiceEntry{
		Instance: instance,
		Host:     instance + ".local.",
		Port:     7420,
		Text:     []string{"id=" + instance, "n=2"},
		Addrs:    addrs,
	}
}

func next(t *testing.T, out <-chan *BridgeService) *BridgeService {
	t.Helper()
	select {
	case svc := <-out:
		return svc
	case <-time.After(time.Second):
		t.Fatal("no bridge emitted")
		return nil
	}
}

func TestAggregate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan *ServiceEntry)
	removed := make(chan *ServiceEntry)
	out := make(chan *BridgeService)
	b := NewBrowser(BrowserConfig{})
	go b.aggregate(ctx, entries, removed, out)

	entries <- entry("bench", "10.0.0.2")
	svc := next(t, out)
	if svc.InstanceName != "bench" || svc.Info.Devices != 2 || svc.Info.Name != "bench" {
		t.Fatalf("unexpected service %+v", svc)
	}

	// Same instance on another interface is merged, not re-emitted.
	entries <- entry("bench", "fe80::2")
	entries <- &ServiceEntry{Instance: "broken", Text: []string{"n=1"}}
	entries <- entry("desk", "10.0.0.3")
	if svc := next(t, out); svc.InstanceName != "desk" {
		t.Fatalf("emitted %q, want desk", svc.InstanceName)
	}

	// Withdrawing every address forgets the bridge; it is emitted again.
	removed <- entry("bench", "10.0.0.2")
	removed <- entry("bench", "fe80::2")
	entries <- entry("bench", "10.0.0.9")
	svc = next(t, out)
	if svc.InstanceName != "bench" || len(svc.Addresses) != 1 || svc.Addresses[0] != "10.0.0.9" {
		t.Fatalf("unexpected service %+v", svc)
	}

	close(entries)
	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("unexpected emission")
		}
	case <-time.After(time.Second):
		t.Fatal("output not closed")
	}
}

func TestAggregateEmitsCopies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan *ServiceEntry)
	out := make(chan *BridgeService)
	go NewBrowser(BrowserConfig{}).aggregate(ctx, entries, nil, out)

	entries <- entry("bench", "10.0.0.2")
	svc := next(t, out)
	entries <- entry("bench", "10.0.0.5")
	entries <- entry("other", "10.0.0.6")
	next(t, out)

	if len(svc.Addresses) != 1 {
		t.Errorf("emitted service mutated: %v", svc.Addresses)
	}
}

func TestMergeRemoveAddresses(t *testing.T) {
	got := mergeAddresses([]string{"a", "b"}, []string{"b", "c"})
	if len(got) != 3 || got[2] != "c" {
		t.Errorf("merge = %v", got)
	}
	got = removeAddresses(got, []string{"a", "c", "z"})
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("remove = %v", got)
	}
}
