package goble

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

type fakeAdv struct {
	ble.Advertisement
	addr string
	name string
	rssi int
}

func (a fakeAdv) Addr() ble.Addr    { return ble.NewAddr(a.addr) }
func (a fakeAdv) LocalName() string { return a.name }
func (a fakeAdv) RSSI() int         { return a.rssi }
func (a fakeAdv) Connectable() bool { return true }

type fakeDevice struct {
	ble.Device
	advs    []ble.Advertisement
	scanErr error
	dialErr error
	client  *fakeClient
	stopped bool
}

func (d *fakeDevice) Scan(ctx context.Context, _ bool, h ble.AdvHandler) error {
	for _, a := range d.advs {
		h(a)
	}
	if d.scanErr != nil {
		return d.scanErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDevice) Dial(ctx context.Context, _ ble.Addr) (ble.Client, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.client, nil
}

func (d *fakeDevice) Stop() error {
	d.stopped = true
	return nil
}

type fakeClient struct {
	ble.Client
	profile *ble.Profile

	mu       sync.Mutex
	values   map[string][]byte
	handlers map[string]ble.NotificationHandler
	once     sync.Once
	gone     chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		profile: &ble.Profile{Services: []*ble.Service{{
			UUID: ble.MustParse("181a"),
			Characteristics: []*ble.Characteristic{
				{UUID: ble.MustParse("2a6e"), Property: ble.CharRead | ble.CharNotify, ValueHandle: 3},
				{UUID: ble.MustParse("2a6f"), Property: ble.CharWrite, ValueHandle: 5},
				{UUID: ble.MustParse("2a70"), Property: ble.CharRead, ValueHandle: 7},
			},
		}}},
		values:   map[string][]byte{gatt.CanonicalID("2a6e"): {0x10}},
		handlers: make(map[string]ble.NotificationHandler),
		gone:     make(chan struct{}),
	}
}

func (c *fakeClient) DiscoverProfile(bool) (*ble.Profile, error) { return c.profile, nil }

func (c *fakeClient) ReadCharacteristic(ch *ble.Characteristic) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[gatt.CanonicalID(ch.UUID.String())]
	if !ok {
		return nil, ble.ATTError(0x02)
	}
	return v, nil
}

func (c *fakeClient) WriteCharacteristic(ch *ble.Characteristic, v []byte, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[gatt.CanonicalID(ch.UUID.String())] = v
	return nil
}

func (c *fakeClient) Subscribe(ch *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[gatt.CanonicalID(ch.UUID.String())] = h
	return nil
}

func (c *fakeClient) Unsubscribe(ch *ble.Characteristic, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, gatt.CanonicalID(ch.UUID.String()))
	return nil
}

func (c *fakeClient) notify(id string, v []byte) bool {
	c.mu.Lock()
	h := c.handlers[gatt.CanonicalID(id)]
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(v)
	return true
}

func (c *fakeClient) CancelConnection() error {
	c.once.Do(func() { close(c.gone) })
	return nil
}

func (c *fakeClient) Disconnected() <-chan struct{} { return c.gone }

type record struct {
	kind   string
	status gatt.Status
	state  gatt.ProfileState
	id     string
	value  []byte
	count  int
}

type recorder struct {
	ch       chan record
	services []*gatt.Service
}

func newRecorder() *recorder { return &recorder{ch: make(chan record, 64)} }

func (r *recorder) OnConnectionStateChange(_ gatt.Handle, status gatt.Status, state gatt.ProfileState) {
	r.ch <- record{kind: "state", status: status, state: state}
}

func (r *recorder) OnServicesDiscovered(_ gatt.Handle, services []*gatt.Service, status gatt.Status) {
	r.services = services
	r.ch <- record{kind: "discovered", status: status, count: len(services)}
}

func (r *recorder) OnCharacteristicRead(_ gatt.Handle, c *gatt.Characteristic, value []byte, status gatt.Status) {
	r.ch <- record{kind: "read", status: status, id: c.UUID, value: value}
}

func (r *recorder) OnCharacteristicWrite(_ gatt.Handle, c *gatt.Characteristic, status gatt.Status) {
	r.ch <- record{kind: "write", status: status, id: c.UUID}
}

func (r *recorder) OnCharacteristicChanged(_ gatt.Handle, c *gatt.Characteristic, value []byte) {
	r.ch <- record{kind: "changed", id: c.UUID, value: value}
}

func (r *recorder) next(t *testing.T, kind string) record {
	t.Helper()
	select {
	case rec := <-r.ch:
		if rec.kind != kind {
			t.Fatalf("expected %s, got %+v", kind, rec)
		}
		return rec
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", kind)
		return record{}
	}
}

type scanRecorder struct {
	results chan gatt.ScanResult
	failed  chan int
}

func (s *scanRecorder) OnScanResult(r gatt.ScanResult) { s.results <- r }
func (s *scanRecorder) OnScanFailed(code int)          { s.failed <- code }

func TestRadioScan(t *testing.T) {
	dev := &fakeDevice{advs: []ble.Advertisement{
		fakeAdv{addr: "AA:00:00:00:00:01", name: "Thermo", rssi: -40},
		fakeAdv{addr: "AA:00:00:00:00:02", rssi: -70},
	}}
	r := New(dev, Config{})
	sr := &scanRecorder{results: make(chan gatt.ScanResult, 8), failed: make(chan int, 1)}

	if err := r.StartScan(gatt.ScanSettings{}, sr); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	if err := r.StartScan(gatt.ScanSettings{}, sr); !errors.Is(err, ErrScanActive) {
		t.Errorf("second StartScan = %v, want ErrScanActive", err)
	}

	first := <-sr.results
	if !gatt.SameID(first.Address, "AA:00:00:00:00:01") || first.Name != "Thermo" || first.RSSI != -40 {
		t.Errorf("unexpected result %+v", first)
	}
	if first.Peripheral == nil || first.Peripheral.Name() != "Thermo" {
		t.Error("result has no usable peripheral")
	}
	<-sr.results

	r.StopScan()
	if err := r.StartScan(gatt.ScanSettings{}, sr); err != nil {
		t.Errorf("restart failed: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !dev.stopped || r.Enabled() {
		t.Error("Close did not release the device")
	}
	if err := r.StartScan(gatt.ScanSettings{}, sr); !errors.Is(err, ErrRadioClosed) {
		t.Errorf("StartScan after Close = %v, want ErrRadioClosed", err)
	}
}

func TestRadioScanFailure(t *testing.T) {
	r := New(&fakeDevice{scanErr: errors.New("controller reset")}, Config{})
	sr := &scanRecorder{results: make(chan gatt.ScanResult, 1), failed: make(chan int, 1)}
	if err := r.StartScan(gatt.ScanSettings{}, sr); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	select {
	case code := <-sr.failed:
		if code != ScanFailedInternal {
			t.Errorf("code = %d, want %d", code, ScanFailedInternal)
		}
	case <-time.After(time.Second):
		t.Fatal("no scan failure reported")
	}
}

func TestLinkLifecycle(t *testing.T) {
	client := newFakeClient()
	r := New(&fakeDevice{client: client}, Config{})
	rec := newRecorder()

	h, err := r.Peripheral("AA:00:00:00:00:01", "Thermo").Connect(rec)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer h.Close()

	if got := rec.next(t, "state"); got.state != gatt.StateConnecting {
		t.Fatalf("first state = %s", got.state)
	}
	if got := rec.next(t, "state"); got.state != gatt.StateConnected || !got.status.IsSuccess() {
		t.Fatalf("connected = %+v", got)
	}

	temp := &gatt.Characteristic{UUID: gatt.CanonicalID("2a6e")}
	if h.ReadCharacteristic(temp) {
		t.Error("read accepted before discovery")
	}

	if !h.DiscoverServices() {
		t.Fatal("discovery rejected")
	}
	if got := rec.next(t, "discovered"); got.count != 1 || len(rec.services[0].Characteristics) != 3 {
		t.Fatalf("discovered %+v", got)
	}
	if p := rec.services[0].Characteristics[0].Properties; !p.Readable() || !p.Notifiable() {
		t.Errorf("properties = %s", p)
	}

	t.Run("read", func(t *testing.T) {
		if !h.ReadCharacteristic(temp) {
			t.Fatal("read rejected")
		}
		if got := rec.next(t, "read"); !bytes.Equal(got.value, []byte{0x10}) {
			t.Errorf("value = %x", got.value)
		}
		if !h.ReadCharacteristic(&gatt.Characteristic{UUID: "2a70"}) {
			t.Fatal("read rejected")
		}
		if got := rec.next(t, "read"); got.status != gatt.StatusReadNotPermitted {
			t.Errorf("status = %s, want read not permitted", got.status)
		}
	})

	t.Run("write", func(t *testing.T) {
		if h.WriteCharacteristic(temp, []byte{1}) {
			t.Error("write to read-only characteristic accepted")
		}
		if !h.WriteCharacteristic(&gatt.Characteristic{UUID: "2a6f"}, []byte{0x2a}) {
			t.Fatal("write rejected")
		}
		if got := rec.next(t, "write"); !got.status.IsSuccess() {
			t.Errorf("status = %s", got.status)
		}
	})

	t.Run("notify", func(t *testing.T) {
		if !h.SetNotification(temp, true) {
			t.Fatal("subscribe rejected")
		}
		deadline := time.Now().Add(time.Second)
		for !client.notify("2a6e", []byte{0x11}) {
			if time.Now().After(deadline) {
				t.Fatal("not subscribed")
			}
			time.Sleep(5 * time.Millisecond)
		}
		if got := rec.next(t, "changed"); !bytes.Equal(got.value, []byte{0x11}) {
			t.Errorf("value = %x", got.value)
		}
	})

	h.Disconnect()
	if got := rec.next(t, "state"); got.state != gatt.StateDisconnecting {
		t.Fatalf("state = %s", got.state)
	}
	if got := rec.next(t, "state"); got.state != gatt.StateDisconnected || !got.status.IsSuccess() {
		t.Fatalf("disconnected = %+v", got)
	}
}

func TestLinkLost(t *testing.T) {
	client := newFakeClient()
	r := New(&fakeDevice{client: client}, Config{})
	rec := newRecorder()

	h, err := r.Peripheral("AA:00:00:00:00:01", "").Connect(rec)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer h.Close()
	rec.next(t, "state")
	rec.next(t, "state")

	client.CancelConnection()
	if got := rec.next(t, "state"); got.state != gatt.StateDisconnected || got.status != StatusLinkLost {
		t.Fatalf("lost = %+v", got)
	}
	if h.DiscoverServices() {
		t.Error("discovery accepted on a dropped link")
	}
}

func TestLinkDialFailure(t *testing.T) {
	r := New(&fakeDevice{dialErr: errors.New("page timeout")}, Config{ConnectTimeout: 50 * time.Millisecond})
	rec := newRecorder()

	h, err := r.Peripheral("AA:00:00:00:00:01", "").Connect(rec)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer h.Close()
	rec.next(t, "state")
	if got := rec.next(t, "state"); got.state != gatt.StateDisconnected || got.status.IsSuccess() {
		t.Fatalf("dial failure = %+v", got)
	}
}

func TestStatusOf(t *testing.T) {
	if s := statusOf(nil); s != gatt.StatusSuccess {
		t.Errorf("nil = %s", s)
	}
	if s := statusOf(ble.ATTError(0x03)); s != gatt.StatusWriteNotPermitted {
		t.Errorf("att = %s", s)
	}
	if s := statusOf(errors.New("boom")); s != gatt.StatusFailure {
		t.Errorf("other = %s", s)
	}
}
