package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oblakr24/blescanner/pkg/connection"
	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/gatt/mocks"
)

var (
	charC1 = &gatt.Characteristic{UUID: "c1", ServiceUUID: "svc1", Properties: gatt.PropRead | gatt.PropWrite | gatt.PropNotify}
	charC2 = &gatt.Characteristic{UUID: "c2", ServiceUUID: "svc1", Properties: gatt.PropWrite}
	svc1   = &gatt.Service{UUID: "svc1", Characteristics: []*gatt.Characteristic{charC1, charC2}}
)

type fixture struct {
	p   *mocks.MockPeripheral
	h   *mocks.MockHandle
	cbs chan gatt.Callback
	s   *Manager
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		p:   mocks.NewMockPeripheral(t),
		h:   mocks.NewMockHandle(t),
		cbs: make(chan gatt.Callback, 4),
	}
	f.p.EXPECT().Address().Return("AA:BB").Maybe()
	f.p.EXPECT().Name().Return("").Maybe()
	f.h.EXPECT().Disconnect().Maybe()
	f.h.EXPECT().Close().Maybe()
	f.s = New(f.p, cfg)
	return f
}

// connect drives the session to Connected with svc1 discovered.
func (f *fixture) connect(t *testing.T) gatt.Callback {
	t.Helper()
	f.p.EXPECT().Connect(mock.Anything).RunAndReturn(func(cb gatt.Callback) (gatt.Handle, error) {
		f.cbs <- cb
		return f.h, nil
	}).Once()
	f.h.EXPECT().DiscoverServices().Return(true).Once()

	done := make(chan error, 1)
	go func() { done <- f.s.Connect(context.Background()) }()

	var cb gatt.Callback
	select {
	case cb = <-f.cbs:
	case <-time.After(time.Second):
		t.Fatal("primitive Connect was not called")
	}
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)
	require.NoError(t, <-done)

	cb.OnServicesDiscovered(f.h, []*gatt.Service{svc1}, gatt.StatusSuccess)
	require.Eventually(t, func() bool {
		_, ok := f.s.Last().Attribute("c1")
		return ok
	}, time.Second, time.Millisecond)
	return cb
}

type outcome struct {
	ev  connection.Event
	err error
}

func TestWriteAttributeCorrelation(t *testing.T) {
	f := newFixture(t, Config{})
	cb := f.connect(t)

	issued := make(chan struct{})
	f.h.EXPECT().WriteCharacteristic(charC1, []byte{0x01}).Run(func(*gatt.Characteristic, []byte) {
		close(issued)
	}).Return(true).Once()

	result := make(chan outcome, 1)
	go func() {
		ev, err := f.s.WriteAttribute(context.Background(), "c1", []byte{0x01})
		result <- outcome{ev, err}
	}()
	<-issued

	cb.OnCharacteristicWrite(f.h, charC2, gatt.StatusSuccess)
	select {
	case r := <-result:
		t.Fatalf("resolved by a confirmation for another attribute: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	cb.OnCharacteristicWrite(f.h, charC1, gatt.StatusSuccess)
	select {
	case r := <-result:
		require.NoError(t, r.err)
		assert.True(t, r.ev.Success)
		assert.Equal(t, "c1", r.ev.AttributeID)
		assert.Equal(t, connection.KindAttributeWritten, r.ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("write was not resolved")
	}
}

func TestReadAttributeReturnsLastResponseInHistory(t *testing.T) {
	f := newFixture(t, Config{ResponseTimeout: 50 * time.Millisecond})
	cb := f.connect(t)

	cb.OnCharacteristicRead(f.h, charC1, []byte{0x01}, gatt.StatusSuccess)
	cb.OnCharacteristicRead(f.h, charC1, []byte{0x02}, gatt.StatusSuccess)
	cb.OnCharacteristicWrite(f.h, charC2, gatt.StatusSuccess)
	require.Eventually(t, func() bool {
		ev, _ := f.s.Last().LastEvent()
		return ev.Kind == connection.KindAttributeWritten
	}, time.Second, time.Millisecond)

	f.h.EXPECT().ReadCharacteristic(charC1).Return(true).Once()

	ev, err := f.s.ReadAttribute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, connection.KindAttributeRead, ev.Kind)
	assert.Equal(t, []byte{0x02}, ev.Value)
	assert.True(t, f.s.Last().Connected)
}

func TestReadAttributeTimesOut(t *testing.T) {
	f := newFixture(t, Config{ResponseTimeout: 50 * time.Millisecond})
	f.connect(t)

	f.h.EXPECT().ReadCharacteristic(charC1).Return(true).Once()

	start := time.Now()
	_, err := f.s.ReadAttribute(context.Background(), "c1")
	if !errors.Is(err, ErrCorrelationTimeout) {
		t.Fatalf("ReadAttribute() error = %v, want ErrCorrelationTimeout", err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, f.s.Last().Connected, "a timeout must not end the session")
}

func TestReadAttributeResolvesAlreadyArrivedResponse(t *testing.T) {
	f := newFixture(t, Config{})
	cb := f.connect(t)

	// The stack answers inside the request call, before the wait starts.
	f.h.EXPECT().ReadCharacteristic(charC1).Run(func(c *gatt.Characteristic) {
		cb.OnCharacteristicRead(f.h, c, []byte{0x2a}, gatt.StatusSuccess)
	}).Return(true).Once()

	ev, err := f.s.ReadAttribute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2a}, ev.Value)
}

func TestSessionRespondsWhilePrimitiveConnects(t *testing.T) {
	f := newFixture(t, Config{})
	entered := make(chan struct{})
	release := make(chan struct{})
	f.p.EXPECT().Connect(mock.Anything).RunAndReturn(func(gatt.Callback) (gatt.Handle, error) {
		close(entered)
		<-release
		return f.h, nil
	}).Once()

	opened := make(chan struct{})
	go func() {
		sub := f.s.Observe()
		defer sub.Close()
		close(opened)
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("primitive Connect was not called")
	}

	errc := make(chan error, 1)
	go func() {
		_, err := f.s.DiscoverAttributes(context.Background())
		errc <- err
	}()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, connection.ErrNotConnected)
	case <-time.After(time.Second):
		t.Fatal("session blocked while the primitive was connecting")
	}

	close(release)
	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("Observe did not return")
	}
	f.s.Disconnect()
}

func TestFindAttribute(t *testing.T) {
	f := newFixture(t, Config{LookupTimeout: 50 * time.Millisecond})
	f.connect(t)

	a, err := f.s.FindAttribute(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, a.Readable)
	assert.Equal(t, "svc1", a.Group)

	start := time.Now()
	_, err = f.s.FindAttribute(context.Background(), "unknown")
	if !errors.Is(err, ErrAttributeNotFound) {
		t.Fatalf("FindAttribute(unknown) error = %v, want ErrAttributeNotFound", err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFindAttributeWaitsForDiscovery(t *testing.T) {
	f := newFixture(t, Config{})
	cb := f.connect(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cb.OnServicesDiscovered(f.h, []*gatt.Service{{UUID: "svc2", Characteristics: []*gatt.Characteristic{{UUID: "c9", Properties: gatt.PropRead}}}}, gatt.StatusSuccess)
	}()

	a, err := f.s.FindAttribute(context.Background(), "c9")
	require.NoError(t, err)
	assert.Equal(t, "svc2", a.Group)
}

func TestOperationsRequireConnection(t *testing.T) {
	f := newFixture(t, Config{})

	ctx := context.Background()
	if _, err := f.s.ReadAttribute(ctx, "c1"); !errors.Is(err, connection.ErrNotConnected) {
		t.Errorf("ReadAttribute() error = %v, want ErrNotConnected", err)
	}
	if _, err := f.s.WriteAttribute(ctx, "c1", []byte{1}); !errors.Is(err, connection.ErrNotConnected) {
		t.Errorf("WriteAttribute() error = %v, want ErrNotConnected", err)
	}
	if _, err := f.s.SetNotification(ctx, "c1", true); !errors.Is(err, connection.ErrNotConnected) {
		t.Errorf("SetNotification() error = %v, want ErrNotConnected", err)
	}
	if _, err := f.s.DiscoverAttributes(ctx); !errors.Is(err, connection.ErrNotConnected) {
		t.Errorf("DiscoverAttributes() error = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectCancelsPendingWait(t *testing.T) {
	f := newFixture(t, Config{})
	f.connect(t)

	issued := make(chan struct{})
	f.h.EXPECT().ReadCharacteristic(charC1).Run(func(*gatt.Characteristic) { close(issued) }).Return(true).Once()

	result := make(chan error, 1)
	go func() {
		_, err := f.s.ReadAttribute(context.Background(), "c1")
		result <- err
	}()
	<-issued

	f.s.Disconnect()
	select {
	case err := <-result:
		if !errors.Is(err, connection.ErrNotConnected) {
			t.Fatalf("ReadAttribute() error = %v, want ErrNotConnected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending read was not cancelled")
	}

	last := f.s.Last()
	assert.False(t, last.Connected)
	assert.Empty(t, last.Events, "disconnect resets the snapshot")
}

func TestConnectShortCircuitsWhenConnected(t *testing.T) {
	f := newFixture(t, Config{})
	f.connect(t)

	// The peripheral expects exactly one Connect call.
	require.NoError(t, f.s.Connect(context.Background()))
	require.NoError(t, f.s.Connect(context.Background()))
}

func TestSetNotification(t *testing.T) {
	f := newFixture(t, Config{})
	cb := f.connect(t)

	f.h.EXPECT().SetNotification(charC1, true).Run(func(c *gatt.Characteristic, _ bool) {
		cb.OnCharacteristicChanged(f.h, c, []byte{0x10})
	}).Return(true).Once()
	f.h.EXPECT().SetNotification(charC1, false).Return(true).Once()

	ev, err := f.s.SetNotification(context.Background(), "c1", true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10}, ev.Value)

	_, err = f.s.SetNotification(context.Background(), "c1", false)
	require.NoError(t, err)
}

func TestDiscoverAttributes(t *testing.T) {
	f := newFixture(t, Config{})
	cb := f.connect(t)

	f.h.EXPECT().DiscoverServices().Run(func() {
		go cb.OnServicesDiscovered(f.h, nil, gatt.StatusFailure)
	}).Return(true).Once()
	f.h.EXPECT().DiscoverServices().Return(false).Once()

	_, err := f.s.DiscoverAttributes(context.Background())
	assert.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.True(t, f.s.Last().DiscoveryFailed)

	_, err = f.s.DiscoverAttributes(context.Background())
	assert.ErrorIs(t, err, ErrDiscoveryFailed)
}

func TestObserveSnapshotsFollowEvents(t *testing.T) {
	f := newFixture(t, Config{})
	f.p.EXPECT().Connect(mock.Anything).RunAndReturn(func(cb gatt.Callback) (gatt.Handle, error) {
		f.cbs <- cb
		return f.h, nil
	}).Once()
	f.h.EXPECT().DiscoverServices().Return(true).Once()

	sub := f.s.Observe()
	defer sub.Close()
	cb := <-f.cbs

	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnecting)
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)
	cb.OnServicesDiscovered(f.h, []*gatt.Service{svc1}, gatt.StatusSuccess)
	cb.OnCharacteristicChanged(f.h, charC1, []byte{1})
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateDisconnected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := []connection.Kind{
		connection.KindStartingConnection,
		connection.KindPhaseChanged,
		connection.KindPhaseChanged,
		connection.KindAttributesDiscovered,
		connection.KindAttributeChanged,
		connection.KindPhaseChanged,
	}
	var snaps []Snapshot
	for {
		s, err := sub.Next(ctx)
		if err != nil {
			break
		}
		snaps = append(snaps, s)
	}
	require.NoError(t, ctx.Err())

	// The initial empty snapshot, then one per event.
	require.Len(t, snaps, len(want)+1)
	for i, s := range snaps {
		if len(s.Events) != i {
			t.Fatalf("snapshot %d has %d events", i, len(s.Events))
		}
		for j, ev := range s.Events {
			if ev.Kind != want[j] {
				t.Fatalf("snapshot %d event %d = %s, want %s", i, j, ev.Kind, want[j])
			}
		}
	}
	last := snaps[len(snaps)-1]
	assert.False(t, last.Connected)
	assert.Len(t, last.Groups, 1)
	assert.Equal(t, UnknownDeviceName, f.s.Name())
}

func TestObserveDisconnectsWhenLastObserverLeaves(t *testing.T) {
	f := newFixture(t, Config{})
	f.p.EXPECT().Connect(mock.Anything).RunAndReturn(func(cb gatt.Callback) (gatt.Handle, error) {
		f.cbs <- cb
		return f.h, nil
	}).Once()
	f.h.EXPECT().DiscoverServices().Return(true).Once()

	sub := f.s.Observe()
	cb := <-f.cbs
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)
	require.Eventually(t, func() bool { return f.s.Last().Connected }, time.Second, time.Millisecond)

	sub.Close()
	require.Eventually(t, func() bool { return !f.s.Last().Connected }, time.Second, time.Millisecond)
	assert.NotEmpty(t, f.s.Last().Events, "history survives the end of the stream")
	f.h.AssertCalled(t, "Disconnect")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Config{})

	peripherals := make([]*mocks.MockPeripheral, 3)
	for i := range peripherals {
		p := mocks.NewMockPeripheral(t)
		p.EXPECT().Address().Return(fmt.Sprintf("dev-%c", 'C'-i)).Maybe()
		p.EXPECT().Name().Return("").Maybe()
		peripherals[i] = p
	}

	var wg sync.WaitGroup
	got := make([]*Manager, 10)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.GetOrCreate(peripherals[0])
		}(i)
	}
	wg.Wait()
	for _, m := range got {
		if m != got[0] {
			t.Fatal("GetOrCreate returned two managers for one address")
		}
	}

	r.GetOrCreate(peripherals[1])
	r.GetOrCreate(peripherals[2])
	assert.Equal(t, []string{"dev-A", "dev-B", "dev-C"}, r.Addresses())

	m, ok := r.Get("dev-C")
	require.True(t, ok)
	assert.Same(t, got[0], m)

	r.Remove("dev-B")
	_, ok = r.Get("dev-B")
	assert.False(t, ok)

	r.Close()
	assert.Empty(t, r.Addresses())
}
