package connection

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/gatt/mocks"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

var testChar = &gatt.Characteristic{UUID: "fff1", ServiceUUID: "fff0", Properties: gatt.PropRead | gatt.PropWrite | gatt.PropNotify}

type fixture struct {
	p   *mocks.MockPeripheral
	h   *mocks.MockHandle
	cbs chan gatt.Callback
	m   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		p:   mocks.NewMockPeripheral(t),
		h:   mocks.NewMockHandle(t),
		cbs: make(chan gatt.Callback, 4),
	}
	f.p.EXPECT().Address().Return("AA:BB:CC:DD:EE:FF").Maybe()
	f.p.EXPECT().Name().Return("Thermo").Maybe()
	f.m = NewManager(f.p, Config{})
	return f
}

// expectConnect makes the peripheral accept n connection attempts.
func (f *fixture) expectConnect(n int) {
	f.p.EXPECT().Connect(mock.Anything).RunAndReturn(func(cb gatt.Callback) (gatt.Handle, error) {
		f.cbs <- cb
		return f.h, nil
	}).Times(n)
}

// callback waits for the primitive Connect call and for the manager to
// adopt the returned handle.
func (f *fixture) callback(t *testing.T) gatt.Callback {
	t.Helper()
	var cb gatt.Callback
	select {
	case cb = <-f.cbs:
	case <-time.After(time.Second):
		t.Fatal("primitive Connect was not called")
	}
	require.Eventually(t, func() bool {
		_, h := f.m.current()
		return h != nil
	}, time.Second, time.Millisecond)
	return cb
}

func next(t *testing.T, sub *multicast.Subscription[Event]) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	return ev
}

func TestConnectInvokesPrimitiveOnce(t *testing.T) {
	f := newFixture(t)
	f.expectConnect(1)
	f.h.EXPECT().DiscoverServices().Return(true).Once()
	f.h.EXPECT().Disconnect().Once()
	f.h.EXPECT().Close().Once()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- f.m.Connect(ctx) }()
	}
	sub := f.m.Observe()
	defer sub.Close()

	cb := f.callback(t)
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnecting)
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
	}

	// Already connected: returns without touching the primitive.
	require.NoError(t, f.m.Connect(ctx))
	assert.True(t, f.m.Connected())

	f.m.Disconnect()
	f.m.Disconnect()
	assert.False(t, f.m.Connected())
}

func TestObserveEmitsEventsInOrder(t *testing.T) {
	f := newFixture(t)
	f.expectConnect(1)
	f.h.EXPECT().DiscoverServices().Return(true).Once()
	f.h.EXPECT().Close().Once()

	sub := f.m.Observe()
	defer sub.Close()
	cb := f.callback(t)

	svc := &gatt.Service{UUID: "fff0", Characteristics: []*gatt.Characteristic{testChar}}
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnecting)
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)
	cb.OnServicesDiscovered(f.h, []*gatt.Service{svc}, gatt.StatusSuccess)
	cb.OnCharacteristicRead(f.h, testChar, []byte{0x2a}, gatt.StatusSuccess)
	cb.OnCharacteristicWrite(f.h, testChar, gatt.StatusWriteNotPermitted)
	cb.OnCharacteristicChanged(f.h, testChar, []byte{0x2b})
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.ProfileState(9))
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateDisconnected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := multicast.Drain(ctx, sub)
	require.NoError(t, err)

	want := []Kind{
		KindStartingConnection,
		KindPhaseChanged,
		KindPhaseChanged,
		KindAttributesDiscovered,
		KindAttributeRead,
		KindAttributeWritten,
		KindAttributeChanged,
		KindPhaseChanged,
	}
	require.Len(t, events, len(want))
	for i, k := range want {
		if events[i].Kind != k {
			t.Fatalf("event %d kind = %s, want %s", i, events[i].Kind, k)
		}
	}

	assert.Equal(t, PhaseConnecting, events[1].Phase.State)
	assert.Equal(t, Phase{State: PhaseConnected, DiscoveryStarted: true}, events[2].Phase)
	assert.Equal(t, "1 services discovered", events[3].Log)
	assert.True(t, events[4].Matches(KindAttributeRead, "0000fff1-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, []byte{0x2a}, events[4].Value)
	assert.False(t, events[5].Success)
	assert.Equal(t, "Characteristic changed: 0000fff1-0000-1000-8000-00805f9b34fb", events[6].Log)
	assert.Equal(t, PhaseDisconnected, events[7].Phase.State)
	assert.False(t, f.m.Connected())
}

func TestStatusErrorFailsStream(t *testing.T) {
	f := newFixture(t)
	f.expectConnect(1)
	f.h.EXPECT().Disconnect().Once()
	f.h.EXPECT().Close().Once()

	sub := f.m.Observe()
	defer sub.Close()
	cb := f.callback(t)

	assert.Equal(t, KindStartingConnection, next(t, sub).Kind)
	cb.OnConnectionStateChange(f.h, gatt.Status(0x85), gatt.StateConnected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := sub.Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectionFailed))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, gatt.Status(0x85), se.Status)

	// Late callbacks from the dead handle are dropped.
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateDisconnected)
	assert.Equal(t, "", f.m.ConnectionID())
}

func TestConnectFailsWhenPrimitiveRefuses(t *testing.T) {
	f := newFixture(t)
	f.p.EXPECT().Connect(mock.Anything).Return(nil, errors.New("adapter busy")).Once()

	err := f.m.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestReconnectAfterRemoteDisconnect(t *testing.T) {
	f := newFixture(t)
	f.expectConnect(2)
	f.h.EXPECT().DiscoverServices().Return(true).Times(2)
	f.h.EXPECT().Close().Times(2)
	f.h.EXPECT().Disconnect().Once()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		done := make(chan error, 1)
		go func() { done <- f.m.Connect(ctx) }()
		cb := f.callback(t)
		cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)
		require.NoError(t, <-done)

		if i == 0 {
			cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateDisconnected)
			assert.False(t, f.m.Connected())
		}
	}
	f.m.Disconnect()
}

func TestConnectReturnsClosedOnDisconnect(t *testing.T) {
	f := newFixture(t)
	f.expectConnect(1)
	f.h.EXPECT().Disconnect().Once()
	f.h.EXPECT().Close().Once()

	done := make(chan error, 1)
	go func() { done <- f.m.Connect(context.Background()) }()
	f.callback(t)

	f.m.Disconnect()
	err := <-done
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionClosed", err)
	}
}

func TestObserveDisconnectsWhenLastSubscriberLeaves(t *testing.T) {
	f := newFixture(t)
	f.expectConnect(1)
	f.h.EXPECT().DiscoverServices().Return(true).Once()

	var mu sync.Mutex
	var teardown []string
	f.h.EXPECT().Disconnect().Run(func() {
		mu.Lock()
		teardown = append(teardown, "disconnect")
		mu.Unlock()
	}).Once()
	f.h.EXPECT().Close().Run(func() {
		mu.Lock()
		teardown = append(teardown, "close")
		mu.Unlock()
	}).Once()

	a := f.m.Observe()
	b := f.m.Observe()
	cb := f.callback(t)
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)
	require.True(t, f.m.Connected())

	a.Close()
	assert.True(t, f.m.Connected(), "one observer remains")
	b.Close()
	assert.False(t, f.m.Connected())

	mu.Lock()
	assert.Equal(t, []string{"disconnect", "close"}, teardown)
	mu.Unlock()
}

func TestRequests(t *testing.T) {
	t.Run("NotConnected", func(t *testing.T) {
		f := newFixture(t)

		if err := f.m.ReadAttribute(testChar); !errors.Is(err, ErrNotConnected) {
			t.Errorf("ReadAttribute() error = %v, want ErrNotConnected", err)
		}
		if err := f.m.WriteAttribute(testChar, []byte{1}); !errors.Is(err, ErrNotConnected) {
			t.Errorf("WriteAttribute() error = %v, want ErrNotConnected", err)
		}
		if err := f.m.SetNotification(testChar, true); !errors.Is(err, ErrNotConnected) {
			t.Errorf("SetNotification() error = %v, want ErrNotConnected", err)
		}
		if err := f.m.DiscoverServices(); !errors.Is(err, ErrNotConnected) {
			t.Errorf("DiscoverServices() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("RejectedAndAccepted", func(t *testing.T) {
		f := newFixture(t)
		f.expectConnect(1)
		f.h.EXPECT().DiscoverServices().Return(true).Once()
		f.h.EXPECT().ReadCharacteristic(testChar).Return(false).Once()
		f.h.EXPECT().WriteCharacteristic(testChar, []byte{7}).Return(true).Once()
		f.h.EXPECT().SetNotification(testChar, true).Return(false).Once()
		f.h.EXPECT().Disconnect().Once()
		f.h.EXPECT().Close().Once()

		done := make(chan error, 1)
		go func() { done <- f.m.Connect(context.Background()) }()
		f.callback(t).OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateConnected)
		require.NoError(t, <-done)

		assert.ErrorIs(t, f.m.ReadAttribute(testChar), ErrOperationRejected)
		assert.NoError(t, f.m.WriteAttribute(testChar, []byte{7}))
		assert.ErrorIs(t, f.m.SetNotification(testChar, true), ErrOperationRejected)

		f.m.Disconnect()
		assert.ErrorIs(t, f.m.ReadAttribute(testChar), ErrNotConnected)
	})
}

func TestSubscribeAfterEndSeesEOF(t *testing.T) {
	f := newFixture(t)
	f.expectConnect(1)
	f.h.EXPECT().Close().Once()

	sub := f.m.Observe()
	cb := f.callback(t)
	cb.OnConnectionStateChange(f.h, gatt.StatusSuccess, gatt.StateDisconnected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := multicast.Drain(ctx, sub)
	require.NoError(t, err)

	_, err = sub.Next(ctx)
	assert.Equal(t, io.EOF, err)
}
