package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/gatt/mocks"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

type permission bool

func (p permission) PermissionGranted() bool { return bool(p) }

type fixture struct {
	radio   *mocks.MockScanner
	adapter *mocks.MockAdapter
	cbs     chan gatt.ScanCallback
	stops   chan struct{}
	agg     *Aggregator
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		radio:   mocks.NewMockScanner(t),
		adapter: mocks.NewMockAdapter(t),
		cbs:     make(chan gatt.ScanCallback, 4),
		stops:   make(chan struct{}, 4),
	}
	f.adapter.EXPECT().Supported().Return(true).Maybe()
	f.adapter.EXPECT().Enabled().Return(true).Maybe()
	cfg := Config{Grace: grace}
	f.agg = NewAggregator(NewScanner(f.radio, f.adapter, nil, cfg), cfg)
	return f
}

func (f *fixture) expectScans(n int) {
	f.radio.EXPECT().StartScan(mock.Anything, mock.Anything).RunAndReturn(func(_ gatt.ScanSettings, cb gatt.ScanCallback) error {
		f.cbs <- cb
		return nil
	}).Times(n)
	f.radio.EXPECT().StopScan().Run(func() { f.stops <- struct{}{} }).Times(n)
}

func (f *fixture) callback(t *testing.T) gatt.ScanCallback {
	t.Helper()
	select {
	case cb := <-f.cbs:
		return cb
	case <-time.After(time.Second):
		t.Fatal("radio scan was not started")
		return nil
	}
}

func nextList(t *testing.T, sub *multicast.Subscription[[]Device]) []Device {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := sub.Next(ctx)
	require.NoError(t, err)
	return v
}

func addresses(devices []Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.Address
	}
	return out
}

func TestFold(t *testing.T) {
	t.Run("DuplicateKeepsLatest", func(t *testing.T) {
		var devices []Device
		devices = Fold(devices, gatt.ScanResult{Address: "dev-A", Name: "First"})
		devices = Fold(devices, gatt.ScanResult{Address: "dev-A", Name: "Second", RSSI: -40})

		require.Len(t, devices, 1)
		assert.Equal(t, "Second", devices[0].Name)
		assert.Equal(t, -40, devices[0].RSSI)
	})

	t.Run("SortedByName", func(t *testing.T) {
		var devices []Device
		devices = Fold(devices, gatt.ScanResult{Address: "B"})
		devices = Fold(devices, gatt.ScanResult{Address: "A"})
		assert.Equal(t, []string{"A", "B"}, addresses(devices))

		devices = Fold(devices, gatt.ScanResult{Address: "C", Name: "alpha"})
		devices = Fold(devices, gatt.ScanResult{Address: "D", Name: "Zeta"})
		assert.Equal(t, []string{"A", "B", "D", "C"}, addresses(devices))
		assert.Equal(t, UnknownDeviceName, devices[0].DisplayName())
	})

	t.Run("NameCaseMatters", func(t *testing.T) {
		var devices []Device
		devices = Fold(devices, gatt.ScanResult{Address: "1", Name: "beacon"})
		devices = Fold(devices, gatt.ScanResult{Address: "2", Name: "Zeta"})
		assert.Equal(t, []string{"2", "1"}, addresses(devices))
	})

	t.Run("InputUntouched", func(t *testing.T) {
		before := Fold(nil, gatt.ScanResult{Address: "A", Name: "One"})
		after := Fold(before, gatt.ScanResult{Address: "A", Name: "Two"})
		assert.Equal(t, "One", before[0].Name)
		assert.Equal(t, "Two", after[0].Name)
	})
}

func TestAggregatorSortsResults(t *testing.T) {
	f := newFixture(t, 0)
	f.expectScans(1)

	sub := f.agg.StartScan(Settings{Timeout: time.Second})
	defer sub.Close()
	cb := f.callback(t)

	cb.OnScanResult(gatt.ScanResult{Address: "B", Name: "B"})
	cb.OnScanResult(gatt.ScanResult{Address: "A", Name: "A"})

	assert.Equal(t, []string{"B"}, addresses(nextList(t, sub)))
	assert.Equal(t, []string{"A", "B"}, addresses(nextList(t, sub)))

	d, ok := f.agg.Find("A")
	require.Eventually(t, func() bool {
		d, ok = f.agg.Find("A")
		return ok
	}, time.Second, time.Millisecond)
	assert.Equal(t, "A", d.Name)

	f.agg.StopScanning()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := multicast.Drain(ctx, sub)
	require.NoError(t, err)
}

func TestStopBeforeResults(t *testing.T) {
	f := newFixture(t, 0)
	f.expectScans(1)

	sub := f.agg.StartScan(DefaultSettings())
	f.callback(t)
	f.agg.StopScanning()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lists, err := multicast.Drain(ctx, sub)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestScanTimeout(t *testing.T) {
	f := newFixture(t, 0)
	f.expectScans(1)

	start := time.Now()
	sub := f.agg.StartScan(Settings{Timeout: 30 * time.Millisecond})
	f.callback(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := multicast.Drain(ctx, sub)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	<-f.stops
}

func TestScanPreconditions(t *testing.T) {
	tests := []struct {
		name      string
		granted   bool
		supported bool
		enabled   bool
		startErr  error
		want      error
	}{
		{"PermissionDenied", false, true, true, nil, ErrPermissionDenied},
		{"RadioUnavailable", true, false, true, nil, ErrRadioUnavailable},
		{"RadioDisabled", true, true, false, nil, ErrRadioDisabled},
		{"StartFailed", true, true, true, errors.New("busy"), ErrDiscoveryStartFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			radio := mocks.NewMockScanner(t)
			adapter := mocks.NewMockAdapter(t)
			adapter.EXPECT().Supported().Return(tt.supported).Maybe()
			adapter.EXPECT().Enabled().Return(tt.enabled).Maybe()
			if tt.startErr != nil {
				radio.EXPECT().StartScan(mock.Anything, mock.Anything).Return(tt.startErr).Once()
			}

			agg := NewAggregator(NewScanner(radio, adapter, permission(tt.granted), Config{}), Config{})
			sub := agg.StartScan(DefaultSettings())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := multicast.Drain(ctx, sub)
			if !errors.Is(err, tt.want) {
				t.Fatalf("stream error = %v, want %v", err, tt.want)
			}

			select {
			case got := <-agg.Errors():
				if !errors.Is(got, tt.want) {
					t.Fatalf("Errors() = %v, want %v", got, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatal("error not reported on side channel")
			}
			assert.False(t, agg.Current().Scanning)
		})
	}
}

func TestScanFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.expectScans(1)

	sub := f.agg.StartScan(DefaultSettings())
	cb := f.callback(t)
	cb.OnScanResult(gatt.ScanResult{Address: "A"})
	cb.OnScanFailed(2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lists, err := multicast.Drain(ctx, sub)
	require.Len(t, lists, 1)

	var sf *ScanFailedError
	require.True(t, errors.As(err, &sf), "error = %v", err)
	assert.Equal(t, 2, sf.Code)
	assert.ErrorIs(t, err, ErrScanFailed)
}

func TestGraceAbsorbsResubscription(t *testing.T) {
	f := newFixture(t, 100*time.Millisecond)
	f.expectScans(1)

	sub := f.agg.StartScan(Settings{Timeout: 10 * time.Second})
	cb := f.callback(t)
	cb.OnScanResult(gatt.ScanResult{Address: "A"})
	nextList(t, sub)
	sub.Close()

	// Resubscribe within the grace window: same scan, latest list replayed.
	time.Sleep(20 * time.Millisecond)
	again := f.agg.Observe()
	require.NotNil(t, again)
	assert.Equal(t, []string{"A"}, addresses(nextList(t, again)))

	time.Sleep(150 * time.Millisecond)
	select {
	case <-f.stops:
		t.Fatal("radio stopped while a subscriber was present")
	default:
	}

	again.Close()
	select {
	case <-f.stops:
	case <-time.After(time.Second):
		t.Fatal("radio not stopped after the grace period")
	}
	require.Eventually(t, func() bool { return f.agg.Observe() == nil }, time.Second, time.Millisecond)
}

func TestNewScanStartsEmpty(t *testing.T) {
	f := newFixture(t, 0)
	f.expectScans(2)

	first := f.agg.StartScan(DefaultSettings())
	f.callback(t).OnScanResult(gatt.ScanResult{Address: "A"})
	nextList(t, first)

	second := f.agg.StartScan(DefaultSettings())
	defer second.Close()
	<-f.stops

	f.callback(t).OnScanResult(gatt.ScanResult{Address: "B"})
	assert.Equal(t, []string{"B"}, addresses(nextList(t, second)))

	f.agg.StopScanning()
	first.Close()
}

func TestStates(t *testing.T) {
	f := newFixture(t, 0)
	f.expectScans(1)

	states := f.agg.States()
	defer states.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := states.Next(ctx)
	require.NoError(t, err)
	assert.True(t, st.RadioAvailable)
	assert.True(t, st.RadioEnabled)
	assert.True(t, st.PermissionGranted)
	assert.False(t, st.Scanning)

	sub := f.agg.StartScan(DefaultSettings())
	defer sub.Close()
	f.callback(t).OnScanResult(gatt.ScanResult{Address: "A", Name: "Thermo"})

	sawScanning := false
	for !sawScanning {
		st, err = states.Next(ctx)
		require.NoError(t, err)
		sawScanning = st.Scanning
	}

	f.agg.StopScanning()
	require.Eventually(t, func() bool {
		cur := f.agg.Current()
		return !cur.Scanning && len(cur.Devices) == 1
	}, time.Second, time.Millisecond)
}
