package scan

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/multicast"
)

// State is the scan state exposed to views.
type State struct {
	RadioAvailable    bool
	RadioEnabled      bool
	PermissionGranted bool
	Scanning          bool
	Devices           []Device
}

// Aggregator shares the accumulated results of the current scan.
type Aggregator struct {
	scanner *Scanner
	config  Config
	logger  *slog.Logger

	errs   chan error
	states *multicast.Hub[State]

	mu      sync.Mutex
	current *accumulation
	state   State
}

// accumulation is the shared result list of one burst.
type accumulation struct {
	a        *Aggregator
	settings Settings
	hub      *multicast.Hub[[]Device]

	mu  sync.Mutex
	sub *multicast.Subscription[gatt.ScanResult]
}

// NewAggregator creates an aggregator over scanner.
func NewAggregator(scanner *Scanner, cfg Config) *Aggregator {
	a := &Aggregator{
		scanner: scanner,
		config:  cfg.withDefaults(),
		logger:  cfg.Logger,
		errs:    make(chan error, 16),
		states:  multicast.NewHub[State](multicast.Options{Replay: true}),
	}
	a.Refresh()
	return a
}

// StartScan begins a new scan with an empty result list and subscribes to
// it. A scan already running is stopped first.
func (a *Aggregator) StartScan(settings Settings) *multicast.Subscription[[]Device] {
	acc := &accumulation{a: a, settings: settings}
	acc.hub = multicast.NewHub[[]Device](multicast.Options{
		Replay:  true,
		Grace:   a.config.Grace,
		OnStart: acc.start,
		OnIdle:  acc.release,
	})

	a.mu.Lock()
	prev := a.current
	a.current = acc
	a.state.Devices = nil
	a.mu.Unlock()

	if prev != nil {
		prev.release()
	}
	return acc.hub.Subscribe()
}

// Observe subscribes to the current scan's result list. It returns nil if
// no scan has been started or the last one has been released.
func (a *Aggregator) Observe() *multicast.Subscription[[]Device] {
	a.mu.Lock()
	acc := a.current
	a.mu.Unlock()

	if acc == nil {
		return nil
	}
	return acc.hub.Subscribe()
}

// StopScanning ends the current scan. Subscribers see the stream complete.
func (a *Aggregator) StopScanning() {
	a.scanner.Stop()
}

// States subscribes to the scan state. The latest state is delivered first.
func (a *Aggregator) States() *multicast.Subscription[State] {
	return a.states.Subscribe()
}

// Current returns the latest state.
func (a *Aggregator) Current() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Find returns the device with the given address from the latest results.
func (a *Aggregator) Find(address string) (Device, bool) {
	return Find(a.Current().Devices, address)
}

// Errors delivers scan failures. Errors are dropped while the channel is
// full.
func (a *Aggregator) Errors() <-chan error {
	return a.errs
}

// Refresh re-reads the radio and permission state.
func (a *Aggregator) Refresh() {
	s := a.scanner
	a.update(func(st *State) {
		st.PermissionGranted = s.permissions.PermissionGranted()
		st.RadioAvailable = s.adapter.Supported()
		st.RadioEnabled = st.RadioAvailable && s.adapter.Enabled()
	})
}

func (a *Aggregator) update(fn func(*State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.state)
	a.states.Publish(a.state)
}

func (a *Aggregator) report(err error) {
	select {
	case a.errs <- err:
	default:
		a.debugLog("Dropping scan error", "error", err)
	}
}

func (a *Aggregator) debugLog(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

// start subscribes to a new burst and folds it. It runs on the first
// subscription.
func (acc *accumulation) start() {
	a := acc.a
	burst := a.scanner.Scan(acc.settings)
	sub := burst.Subscribe()

	acc.mu.Lock()
	acc.sub = sub
	acc.mu.Unlock()

	if !burst.Terminated() {
		a.update(func(st *State) { st.Scanning = true })
	}
	go acc.fold(sub)
}

func (acc *accumulation) fold(sub *multicast.Subscription[gatt.ScanResult]) {
	a := acc.a
	var devices []Device
	for {
		r, err := sub.Next(context.Background())
		if err != nil {
			acc.updateState(func(st *State) { st.Scanning = false })
			if err == io.EOF {
				acc.hub.Complete()
				return
			}
			a.report(err)
			acc.hub.Fail(err)
			return
		}

		devices = Fold(devices, r)
		if !acc.hub.Publish(devices) {
			continue
		}
		list := slices.Clip(devices)
		acc.updateState(func(st *State) { st.Devices = list })
	}
}

// updateState applies fn unless a newer scan has replaced acc.
func (acc *accumulation) updateState(fn func(*State)) {
	a := acc.a
	a.mu.Lock()
	if a.current != acc && a.current != nil {
		a.mu.Unlock()
		return
	}
	fn(&a.state)
	a.states.Publish(a.state)
	a.mu.Unlock()
}

// release stops the burst and discards the accumulation.
func (acc *accumulation) release() {
	a := acc.a
	a.mu.Lock()
	if a.current == acc {
		a.current = nil
	}
	a.mu.Unlock()

	acc.mu.Lock()
	sub := acc.sub
	acc.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	acc.hub.Complete()
}
