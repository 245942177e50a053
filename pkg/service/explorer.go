package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/multicast"
	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/session"
)

// Explorer is the action and event surface over scanning and sessions.
type Explorer struct {
	config     ExplorerConfig
	logger     *slog.Logger
	aggregator *scan.Aggregator
	registry   *session.Registry
	dispatch   *multicast.Executor
	errs       chan error

	mu            sync.RWMutex
	state         ServiceState
	eventHandlers []EventHandler
	watching      map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewExplorer creates an explorer over the given radio. A nil permissions
// checker grants everything.
func NewExplorer(radio gatt.Scanner, adapter gatt.Adapter, permissions gatt.PermissionChecker, cfg ExplorerConfig) *Explorer {
	scanCfg := scan.Config{Grace: cfg.ScanGrace, Logger: cfg.Logger, Trail: cfg.Trail}
	return &Explorer{
		config:     cfg,
		logger:     cfg.Logger,
		aggregator: scan.NewAggregator(scan.NewScanner(radio, adapter, permissions, scanCfg), scanCfg),
		registry: session.NewRegistry(session.Config{
			LookupTimeout:   cfg.LookupTimeout,
			ResponseTimeout: cfg.ResponseTimeout,
			Logger:          cfg.Logger,
			Trail:           cfg.Trail,
		}),
		dispatch: multicast.NewExecutor(),
		errs:     make(chan error, 32),
		watching: make(map[string]bool),
	}
}

// OnEvent registers an event handler. Handlers are called in event order
// from a single goroutine.
func (e *Explorer) OnEvent(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventHandlers = append(e.eventHandlers, handler)
}

// Errors delivers every failure reported as EventError. Errors are dropped
// while the channel is full.
func (e *Explorer) Errors() <-chan error {
	return e.errs
}

// State returns the service state.
func (e *Explorer) State() ServiceState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Scan returns the latest scan state.
func (e *Explorer) Scan() scan.State {
	return e.aggregator.Current()
}

// Aggregator returns the scan aggregator.
func (e *Explorer) Aggregator() *scan.Aggregator {
	return e.aggregator
}

// Registry returns the session registry.
func (e *Explorer) Registry() *session.Registry {
	return e.registry
}

// Start begins forwarding scan state and errors.
func (e *Explorer) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.state = StateRunning
	ctx = e.ctx
	e.wg.Add(2)
	e.mu.Unlock()

	states := e.aggregator.States()
	go func() {
		defer e.wg.Done()
		defer states.Close()
		for {
			st, err := states.Next(ctx)
			if err != nil {
				return
			}
			e.emitEvent(Event{Type: EventScanUpdated, Scan: st})
		}
	}()
	go func() {
		defer e.wg.Done()
		for {
			select {
			case err := <-e.aggregator.Errors():
				e.emitError("", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	e.debugLog("Explorer started")
	return nil
}

// Stop stops scanning, disconnects every session and waits for background
// work to finish. Events already queued are still delivered.
func (e *Explorer) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.aggregator.StopScanning()
	e.registry.Close()
	e.wg.Wait()
	e.dispatch.Close()
	<-e.dispatch.Done()
	e.debugLog("Explorer stopped")
}

// StartScan starts a new scan with the configured settings.
func (e *Explorer) StartScan() {
	ctx, ok := e.begin()
	if !ok {
		e.emitError("", ErrNotStarted)
		return
	}

	sub := e.aggregator.StartScan(e.config.Scan)
	go func() {
		defer e.wg.Done()
		defer sub.Close()
		for {
			if _, err := sub.Next(ctx); err != nil {
				return
			}
		}
	}()
}

// StopScan ends the current scan.
func (e *Explorer) StopScan() {
	e.aggregator.StopScanning()
}

// Session returns the session for address. New sessions can only be created
// for devices in the current scan results.
func (e *Explorer) Session(address string) (*session.Manager, error) {
	if m, ok := e.registered(address); ok {
		return m, nil
	}
	d, ok := e.aggregator.Find(address)
	if !ok || d.Result.Peripheral == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, address)
	}
	return e.registry.GetOrCreate(d.Result.Peripheral), nil
}

// registered returns an existing session, accepting any address spelling
// the scan results know.
func (e *Explorer) registered(address string) (*session.Manager, bool) {
	if m, ok := e.registry.Get(address); ok {
		return m, true
	}
	if d, ok := e.aggregator.Find(address); ok {
		return e.registry.Get(d.Address)
	}
	return nil, false
}

// Connect opens a session with address and starts forwarding its snapshots.
func (e *Explorer) Connect(address string) {
	ctx, ok := e.begin()
	if !ok {
		e.emitError(address, ErrNotStarted)
		return
	}
	m, err := e.Session(address)
	if err != nil {
		e.wg.Done()
		e.emitError(address, err)
		return
	}

	e.watch(m)
	go func() {
		defer e.wg.Done()
		if err := m.Connect(ctx); err != nil {
			e.emitError(address, err)
		}
	}()
}

// Disconnect closes the session with address.
func (e *Explorer) Disconnect(address string) {
	m, ok := e.registered(address)
	if !ok {
		e.emitError(address, fmt.Errorf("%w: %s", ErrUnknownDevice, address))
		return
	}
	m.Disconnect()
}

// Read reads an attribute.
func (e *Explorer) Read(address, id string) {
	e.operate(address, func(ctx context.Context, m *session.Manager) (Event, error) {
		ev, err := m.ReadAttribute(ctx, id)
		return Event{Op: OpRead, AttributeID: ev.AttributeID, Value: ev.Value, Success: ev.Success}, err
	})
}

// Write writes value to an attribute.
func (e *Explorer) Write(address, id string, value []byte) {
	e.operate(address, func(ctx context.Context, m *session.Manager) (Event, error) {
		ev, err := m.WriteAttribute(ctx, id, value)
		return Event{Op: OpWrite, AttributeID: ev.AttributeID, Value: value, Success: ev.Success}, err
	})
}

// SetNotification enables or disables notifications for an attribute.
func (e *Explorer) SetNotification(address, id string, enable bool) {
	e.operate(address, func(ctx context.Context, m *session.Manager) (Event, error) {
		ev, err := m.SetNotification(ctx, id, enable)
		if !enable {
			return Event{Op: OpNotify, AttributeID: gatt.CanonicalID(id), Success: err == nil}, err
		}
		return Event{Op: OpNotify, AttributeID: ev.AttributeID, Value: ev.Value, Success: ev.Success}, err
	})
}

// DiscoverAttributes requests a new attribute discovery.
func (e *Explorer) DiscoverAttributes(address string) {
	e.operate(address, func(ctx context.Context, m *session.Manager) (Event, error) {
		groups, err := m.DiscoverAttributes(ctx)
		return Event{Op: OpDiscover, Groups: groups, Success: err == nil}, err
	})
}

func (e *Explorer) operate(address string, fn func(context.Context, *session.Manager) (Event, error)) {
	ctx, ok := e.begin()
	if !ok {
		e.emitError(address, ErrNotStarted)
		return
	}
	m, ok := e.registered(address)
	if !ok {
		e.wg.Done()
		e.emitError(address, fmt.Errorf("%w: %s", ErrUnknownDevice, address))
		return
	}

	go func() {
		defer e.wg.Done()
		ev, err := fn(ctx, m)
		if err != nil {
			e.emitError(address, err)
			return
		}
		ev.Type = EventOperationCompleted
		ev.Address = address
		e.emitEvent(ev)
	}()
}

// watch forwards the snapshots of m until its stream ends. A session is
// watched at most once at a time.
func (e *Explorer) watch(m *session.Manager) {
	ctx, ok := e.begin()
	if !ok {
		return
	}
	addr := m.Address()
	e.mu.Lock()
	if e.watching[addr] {
		e.mu.Unlock()
		e.wg.Done()
		return
	}
	e.watching[addr] = true
	e.mu.Unlock()

	sub := m.Observe()
	go func() {
		defer e.wg.Done()
		defer sub.Close()

		for {
			snap, err := sub.Next(ctx)
			if err != nil {
				e.mu.Lock()
				delete(e.watching, addr)
				e.mu.Unlock()
				if ctx.Err() != nil {
					return
				}
				ended := Event{Type: EventSessionEnded, Address: addr, Snapshot: m.Last()}
				if streamErr := sub.Err(); streamErr != nil {
					ended.Error = streamErr
					e.emitError(addr, streamErr)
				}
				e.emitEvent(ended)
				return
			}
			e.emitEvent(Event{Type: EventSessionUpdated, Address: addr, Snapshot: snap})
		}
	}()
}

// begin registers one unit of background work with the running explorer.
// Once Stop has begun it fails, so Stop never waits on work added later.
// The caller calls e.wg.Done when the work ends.
func (e *Explorer) begin() (context.Context, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateRunning {
		return nil, false
	}
	e.wg.Add(1)
	return e.ctx, true
}

// emitEvent queues an event for all registered handlers.
func (e *Explorer) emitEvent(event Event) {
	e.mu.RLock()
	handlers := e.eventHandlers
	e.mu.RUnlock()

	e.dispatch.Submit(func() {
		for _, handler := range handlers {
			handler(event)
		}
	})
}

func (e *Explorer) emitError(address string, err error) {
	e.debugLog("Action failed", "address", address, "error", err)
	select {
	case e.errs <- err:
	default:
	}
	e.emitEvent(Event{Type: EventError, Address: address, Error: err})
}

func (e *Explorer) debugLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
