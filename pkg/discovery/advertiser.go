package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures a bridge advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration

	// Logger is used for debug logging. Nil disables logging.
	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// Advertiser announces one bridge over mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu       sync.Mutex
	server   *zeroconf.Server
	instance string
}

// NewAdvertiser creates an advertiser. Nothing is announced until
// Advertise.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config}
}

// Advertise announces the bridge on port, replacing any earlier
// announcement. The instance name is info.Name, or the ID when unnamed.
func (a *Advertiser) Advertise(info BridgeInfo, port int) error {
	instance := info.Name
	if instance == "" {
		instance = info.ID
	}
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}
	if port == 0 {
		port = DefaultPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeBridgeTXT(info)),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register bridge service: %w", err)
	}

	a.server = server
	a.instance = instance
	a.debugLog("advertising bridge", "instance", instance, "port", port, "devices", info.Devices)
	return nil
}

// Update replaces the TXT records of the running announcement.
func (a *Advertiser) Update(info BridgeInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(TXTRecordsToStrings(EncodeBridgeTXT(info)))
	a.debugLog("updated bridge announcement", "instance", a.instance, "devices", info.Devices)
	return nil
}

// Advertising reports whether an announcement is running.
func (a *Advertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the announcement. Safe to call when not advertising.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.debugLog("stopped advertising", "instance", a.instance)
	}
}

// interfaces returns nil to use all interfaces.
func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

func (a *Advertiser) debugLog(msg string, args ...any) {
	if a.config.Logger != nil {
		a.config.Logger.Debug(msg, args...)
	}
}
