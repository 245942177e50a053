package discovery

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures a bridge browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	// Empty means all interfaces.
	Interface string

	// Logger is used for debug logging. Nil disables logging.
	Logger *slog.Logger
}

// ServiceEntry is a raw mDNS answer, decoupled from the mDNS library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToBridgeService converts an entry into a BridgeService.
func (e *ServiceEntry) ToBridgeService() (*BridgeService, error) {
	info, err := DecodeBridgeTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = e.Instance
	}
	return &BridgeService{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    append([]string(nil), e.Addrs...),
		Info:         info,
	}, nil
}

func fromZeroconf(entry *zeroconf.ServiceEntry) *ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// Browser finds bridges over mDNS.
type Browser struct {
	config BrowserConfig

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse searches for bridges until ctx is done or Stop is called.
// Each bridge is emitted once, when first seen. Answers for the same
// instance on other interfaces extend its address list. The channel is
// closed when browsing ends.
func (b *Browser) Browse(ctx context.Context) (<-chan *BridgeService, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	raw := make(chan *zeroconf.ServiceEntry)
	rawRemoved := make(chan *zeroconf.ServiceEntry)
	entries := make(chan *ServiceEntry)
	removed := make(chan *ServiceEntry)
	out := make(chan *BridgeService)

	go func() {
		defer close(entries)
		for {
			select {
			case e, ok := <-raw:
				if !ok {
					return
				}
				select {
				case entries <- fromZeroconf(e):
				case <-ctx.Done():
					return
				}
			case e, ok := <-rawRemoved:
				if !ok {
					rawRemoved = nil
					continue
				}
				select {
				case removed <- fromZeroconf(e):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go b.aggregate(ctx, entries, removed, out)

	go func() {
		if err := zeroconf.Browse(ctx, ServiceType, Domain, raw, rawRemoved, b.options()...); err != nil {
			b.debugLog("browse failed", "error", err)
		}
	}()

	return out, nil
}

// Find browses until a bridge whose ID or name matches key appears.
// Without a context deadline, BrowseTimeout applies.
func (b *Browser) Find(ctx context.Context, key string) (*BridgeService, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, BrowseTimeout)
		defer cancel()
	}

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case svc, ok := <-results:
			if !ok {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, ErrNotFound
			}
			if svc.Info.ID == key || svc.Info.Name == key || svc.InstanceName == key {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stop ends all running browses.
func (b *Browser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// aggregate merges answers by instance name and emits each new bridge.
// A bridge whose last address is withdrawn is forgotten and emitted again
// if it reappears.
func (b *Browser) aggregate(ctx context.Context, entries, removed <-chan *ServiceEntry, out chan<- *BridgeService) {
	defer close(out)

	services := make(map[string]*BridgeService)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, err := entry.ToBridgeService()
			if err != nil {
				b.debugLog("ignoring bridge entry", "instance", entry.Instance, "error", err)
				continue
			}
			if existing, found := services[svc.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			b.debugLog("bridge found", "instance", svc.InstanceName, "id", svc.Info.ID, "devices", svc.Info.Devices)
			select {
			case out <- svc.clone():
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addrs)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
					b.debugLog("bridge gone", "instance", entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func (b *Browser) debugLog(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}

func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, addr := range gone {
		drop[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}
