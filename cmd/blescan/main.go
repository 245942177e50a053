// Command blescan is an interactive explorer for BLE peripherals.
//
// It scans for peripherals, opens sessions, discovers their attributes and
// reads, writes or subscribes to them. Every session change can be
// followed live over a websocket feed and recorded to a trail file for
// blescan-log.
//
// Usage:
//
//	blescan [flags]
//
// Flags:
//
//	-config string      Configuration file path
//	-backend string     Radio backend: sim, bridge, hci (default "sim")
//	-bridge string      Bridge address for -backend bridge; empty browses mDNS
//	-feed string        Feed listen address; empty disables the feed
//	-trail string       Session trail file (.blog)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Explore the built-in simulated devices
//	blescan
//
//	# Explore every bridge announced on the local network
//	blescan -backend bridge
//
//	# Use the local controller and serve the feed
//	blescan -backend hci -feed 127.0.0.1:7421 -trail session.blog
//
// Interactive Commands:
//
//	scan, stop, devices, connect, disconnect, discover, read, write,
//	notify, session, sessions, status, help, quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/oblakr24/blescanner/cmd/blescan/shell"
	"github.com/oblakr24/blescanner/internal/config"
	"github.com/oblakr24/blescanner/pkg/discovery"
	"github.com/oblakr24/blescanner/pkg/feed"
	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/goble"
	"github.com/oblakr24/blescanner/pkg/interaction"
	"github.com/oblakr24/blescanner/pkg/log"
	"github.com/oblakr24/blescanner/pkg/service"
	"github.com/oblakr24/blescanner/pkg/transport"
)

// Flags holds the command-line overrides.
type Flags struct {
	ConfigFile string
	Backend    string
	Bridge     string
	Feed       string
	Trail      string
	LogLevel   string
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Backend, "backend", "sim", "Radio backend: sim, bridge, hci")
	flag.StringVar(&flags.Bridge, "bridge", "", "Bridge address for -backend bridge; empty browses mDNS")
	flag.StringVar(&flags.Feed, "feed", "", "Feed listen address; empty disables the feed")
	flag.StringVar(&flags.Trail, "trail", "", "Session trail file (.blog)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// radio is what a backend provides to the explorer.
type radio interface {
	gatt.Scanner
	gatt.Adapter
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if flags.Feed != "" {
		cfg.Feed.Listen = flags.Feed
	}
	if flags.Trail != "" {
		cfg.Log.Trail = flags.Trail
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The shell owns the terminal, so logs go through its writer once it
	// exists.
	logs := &switchWriter{w: os.Stderr}
	logger := cfg.NewLogger(logs)

	trail, closeTrail, err := cfg.OpenTrail(logger)
	if err != nil {
		return fmt.Errorf("failed to open trail: %w", err)
	}
	defer closeTrail()

	r, closeRadio, err := openBackend(flags.Backend, cfg, logger, trail)
	if err != nil {
		return err
	}
	defer closeRadio()

	explorerCfg := service.DefaultExplorerConfig()
	explorerCfg.Scan = cfg.ScanSettings()
	explorerCfg.ScanGrace = cfg.Scan.Grace
	explorerCfg.LookupTimeout = cfg.Session.LookupTimeout
	explorerCfg.ResponseTimeout = cfg.Session.ResponseTimeout
	explorerCfg.Logger = logger
	explorerCfg.Trail = trail
	explorer := service.NewExplorer(r, r, gatt.AlwaysGranted{}, explorerCfg)

	sh, err := shell.New(explorer)
	if err != nil {
		return err
	}
	logs.set(sh.Stdout())

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Feed.Listen != "" {
		b := feed.NewBroadcaster(explorer, feed.Config{Logger: logger})
		explorer.OnEvent(b.Handle)
		srv := feed.NewServer(b, cfg.Feed.Origins)
		if err := srv.Start(ctx, cfg.Feed.Listen); err != nil {
			return fmt.Errorf("failed to start feed: %w", err)
		}
		logger.Info("feed listening", "address", srv.Addr().String())
	}

	if err := explorer.Start(ctx); err != nil {
		return err
	}
	logger.Info("explorer started", "backend", flags.Backend)

	ctx, quit := context.WithCancel(ctx)
	defer quit()
	g.Go(func() error {
		sh.Run(ctx, quit)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		explorer.Stop()
		return nil
	})
	return g.Wait()
}

// openBackend returns the radio for name and a func releasing it.
func openBackend(name string, cfg *config.Config, logger *slog.Logger, trail log.Logger) (radio, func(), error) {
	switch name {
	case "sim":
		r, err := cfg.Radio()
		if err != nil {
			return nil, nil, err
		}
		return r, func() {}, nil

	case "bridge":
		var source discovery.Source
		stopSource := func() {}
		if flags.Bridge != "" {
			svc, err := bridgeAt(flags.Bridge)
			if err != nil {
				return nil, nil, err
			}
			source = fixedSource{svc}
		} else {
			browser := discovery.NewBrowser(discovery.BrowserConfig{Logger: logger})
			source = browser
			stopSource = browser.Stop
		}
		s := discovery.NewScanner(source, discovery.ScannerConfig{
			PollInterval: cfg.Bridge.PollInterval,
			Client:       interaction.ClientConfig{Logger: logger},
			Transport:    transport.ClientConfig{MaxAttempts: 3, Trail: trail, Logger: logger},
			Logger:       logger,
		})
		return s, func() {
			stopSource()
			_ = s.Close()
		}, nil

	case "hci":
		dev, err := goble.NewDefaultDevice()
		if err != nil {
			return nil, nil, err
		}
		r := goble.New(dev, goble.Config{Logger: logger})
		return r, func() { _ = r.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend: %s (use: sim, bridge, hci)", name)
	}
}

// bridgeAt describes the bridge at a host:port address. A bare host uses
// the default port.
func bridgeAt(address string) (*discovery.BridgeService, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		host, portStr = address, strconv.Itoa(transport.DefaultPort)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge port %q: %w", portStr, err)
	}
	if host == "" {
		return nil, errors.New("bridge address without host")
	}
	return &discovery.BridgeService{
		InstanceName: address,
		Host:         host,
		Port:         uint16(port),
		Info:         discovery.BridgeInfo{ID: address, Name: address},
	}, nil
}

// fixedSource is a discovery.Source yielding one configured bridge.
type fixedSource struct {
	svc *discovery.BridgeService
}

func (f fixedSource) Browse(context.Context) (<-chan *discovery.BridgeService, error) {
	out := make(chan *discovery.BridgeService, 1)
	out <- f.svc
	close(out)
	return out, nil
}

// switchWriter forwards to a writer that can be replaced once.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
