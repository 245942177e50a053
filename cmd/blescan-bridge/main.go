// Command blescan-bridge exposes simulated peripherals to blescan over TCP.
//
// The bridge builds the peripherals listed under sim.devices in the
// configuration file (or the built-in thermometer and lock), serves them
// with the bridge protocol and announces itself over mDNS so that
// `blescan -backend bridge` finds it without an address.
//
// Usage:
//
//	blescan-bridge [flags]
//
// Flags:
//
//	-config string      Configuration file path
//	-listen string      Listen address (default ":7420")
//	-name string        Advertised bridge name (default "blescan-bridge")
//	-no-advertise       Do not announce the bridge over mDNS
//	-trail string       Session trail file (.blog)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Serve the built-in devices
//	blescan-bridge
//
//	# Serve devices from a file on a fixed port, without mDNS
//	blescan-bridge -config bench.yaml -listen 127.0.0.1:7500 -no-advertise
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oblakr24/blescanner/internal/config"
	"github.com/oblakr24/blescanner/pkg/discovery"
	"github.com/oblakr24/blescanner/pkg/interaction"
	"github.com/oblakr24/blescanner/pkg/transport"
	"github.com/oblakr24/blescanner/pkg/wire"
)

// Flags holds the command-line overrides.
type Flags struct {
	ConfigFile  string
	Listen      string
	Name        string
	NoAdvertise bool
	Trail       string
	LogLevel    string
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Listen, "listen", "", "Listen address (default \":7420\")")
	flag.StringVar(&flags.Name, "name", "", "Advertised bridge name")
	flag.BoolVar(&flags.NoAdvertise, "no-advertise", false, "Do not announce the bridge over mDNS")
	flag.StringVar(&flags.Trail, "trail", "", "Session trail file (.blog)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)

	if err := run(cfg, logger); err != nil {
		logger.Error("bridge failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if flags.Listen != "" {
		cfg.Bridge.Listen = flags.Listen
	}
	if flags.Name != "" {
		cfg.Bridge.Name = flags.Name
	}
	if flags.NoAdvertise {
		cfg.Bridge.Advertise = false
	}
	if flags.Trail != "" {
		cfg.Log.Trail = flags.Trail
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if cfg.Bridge.ID == "" {
		cfg.Bridge.ID = uuid.NewString()
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config, logger *slog.Logger) error {
	trail, closeTrail, err := cfg.OpenTrail(logger)
	if err != nil {
		return fmt.Errorf("failed to open trail: %w", err)
	}
	defer closeTrail()

	directory := interaction.NewDirectory()
	for _, d := range cfg.Sim.Devices {
		p, err := d.Peripheral()
		if err != nil {
			return err
		}
		directory.Add(p)
		logger.Info("serving device", "address", p.Address(), "name", p.Name())
	}

	server := interaction.NewServer(interaction.ServerConfig{Directory: directory, Logger: logger})
	ts := transport.NewServer(transport.ServerConfig{
		Address: cfg.Bridge.Listen,
		Trail:   trail,
		Logger:  logger,
		OnConnect: func(c *transport.Conn) {
			logger.Info("client connected", "remote", c.RemoteAddr())
		},
		OnDisconnect: func(c *transport.Conn) {
			server.Release(c)
			logger.Info("client disconnected", "remote", c.RemoteAddr(), "links", server.Links())
		},
		OnMessage: func(c *transport.Conn, m *wire.Message) {
			server.Handle(c, m)
		},
		OnError: func(c *transport.Conn, err error) {
			logger.Debug("transport error", "error", err)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ts.Start(ctx); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Bridge.Listen, err)
	}
	logger.Info("bridge listening", "address", ts.Addr().String(), "devices", len(cfg.Sim.Devices))

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Bridge.Advertise {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{TTL: discovery.DefaultTTL, Logger: logger})
		info := discovery.BridgeInfo{
			ID:      cfg.Bridge.ID,
			Name:    cfg.Bridge.Name,
			Devices: len(directory.Devices()),
		}
		port := ts.Addr().(*net.TCPAddr).Port
		if err := adv.Advertise(info, port); err != nil {
			ts.Stop()
			return fmt.Errorf("failed to advertise: %w", err)
		}
		logger.Info("bridge advertised", "name", cfg.Bridge.Name, "id", cfg.Bridge.ID, "port", port)
		g.Go(func() error {
			<-ctx.Done()
			adv.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return ts.Stop()
	})

	return g.Wait()
}
