// Package config loads the YAML configuration shared by the blescan
// binaries. Values missing from the file keep their defaults.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oblakr24/blescanner/pkg/gatt"
	"github.com/oblakr24/blescanner/pkg/scan"
	"github.com/oblakr24/blescanner/pkg/session"
	"github.com/oblakr24/blescanner/pkg/sim"
	"github.com/oblakr24/blescanner/pkg/transport"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Feed    FeedConfig    `yaml:"feed"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Sim     SimConfig     `yaml:"sim"`
}

type ScanConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Mode    string        `yaml:"mode"`
	Grace   time.Duration `yaml:"grace"`
}

type SessionConfig struct {
	LookupTimeout   time.Duration `yaml:"lookup_timeout"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`

	// Trail is the event trail file. Empty disables the trail.
	Trail string `yaml:"trail"`
}

type FeedConfig struct {
	// Listen is the feed address. Empty disables the feed.
	Listen  string   `yaml:"listen"`
	Origins []string `yaml:"origins"`
}

type BridgeConfig struct {
	Listen       string        `yaml:"listen"`
	Name         string        `yaml:"name"`
	ID           string        `yaml:"id"`
	Advertise    bool          `yaml:"advertise"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type SimConfig struct {
	AdvertiseInterval time.Duration  `yaml:"advertise_interval"`
	Devices           []DeviceConfig `yaml:"devices"`
}

type DeviceConfig struct {
	Address  string          `yaml:"address"`
	Name     string          `yaml:"name"`
	RSSI     int             `yaml:"rssi"`
	Latency  time.Duration   `yaml:"latency"`
	Services []ServiceConfig `yaml:"services"`
}

type ServiceConfig struct {
	UUID            string                 `yaml:"uuid"`
	Characteristics []CharacteristicConfig `yaml:"characteristics"`
}

type CharacteristicConfig struct {
	UUID       string   `yaml:"uuid"`
	Properties []string `yaml:"properties"`

	// Value is hex encoded.
	Value          string        `yaml:"value"`
	NotifyInterval time.Duration `yaml:"notify_interval"`
}

// Default returns the built-in configuration: one simulated thermometer
// and one unnamed lock.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Timeout: scan.DefaultTimeout,
			Mode:    gatt.ScanModeLowPower.String(),
			Grace:   scan.DefaultGrace,
		},
		Session: SessionConfig{
			LookupTimeout:   session.DefaultLookupTimeout,
			ResponseTimeout: session.DefaultResponseTimeout,
		},
		Log: LogConfig{Level: "info"},
		Bridge: BridgeConfig{
			Listen:    fmt.Sprintf(":%d", transport.DefaultPort),
			Name:      "blescan-bridge",
			Advertise: true,
		},
		Sim: SimConfig{
			AdvertiseInterval: sim.DefaultAdvertiseInterval,
			Devices: []DeviceConfig{
				{
					Address: "C0:FF:EE:00:00:01",
					Name:    "Thermometer",
					RSSI:    -48,
					Services: []ServiceConfig{{
						UUID: "181a",
						Characteristics: []CharacteristicConfig{
							{UUID: "2a6e", Properties: []string{"read", "notify"}, Value: "3409", NotifyInterval: time.Second},
							{UUID: "2a6f", Properties: []string{"read", "write"}, Value: "00"},
						},
					}},
				},
				{
					Address: "C0:FF:EE:00:00:02",
					RSSI:    -71,
					Services: []ServiceConfig{{
						UUID: "1800",
						Characteristics: []CharacteristicConfig{
							{UUID: "2a00", Properties: []string{"read"}, Value: hex.EncodeToString([]byte("lock"))},
						},
					}},
				},
			},
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the binaries cannot fall back from.
func (c *Config) Validate() error {
	if _, err := gatt.ParseScanMode(c.Scan.Mode); err != nil {
		return fmt.Errorf("%w: scan.mode: %v", ErrInvalid, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	if c.Scan.Timeout < 0 || c.Scan.Grace < 0 {
		return fmt.Errorf("%w: scan durations must not be negative", ErrInvalid)
	}
	seen := make(map[string]bool)
	for i, d := range c.Sim.Devices {
		if d.Address == "" {
			return fmt.Errorf("%w: sim.devices[%d]: missing address", ErrInvalid, i)
		}
		key := strings.ToUpper(d.Address)
		if seen[key] {
			return fmt.Errorf("%w: sim.devices[%d]: duplicate address %s", ErrInvalid, i, d.Address)
		}
		seen[key] = true
		if _, err := d.Peripheral(); err != nil {
			return fmt.Errorf("%w: sim.devices[%d]: %v", ErrInvalid, i, err)
		}
	}
	return nil
}

// ScanSettings returns the scan settings.
func (c *Config) ScanSettings() scan.Settings {
	mode, _ := gatt.ParseScanMode(c.Scan.Mode)
	return scan.Settings{Timeout: c.Scan.Timeout, Mode: mode}
}

// Level returns the configured slog level, Info when invalid.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
}

// Radio builds the simulated radio with every configured device.
func (c *Config) Radio() (*sim.Radio, error) {
	ps := make([]*sim.Peripheral, 0, len(c.Sim.Devices))
	for _, d := range c.Sim.Devices {
		p, err := d.Peripheral()
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.Address, err)
		}
		ps = append(ps, p)
	}
	return sim.NewRadio(c.Sim.AdvertiseInterval, ps...), nil
}

// Peripheral builds the simulated peripheral.
func (d DeviceConfig) Peripheral() (*sim.Peripheral, error) {
	p := sim.NewPeripheral(d.Address, d.Name, d.RSSI)
	if d.Latency > 0 {
		p.SetLatency(d.Latency)
	}
	for _, s := range d.Services {
		chars := make([]sim.Characteristic, 0, len(s.Characteristics))
		for _, cc := range s.Characteristics {
			c, err := cc.characteristic()
			if err != nil {
				return nil, fmt.Errorf("service %s: %w", s.UUID, err)
			}
			chars = append(chars, c)
		}
		p.AddService(s.UUID, chars...)
	}
	return p, nil
}

func (cc CharacteristicConfig) characteristic() (sim.Characteristic, error) {
	if cc.UUID == "" {
		return sim.Characteristic{}, errors.New("characteristic without uuid")
	}
	var props gatt.Property
	for _, name := range cc.Properties {
		p, err := gatt.ParseProperty(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return sim.Characteristic{}, fmt.Errorf("characteristic %s: %w", cc.UUID, err)
		}
		props |= p
	}
	value, err := hex.DecodeString(strings.TrimPrefix(cc.Value, "0x"))
	if err != nil {
		return sim.Characteristic{}, fmt.Errorf("characteristic %s: bad value: %w", cc.UUID, err)
	}
	return sim.Characteristic{
		UUID:           cc.UUID,
		Properties:     props,
		Value:          value,
		NotifyInterval: cc.NotifyInterval,
	}, nil
}
