package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/oblakr24/blescanner/pkg/transport"
)

// Service type and domain.
const (
	ServiceType = "_blebridge._tcp"
	Domain      = "local."
)

// DefaultPort is the port advertised when none is given.
const DefaultPort = transport.DefaultPort

// ProtocolVersion is advertised in the v TXT record.
const ProtocolVersion = 1

// Timing.
const (
	// DefaultTTL is the DNS record TTL for advertisements.
	DefaultTTL = 120 * time.Second

	// BrowseTimeout bounds Find when the context has no deadline.
	BrowseTimeout = 10 * time.Second
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// TXT record keys.
const (
	TXTKeyID      = "id"
	TXTKeyName    = "name"
	TXTKeyDevices = "n"
	TXTKeyVersion = "v"
)

// Errors.
var (
	ErrNotFound            = errors.New("bridge not found")
	ErrNotAdvertising      = errors.New("not advertising")
	ErrMissingRequired     = errors.New("missing required TXT field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInstanceNameTooLong = errors.New("instance name too long")
)

// BridgeInfo is what a bridge announces about itself.
type BridgeInfo struct {
	ID      string
	Name    string
	Devices int
	Version int
}

// BridgeService is a bridge found on the network.
type BridgeService struct {
	InstanceName string
	Host         string
	Port         uint16

	// Addresses holds every IP the bridge was seen on, across interfaces.
	Addresses []string

	Info BridgeInfo
}

// DialAddress returns host:port for the first known address, falling back
// to the host name.
func (s *BridgeService) DialAddress() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

func (s *BridgeService) clone() *BridgeService {
	c := *s
	c.Addresses = append([]string(nil), s.Addresses...)
	return &c
}
