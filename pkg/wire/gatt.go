package wire

import "github.com/oblakr24/blescanner/pkg/gatt"

// Service is a gatt.Service on the wire.
type Service struct {
	UUID            string           `cbor:"1,keyasint"`
	Characteristics []Characteristic `cbor:"2,keyasint,omitempty"`
}

// Characteristic is a gatt.Characteristic on the wire.
type Characteristic struct {
	UUID       string `cbor:"1,keyasint"`
	Properties uint8  `cbor:"2,keyasint"`
	Handle     uint16 `cbor:"3,keyasint,omitempty"`
}

// Device is one peripheral offered by a bridge.
type Device struct {
	Address string `cbor:"1,keyasint"`
	Name    string `cbor:"2,keyasint,omitempty"`
	RSSI    int    `cbor:"3,keyasint,omitempty"`
}

// FromServices converts a discovered service tree.
func FromServices(services []*gatt.Service) []Service {
	if len(services) == 0 {
		return nil
	}
	out := make([]Service, 0, len(services))
	for _, s := range services {
		ws := Service{UUID: s.UUID}
		for _, c := range s.Characteristics {
			ws.Characteristics = append(ws.Characteristics, Characteristic{
				UUID:       c.UUID,
				Properties: uint8(c.Properties),
				Handle:     c.Handle,
			})
		}
		out = append(out, ws)
	}
	return out
}

// ToServices rebuilds a service tree with canonical identifiers.
func ToServices(services []Service) []*gatt.Service {
	if len(services) == 0 {
		return nil
	}
	out := make([]*gatt.Service, 0, len(services))
	for _, ws := range services {
		s := &gatt.Service{UUID: gatt.CanonicalID(ws.UUID)}
		for _, wc := range ws.Characteristics {
			s.Characteristics = append(s.Characteristics, &gatt.Characteristic{
				UUID:        gatt.CanonicalID(wc.UUID),
				ServiceUUID: s.UUID,
				Properties:  gatt.Property(wc.Properties),
				Handle:      wc.Handle,
			})
		}
		out = append(out, s)
	}
	return out
}
