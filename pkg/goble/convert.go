package goble

import (
	"github.com/go-ble/ble"

	"github.com/oblakr24/blescanner/pkg/gatt"
)

// fromProfile converts a discovered profile. The map indexes go-ble
// characteristics by canonical UUID for later requests.
func fromProfile(p *ble.Profile) ([]*gatt.Service, map[string]*ble.Characteristic) {
	chars := make(map[string]*ble.Characteristic)
	if p == nil {
		return nil, chars
	}
	services := make([]*gatt.Service, 0, len(p.Services))
	for _, s := range p.Services {
		svc := &gatt.Service{UUID: gatt.CanonicalID(s.UUID.String())}
		for _, c := range s.Characteristics {
			id := gatt.CanonicalID(c.UUID.String())
			svc.Characteristics = append(svc.Characteristics, &gatt.Characteristic{
				UUID:        id,
				ServiceUUID: svc.UUID,
				Properties:  gatt.Property(c.Property),
				Handle:      c.ValueHandle,
			})
			if _, dup := chars[id]; !dup {
				chars[id] = c
			}
		}
		services = append(services, svc)
	}
	return services, chars
}
