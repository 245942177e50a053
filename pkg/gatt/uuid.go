package gatt

import (
	"strings"

	"github.com/google/uuid"
)

// baseUUIDSuffix completes 16- and 32-bit UUIDs onto the Bluetooth base UUID.
const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// CanonicalID returns the canonical form of a service or characteristic
// identifier: lowercase, dashed, 128-bit. Short forms ("180d", "0000180d")
// are expanded. Identifiers that are not UUIDs are returned trimmed and
// lowercased.
func CanonicalID(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	s = strings.TrimPrefix(s, "0x")

	switch len(s) {
	case 4:
		s = "0000" + s + baseUUIDSuffix
	case 8:
		s = s + baseUUIDSuffix
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(id))
	}
	return u.String()
}

// ShortID renders identifiers on the Bluetooth base UUID in their 16-bit
// form and returns anything else unchanged.
func ShortID(id string) string {
	c := CanonicalID(id)
	if len(c) == 36 && strings.HasPrefix(c, "0000") && strings.HasSuffix(c, baseUUIDSuffix) {
		return c[4:8]
	}
	return c
}

// SameID reports whether two identifiers name the same attribute.
func SameID(a, b string) bool {
	return CanonicalID(a) == CanonicalID(b)
}
