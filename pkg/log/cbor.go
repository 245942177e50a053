package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// trailEncMode encodes trail records deterministically with nanosecond
// timestamps.
var trailEncMode cbor.EncMode

// trailDecMode decodes trail records leniently so older readers accept
// newer files.
var trailDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	trailEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trail CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	trailDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trail CBOR decoder mode: %v", err))
	}
}

// EncodeEvent encodes an Event to CBOR bytes.
func EncodeEvent(event Event) ([]byte, error) {
	return trailEncMode.Marshal(event)
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := trailDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder creates a trail encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return trailEncMode.NewEncoder(w)
}

// NewDecoder creates a trail decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return trailDecMode.NewDecoder(r)
}
