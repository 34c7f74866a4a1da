package models

import (
	"io"

	"github.com/flatplan/flatplan.go/internal/codec"
	"github.com/fxamacker/cbor/v2"
)

// CborMarshaler encodes wire values with canonical map ordering so that
// equal documents always produce equal bytes.
type CborMarshaler struct{}

func (c CborMarshaler) Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (c CborMarshaler) NewEncoder(w io.Writer) codec.Encoder {
	return encMode.NewEncoder(w)
}

type CborUnmarshaler struct{}

func (c CborUnmarshaler) Unmarshal(data []byte, dst any) error {
	return decMode.Unmarshal(data, dst)
}

func (c CborUnmarshaler) NewDecoder(r io.Reader) codec.Decoder {
	return decMode.NewDecoder(r)
}

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:    cbor.SortCanonical,
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		TimeTagToAny: cbor.TimeTagToTime,
		// Peers may run a newer schema; unknown fields are ignored.
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}
