package share

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
)

var (
	encoder = sync.OnceValue(func() *zstd.Encoder {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			panic(err)
		}
		return enc
	})
	decoder = sync.OnceValue(func() *zstd.Decoder {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
		if err != nil {
			panic(err)
		}
		return dec
	})
)

// Encode packs s for the data parameter of an inline link: CBOR, then zstd,
// then unpadded URL-safe base64.
func Encode(s State) (string, error) {
	raw, err := models.CborMarshaler{}.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode share state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(encoder().EncodeAll(raw, nil)), nil
}

// Decode reverses Encode.
func Decode(data string) (State, error) {
	packed, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", constants.ErrInvalidShareURL, err)
	}
	raw, err := decoder().DecodeAll(packed, nil)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", constants.ErrInvalidShareURL, err)
	}
	var s State
	if err := (models.CborUnmarshaler{}).Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", constants.ErrInvalidShareURL, err)
	}
	return s, nil
}
