// Package codec names the encoder contracts shared by the relay wire format
// and the document serializers.
package codec

import "io"

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
	NewDecoder(r io.Reader) Decoder
}

// Codec is a Marshaler and Unmarshaler pair for one wire format.
type Codec struct {
	Marshaler
	Unmarshaler
}
