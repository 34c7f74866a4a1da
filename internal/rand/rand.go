// Package rand provides fast non-cryptographic randomness for frame ids,
// short visual ids and presence identities.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const (
	bytesInUint64 = 8
	charset       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" // reduced base64
	shortCharset  = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var charsetLen = len(charset)

// Source is the subset of *rand.Rand used by callers that pick random values.
// Tests pass a seeded source for deterministic picks.
type Source interface {
	IntN(n int) int
	Float64() float64
}

var defaultRandBytes = newRandBytes()

func newRandBytes() *randBytes {
	seed := make([]byte, bytesInUint64*2)

	if _, err := cryptorand.Read(seed); err != nil {
		panic("unreachable")
	}

	return &randBytes{
		//nolint:gosec // no security required
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
		bytesForUint64: make([]byte, bytesInUint64),
	}
}

type randBytes struct {
	mut            sync.Mutex
	rng            *rand.Rand
	bytesForUint64 []byte
}

// read fills bytes entirely with random bytes.
func (rb *randBytes) read(bytes []byte) {
	numUint64s := len(bytes) / bytesInUint64
	remainingBytes := len(bytes) % bytesInUint64

	rb.mut.Lock()
	defer rb.mut.Unlock()

	for i := range numUint64s {
		binary.LittleEndian.PutUint64(bytes[i*bytesInUint64:(i+1)*bytesInUint64], rb.rng.Uint64())
	}

	if remainingBytes > 0 {
		binary.LittleEndian.PutUint64(rb.bytesForUint64[0:], rb.rng.Uint64())
		copy(bytes[numUint64s*bytesInUint64:], rb.bytesForUint64[:remainingBytes])
	}
}

func (rb *randBytes) IntN(n int) int {
	rb.mut.Lock()
	defer rb.mut.Unlock()
	return rb.rng.IntN(n)
}

func (rb *randBytes) Float64() float64 {
	rb.mut.Lock()
	defer rb.mut.Unlock()
	return rb.rng.Float64()
}

// Default returns the process-wide source. It is safe for concurrent use.
func Default() Source {
	return defaultRandBytes
}

// NewSeeded returns a deterministic source.
func NewSeeded(seed uint64) Source {
	//nolint:gosec // deterministic on purpose
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// NewRequestID returns a base62 id for correlating relay requests with their acks.
// The distribution is slightly biased, which is fine for correlation ids.
func NewRequestID(length int) string {
	buf := make([]byte, length)
	defaultRandBytes.read(buf)

	for i, b := range buf {
		buf[i] = charset[int(b)%charsetLen]
	}

	return string(buf)
}

// NewShortID returns a lowercase alphanumeric id, the shape used for visual ids.
func NewShortID(length int) string {
	buf := make([]byte, length)
	defaultRandBytes.read(buf)

	for i, b := range buf {
		buf[i] = shortCharset[int(b)%len(shortCharset)]
	}

	return string(buf)
}
