package share

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
)

// Checksum hashes the JSON form of v with object keys sorted, so equal
// values hash equally regardless of field order.
func Checksum(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify reports whether v hashes to sum.
func Verify(v any, sum string) bool {
	got, err := Checksum(v)
	return err == nil && got == sum
}
