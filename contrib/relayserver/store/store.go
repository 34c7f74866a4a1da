// Package store holds the share blobs a relay server hands out.
//
// Blobs are opaque to the server. Each is keyed by a generated id and carries
// a checksum of its canonical JSON form, so publishing the same magazine twice
// returns the first share instead of storing a copy.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/share"
)

// Share is one stored blob.
type Share struct {
	ID        string    `json:"id"`
	Blob      []byte    `json:"-"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence contract of the relay server.
type Store interface {
	// Create stores blob, or returns the existing share with the same checksum.
	Create(ctx context.Context, blob []byte) (Share, error)
	// Get returns the share id, wrapping constants.ErrShareNotFound when absent.
	Get(ctx context.Context, id string) (Share, error)
	// Migrate prepares the backing schema. It is safe to run repeatedly.
	Migrate(ctx context.Context) error
	Close() error
}

// NewShare fills in the id, checksum and creation time of a new share.
// A blob that is not valid JSON is hashed as a JSON string.
func NewShare(blob []byte, now time.Time) (Share, error) {
	sum, err := checksum(blob)
	if err != nil {
		return Share{}, err
	}
	return Share{
		ID:        uuid.NewString(),
		Blob:      append([]byte(nil), blob...),
		Checksum:  sum,
		CreatedAt: now.UTC(),
	}, nil
}

func checksum(blob []byte) (string, error) {
	if sum, err := share.Checksum(rawJSON(blob)); err == nil {
		return sum, nil
	}
	return share.Checksum(string(blob))
}

type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return r, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", constants.ErrShareNotFound, id)
}

// Memory keeps shares in process. It is the default store of a relay server
// started without a database.
type Memory struct {
	mu         sync.RWMutex
	byID       map[string]Share
	byChecksum map[string]string
	now        func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:       make(map[string]Share),
		byChecksum: make(map[string]string),
		now:        time.Now,
	}
}

func (m *Memory) Create(ctx context.Context, blob []byte) (Share, error) {
	if err := ctx.Err(); err != nil {
		return Share{}, err
	}
	s, err := NewShare(blob, m.now())
	if err != nil {
		return Share{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byChecksum[s.Checksum]; ok {
		return m.byID[id], nil
	}
	m.byID[s.ID] = s
	m.byChecksum[s.Checksum] = s.ID
	return s, nil
}

func (m *Memory) Get(ctx context.Context, id string) (Share, error) {
	if err := ctx.Err(); err != nil {
		return Share{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return Share{}, notFound(id)
	}
	s.Blob = append([]byte(nil), s.Blob...)
	return s, nil
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// Len is the number of stored shares.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
