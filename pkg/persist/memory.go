package persist

import (
	"context"
	"sync"
	"time"

	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// Memory is a Store held in memory.
type Memory struct {
	mu   sync.Mutex
	mags map[string]Magazine
	now  func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{mags: make(map[string]Magazine), now: time.Now}
}

// WithClock sets the clock used for timestamps.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) List(ctx context.Context) ([]Magazine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	out := make([]Magazine, 0, len(m.mags))
	for _, mag := range m.mags {
		out = append(out, clone(mag))
	}
	m.mu.Unlock()
	Sort(out)
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (Magazine, error) {
	if err := ctx.Err(); err != nil {
		return Magazine{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mag, ok := m.mags[id]
	if !ok {
		return Magazine{}, notFound(id)
	}
	return clone(mag), nil
}

func (m *Memory) Create(ctx context.Context, settings models.Settings) (Magazine, error) {
	if err := ctx.Err(); err != nil {
		return Magazine{}, err
	}
	mag := New(settings, m.now())
	m.mu.Lock()
	m.mags[mag.ID] = clone(mag)
	m.mu.Unlock()
	return mag, nil
}

func (m *Memory) Save(ctx context.Context, id string, state document.Saved) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mag, ok := m.mags[id]
	if !ok {
		return notFound(id)
	}
	mag.Apply(cloneSaved(state), m.now())
	m.mags[id] = mag
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mags[id]; !ok {
		return notFound(id)
	}
	delete(m.mags, id)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func clone(m Magazine) Magazine {
	m.State = cloneSaved(m.State)
	return m
}

func cloneSaved(s document.Saved) document.Saved {
	out := document.Saved{Document: s.Document.Clone()}
	for _, e := range s.Past {
		e.Snapshot = e.Snapshot.Clone()
		out.Past = append(out.Past, e)
	}
	for _, e := range s.Future {
		e.Snapshot = e.Snapshot.Clone()
		out.Future = append(out.Future, e)
	}
	return out
}
