// Package history keeps the linear undo/redo stacks of a document.
//
// Past holds the states before each recorded change, oldest first. Future holds
// undone states, next-to-redo first. The current state lives with the caller and
// is passed in whenever it has to move onto a stack.
//
// A Manager is not safe for concurrent use; the owning document serializes access.
package history

import (
	"slices"
	"time"

	"github.com/flatplan/flatplan.go/pkg/models"
)

const (
	undoPrefix  = "Undo: "
	redoPrefix  = "Redo: "
	jumpCurrent = "Jump from current state"
)

// Manager is a linear undo history of snapshots.
type Manager struct {
	past     []models.HistoryEntry
	future   []models.HistoryEntry
	capacity int
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithCapacity bounds the past stack; the oldest entries are dropped first.
// Zero or less means unbounded.
func WithCapacity(n int) Option {
	return func(m *Manager) { m.capacity = n }
}

// WithClock sets the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates an empty history.
func New(opts ...Option) *Manager {
	m := &Manager{now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Add records previous, the state before a change, and clears the redo stack.
func (m *Manager) Add(previous models.Snapshot, description string, user *models.User) {
	m.push(m.entry(previous, description, user))
	m.future = nil
}

// Undo returns the state before the last change and moves current onto the
// redo stack. It reports false when there is nothing to undo.
func (m *Manager) Undo(current models.Snapshot) (models.Snapshot, bool) {
	if len(m.past) == 0 {
		return models.Snapshot{}, false
	}
	last := m.past[len(m.past)-1]
	m.past = m.past[:len(m.past)-1]
	m.future = slices.Insert(m.future, 0, m.entry(current, undoPrefix+last.Description, last.User))
	return last.Snapshot.Clone(), true
}

// Redo returns the next undone state and moves current onto the past stack.
// It reports false when there is nothing to redo.
func (m *Manager) Redo(current models.Snapshot) (models.Snapshot, bool) {
	if len(m.future) == 0 {
		return models.Snapshot{}, false
	}
	next := m.future[0]
	m.future = slices.Delete(m.future, 0, 1)
	m.push(m.entry(current, redoPrefix+next.Description, next.User))
	return next.Snapshot.Clone(), true
}

// Jump restores past[i]. The entries after i and then current move to the
// front of the redo stack in chronological order, so successive redos replay
// forward. An index out of range is a no-op reporting false.
func (m *Manager) Jump(current models.Snapshot, i int) (models.Snapshot, bool) {
	if i < 0 || i >= len(m.past) {
		return models.Snapshot{}, false
	}
	target := m.past[i]

	future := make([]models.HistoryEntry, 0, len(m.past)-i+len(m.future))
	future = append(future, m.past[i+1:]...)
	future = append(future, m.entry(current, jumpCurrent, nil))
	future = append(future, m.future...)

	m.future = future
	m.past = slices.Clone(m.past[:i])
	return target.Snapshot.Clone(), true
}

// Past returns a copy of the past stack, oldest first.
func (m *Manager) Past() []models.HistoryEntry {
	return cloneEntries(m.past)
}

// Future returns a copy of the redo stack, next first.
func (m *Manager) Future() []models.HistoryEntry {
	return cloneEntries(m.future)
}

func (m *Manager) CanUndo() bool { return len(m.past) > 0 }
func (m *Manager) CanRedo() bool { return len(m.future) > 0 }

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.past = nil
	m.future = nil
}

// Load replaces both stacks, for example after restoring a persisted document.
func (m *Manager) Load(past, future []models.HistoryEntry) {
	m.past = cloneEntries(past)
	m.future = cloneEntries(future)
	m.trim()
}

func (m *Manager) push(e models.HistoryEntry) {
	m.past = append(m.past, e)
	m.trim()
}

func (m *Manager) trim() {
	if m.capacity > 0 && len(m.past) > m.capacity {
		m.past = slices.Clone(m.past[len(m.past)-m.capacity:])
	}
}

func (m *Manager) entry(s models.Snapshot, description string, user *models.User) models.HistoryEntry {
	var u *models.User
	if user != nil {
		c := *user
		u = &c
	}
	return models.HistoryEntry{
		Snapshot:    s.Clone(),
		Description: description,
		User:        u,
		At:          m.now(),
	}
}

func cloneEntries(in []models.HistoryEntry) []models.HistoryEntry {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.HistoryEntry, len(in))
	for i, e := range in {
		e.Snapshot = e.Snapshot.Clone()
		out[i] = e
	}
	return out
}
