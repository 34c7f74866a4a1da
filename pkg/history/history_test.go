package history_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/pkg/history"
	"github.com/flatplan/flatplan.go/pkg/models"
)

func snap(n int) models.Snapshot {
	articles := make([]models.Article, n)
	for i := range articles {
		articles[i] = models.Article{ID: fmt.Sprintf("a%d", i), Title: fmt.Sprintf("Article %d", i), PageCount: 1}
	}
	return models.Snapshot{Articles: articles, Pages: 4 + n}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func ids(entries []models.HistoryEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = len(e.Snapshot.Articles)
	}
	return out
}

// build records S0..S(n-1) as past and returns S(n) as the current state.
func build(n int) (*history.Manager, models.Snapshot) {
	m := history.New(history.WithClock(fixedClock()))
	for i := 0; i < n; i++ {
		m.Add(snap(i), fmt.Sprintf("step %d", i), nil)
	}
	return m, snap(n)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	m, current := build(3)

	prev, ok := m.Undo(current)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, ids(m.Past()))
	assert.Equal(t, []int{3}, ids(m.Future()))
	assert.Equal(t, "Undo: step 2", m.Future()[0].Description)

	back, ok := m.Redo(prev)
	require.True(t, ok)
	if diff := cmp.Diff(current, back); diff != "" {
		t.Errorf("redo after undo (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{0, 1, 2}, ids(m.Past()))
	assert.False(t, m.CanRedo())
}

func TestJumpToHistory(t *testing.T) {
	m, current := build(3)

	got, ok := m.Jump(current, 1)
	require.True(t, ok)
	assert.Equal(t, snap(1), got)
	assert.Equal(t, []int{0}, ids(m.Past()))
	assert.Equal(t, []int{2, 3}, ids(m.Future()))

	redone, ok := m.Redo(got)
	require.True(t, ok)
	assert.Equal(t, snap(2), redone)

	redone, ok = m.Redo(redone)
	require.True(t, ok)
	assert.Equal(t, snap(3), redone)
}

func TestInvalidOperationsAreNoops(t *testing.T) {
	m := history.New()
	_, ok := m.Undo(snap(0))
	assert.False(t, ok)
	_, ok = m.Redo(snap(0))
	assert.False(t, ok)

	m, current := build(2)
	_, ok = m.Jump(current, 2)
	assert.False(t, ok)
	_, ok = m.Jump(current, -1)
	assert.False(t, ok)
	assert.Len(t, m.Past(), 2)
	assert.Empty(t, m.Future())
}

func TestAddClearsFuture(t *testing.T) {
	m, current := build(2)
	prev, _ := m.Undo(current)
	require.True(t, m.CanRedo())

	m.Add(prev, "branch", &models.User{ID: "u1"})
	assert.False(t, m.CanRedo())
	past := m.Past()
	require.Len(t, past, 2)
	assert.Equal(t, "u1", past[1].User.ID)
}

func TestCapacity(t *testing.T) {
	m := history.New(history.WithCapacity(2))
	for i := 0; i < 5; i++ {
		m.Add(snap(i), "", nil)
	}
	assert.Equal(t, []int{3, 4}, ids(m.Past()))
}

func TestEntriesAreCopies(t *testing.T) {
	m := history.New()
	s := snap(1)
	m.Add(s, "", nil)
	s.Articles[0].Title = "changed"

	assert.Equal(t, "Article 0", m.Past()[0].Snapshot.Articles[0].Title)

	past := m.Past()
	past[0].Snapshot.Articles[0].Title = "changed"
	assert.Equal(t, "Article 0", m.Past()[0].Snapshot.Articles[0].Title)
}

func TestClearAndLoad(t *testing.T) {
	m, _ := build(3)
	past := m.Past()
	m.Clear()
	assert.False(t, m.CanUndo())

	m.Load(past, nil)
	assert.Equal(t, []int{0, 1, 2}, ids(m.Past()))
}
