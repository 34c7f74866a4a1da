// Package persisttest checks that a persist.Store behaves like the others.
package persisttest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/persist"
)

// Run exercises a Store created by open. Each subtest gets a fresh store and
// a clock that advances one second per reading.
func Run(t *testing.T, open func(t *testing.T, now func() time.Time) persist.Store) {
	t.Run("create and get", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, clock())

		m, err := s.Create(ctx, models.Settings{Title: "Spring Issue", IssueNumber: "4"})
		require.NoError(t, err)
		assert.Regexp(t, `^spring-issue-[0-9a-f]{8}$`, m.ID)
		assert.Equal(t, "Spring Issue", m.Title)
		assert.Equal(t, constants.DefaultPageRatio, m.PageRatio)
		assert.Equal(t, "2024-05-01", m.PublicationDate)

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, m.State.Document.Settings, got.State.Document.Settings)
		assert.Equal(t, constants.DefaultPages, got.State.Document.Pages)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, constants.ErrMagazineNotFound)
	})

	t.Run("save keeps state and history", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, clock())

		m, err := s.Create(ctx, models.Settings{Title: "Draft"})
		require.NoError(t, err)

		doc := document.FromSaved(m.State, document.Config{})
		_, err = doc.AddArticle(ctx, models.Article{ID: "a1", Title: "Lead", WordCount: 250}, document.LocalChange())
		require.NoError(t, err)
		require.NoError(t, doc.UpdateSettings(ctx, models.Settings{Title: "Final", PageRatio: "1/1.5"}, document.LocalChange()))

		want := doc.Saved()
		require.NoError(t, s.Save(ctx, m.ID, want))

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Final", got.Title)
		assert.Equal(t, "1/1.5", got.PageRatio)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt))
		if diff := cmp.Diff(want, got.State, cmpopts.EquateEmpty(), cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
			t.Errorf("saved state mismatch (-want +got):\n%s", diff)
		}

		restored := document.FromSaved(got.State, document.Config{})
		assert.True(t, restored.CanUndo())
		require.True(t, restored.Undo(ctx))
		assert.Equal(t, "Draft", restored.State().Settings.Title)

		assert.ErrorIs(t, s.Save(ctx, "missing", want), constants.ErrMagazineNotFound)
	})

	t.Run("list is in natural title order", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, clock())

		for _, title := range []string{"Issue 10", "Issue 2", "Annual", "Issue 2"} {
			_, err := s.Create(ctx, models.Settings{Title: title})
			require.NoError(t, err)
		}
		list, err := s.List(ctx)
		require.NoError(t, err)

		titles := make([]string, len(list))
		for i, m := range list {
			titles[i] = m.Title
		}
		assert.Equal(t, []string{"Annual", "Issue 2", "Issue 2", "Issue 10"}, titles)
		assert.Less(t, list[1].ID, list[2].ID)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, clock())

		m, err := s.Create(ctx, models.Settings{})
		require.NoError(t, err)
		assert.Equal(t, constants.DefaultTitle, m.Title)

		require.NoError(t, s.Delete(ctx, m.ID))
		assert.ErrorIs(t, s.Delete(ctx, m.ID), constants.ErrMagazineNotFound)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t, clock())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.List(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func clock() func() time.Time {
	t := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
