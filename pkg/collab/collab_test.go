package collab_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/contrib/testenv"
	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/collab"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
)

var fox = models.User{ID: "user-fox", Animal: models.Animal{Name: "Fox", Color: "#F97316"}}

func TestEnvelopeRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	env, err := collab.NewEnvelope(collab.EventArticleDelete, fox, at, collab.ArticleDelete{ID: "a1"})
	require.NoError(t, err)
	require.NotEmpty(t, env.ID)

	data, err := collab.Encode(env)
	require.NoError(t, err)

	got, err := collab.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, collab.EventArticleDelete, got.Event)
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, fox, got.User)
	assert.True(t, at.Equal(got.Timestamp))

	var p collab.ArticleDelete
	require.NoError(t, got.UnmarshalPayload(&p))
	assert.Equal(t, "a1", p.ID)
}

func TestDecodeRejects(t *testing.T) {
	t.Run("unknown event", func(t *testing.T) {
		env, err := collab.NewEnvelope("cursor:move", fox, time.Now(), struct{}{})
		require.NoError(t, err)
		data, err := collab.Encode(env)
		require.NoError(t, err)

		_, err = collab.Decode(data)
		assert.ErrorIs(t, err, constants.ErrUnknownEvent)
	})

	t.Run("unsupported version", func(t *testing.T) {
		env, err := collab.NewEnvelope(collab.EventStateUpdate, fox, time.Now(), collab.StateUpdate{})
		require.NoError(t, err)
		env.Version = 99
		data, err := collab.Encode(env)
		require.NoError(t, err)

		_, err = collab.Decode(data)
		assert.ErrorIs(t, err, constants.ErrUnsupportedVersion)
	})

	t.Run("not cbor", func(t *testing.T) {
		_, err := collab.Decode([]byte{0xff, 0x00})
		assert.Error(t, err)
	})

	t.Run("payload of the wrong shape", func(t *testing.T) {
		env := collab.Envelope{Event: collab.EventStateUpdate, Payload: cbor.RawMessage{0x01}}
		var p collab.StateUpdate
		assert.Error(t, env.UnmarshalPayload(&p))
	})
}

func TestWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := collab.NewWindow(10*time.Second, func() time.Time { return now })

	assert.False(t, w.Seen("a"))
	assert.True(t, w.Seen("a"))

	now = now.Add(9 * time.Second)
	assert.True(t, w.Seen("a"), "still inside the window")
	assert.False(t, w.Seen("b"))

	now = now.Add(time.Second)
	assert.False(t, w.Seen("a"), "accepted again once the window has passed")
	assert.Equal(t, 2, w.Len())
}

func TestStatusMachine(t *testing.T) {
	log, rec := testenv.NewLogger()
	m := collab.NewStatusMachine(log)

	var seen []collab.Status
	m.OnChange(func(s collab.Status) { seen = append(seen, s) })

	require.Equal(t, collab.Idle, m.Status().State)
	require.NoError(t, m.Transition(collab.Connecting))
	require.NoError(t, m.Transition(collab.Waiting))
	require.NoError(t, m.Transition(collab.Syncing))
	require.NoError(t, m.Transition(collab.Ready))

	err := m.Transition(collab.Waiting)
	assert.ErrorIs(t, err, constants.ErrIllegalTransition)
	entry, ok := rec.Find(slog.LevelWarn, "illegal connection status transition")
	require.True(t, ok)
	assert.Equal(t, "ready", entry.Attrs["from"])
	assert.Equal(t, "waiting", entry.Attrs["to"])

	require.NoError(t, m.Fail("Share not found or expired"))
	assert.Equal(t, collab.Status{State: collab.Error, Message: "Share not found or expired"}, m.Status())

	require.NoError(t, m.Transition(collab.Connecting), "retry from error")
	require.NoError(t, m.Transition(collab.Syncing), "waiting is optional")
	require.NoError(t, m.Transition(collab.Idle), "leave from anywhere")
	assert.ErrorIs(t, m.Transition(collab.Ready), constants.ErrIllegalTransition)

	states := make([]collab.State, len(seen))
	for i, s := range seen {
		states[i] = s.State
	}
	assert.Equal(t, []collab.State{
		collab.Connecting, collab.Waiting, collab.Syncing, collab.Ready,
		collab.Error, collab.Connecting, collab.Syncing, collab.Idle,
	}, states)
}

func TestChanged(t *testing.T) {
	base := models.Article{
		ID: "a", Title: "Feature", WordCount: 800, PageCount: 2, Columns: 2, LineHeight: "1/100",
		Tags:    []models.Tag{{ID: "t1", Name: "Draft"}},
		Visuals: []models.Visual{{ID: "v1", Width: "1/2", Height: "1/2", X: 10, Y: 20, Page: 1}},
		Pages:   []models.ArticlePage{{PageNumber: 1, WordCount: 400, AvailableSpace: 40}, {PageNumber: 2, WordCount: 400, AvailableSpace: 90}},
	}

	tests := []struct {
		name   string
		mutate func(a *models.Article)
		want   bool
	}{
		{"identical", func(*models.Article) {}, false},
		{"visual nudged below epsilon", func(a *models.Article) { a.Visuals[0].X += 0.005 }, false},
		{"visual moved", func(a *models.Article) { a.Visuals[0].Y += 0.5 }, true},
		{"visual changed page", func(a *models.Article) { a.Visuals[0].Page = 2 }, true},
		{"visual added", func(a *models.Article) { a.Visuals = append(a.Visuals, models.Visual{ID: "v2"}) }, true},
		{"visual replaced", func(a *models.Article) { a.Visuals[0].ID = "v9" }, true},
		{"page words", func(a *models.Article) { a.Pages[1].WordCount = 300 }, true},
		{"page count", func(a *models.Article) { a.Pages = a.Pages[:1] }, true},
		{"title", func(a *models.Article) { a.Title = "Cover" }, true},
		{"tags", func(a *models.Article) { a.Tags = nil }, true},
		{"words", func(a *models.Article) { a.WordCount = 900 }, true},
		{"columns", func(a *models.Article) { a.Columns = 3 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base.Clone()
			tt.mutate(&next)
			assert.Equal(t, tt.want, collab.Changed(base, next))
		})
	}
}

func TestAnimals(t *testing.T) {
	all := collab.Animals()
	require.Len(t, all, 15)
	assert.Equal(t, "Fox", all[0].Name)

	names := map[string]bool{}
	for _, a := range all {
		names[a.Name] = true
	}
	assert.Len(t, names, 15)

	rnd := rand.NewSeeded(7)
	for i := 0; i < 50; i++ {
		assert.Contains(t, all, collab.RandomAnimal(rnd))
	}
}
