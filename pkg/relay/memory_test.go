package relay_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/contrib/testenv"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
)

type collector struct {
	mu     sync.Mutex
	events []relay.Event
}

func (c *collector) handle(ev relay.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) messages() []relay.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []relay.Message
	for _, ev := range c.events {
		if ev.Message != nil {
			out = append(out, *ev.Message)
		}
	}
	return out
}

func (c *collector) lastSync() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if p := c.events[i].Presence; p != nil && p.Kind == relay.PresenceSync {
			return p.Users
		}
	}
	return nil
}

func (c *collector) presenceKinds() []relay.PresenceKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []relay.PresenceKind
	for _, ev := range c.events {
		if ev.Presence != nil {
			out = append(out, ev.Presence.Kind)
		}
	}
	return out
}

func TestMemoryShares(t *testing.T) {
	ctx := context.Background()
	r := relay.NewMemory(nil)

	id, err := r.CreateShare(ctx, []byte("blob"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := r.GetShare(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)

	_, err = r.GetShare(ctx, "missing")
	assert.ErrorIs(t, err, constants.ErrShareNotFound)
}

func TestMemoryEchoesToSender(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub(nil)
	defer hub.Close()

	a, b := hub.Client(), hub.Client()
	var ca, cb collector
	_, err := a.Subscribe(ctx, "magazine:1", ca.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, "magazine:1", cb.handle)
	require.NoError(t, err)

	var other collector
	_, err = b.Subscribe(ctx, "magazine:2", other.handle)
	require.NoError(t, err)

	require.NoError(t, a.Broadcast(ctx, "magazine:1", "article:add", []byte{1, 2}))

	require.Eventually(t, func() bool {
		return len(ca.messages()) == 1 && len(cb.messages()) == 1
	}, time.Second, 5*time.Millisecond)

	msg := cb.messages()[0]
	assert.Equal(t, "article:add", msg.Event)
	assert.Equal(t, a.ID(), msg.From)
	assert.Equal(t, []byte{1, 2}, msg.Payload)
	assert.Equal(t, a.ID(), ca.messages()[0].From, "sender receives its own broadcast")
	assert.Empty(t, other.messages())
}

func TestMemoryPresence(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub(nil)
	defer hub.Close()

	a, b := hub.Client(), hub.Client()
	fox := models.User{ID: "a", Animal: models.Animal{Name: "Fox", Color: "#E67E22"}}
	owl := models.User{ID: "b", Animal: models.Animal{Name: "Owl", Color: "#8E44AD"}}

	var ca collector
	_, err := a.Subscribe(ctx, "magazine:1", ca.handle)
	require.NoError(t, err)
	require.NoError(t, a.Track(ctx, "magazine:1", fox))
	require.NoError(t, b.Track(ctx, "magazine:1", owl))

	require.Eventually(t, func() bool {
		return len(ca.lastSync()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.User{fox, owl}, ca.lastSync())

	// A late subscriber gets the current list right away.
	var cb collector
	_, err = b.Subscribe(ctx, "magazine:1", cb.handle)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(cb.lastSync()) == 2
	}, time.Second, 5*time.Millisecond)

	b.Close()
	require.Eventually(t, func() bool {
		users := ca.lastSync()
		return len(users) == 1 && users[0].ID == "a"
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []relay.PresenceKind{
		relay.PresenceSync,
		relay.PresenceJoin, relay.PresenceSync,
		relay.PresenceJoin, relay.PresenceSync,
		relay.PresenceLeave, relay.PresenceSync,
	}, ca.presenceKinds())
}

func TestMemoryPresenceOrderedByID(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub(nil)
	defer hub.Close()

	ids := []string{"user-zebra", "user-owl", "user-fox", "user-bee"}
	for _, id := range ids {
		require.NoError(t, hub.Client().Track(ctx, "magazine:1", models.User{ID: id}))
	}

	var c collector
	_, err := hub.Client().Subscribe(ctx, "magazine:1", c.handle)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.lastSync()) == len(ids) }, time.Second, 5*time.Millisecond)

	var got []string
	for _, u := range c.lastSync() {
		got = append(got, u.ID)
	}
	assert.Equal(t, []string{"user-bee", "user-fox", "user-owl", "user-zebra"}, got)
}

func TestMemoryUnsubscribe(t *testing.T) {
	ctx := context.Background()
	r := relay.NewMemory(nil)
	defer r.Hub().Close()

	var c collector
	sub, err := r.Subscribe(ctx, "ch", c.handle)
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe(ctx))
	require.NoError(t, sub.Unsubscribe(ctx))

	require.NoError(t, r.Broadcast(ctx, "ch", "article:add", nil))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.messages())
}

func TestMemoryDown(t *testing.T) {
	ctx := context.Background()
	r := relay.NewMemory(nil)
	boom := errors.New("relay unreachable")
	r.Hub().SetDown(boom)

	_, err := r.CreateShare(ctx, nil)
	assert.ErrorIs(t, err, boom)
	_, err = r.Subscribe(ctx, "ch", func(relay.Event) {})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, r.Broadcast(ctx, "ch", "x", nil), boom)

	r.Hub().SetDown(nil)
	_, err = r.CreateShare(ctx, nil)
	assert.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, r.Broadcast(cancelled, "ch", "x", nil), context.Canceled)
}

func TestRouterDropsWhenFull(t *testing.T) {
	log, rec := testenv.NewLogger()
	rt := relay.NewRouter(log)
	defer rt.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	delivered := 0
	rt.Add("slow", "ch", func(relay.Event) {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	require.Equal(t, 1, rt.Len())

	// One event is held by the handler and 100 fill the buffer.
	for i := 0; i < 150; i++ {
		rt.Publish(relay.Event{Channel: "ch"})
	}
	close(release)

	entry, ok := rec.Find(slog.LevelWarn, "failed to route event")
	require.True(t, ok)
	assert.Equal(t, "slow", entry.Attrs["route_id"])

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered >= 100 && delivered < 150
	}, time.Second, 5*time.Millisecond)

	rt.Remove("slow")
	assert.Equal(t, 0, rt.Len())
}
