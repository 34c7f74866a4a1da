package rews_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/contrib/rews"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
)

const waitFor = 2 * time.Second

var fox = models.User{ID: "user-fox", Animal: models.Animal{Name: "Fox", Color: "#EA580C"}}

// memConn is an in-process connection that can be cut.
type memConn struct {
	*relay.Memory
	closed atomic.Bool
}

func (c *memConn) IsClosed() bool {
	return c.closed.Load()
}

func (c *memConn) Close(context.Context) error {
	if c.closed.CompareAndSwap(false, true) {
		c.Memory.Close()
	}
	return nil
}

type dialer struct {
	hub   *relay.MemoryHub
	mu    sync.Mutex
	conns []*memConn
	fail  int
}

func (d *dialer) dial(context.Context) (*memConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail > 0 {
		d.fail--
		return nil, errors.New("relay unreachable")
	}
	c := &memConn{Memory: d.hub.Client()}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *dialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *dialer) last() *memConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type inbox struct {
	mu       sync.Mutex
	messages []relay.Message
	present  []models.User
	joins    int
}

func (in *inbox) handle(ev relay.Event) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if ev.Message != nil {
		in.messages = append(in.messages, *ev.Message)
	}
	if ev.Presence == nil {
		return
	}
	switch ev.Presence.Kind {
	case relay.PresenceSync:
		in.present = ev.Presence.Users
	case relay.PresenceJoin:
		in.joins++
	}
}

func (in *inbox) joined() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.joins
}

func (in *inbox) count() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.messages)
}

func (in *inbox) users() []models.User {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.present
}

func newRelay(t *testing.T, d *dialer) *rews.Relay[*memConn] {
	t.Helper()
	r := rews.New(d.dial, 5*time.Millisecond, nil)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestReconnectRestoresSession(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub(nil)
	t.Cleanup(hub.Close)
	d := &dialer{hub: hub}
	r := newRelay(t, d)
	require.NoError(t, r.Connect(ctx))
	assert.Equal(t, rews.StateConnected, r.State())

	var mine, theirs inbox
	_, err := r.Subscribe(ctx, "mag", mine.handle)
	require.NoError(t, err)
	require.NoError(t, r.Track(ctx, "mag", fox))

	other := hub.Client()
	_, err = other.Subscribe(ctx, "mag", theirs.handle)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(theirs.users()) == 1 }, waitFor, time.Millisecond)

	require.NoError(t, d.last().Close(ctx))

	// Presence is restored after the subscriptions, so a join means both are back.
	require.Eventually(t, func() bool {
		return theirs.joined() == 1 && len(theirs.users()) == 1
	}, waitFor, time.Millisecond)
	assert.Equal(t, 2, d.dials())
	assert.Equal(t, []models.User{fox}, theirs.users())

	require.NoError(t, other.Broadcast(ctx, "mag", "article:add", []byte("x")))
	require.Eventually(t, func() bool { return mine.count() == 1 }, waitFor, time.Millisecond)

	require.NoError(t, r.Broadcast(ctx, "mag", "article:update", nil))
	require.Eventually(t, func() bool { return theirs.count() == 2 }, waitFor, time.Millisecond)
}

func TestUnsubscribedChannelsAreNotRestored(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub(nil)
	t.Cleanup(hub.Close)
	d := &dialer{hub: hub}
	r := newRelay(t, d)
	require.NoError(t, r.Connect(ctx))

	var in inbox
	sub, err := r.Subscribe(ctx, "mag", in.handle)
	require.NoError(t, err)
	require.NoError(t, r.Track(ctx, "mag", fox))
	require.NoError(t, sub.Unsubscribe(ctx))
	require.NoError(t, sub.Unsubscribe(ctx))
	require.NoError(t, r.Untrack(ctx, "mag"))

	require.NoError(t, d.last().Close(ctx))
	require.Eventually(t, func() bool { return d.dials() == 2 && r.State() == rews.StateConnected }, waitFor, time.Millisecond)

	var watcher inbox
	_, err = hub.Client().Subscribe(ctx, "mag", watcher.handle)
	require.NoError(t, err)
	require.NoError(t, hub.Client().Broadcast(ctx, "mag", "article:add", nil))
	require.Eventually(t, func() bool { return watcher.count() == 1 }, waitFor, time.Millisecond)

	assert.Zero(t, in.count())
	assert.Empty(t, watcher.users())
}

func TestConnectRetries(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub(nil)
	t.Cleanup(hub.Close)

	t.Run("until it succeeds", func(t *testing.T) {
		d := &dialer{hub: hub, fail: 2}
		r := newRelay(t, d)
		r.Retryer = rews.NewFixedDelayRetryer(time.Millisecond, 0)
		require.NoError(t, r.Connect(ctx))
		assert.Equal(t, 1, d.dials())
		assert.Zero(t, d.fail)
	})

	t.Run("gives up", func(t *testing.T) {
		d := &dialer{hub: hub, fail: 5}
		r := newRelay(t, d)
		r.Retryer = rews.NewFixedDelayRetryer(time.Millisecond, 2)
		err := r.Connect(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relay unreachable")
		assert.Equal(t, 2, d.fail, "one attempt and two retries")
		assert.Equal(t, rews.StateDisconnected, r.State())
	})

	t.Run("without a retryer", func(t *testing.T) {
		d := &dialer{hub: hub, fail: 1}
		r := newRelay(t, d)
		require.Error(t, r.Connect(ctx))
		require.NoError(t, r.Connect(ctx))
	})
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	r := rews.New(func(context.Context) (*memConn, error) { return nil, errors.New("unused") }, time.Second, nil)

	assert.ErrorIs(t, r.Broadcast(ctx, "mag", "x", nil), constants.ErrClosed)
	_, err := r.GetShare(ctx, "id")
	assert.ErrorIs(t, err, constants.ErrClosed)

	require.NoError(t, r.Close(ctx))
	assert.True(t, r.IsClosed())
	assert.Error(t, r.Close(ctx), "closing twice")
	assert.Error(t, r.Connect(ctx), "a closed relay stays closed")
}

func TestShares(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub(nil)
	t.Cleanup(hub.Close)
	r := newRelay(t, &dialer{hub: hub})
	require.NoError(t, r.Connect(ctx))

	id, err := r.CreateShare(ctx, []byte(`{"magazine":{}}`))
	require.NoError(t, err)
	blob, err := r.GetShare(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, `{"magazine":{}}`, string(blob))
}

func TestStateString(t *testing.T) {
	for state, want := range map[rews.State]string{
		rews.StateUnknown:      "Unknown",
		rews.StateDisconnected: "Disconnected",
		rews.StateConnecting:   "Connecting",
		rews.StateConnected:    "Connected",
		rews.StateClosing:      "Closing",
		rews.StateClosed:       "Closed",
		rews.State(42):         "InvalidState",
	} {
		assert.Equal(t, want, state.String())
	}
}
