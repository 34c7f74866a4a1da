package rews_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/contrib/rews"
	"github.com/flatplan/flatplan.go/internal/fakerelay"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay/wire"
	"github.com/flatplan/flatplan.go/pkg/relay/wsrelay"
)

func TestWebSocketReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real sockets")
	}
	ctx := context.Background()

	srv := fakerelay.NewServer("127.0.0.1:0", nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	r := rews.New(func(ctx context.Context) (*wsrelay.Client, error) {
		return wsrelay.Dial(ctx, srv.URL())
	}, 10*time.Millisecond, nil)
	r.Retryer = rews.NewFixedDelayRetryer(10*time.Millisecond, 0)
	require.NoError(t, r.Connect(ctx))
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	var in inbox
	_, err := r.Subscribe(ctx, "mag", in.handle)
	require.NoError(t, err)
	require.NoError(t, r.Track(ctx, "mag", fox))

	srv.DropConnections()
	require.Eventually(t, func() bool {
		return srv.Requests(wire.OpSubscribe) == 2 && srv.Requests(wire.OpTrack) == 2
	}, waitFor, 5*time.Millisecond, "subscription and presence are sent again")

	other, err := wsrelay.Dial(ctx, srv.URL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close(context.Background()) })

	var theirs inbox
	_, err = other.Subscribe(ctx, "mag", theirs.handle)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(theirs.users()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []models.User{fox}, theirs.users())

	require.NoError(t, other.Broadcast(ctx, "mag", "article:add", []byte(`{"id":"a1"}`)))
	require.Eventually(t, func() bool { return in.count() == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, rews.StateConnected, r.State())
}
