package relayserver_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/contrib/relayserver"
	"github.com/flatplan/flatplan.go/contrib/relayserver/store"
	"github.com/flatplan/flatplan.go/contrib/testenv"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
	"github.com/flatplan/flatplan.go/pkg/relay/wsrelay"
)

func newServer(t *testing.T, config relayserver.Config) (*relayserver.App, *httptest.Server) {
	t.Helper()
	log, _ := testenv.NewLogger(testenv.WithIgnoreDebug())
	app := relayserver.NewWithStore(config, store.NewMemory(), nil, log)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})
	return app, srv
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(b)
}

func TestShareAPI(t *testing.T) {
	_, srv := newServer(t, relayserver.DefaultConfig())

	code, body := do(t, http.MethodPost, srv.URL+"/api/shares",
		`{"state": {"magazine": {"title": "Spring", "articles": []}}, "ignored": 1}`)
	require.Equal(t, http.StatusCreated, code, body)

	var id string
	require.Contains(t, body, `"id":"`)
	id = body[strings.Index(body, `"id":"`)+6:]
	id = id[:strings.Index(id, `"`)]

	code, body = do(t, http.MethodGet, srv.URL+"/api/shares/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"id":"`+id+`","state":{"magazine":{"title":"Spring","articles":[]}}}`, body)

	code, body = do(t, http.MethodGet, srv.URL+"/api/shares/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"code":404,"message":"Share not found or expired"}`, body)

	code, body = do(t, http.MethodPost, srv.URL+"/api/shares", `{"magazine": {}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"code":400,"message":"Request body must contain a state"}`, body)

	code, _ = do(t, http.MethodPost, srv.URL+"/api/shares", `{"state": "text"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"healthy","readOnly":false,"channels":0}`, body)
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	config := relayserver.DefaultConfig()
	app, srv := newServer(t, config)

	code, body := do(t, http.MethodPost, srv.URL+"/api/shares", `{"state": {"magazine": {}}}`)
	require.Equal(t, http.StatusCreated, code)
	id := body[strings.Index(body, `"id":"`)+6:]
	id = id[:strings.Index(id, `"`)]

	app.SetReadOnly(true)
	assert.True(t, app.IsReadOnly())

	code, body = do(t, http.MethodPost, srv.URL+"/api/shares", `{"state": {"magazine": {"title": "x"}}}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"code":503,"message":"Relay is read-only"}`, body)

	code, _ = do(t, http.MethodGet, srv.URL+"/api/shares/"+id, "")
	assert.Equal(t, http.StatusOK, code, "existing shares stay readable")

	c, err := wsrelay.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = c.CreateShare(ctx, []byte(`{"magazine":{"title":"y"}}`))
	assert.ErrorIs(t, err, constants.ErrReadOnly)
	blob, err := c.GetShare(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"magazine": {}}`, string(blob))
}

func TestWebSocketRelay(t *testing.T) {
	ctx := context.Background()
	app, srv := newServer(t, relayserver.DefaultConfig())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	a, err := wsrelay.Dial(ctx, url)
	require.NoError(t, err)
	defer a.Close(ctx)
	b, err := wsrelay.Dial(ctx, url)
	require.NoError(t, err)

	got := make(chan relay.Message, 4)
	_, err = a.Subscribe(ctx, "mag", func(ev relay.Event) {
		if ev.Message != nil {
			got <- *ev.Message
		}
	})
	require.NoError(t, err)
	require.NoError(t, a.Track(ctx, "mag", models.User{ID: "a"}))
	_, err = b.Subscribe(ctx, "mag", func(relay.Event) {})
	require.NoError(t, err)
	require.NoError(t, b.Track(ctx, "mag", models.User{ID: "b"}))
	assert.Equal(t, 1, app.Hub().Channels())

	require.NoError(t, b.Broadcast(ctx, "mag", "article:update", []byte("x")))
	select {
	case msg := <-got:
		assert.Equal(t, "article:update", msg.Event)
		assert.Equal(t, []byte("x"), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not delivered")
	}

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, b.Close(closeCtx))
	require.NoError(t, a.Close(closeCtx))
	require.Eventually(t, func() bool {
		code, body := do(t, http.MethodGet, srv.URL+"/api/health", "")
		return code == http.StatusOK && strings.Contains(body, `"channels":0`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestParse(t *testing.T) {
	t.Run("subcommand required", func(t *testing.T) {
		_, _, err := relayserver.Parse(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subcommand required")
	})

	t.Run("unknown command", func(t *testing.T) {
		_, _, err := relayserver.Parse([]string{"serve"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown command: serve")
	})

	t.Run("defaults", func(t *testing.T) {
		cmd, config, err := relayserver.Parse([]string{"run"})
		require.NoError(t, err)
		assert.Equal(t, "run", cmd.Name())
		assert.Equal(t, relayserver.DefaultConfig(), *config)
	})

	t.Run("yaml then env then flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "relay.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"addr: ':9000'\nlog_level: warn\nlog_file: /tmp/from-yaml.log\nread_only: true\n"), 0o600))
		t.Setenv("FLATPLAN_RELAY_ADDR", ":9100")
		t.Setenv("FLATPLAN_LOG_FILE", "")
		t.Setenv("FLATPLAN_STORE", "")
		t.Setenv("FLATPLAN_POSTGRES_DSN", "")

		cmd, config, err := relayserver.Parse([]string{"-config", path, "-log-level", "debug", "migrate"})
		require.NoError(t, err)
		assert.Equal(t, "migrate", cmd.Name())
		assert.Equal(t, relayserver.Config{
			Addr:     ":9100",
			Store:    relayserver.StoreMemory,
			LogFile:  "/tmp/from-yaml.log",
			LogLevel: "debug",
			ReadOnly: true,
		}, *config)
	})

	t.Run("postgres needs a dsn", func(t *testing.T) {
		t.Setenv("FLATPLAN_POSTGRES_DSN", "")
		_, _, err := relayserver.Parse([]string{"-store", "postgres", "run"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires -postgres-dsn")
	})

	t.Run("invalid store", func(t *testing.T) {
		_, _, err := relayserver.Parse([]string{"-store", "redis", "run"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid store: redis")
	})
}

func TestMainMigrate(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "relay.log")
	require.NoError(t, relayserver.Main(context.Background(), []string{"-log-file", logFile, "migrate"}))

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "share store migrated")
}

func TestMainRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- relayserver.Main(ctx, []string{"-addr", "127.0.0.1:0", "-log-file", filepath.Join(t.TempDir(), "r.log"), "run"})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
