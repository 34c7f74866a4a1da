package imagefetch_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatplan/flatplan.go/contrib/testenv"
	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/imagefetch"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// recordSleep returns a Sleep that records delays without waiting.
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

// flaky serves failures 500s before serving body.
func flaky(t *testing.T, failures int, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if failures < 0 || int(n) <= failures {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestExponentialBackoff(t *testing.T) {
	r := imagefetch.NewExponentialBackoff()
	var got []time.Duration
	for attempt := 0; ; attempt++ {
		d, ok := r.NextDelay(attempt, nil)
		if !ok {
			break
		}
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, got)

	capped := &imagefetch.ExponentialBackoff{InitialDelay: time.Second, Multiplier: 10, MaxDelay: 5 * time.Second, MaxRetries: 3}
	d, ok := capped.NextDelay(2, nil)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	jittered := &imagefetch.ExponentialBackoff{InitialDelay: time.Second, Multiplier: 2, JitterFactor: 0.5, Rand: rand.NewSeeded(1)}
	for i := 0; i < 20; i++ {
		d, ok := jittered.NextDelay(1, nil)
		require.True(t, ok, "no retry limit")
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestFixedDelay(t *testing.T) {
	r := imagefetch.NewFixedDelay(250*time.Millisecond, 2)
	d, ok := r.NextDelay(0, nil)
	assert.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, d)
	_, ok = r.NextDelay(2, nil)
	assert.False(t, ok)
}

func TestFetchRecovers(t *testing.T) {
	srv, calls := flaky(t, 2, pngBytes)
	var delays []time.Duration
	log, rec := testenv.NewLogger()
	f := &imagefetch.Fetcher{Sleep: recordSleep(&delays), Logger: log}

	res, err := f.Fetch(context.Background(), srv.URL+"/photo")
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MIME)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), res.DataURL)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	assert.Equal(t, 2, rec.Count(slog.LevelWarn))
}

func TestFetchGivesUp(t *testing.T) {
	srv, calls := flaky(t, -1, nil)
	var delays []time.Duration
	f := &imagefetch.Fetcher{Sleep: recordSleep(&delays)}

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, constants.ErrImageLoad)
	assert.Contains(t, err.Error(), constants.ImageLoadFailText)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetchRejectsNonImage(t *testing.T) {
	srv, calls := flaky(t, 0, []byte("<html>not an image</html>"))
	var delays []time.Duration
	f := &imagefetch.Fetcher{Sleep: recordSleep(&delays)}

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, constants.ErrInvalidImage)
	assert.Equal(t, int32(1), calls.Load(), "not retried")
	assert.Empty(t, delays)
}

func TestFetchStopsOnCancel(t *testing.T) {
	srv, calls := flaky(t, -1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f := &imagefetch.Fetcher{Sleep: func(ctx context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	_, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchDataURL(t *testing.T) {
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	f := &imagefetch.Fetcher{}

	res, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src, res.DataURL)
	assert.Equal(t, "image/png", res.MIME)
	assert.Equal(t, pngBytes, res.Bytes)
	assert.Zero(t, res.Attempts)

	_, err = f.Fetch(context.Background(), "data:nonsense")
	assert.ErrorIs(t, err, constants.ErrInvalidImage)
}

func TestSleep(t *testing.T) {
	require.NoError(t, imagefetch.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, imagefetch.Sleep(ctx, time.Hour), context.Canceled)
}

func TestValidate(t *testing.T) {
	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, constants.MaxImageSize)...)

	tests := []struct {
		name string
		file string
		data []byte
		want error
		msg  string
	}{
		{name: "png", file: "a.png", data: pngBytes},
		{name: "jpeg", file: "a.jpg", data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}},
		{name: "gif", file: "a.gif", data: []byte("GIF89a\x01\x00\x01\x00")},
		{name: "svg", file: "logo.svg", data: []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`)},
		{name: "text", file: "notes.txt", data: []byte("hello"), want: constants.ErrInvalidImage, msg: "File must be an image"},
		{name: "bmp", file: "a.bmp", data: []byte("BM\x3a\x00\x00\x00\x00\x00\x00\x00\x36\x00\x00\x00"), want: constants.ErrInvalidImage,
			msg: "Only jpeg, jpg, png, gif, webp, svg+xml images are allowed"},
		{name: "too large", file: "huge.png", data: big, want: constants.ErrImageTooLarge, msg: "Image must be less than 5MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := imagefetch.Validate(tt.file, tt.data)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestTrackerDiscardsStaleResults(t *testing.T) {
	tr := imagefetch.NewTracker()
	var changes int
	tr.OnChange(func(string, imagefetch.LoadingState) { changes++ })

	tr.Start("v1", "https://a.example/1.png")
	tr.Remove("v1")
	assert.False(t, tr.Finish("v1", "https://a.example/1.png", imagefetch.Result{DataURL: "data:x"}, nil), "visual removed")
	_, ok := tr.State("v1")
	assert.False(t, ok)

	tr.Start("v1", "https://a.example/1.png")
	tr.Start("v1", "https://a.example/2.png")
	assert.False(t, tr.Finish("v1", "https://a.example/1.png", imagefetch.Result{DataURL: "data:old"}, nil), "superseded source")
	assert.True(t, tr.Finish("v1", "https://a.example/2.png", imagefetch.Result{DataURL: "data:new"}, nil))

	s, ok := tr.State("v1")
	require.True(t, ok)
	assert.Equal(t, imagefetch.LoadingState{URL: "data:new", Source: "https://a.example/2.png"}, s)
	assert.Equal(t, 4, changes)
}

func TestTrackerLoadFailure(t *testing.T) {
	srv, _ := flaky(t, -1, nil)
	var delays []time.Duration
	f := &imagefetch.Fetcher{Sleep: recordSleep(&delays)}
	tr := imagefetch.NewTracker()

	s, err := tr.Load(context.Background(), f, "v1", srv.URL)
	assert.ErrorIs(t, err, constants.ErrImageLoad)
	assert.Equal(t, imagefetch.LoadingState{Error: constants.ImageLoadFailText, Source: srv.URL}, s)
}
