package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vincent-petithory/dataurl"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
)

// Result is a loaded image.
type Result struct {
	DataURL string
	MIME    string
	Bytes   []byte
	// Attempts is how many fetches it took. Zero for data URLs.
	Attempts int
}

// Fetcher downloads images. The zero value is usable.
type Fetcher struct {
	Client  *http.Client
	Retryer Retryer
	// Sleep waits between attempts. It must return early with the context's
	// error when ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logger.Logger
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Fetch loads url. Data URLs are decoded and returned as they are. Anything
// else is downloaded, retried per the Retryer, sniffed and re-encoded as a
// base64 data URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Result, error) {
	if strings.HasPrefix(url, "data:") {
		du, err := dataurl.DecodeString(url)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", constants.ErrInvalidImage, err)
		}
		return Result{DataURL: url, MIME: du.ContentType(), Bytes: du.Data}, nil
	}

	log := logger.OrNop(f.Logger)
	retryer := f.Retryer
	if retryer == nil {
		retryer = NewExponentialBackoff()
	}
	sleep := f.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := f.fetchOnce(ctx, url)
		if err == nil {
			retryer.Reset()
			res.Attempts = attempt + 1
			return res, nil
		}
		lastErr = err

		var perm permanentError
		if errors.As(err, &perm) {
			log.Warn("image rejected", "url", url, "error", err)
			return Result{}, perm.err
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		delay, ok := retryer.NextDelay(attempt, err)
		if !ok {
			break
		}
		log.Warn("image fetch failed, retrying", "url", url, "attempt", attempt+1, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			return Result{}, err
		}
	}

	log.Error("giving up on image", "url", url, "error", lastErr)
	return Result{}, fmt.Errorf("%w: %s: %v", constants.ErrImageLoad, constants.ImageLoadFailText, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, permanentError{fmt.Errorf("%w: %v", constants.ErrInvalidImage, err)}
	}
	req.Header.Set("Accept", "image/*")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxImageSize+1))
	if err != nil {
		return Result{}, err
	}
	if len(data) > constants.MaxImageSize {
		return Result{}, permanentError{fmt.Errorf("%w: %s", constants.ErrImageTooLarge, url)}
	}

	mime := Sniff(url, data)
	if !strings.HasPrefix(mime, "image/") {
		return Result{}, permanentError{fmt.Errorf("%w: invalid image type from %s", constants.ErrInvalidImage, url)}
	}
	return Result{
		DataURL: dataurl.New(data, mime).String(),
		MIME:    mime,
		Bytes:   data,
	}, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
