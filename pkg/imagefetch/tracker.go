package imagefetch

import (
	"context"
	"errors"
	"sync"

	"github.com/flatplan/flatplan.go/pkg/constants"
)

// LoadingState is what a visual shows while its image loads.
type LoadingState struct {
	Loading bool
	// Error is the text to show in place of the image.
	Error string
	// URL is the loaded data URL once done.
	URL string
	// Source is the URL being loaded.
	Source string
}

// Tracker holds the LoadingState of each visual. It is safe for concurrent
// use.
type Tracker struct {
	mu     sync.Mutex
	states map[string]LoadingState
	fn     func(visualID string, s LoadingState)
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]LoadingState)}
}

// OnChange registers fn to be called on every state change.
func (t *Tracker) OnChange(fn func(visualID string, s LoadingState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = fn
}

// Start marks visualID as loading source.
func (t *Tracker) Start(visualID, source string) {
	t.set(visualID, LoadingState{Loading: true, Source: source}, nil)
}

// Finish stores the outcome of loading source. A result for a visual that
// was removed, or that has since started loading another source, is dropped
// and Finish reports false.
func (t *Tracker) Finish(visualID, source string, res Result, err error) bool {
	next := LoadingState{Source: source, URL: res.DataURL}
	if err != nil {
		next.URL = ""
		next.Error = constants.ImageLoadFailText
		if errors.Is(err, constants.ErrInvalidImage) || errors.Is(err, constants.ErrImageTooLarge) {
			next.Error = err.Error()
		}
	}
	return t.set(visualID, next, func(cur LoadingState) bool {
		return cur.Loading && cur.Source == source
	})
}

// Remove forgets visualID.
func (t *Tracker) Remove(visualID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, visualID)
}

// State returns the state of visualID.
func (t *Tracker) State(visualID string) (LoadingState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[visualID]
	return s, ok
}

// Load fetches source for visualID and records the outcome. The fetch is not
// cancelled when the visual is removed; its result is discarded instead.
func (t *Tracker) Load(ctx context.Context, f *Fetcher, visualID, source string) (LoadingState, error) {
	t.Start(visualID, source)
	res, err := f.Fetch(ctx, source)
	t.Finish(visualID, source, res, err)
	s, _ := t.State(visualID)
	return s, err
}

func (t *Tracker) set(visualID string, s LoadingState, accept func(LoadingState) bool) bool {
	t.mu.Lock()
	if accept != nil {
		cur, ok := t.states[visualID]
		if !ok || !accept(cur) {
			t.mu.Unlock()
			return false
		}
	}
	t.states[visualID] = s
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn(visualID, s)
	}
	return true
}
