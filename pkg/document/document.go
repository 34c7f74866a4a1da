// Package document is the magazine aggregate: the single mutable state of a
// flat plan and every operation that changes it.
//
// Mutations are synchronous and serialized. Each one re-runs the layout,
// grows the page count when an article would overflow it, records the previous
// state in the undo history and, for local changes, hands a Change to the
// Broadcaster. Remote changes are applied with Origin Remote and never echoed.
package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/history"
	"github.com/flatplan/flatplan.go/pkg/layout"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// Config configures a Document. Zero fields take the defaults.
type Config struct {
	Logger          logger.Logger
	Broadcaster     Broadcaster
	HistoryCapacity int
	Now             func() time.Time
	Rand            rand.Source
}

// Saved is a document together with its history, the unit persisted locally.
type Saved struct {
	Document models.Document       `json:"document"`
	Past     []models.HistoryEntry `json:"past"`
	Future   []models.HistoryEntry `json:"future"`
}

// Document is the magazine aggregate. It is safe for concurrent use.
type Document struct {
	mu sync.Mutex

	state   models.Document
	history *history.Manager

	broadcaster Broadcaster
	logger      logger.Logger
	now         func() time.Time
	rnd         rand.Source

	// lastLocal is when each article was last changed locally, used to report
	// remote writes that clobber newer local edits.
	lastLocal map[string]time.Time

	listeners []func(models.Document)
}

// New creates an empty magazine with the default settings.
func New(cfg Config) *Document {
	return FromState(models.NewDocument(), cfg)
}

// FromState creates a Document holding state. The layout is recomputed.
func FromState(state models.Document, cfg Config) *Document {
	d := &Document{
		state:       state.Clone(),
		broadcaster: cfg.Broadcaster,
		logger:      logger.OrNop(cfg.Logger),
		now:         cfg.Now,
		rnd:         cfg.Rand,
		lastLocal:   map[string]time.Time{},
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.rnd == nil {
		d.rnd = rand.Default()
	}
	d.history = history.New(history.WithCapacity(cfg.HistoryCapacity), history.WithClock(d.now))
	normalize(&d.state)
	d.relayoutLocked()
	return d
}

// FromSaved restores a document and its history.
func FromSaved(s Saved, cfg Config) *Document {
	d := FromState(s.Document, cfg)
	d.history.Load(s.Past, s.Future)
	return d
}

func normalize(st *models.Document) {
	if st.Articles == nil {
		st.Articles = []models.Article{}
	}
	if st.PageMargins == nil {
		st.PageMargins = map[int]models.Margins{}
	}
	if st.Pages < 1 {
		st.Pages = constants.DefaultPages
	}
	if st.ZoomLevel == "" {
		st.ZoomLevel = models.ZoomLevel(constants.DefaultZoomLevel)
	}
	if st.Settings.PageRatio == "" {
		st.Settings.PageRatio = constants.DefaultPageRatio
	}
	if st.Tags == nil {
		st.Tags = models.DefaultTags()
	}
}

// SetBroadcaster attaches or, with nil, detaches the peer broadcaster.
func (d *Document) SetBroadcaster(b Broadcaster) {
	d.mu.Lock()
	d.broadcaster = b
	d.mu.Unlock()
}

// OnChange registers fn to receive a copy of the state after every change.
func (d *Document) OnChange(fn func(models.Document)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// State returns a deep copy of the current state.
func (d *Document) State() models.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// Saved returns the state and history for persistence.
func (d *Document) Saved() Saved {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Saved{
		Document: d.state.Clone(),
		Past:     d.history.Past(),
		Future:   d.history.Future(),
	}
}

// Articles returns a copy of the ordered article list.
func (d *Document) Articles() []models.Article {
	d.mu.Lock()
	defer d.mu.Unlock()
	return models.CloneArticles(d.state.Articles)
}

// Article returns the article with id.
func (d *Document) Article(id string) (models.Article, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.indexLocked(id); i >= 0 {
		return d.state.Articles[i].Clone(), true
	}
	return models.Article{}, false
}

// Snapshot captures the undoable part of the state.
func (d *Document) Snapshot() models.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Restore replaces the undoable part of the state without recording history
// or notifying peers.
func (d *Document) Restore(s models.Snapshot) {
	d.mu.Lock()
	d.restoreLocked(s)
	st, fns := d.state.Clone(), d.listenersLocked()
	d.mu.Unlock()
	notify(fns, st)
}

// History returns copies of the past and future stacks.
func (d *Document) History() (past, future []models.HistoryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Past(), d.history.Future()
}

func (d *Document) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.CanUndo()
}

func (d *Document) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.CanRedo()
}

func (d *Document) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Articles:    d.state.Articles,
		Pages:       d.state.Pages,
		PageMargins: d.state.PageMargins,
		Settings:    d.state.Settings,
	}.Clone()
}

func (d *Document) restoreLocked(s models.Snapshot) {
	s = s.Clone()
	d.state.Articles = s.Articles
	d.state.Pages = s.Pages
	d.state.PageMargins = s.PageMargins
	d.state.Settings = s.Settings
	normalize(&d.state)
	d.relayoutLocked()
}

// relayoutLocked re-derives every article and grows the page count to fit.
func (d *Document) relayoutLocked() {
	d.state.Articles = layout.Plan(d.state.Articles, d.state.MarginsFor)
	if required := layout.RequiredMagazinePages(d.state.Articles); required > d.state.Pages {
		d.logger.Debug("growing magazine to fit articles", "from", d.state.Pages, "to", required)
		d.state.Pages = required
	}
}

func (d *Document) indexLocked(id string) int {
	for i := range d.state.Articles {
		if d.state.Articles[i].ID == id {
			return i
		}
	}
	return -1
}

// mutation is one step of the mutate pipeline. It edits the state in place
// and returns the change to announce, or ok false when nothing changed.
type mutation func(st *models.Document) (change Change, description string, ok bool, err error)

// mutate runs fn under the lock, then lays out, records and announces the result.
func (d *Document) mutate(ctx context.Context, opts ApplyOptions, fn mutation) error {
	d.mu.Lock()

	previous := d.snapshotLocked()
	change, description, ok, err := fn(&d.state)
	if err != nil || !ok {
		d.mu.Unlock()
		return err
	}
	d.relayoutLocked()
	d.history.Add(previous, description, opts.User)
	d.fillChangeLocked(&change)

	if opts.Origin == Local && change.Article != nil {
		d.lastLocal[change.Article.ID] = d.now()
	}

	st, fns := d.state.Clone(), d.listenersLocked()
	b := d.broadcaster
	d.mu.Unlock()

	notify(fns, st)
	if opts.shouldBroadcast() {
		d.publish(ctx, b, change)
	}
	return nil
}

// fillChangeLocked attaches the laid-out payload to a change.
func (d *Document) fillChangeLocked(c *Change) {
	switch c.Kind {
	case ArticleAdded, ArticleUpdated:
		if c.Article == nil {
			return
		}
		if i := d.indexLocked(c.Article.ID); i >= 0 {
			a := d.state.Articles[i].Clone()
			c.Article = &a
		}
	case ArticlesReordered:
		c.Articles = models.CloneArticles(d.state.Articles)
	case MagazineUpdated:
		s := d.snapshotLocked()
		c.Snapshot = &s
	}
}

func (d *Document) publish(ctx context.Context, b Broadcaster, c Change) {
	if b == nil || c.Kind == 0 {
		return
	}
	if err := b.Publish(ctx, c); err != nil {
		d.logger.Warn("broadcast failed, change kept locally", "change", c.Kind.String(), "error", err)
	}
}

func (d *Document) listenersLocked() []func(models.Document) {
	if len(d.listeners) == 0 {
		return nil
	}
	return append([]func(models.Document){}, d.listeners...)
}

func notify(fns []func(models.Document), st models.Document) {
	for _, fn := range fns {
		fn(st)
	}
}

// checkEditLocked enforces the share permission. Remote edits are refused
// when this client may not edit, and so are local ones on a shared
// view-only magazine.
func (d *Document) checkEditLocked(opts ApplyOptions, what string) error {
	if d.state.Sharing.AllowEdit {
		return nil
	}
	if opts.Origin == Remote || d.state.Sharing.IsShared {
		d.logger.Warn("edit refused", "origin", opts.Origin.String(), "operation", what)
		return fmt.Errorf("%w: %s", constants.ErrEditNotAllowed, what)
	}
	return nil
}
