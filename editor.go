package flatplan

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/flatplan/flatplan.go/pkg/collab"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/persist"
	"github.com/flatplan/flatplan.go/pkg/relay"
	"github.com/flatplan/flatplan.go/pkg/share"
)

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger handed to the document, the autosaver and any
// collaboration session.
func WithLogger(l logger.Logger) Option {
	return func(e *Editor) {
		e.logger = logger.OrNop(l)
	}
}

// WithUser sets the identity used when sharing. By default every session
// gets a fresh id and a random animal.
func WithUser(u models.User) Option {
	return func(e *Editor) {
		e.user = u
	}
}

// WithShareBase sets the origin share links are built on.
func WithShareBase(base string) Option {
	return func(e *Editor) {
		e.shareBase = base
	}
}

// Editor is one open magazine: the document with its undo history, the
// store it is saved to and, once shared or joined, a collaboration session.
type Editor struct {
	doc   *document.Document
	store persist.Store
	id    string
	saver *persist.Autosaver

	logger    logger.Logger
	user      models.User
	shareBase string

	mu      sync.Mutex
	session *collab.Session
}

// New creates an editor on a blank magazine that is not saved anywhere.
func New(opts ...Option) *Editor {
	e := newEditor(opts)
	e.doc = document.New(document.Config{Logger: e.logger})
	return e
}

// Open loads magazine id from store and saves it back after every change.
func Open(ctx context.Context, store persist.Store, id string, opts ...Option) (*Editor, error) {
	m, err := store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open magazine %s: %w", id, err)
	}

	e := newEditor(opts)
	e.store = store
	e.id = id
	e.doc = document.FromSaved(m.State, document.Config{Logger: e.logger})
	e.saver = persist.NewAutosaver(store, id, e.logger)
	e.saver.Attach(e.doc)
	return e, nil
}

func newEditor(opts []Option) *Editor {
	e := &Editor{
		logger:    logger.Nop(),
		shareBase: constants.DefaultShareBase,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Document is the magazine being edited.
func (e *Editor) Document() *document.Document {
	return e.doc
}

// ID is the id of the stored magazine, empty for an unsaved editor.
func (e *Editor) ID() string {
	return e.id
}

// Session is the current collaboration session, nil before the first Share
// or JoinShare.
func (e *Editor) Session() *collab.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Share publishes the magazine on r, joins its channel as the owner and
// returns the link peers open. The owner keeps editing whatever allowEdit
// grants the peers. When the relay cannot take the share the magazine is
// inlined in the link instead and no session is started.
func (e *Editor) Share(ctx context.Context, r relay.Relay, allowEdit bool) (string, error) {
	state := share.FromDocument(e.doc.State())
	blob, err := share.MarshalBlob(state)
	if err != nil {
		return "", err
	}

	id, err := r.CreateShare(ctx, blob)
	if err != nil {
		e.logger.Warn("relay unavailable, sharing inline", "error", err)
		return e.inlineLink(state, allowEdit)
	}

	s := e.sessionFor(ctx, r)
	if err := s.Join(ctx, id); err != nil {
		return "", err
	}
	e.doc.SetShareStatus(ctx, models.Sharing{IsShared: true, AllowEdit: true, ShareID: id}, document.ApplyOptions{})
	e.logger.Info("magazine shared", "share_id", id, "allow_edit", allowEdit)

	return share.Build(share.Link{Base: e.shareBase, ShareID: id, AllowEdit: allowEdit}), nil
}

func (e *Editor) inlineLink(state share.State, allowEdit bool) (string, error) {
	data, err := share.Encode(state)
	if err != nil {
		return "", err
	}
	return share.Build(share.Link{Base: e.shareBase, Inline: data, AllowEdit: allowEdit}), nil
}

// JoinShare opens a share link. Relay links join the share's channel on r;
// inline links only load the magazine they carry, and r may be nil for them.
func (e *Editor) JoinShare(ctx context.Context, r relay.Relay, link string) error {
	l, err := share.Parse(link)
	if err != nil {
		return err
	}

	if l.IsInline() {
		state, err := share.Decode(l.Inline)
		if err != nil {
			return err
		}
		e.doc.SyncState(ctx, state.Document())
		e.doc.SetShareStatus(ctx, models.Sharing{AllowEdit: l.AllowEdit}, document.ApplyOptions{Origin: document.Remote})
		return nil
	}

	if r == nil {
		return fmt.Errorf("join share %s: %w", l.ShareID, constants.ErrNoSession)
	}
	return e.sessionFor(ctx, r).JoinShare(ctx, l.ShareID, l.AllowEdit)
}

// sessionFor returns the session bound to r, replacing one bound to another
// relay.
func (e *Editor) sessionFor(ctx context.Context, r relay.Relay) *collab.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if e.session.Relay() == r {
			return e.session
		}
		if e.session.Active() {
			if err := e.session.Leave(ctx); err != nil {
				e.logger.Warn("failed to leave previous share", "error", err)
			}
		}
	}
	e.session = collab.New(collab.Config{
		Relay:    r,
		Document: e.doc,
		User:     e.user,
		Logger:   e.logger,
	})
	return e.session
}

// Close leaves the collaboration session and writes a last save.
func (e *Editor) Close(ctx context.Context) error {
	var err error
	if s := e.Session(); s != nil && s.Active() {
		err = multierr.Append(err, s.Leave(ctx))
	}
	if e.saver != nil {
		err = multierr.Append(err, e.saver.Save(ctx, e.doc))
	}
	return err
}
