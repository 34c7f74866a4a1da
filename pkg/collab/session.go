package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
	"github.com/flatplan/flatplan.go/pkg/share"
)

// Messages shown to people when joining fails.
const (
	JoinFailedMessage     = "Failed to join session"
	ShareNotFoundMessage  = "Share not found or expired"
	ShareCorruptedMessage = "Shared magazine could not be read"
)

// Config configures a Session. Relay and Document are required.
type Config struct {
	Relay    relay.Relay
	Document *document.Document
	// User is this client's identity. A zero User gets a fresh id and a
	// random animal.
	User   models.User
	Logger logger.Logger
	// Now is the clock for timestamps and the dedupe window.
	Now func() time.Time
	// DedupeWindow defaults to constants.DedupeWindow.
	DedupeWindow time.Duration
	Rand         rand.Source
}

// Session is one client's participation in a shared magazine.
type Session struct {
	relay  relay.Relay
	doc    *document.Document
	user   models.User
	logger logger.Logger
	now    func() time.Time
	status *StatusMachine
	seen   *Window

	mu      sync.Mutex
	shareID string
	ctx     context.Context
	sub     relay.Subscription
	users   []models.User
	// sent is the last version of each article this client put on the wire
	// or applied from a peer.
	sent map[string]models.Article
}

var _ document.Broadcaster = (*Session)(nil)

// New creates an idle session and attaches it to the document as its
// broadcaster.
func New(cfg Config) *Session {
	log := logger.OrNop(cfg.Logger)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	window := cfg.DedupeWindow
	if window <= 0 {
		window = constants.DedupeWindow
	}
	user := cfg.User
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Animal.Name == "" {
		user.Animal = RandomAnimal(cfg.Rand)
	}

	s := &Session{
		relay:  cfg.Relay,
		doc:    cfg.Document,
		user:   user,
		logger: log,
		now:    now,
		status: NewStatusMachine(log),
		seen:   NewWindow(window, now),
		sent:   make(map[string]models.Article),
	}
	if s.doc != nil {
		s.doc.SetBroadcaster(s)
	}
	return s
}

// User is this client's identity.
func (s *Session) User() models.User {
	return s.user
}

// Relay is the relay the session talks through.
func (s *Session) Relay() relay.Relay {
	return s.relay
}

// Status exposes the connection status machine.
func (s *Session) Status() *StatusMachine {
	return s.status
}

// ShareID is the share the session is on, or "" when idle.
func (s *Session) ShareID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shareID
}

// Active reports whether the session is subscribed to a share.
func (s *Session) Active() bool {
	return s.ShareID() != ""
}

// ConnectedUsers lists who is present, this client always included and first.
func (s *Session) ConnectedUsers() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.User{s.user}
	for _, u := range s.users {
		if u.ID != s.user.ID {
			out = append(out, u)
		}
	}
	return out
}

// Join subscribes to the channel of shareID and announces this client. The
// caller already holds the magazine, so the status goes straight from
// Connecting to Syncing.
func (s *Session) Join(ctx context.Context, shareID string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	if err := s.connect(ctx, shareID); err != nil {
		s.fail(JoinFailedMessage, err)
		return err
	}
	if err := s.status.Transition(Syncing); err != nil {
		return err
	}
	return s.status.Transition(Ready)
}

// JoinShare fetches a share, joins its channel and installs its state in the
// document with the given edit permission.
func (s *Session) JoinShare(ctx context.Context, shareID string, allowEdit bool) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	blob, err := s.relay.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, constants.ErrShareNotFound) {
			s.fail(ShareNotFoundMessage, err)
		} else {
			s.fail(JoinFailedMessage, err)
		}
		return err
	}
	state, err := share.UnmarshalBlob(blob)
	if err != nil {
		s.fail(ShareCorruptedMessage, err)
		return err
	}

	if err := s.connect(ctx, shareID); err != nil {
		s.fail(JoinFailedMessage, err)
		return err
	}
	if err := s.status.Transition(Waiting); err != nil {
		return err
	}
	if err := s.status.Transition(Syncing); err != nil {
		return err
	}

	s.doc.SyncState(ctx, state.Document())
	s.doc.SetShareStatus(ctx, models.Sharing{IsShared: true, AllowEdit: allowEdit, ShareID: shareID},
		document.ApplyOptions{Origin: document.Remote})

	s.mu.Lock()
	for _, a := range s.doc.Articles() {
		s.sent[a.ID] = a
	}
	s.mu.Unlock()

	return s.status.Transition(Ready)
}

// begin leaves any current share and moves to Connecting.
func (s *Session) begin(ctx context.Context) error {
	if s.Active() {
		if err := s.Leave(ctx); err != nil {
			s.logger.Warn("failed to leave previous share", "error", err)
		}
	}
	return s.status.Transition(Connecting)
}

func (s *Session) fail(message string, err error) {
	s.logger.Error("collaboration session failed", "message", message, "error", err)
	_ = s.status.Fail(message)
}

func (s *Session) connect(ctx context.Context, shareID string) error {
	s.mu.Lock()
	s.shareID = shareID
	s.ctx = context.WithoutCancel(ctx)
	s.users = nil
	s.mu.Unlock()

	sub, err := s.relay.Subscribe(ctx, shareID, s.receive)
	if err != nil {
		s.reset()
		return fmt.Errorf("subscribe to %s: %w", shareID, err)
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	if err := s.relay.Track(ctx, shareID, s.user); err != nil {
		_ = sub.Unsubscribe(ctx)
		s.reset()
		return fmt.Errorf("track presence on %s: %w", shareID, err)
	}
	if err := s.Broadcast(ctx, EventUserJoin, UserJoin{User: s.user}); err != nil {
		s.logger.Warn("failed to announce join", "share_id", shareID, "error", err)
	}
	s.logger.Info("joined share", "share_id", shareID, "user_id", s.user.ID, "animal", s.user.Animal.Name)
	return nil
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareID = ""
	s.sub = nil
	s.users = nil
}

// Leave announces the departure, stops tracking presence and unsubscribes.
// The status returns to Idle.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	shareID, sub := s.shareID, s.sub
	s.mu.Unlock()

	if shareID == "" {
		return s.status.Transition(Idle)
	}

	err := s.Broadcast(ctx, EventUserLeave, UserLeave{UserID: s.user.ID})
	err = multierr.Append(err, s.relay.Untrack(ctx, shareID))
	if sub != nil {
		err = multierr.Append(err, sub.Unsubscribe(ctx))
	}
	s.reset()
	s.logger.Info("left share", "share_id", shareID)

	return multierr.Append(err, s.status.Transition(Idle))
}

// Broadcast sends payload to the peers on the current share.
func (s *Session) Broadcast(ctx context.Context, event Event, payload any) error {
	shareID := s.ShareID()
	if shareID == "" {
		return constants.ErrNoSession
	}
	env, err := NewEnvelope(event, s.user, s.now(), payload)
	if err != nil {
		return err
	}
	data, err := Encode(env)
	if err != nil {
		return err
	}
	s.seen.Seen(env.ID)
	if err := s.relay.Broadcast(ctx, shareID, string(event), data); err != nil {
		return fmt.Errorf("broadcast %s: %w", event, err)
	}
	s.logger.Debug("broadcast sent", "event", string(event), "id", env.ID)
	return nil
}

// Publish turns a local document change into a broadcast. Without a session
// the change simply stays local.
func (s *Session) Publish(ctx context.Context, c document.Change) error {
	if !s.Active() {
		s.logger.Debug("no active session, change kept local", "change", c.Kind.String())
		return nil
	}

	switch c.Kind {
	case document.ArticleAdded:
		if c.Article == nil {
			return nil
		}
		s.remember(*c.Article)
		return s.Broadcast(ctx, EventArticleAdd, ArticleAdd{Article: *c.Article})
	case document.ArticleUpdated:
		if c.Article == nil {
			return nil
		}
		if !s.remember(*c.Article) {
			s.logger.Debug("article unchanged, not broadcasting", "article_id", c.Article.ID)
			return nil
		}
		return s.Broadcast(ctx, EventArticleUpdate, ArticleUpdate{Article: *c.Article})
	case document.ArticleDeleted:
		s.forget(c.ArticleID)
		return s.Broadcast(ctx, EventArticleDelete, ArticleDelete{ID: c.ArticleID})
	case document.ArticlesReordered:
		ids := make([]string, len(c.Articles))
		for i, a := range c.Articles {
			ids[i] = a.ID
		}
		return s.Broadcast(ctx, EventArticleReorder, ArticleReorder{IDs: ids, Articles: c.Articles})
	case document.MagazineUpdated:
		if c.Snapshot == nil {
			return nil
		}
		for _, a := range c.Snapshot.Articles {
			s.remember(a)
		}
		return s.Broadcast(ctx, EventMagazineUpdate, MagazineUpdate{Snapshot: *c.Snapshot})
	case document.ShareStateUpdated:
		return s.Broadcast(ctx, EventStateUpdate, StateUpdate{AllowEdit: c.AllowEdit})
	}
	return nil
}

// SetPeerPermission tells peers whether they may edit. This client's own
// permission is unchanged.
func (s *Session) SetPeerPermission(ctx context.Context, allowEdit bool) error {
	return s.Broadcast(ctx, EventStateUpdate, StateUpdate{AllowEdit: allowEdit})
}

// remember records a as the latest known version and reports whether it
// differs from the previous one.
func (s *Session) remember(a models.Article) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.sent[a.ID]
	s.sent[a.ID] = a.Clone()
	return !ok || Changed(prev, a)
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sent, id)
}
