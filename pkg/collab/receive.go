package collab

import (
	"context"
	"errors"
	"time"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
)

// receive handles everything the relay delivers on the session channel.
func (s *Session) receive(ev relay.Event) {
	switch {
	case ev.Presence != nil:
		s.applyPresence(*ev.Presence)
	case ev.Message != nil:
		s.handleMessage(*ev.Message)
	}
}

func (s *Session) applyPresence(p relay.PresenceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.Kind {
	case relay.PresenceSync:
		s.users = append([]models.User(nil), p.Users...)
	case relay.PresenceJoin:
		for _, u := range p.Users {
			s.addUserLocked(u)
		}
	case relay.PresenceLeave:
		for _, u := range p.Users {
			s.removeUserLocked(u.ID)
		}
	}
}

func (s *Session) addUserLocked(u models.User) {
	for _, existing := range s.users {
		if existing.ID == u.ID {
			return
		}
	}
	s.users = append(s.users, u)
}

func (s *Session) removeUserLocked(id string) {
	for i, u := range s.users {
		if u.ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return
		}
	}
}

func (s *Session) handleMessage(msg relay.Message) {
	env, err := Decode(msg.Payload)
	if err != nil {
		s.logger.Warn("dropping collaboration message", "event", msg.Event, "error", err)
		return
	}
	if env.User.ID == s.user.ID {
		return
	}
	if s.seen.Seen(env.ID) {
		s.logger.Debug("ignoring duplicate broadcast", "event", string(env.Event), "id", env.ID)
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Debug("applying remote change", "event", string(env.Event), "user_id", env.User.ID,
		"lag", lag(s.now, env.Timestamp))
	if err := s.dispatch(ctx, env); err != nil {
		if errors.Is(err, constants.ErrEditNotAllowed) {
			s.logger.Debug("remote change refused", "event", string(env.Event), "user_id", env.User.ID)
			return
		}
		s.logger.Warn("failed to apply remote change", "event", string(env.Event), "user_id", env.User.ID, "error", err)
	}
}

func (s *Session) dispatch(ctx context.Context, env Envelope) error {
	user := env.User
	opts := document.RemoteChange(&user, env.Timestamp)

	switch env.Event {
	case EventUserJoin:
		var p UserJoin
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		s.mu.Lock()
		s.addUserLocked(p.User)
		s.mu.Unlock()
		return nil

	case EventUserLeave:
		var p UserLeave
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		s.mu.Lock()
		s.removeUserLocked(p.UserID)
		s.mu.Unlock()
		return nil

	case EventPresenceSync:
		var p Presence
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		s.applyPresence(relay.PresenceEvent{Kind: relay.PresenceSync, Users: p.Users})
		return nil

	case EventArticleAdd:
		var p ArticleAdd
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		a, err := s.doc.AddArticle(ctx, p.Article, opts)
		if err != nil {
			return err
		}
		s.remember(a)
		return nil

	case EventArticleUpdate:
		var p ArticleUpdate
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		if err := s.doc.UpdateArticle(ctx, p.Article, opts); err != nil {
			return err
		}
		if a, ok := s.doc.Article(p.Article.ID); ok {
			s.remember(a)
		}
		return nil

	case EventArticleDelete:
		var p ArticleDelete
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		s.forget(p.ID)
		return s.doc.DeleteArticle(ctx, p.ID, opts)

	case EventArticleReorder:
		var p ArticleReorder
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		if len(p.Articles) > 0 {
			return s.doc.ReplaceArticles(ctx, p.Articles, opts)
		}
		return s.doc.Reorder(ctx, p.IDs, opts)

	case EventMagazineUpdate:
		var p MagazineUpdate
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		if err := s.doc.ApplySnapshot(ctx, p.Snapshot, opts); err != nil {
			return err
		}
		for _, a := range s.doc.Articles() {
			s.remember(a)
		}
		return nil

	case EventStateUpdate:
		var p StateUpdate
		if err := env.UnmarshalPayload(&p); err != nil {
			return err
		}
		s.doc.SetShareStatus(ctx, models.Sharing{IsShared: true, AllowEdit: p.AllowEdit, ShareID: s.ShareID()}, opts)
		s.logger.Info("edit permission changed", "allow_edit", p.AllowEdit, "user_id", env.User.ID)
		return nil
	}
	return nil
}

// lag is how long ago a peer made a change, for logs.
func lag(now func() time.Time, at time.Time) time.Duration {
	if at.IsZero() {
		return 0
	}
	return now().Sub(at)
}
