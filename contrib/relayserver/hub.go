package relayserver

import (
	"context"
	"sort"
	"sync"

	"github.com/flatplan/flatplan.go/contrib/relayserver/store"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
	"github.com/flatplan/flatplan.go/pkg/relay/wire"
)

// Peer is one connected client as the hub sees it. Send must be safe for
// concurrent use.
type Peer interface {
	ID() string
	Send(f wire.Frame) error
}

// Hub routes relay frames between peers. It knows nothing about the
// transport: websocket servers feed it the frames they read and call
// Disconnect when a socket goes away.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[Peer]struct{}    // channel -> subscribers
	presence map[string]map[Peer]models.User // channel -> tracked users

	shares store.Store
	logger logger.Logger
}

// NewHub creates a hub serving shares from s.
func NewHub(s store.Store, log logger.Logger) *Hub {
	return &Hub{
		subs:     make(map[string]map[Peer]struct{}),
		presence: make(map[string]map[Peer]models.User),
		shares:   s,
		logger:   logger.OrNop(log),
	}
}

// Handle executes the request f from p and writes the ack to p. Frames that
// are not requests are answered with a bad request error.
func (h *Hub) Handle(ctx context.Context, p Peer, f wire.Frame) {
	if !f.IsRequest() {
		h.send(p, f.Fail(constants.ErrUnknownEvent))
		return
	}

	switch f.Op {
	case wire.OpSubscribe:
		h.mu.Lock()
		peers, ok := h.subs[f.Channel]
		if !ok {
			peers = make(map[Peer]struct{})
			h.subs[f.Channel] = peers
		}
		peers[p] = struct{}{}
		h.mu.Unlock()

		h.send(p, f.Ack())
		h.send(p, wire.Frame{
			Op:       wire.OpPresence,
			Channel:  f.Channel,
			Presence: &relay.PresenceEvent{Kind: relay.PresenceSync, Users: h.present(f.Channel)},
		})

	case wire.OpUnsubscribe:
		h.mu.Lock()
		h.unsubscribe(f.Channel, p)
		h.mu.Unlock()
		h.send(p, f.Ack())

	case wire.OpBroadcast:
		h.send(p, f.Ack())
		msg := wire.Frame{Op: wire.OpMessage, Channel: f.Channel, Event: f.Event, Payload: f.Payload, From: p.ID()}
		for _, peer := range h.subscribers(f.Channel) {
			h.send(peer, msg)
		}

	case wire.OpTrack:
		if f.User == nil {
			h.send(p, f.Fail(constants.ErrUnknownEvent))
			return
		}
		h.mu.Lock()
		users, ok := h.presence[f.Channel]
		if !ok {
			users = make(map[Peer]models.User)
			h.presence[f.Channel] = users
		}
		users[p] = *f.User
		h.mu.Unlock()

		h.send(p, f.Ack())
		h.announce(f.Channel, relay.PresenceJoin, *f.User)

	case wire.OpUntrack:
		h.send(p, f.Ack())
		h.untrack(f.Channel, p)

	case wire.OpShareCreate:
		s, err := h.shares.Create(ctx, f.Payload)
		if err != nil {
			h.logger.Warn("failed to create share", "error", err, "peer", p.ID())
			h.send(p, f.Fail(err))
			return
		}
		h.logger.Info("share created", "share_id", s.ID, "size", len(s.Blob))
		ack := f.Ack()
		ack.Channel = s.ID
		h.send(p, ack)

	case wire.OpShareGet:
		s, err := h.shares.Get(ctx, f.Channel)
		if err != nil {
			h.send(p, f.Fail(err))
			return
		}
		ack := f.Ack()
		ack.Payload = s.Blob
		h.send(p, ack)
	}
}

// Disconnect drops every subscription of p and untracks it everywhere,
// announcing a leave on each channel it was present on.
func (h *Hub) Disconnect(p Peer) {
	h.mu.Lock()
	for ch := range h.subs {
		h.unsubscribe(ch, p)
	}
	var tracked []string
	for ch, users := range h.presence {
		if _, ok := users[p]; ok {
			tracked = append(tracked, ch)
		}
	}
	h.mu.Unlock()

	for _, ch := range tracked {
		h.untrack(ch, p)
	}
}

// Channels is the number of channels with at least one subscriber.
func (h *Hub) Channels() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// unsubscribe must be called with h.mu held.
func (h *Hub) unsubscribe(channel string, p Peer) {
	delete(h.subs[channel], p)
	if len(h.subs[channel]) == 0 {
		delete(h.subs, channel)
	}
}

func (h *Hub) untrack(channel string, p Peer) {
	h.mu.Lock()
	user, ok := h.presence[channel][p]
	if ok {
		delete(h.presence[channel], p)
		if len(h.presence[channel]) == 0 {
			delete(h.presence, channel)
		}
	}
	h.mu.Unlock()

	if ok {
		h.announce(channel, relay.PresenceLeave, user)
	}
}

// announce sends the incremental presence change followed by a full sync.
func (h *Hub) announce(channel string, kind relay.PresenceKind, user models.User) {
	change := wire.Frame{
		Op:       wire.OpPresence,
		Channel:  channel,
		Presence: &relay.PresenceEvent{Kind: kind, Users: []models.User{user}},
	}
	full := wire.Frame{
		Op:       wire.OpPresence,
		Channel:  channel,
		Presence: &relay.PresenceEvent{Kind: relay.PresenceSync, Users: h.present(channel)},
	}
	for _, peer := range h.subscribers(channel) {
		h.send(peer, change)
		h.send(peer, full)
	}
}

func (h *Hub) subscribers(channel string) []Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := make([]Peer, 0, len(h.subs[channel]))
	for p := range h.subs[channel] {
		peers = append(peers, p)
	}
	return peers
}

// present lists the users tracked on channel, ordered by id.
func (h *Hub) present(channel string) []models.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]models.User, 0, len(h.presence[channel]))
	for _, u := range h.presence[channel] {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (h *Hub) send(p Peer, f wire.Frame) {
	if err := p.Send(f); err != nil {
		h.logger.Warn("failed to send frame", "peer", p.ID(), "op", string(f.Op), "error", err)
	}
}
