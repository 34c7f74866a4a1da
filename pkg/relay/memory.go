package relay

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// MemoryHub is the shared state behind a set of Memory clients: share blobs,
// channel routes and presence. It echoes every broadcast to every subscriber,
// the sender included.
type MemoryHub struct {
	mu       sync.Mutex
	shares   map[string][]byte
	presence map[string]map[string]models.User // channel -> client id -> user
	down     error

	router *Router
	logger logger.Logger
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub(log logger.Logger) *MemoryHub {
	log = logger.OrNop(log)
	return &MemoryHub{
		shares:   make(map[string][]byte),
		presence: make(map[string]map[string]models.User),
		router:   NewRouter(log),
		logger:   log,
	}
}

// SetDown makes every operation fail with err until it is called with nil.
func (h *MemoryHub) SetDown(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.down = err
}

// Client returns a new connection to the hub.
func (h *MemoryHub) Client() *Memory {
	return &Memory{hub: h, id: rand.NewRequestID(constants.RequestIDLength)}
}

// Close stops all routes.
func (h *MemoryHub) Close() {
	h.router.Close()
}

func (h *MemoryHub) check() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.down
}

// Memory is one in-process connection to a MemoryHub.
type Memory struct {
	hub *MemoryHub
	id  string

	mu   sync.Mutex
	subs []string
}

var _ Relay = (*Memory)(nil)

// NewMemory returns a connection to a fresh hub.
func NewMemory(log logger.Logger) *Memory {
	return NewMemoryHub(log).Client()
}

// ID identifies the connection. It is the From of messages it broadcasts.
func (m *Memory) ID() string {
	return m.id
}

// Hub is the hub the connection belongs to.
func (m *Memory) Hub() *MemoryHub {
	return m.hub
}

func (m *Memory) CreateShare(ctx context.Context, blob []byte) (string, error) {
	if err := m.ready(ctx); err != nil {
		return "", err
	}
	id := uuid.NewString()

	m.hub.mu.Lock()
	m.hub.shares[id] = append([]byte(nil), blob...)
	m.hub.mu.Unlock()

	m.hub.logger.Debug("share created", "share_id", id, "size", len(blob))
	return id, nil
}

func (m *Memory) GetShare(ctx context.Context, id string) ([]byte, error) {
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	m.hub.mu.Lock()
	blob, ok := m.hub.shares[id]
	m.hub.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrShareNotFound, id)
	}
	return append([]byte(nil), blob...), nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	routeID := m.id + "/" + uuid.NewString()
	m.hub.router.Add(routeID, channel, h)

	m.mu.Lock()
	m.subs = append(m.subs, routeID)
	m.mu.Unlock()

	// A new subscriber learns who is already present.
	m.hub.router.PublishTo(routeID, Event{
		Channel:  channel,
		Presence: &PresenceEvent{Kind: PresenceSync, Users: m.hub.present(channel)},
	})
	return &memorySub{conn: m, routeID: routeID}, nil
}

func (m *Memory) Broadcast(ctx context.Context, channel, event string, payload []byte) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	m.hub.router.Publish(Event{
		Channel: channel,
		Message: &Message{
			Channel: channel,
			Event:   event,
			Payload: append([]byte(nil), payload...),
			From:    m.id,
		},
	})
	return nil
}

func (m *Memory) Track(ctx context.Context, channel string, user models.User) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	m.hub.mu.Lock()
	users, ok := m.hub.presence[channel]
	if !ok {
		users = make(map[string]models.User)
		m.hub.presence[channel] = users
	}
	users[m.id] = user
	m.hub.mu.Unlock()

	m.hub.announce(channel, PresenceJoin, user)
	return nil
}

func (m *Memory) Untrack(ctx context.Context, channel string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	m.hub.untrack(channel, m.id)
	return nil
}

// Close untracks the connection everywhere and drops its subscriptions.
func (m *Memory) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, id := range subs {
		m.hub.router.Remove(id)
	}

	m.hub.mu.Lock()
	var channels []string
	for ch, users := range m.hub.presence {
		if _, ok := users[m.id]; ok {
			channels = append(channels, ch)
		}
	}
	m.hub.mu.Unlock()

	for _, ch := range channels {
		m.hub.untrack(ch, m.id)
	}
}

func (m *Memory) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.hub.check()
}

func (h *MemoryHub) untrack(channel, clientID string) {
	h.mu.Lock()
	user, ok := h.presence[channel][clientID]
	if ok {
		delete(h.presence[channel], clientID)
		if len(h.presence[channel]) == 0 {
			delete(h.presence, channel)
		}
	}
	h.mu.Unlock()

	if ok {
		h.announce(channel, PresenceLeave, user)
	}
}

// announce publishes the incremental event followed by a full sync.
func (h *MemoryHub) announce(channel string, kind PresenceKind, user models.User) {
	h.router.Publish(Event{
		Channel:  channel,
		Presence: &PresenceEvent{Kind: kind, Users: []models.User{user}},
	})
	h.router.Publish(Event{
		Channel:  channel,
		Presence: &PresenceEvent{Kind: PresenceSync, Users: h.present(channel)},
	})
}

// present lists the users tracked on channel, ordered by id.
func (h *MemoryHub) present(channel string) []models.User {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make([]models.User, 0, len(h.presence[channel]))
	for _, u := range h.presence[channel] {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b models.User) int { return strings.Compare(a.ID, b.ID) })
	return users
}

type memorySub struct {
	conn    *Memory
	routeID string
	once    sync.Once
}

func (s *memorySub) Unsubscribe(context.Context) error {
	s.once.Do(func() {
		s.conn.hub.router.Remove(s.routeID)

		s.conn.mu.Lock()
		for i, id := range s.conn.subs {
			if id == s.routeID {
				s.conn.subs = append(s.conn.subs[:i], s.conn.subs[i+1:]...)
				break
			}
		}
		s.conn.mu.Unlock()
	})
	return nil
}
