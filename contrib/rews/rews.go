package rews

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
)

// Conn is a relay connection that can be lost.
type Conn interface {
	relay.Relay
	IsClosed() bool
	Close(ctx context.Context) error
}

// Relay is a relay.Relay that reconnects when its connection is lost and
// restores subscriptions and presence on the new one.
type Relay[C Conn] struct {
	// NewFunc opens a connection, initially and on every reconnection.
	NewFunc func(context.Context) (C, error)

	// CheckInterval is how often the connection is checked. Defaults to 5s.
	CheckInterval time.Duration

	// Retryer retries failed connection attempts. Nil fails on the first error.
	Retryer Retryer

	connMu sync.RWMutex
	conn   C
	live   bool

	// connCloseCh stops the reconnection loop; reconnLoopCloseCh is closed
	// once it has stopped.
	connCloseCh       chan int
	reconnLoopCloseCh chan int
	once              sync.Once

	logger logger.Logger

	state   State
	stateMu sync.Mutex

	// sessionMu guards what is restored after a reconnection.
	sessionMu sync.Mutex
	subs      map[*subscription]struct{}
	tracked   map[string]models.User
}

var _ relay.Relay = (*Relay[Conn])(nil)

// New creates a reconnecting relay. Call Connect before using it.
func New[C Conn](newConn func(context.Context) (C, error), checkInterval time.Duration, log logger.Logger) *Relay[C] {
	return &Relay[C]{
		NewFunc:       newConn,
		CheckInterval: checkInterval,
		state:         StateDisconnected,
		logger:        logger.OrNop(log),
		subs:          make(map[*subscription]struct{}),
		tracked:       make(map[string]models.User),
	}
}

func (r *Relay[C]) transitionTo(to State) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if err := r.state.validateTransitionTo(to); err != nil {
		return err
	}
	r.state = to
	r.logger.Debug("rews.Relay state transitioned", "new_state", to)
	return nil
}

// State is the current lifecycle state.
func (r *Relay[C]) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

// IsClosed reports whether Close was called. A closed Relay cannot connect
// again.
func (r *Relay[C]) IsClosed() bool {
	return r.State() == StateClosed
}

// Connect opens the connection, retrying with Retryer, and starts the
// reconnection loop on first success. The error of the last attempt is
// returned when every attempt fails.
func (r *Relay[C]) Connect(ctx context.Context) error {
	if err := r.transitionTo(StateConnecting); err != nil {
		return err
	}

	conn, err := r.dial(ctx)
	if err != nil {
		if stateErr := r.transitionTo(StateDisconnected); stateErr != nil {
			r.logger.Error("BUG: rews.Relay failed to transition to disconnected state", "error", stateErr)
		}
		return fmt.Errorf("rews.Relay failed to connect: %w", err)
	}

	r.connMu.Lock()
	old, hadOld := r.conn, r.live
	r.conn, r.live = conn, true
	r.connMu.Unlock()
	if hadOld {
		if err := old.Close(ctx); err != nil {
			r.logger.Debug("rews.Relay failed to close the lost connection", "error", err)
		}
	}

	r.once.Do(func() {
		r.connCloseCh = make(chan int, 1)
		r.reconnLoopCloseCh = make(chan int, 1)
		go r.reconnectionLoop()
	})

	if err := r.transitionTo(StateConnected); err != nil {
		panic(fmt.Sprintf("BUG: rews.Relay failed to transition to connected state: %v", err))
	}
	return nil
}

func (r *Relay[C]) dial(ctx context.Context) (C, error) {
	for attempt := 0; ; attempt++ {
		conn, err := r.NewFunc(ctx)
		if err == nil {
			if r.Retryer != nil {
				r.Retryer.Reset()
			}
			return conn, nil
		}
		if r.Retryer == nil {
			return conn, err
		}
		delay, ok := r.Retryer.NextDelay(attempt, err)
		if !ok {
			return conn, err
		}
		r.logger.Warn("rews.Relay connection attempt failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return conn, ctx.Err()
		case <-t.C:
		}
	}
}

// reconnect replaces the lost connection and restores every subscription
// and tracked presence on it.
func (r *Relay[C]) reconnect(ctx context.Context) error {
	if err := r.Connect(ctx); err != nil {
		return err
	}
	conn := r.current()

	r.sessionMu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	tracked := make(map[string]models.User, len(r.tracked))
	for ch, u := range r.tracked {
		tracked[ch] = u
	}
	r.sessionMu.Unlock()

	// A connection that cannot be restored is dropped so the next check
	// starts over on a fresh one.
	for _, s := range subs {
		inner, err := conn.Subscribe(ctx, s.channel, s.handler)
		if err != nil {
			_ = conn.Close(ctx)
			return fmt.Errorf("rews.Relay failed to restore subscription to %s: %w", s.channel, err)
		}
		s.replace(inner)
		r.logger.Debug("rews.Relay restored subscription", "channel", s.channel)
	}
	for ch, u := range tracked {
		if err := conn.Track(ctx, ch, u); err != nil {
			_ = conn.Close(ctx)
			return fmt.Errorf("rews.Relay failed to restore presence on %s: %w", ch, err)
		}
		r.logger.Debug("rews.Relay restored presence", "channel", ch, "user_id", u.ID)
	}
	return nil
}

func (r *Relay[C]) current() C {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	return r.conn
}

// connected is the current connection, or ErrClosed before the first
// successful Connect.
func (r *Relay[C]) connected() (C, error) {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	if !r.live {
		return r.conn, constants.ErrClosed
	}
	return r.conn, nil
}

func (r *Relay[C]) CreateShare(ctx context.Context, blob []byte) (string, error) {
	conn, err := r.connected()
	if err != nil {
		return "", err
	}
	return conn.CreateShare(ctx, blob)
}

func (r *Relay[C]) GetShare(ctx context.Context, id string) ([]byte, error) {
	conn, err := r.connected()
	if err != nil {
		return nil, err
	}
	return conn.GetShare(ctx, id)
}

// Subscribe subscribes on the current connection. The subscription follows
// the Relay onto every new connection until it is unsubscribed.
func (r *Relay[C]) Subscribe(ctx context.Context, channel string, h relay.Handler) (relay.Subscription, error) {
	conn, err := r.connected()
	if err != nil {
		return nil, err
	}
	inner, err := conn.Subscribe(ctx, channel, h)
	if err != nil {
		return nil, err
	}
	s := &subscription{release: r.forget, channel: channel, handler: h, inner: inner}

	r.sessionMu.Lock()
	r.subs[s] = struct{}{}
	r.sessionMu.Unlock()
	return s, nil
}

func (r *Relay[C]) forget(s *subscription) {
	r.sessionMu.Lock()
	defer r.sessionMu.Unlock()
	delete(r.subs, s)
}

func (r *Relay[C]) Broadcast(ctx context.Context, channel, event string, payload []byte) error {
	conn, err := r.connected()
	if err != nil {
		return err
	}
	return conn.Broadcast(ctx, channel, event, payload)
}

// Track announces user on channel and remembers it for reconnections.
func (r *Relay[C]) Track(ctx context.Context, channel string, user models.User) error {
	conn, err := r.connected()
	if err != nil {
		return err
	}
	if err := conn.Track(ctx, channel, user); err != nil {
		return err
	}
	r.sessionMu.Lock()
	r.tracked[channel] = user
	r.sessionMu.Unlock()
	return nil
}

func (r *Relay[C]) Untrack(ctx context.Context, channel string) error {
	r.sessionMu.Lock()
	delete(r.tracked, channel)
	r.sessionMu.Unlock()

	conn, err := r.connected()
	if err != nil {
		return err
	}
	return conn.Untrack(ctx, channel)
}

// Close stops the reconnection loop, then closes the connection. Once it
// returns no reconnection happens, but the connection itself may still be
// shutting down.
func (r *Relay[C]) Close(ctx context.Context) error {
	if err := r.transitionTo(StateClosing); err != nil {
		return fmt.Errorf("rews.Relay is already closing or closed: %w", err)
	}
	defer func() {
		if err := r.transitionTo(StateClosed); err != nil {
			r.logger.Error("BUG: rews.Relay failed to transition to closed state", "error", err)
		}
	}()

	if r.connCloseCh != nil {
		close(r.connCloseCh)
		<-r.reconnLoopCloseCh
	}

	r.connMu.RLock()
	conn, live := r.conn, r.live
	r.connMu.RUnlock()
	if !live {
		return nil
	}
	return conn.Close(ctx)
}

func (r *Relay[C]) reconnectionLoop() {
	interval := 5 * time.Second
	if r.CheckInterval > 0 {
		interval = r.CheckInterval
	}
	defer close(r.reconnLoopCloseCh)

	for {
		select {
		case <-r.connCloseCh:
			return
		case <-time.After(interval):
		}

		if !r.current().IsClosed() {
			continue
		}
		r.logger.Info("rews.Relay is attempting to reconnect")
		if err := r.reconnect(context.Background()); err != nil {
			r.logger.Error("rews.Relay failed to reconnect", "error", err)
			continue
		}
		r.logger.Info("rews.Relay reconnected")
	}
}
