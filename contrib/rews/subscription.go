package rews

import (
	"context"
	"sync"

	"github.com/flatplan/flatplan.go/pkg/relay"
)

// subscription is the caller's handle on a channel subscription. The inner
// subscription is swapped on every reconnection.
type subscription struct {
	release func(*subscription)
	channel string
	handler relay.Handler

	mu    sync.Mutex
	inner relay.Subscription
	done  bool
}

func (s *subscription) replace(inner relay.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		// unsubscribed while the connection was being restored
		_ = inner.Unsubscribe(context.Background())
		return
	}
	s.inner = inner
}

func (s *subscription) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	inner := s.inner
	s.mu.Unlock()

	s.release(s)
	return inner.Unsubscribe(ctx)
}
