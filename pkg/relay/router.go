package relay

import (
	"sync"

	"github.com/flatplan/flatplan.go/pkg/logger"
)

// routeBuffer is how many events may wait for a slow handler before new ones
// are dropped.
const routeBuffer = 100

// Router fans events out to handlers. Every route has its own goroutine and
// buffer, so a slow handler delays only itself and sees events in order.
type Router struct {
	routes   map[string]*route
	routesMu sync.RWMutex

	logger logger.Logger
}

type route struct {
	id      string
	channel string
	handler Handler
	ch      chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRouter creates an empty Router.
func NewRouter(log logger.Logger) *Router {
	return &Router{
		routes: make(map[string]*route),
		logger: logger.OrNop(log),
	}
}

// Add starts delivering events published on channel to h under id.
func (rt *Router) Add(id, channel string, h Handler) {
	rt.routesMu.Lock()
	old := rt.routes[id]
	r := &route{
		id:      id,
		channel: channel,
		handler: h,
		ch:      make(chan Event, routeBuffer),
		stopCh:  make(chan struct{}),
	}
	rt.routes[id] = r
	r.wg.Add(1)
	go rt.deliver(r)
	rt.routesMu.Unlock()

	if old != nil {
		rt.stop(old)
	}
	rt.logger.Debug("route added", "route_id", id, "channel", channel)
}

// Publish queues ev for every route on ev.Channel. A full route drops the event.
func (rt *Router) Publish(ev Event) {
	rt.routesMu.RLock()
	defer rt.routesMu.RUnlock()

	for _, r := range rt.routes {
		if r.channel != ev.Channel {
			continue
		}
		select {
		case r.ch <- ev:
		default:
			rt.logger.Warn("failed to route event, handler is falling behind",
				"route_id", r.id, "channel", r.channel)
		}
	}
}

// PublishTo queues ev for the route id only.
func (rt *Router) PublishTo(id string, ev Event) {
	rt.routesMu.RLock()
	defer rt.routesMu.RUnlock()

	r, ok := rt.routes[id]
	if !ok {
		return
	}
	select {
	case r.ch <- ev:
	default:
		rt.logger.Warn("failed to route event, handler is falling behind", "route_id", id)
	}
}

func (rt *Router) deliver(r *route) {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.ch:
			r.handler(ev)
		case <-r.stopCh:
			return
		}
	}
}

// Remove stops the route id and waits for its goroutine to exit. It must not
// be called from the route's own handler.
func (rt *Router) Remove(id string) {
	rt.routesMu.Lock()
	r, ok := rt.routes[id]
	delete(rt.routes, id)
	rt.routesMu.Unlock()

	if ok {
		rt.stop(r)
		rt.logger.Debug("route removed", "route_id", id)
	}
}

// Len is the number of active routes.
func (rt *Router) Len() int {
	rt.routesMu.RLock()
	defer rt.routesMu.RUnlock()
	return len(rt.routes)
}

// Close stops every route.
func (rt *Router) Close() {
	rt.routesMu.Lock()
	routes := rt.routes
	rt.routes = make(map[string]*route)
	rt.routesMu.Unlock()

	for _, r := range routes {
		rt.stop(r)
	}
}

func (rt *Router) stop(r *route) {
	close(r.stopCh)
	r.wg.Wait()
}
