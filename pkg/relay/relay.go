// Package relay defines the channel service collaboration runs on: opaque
// share blobs keyed by id, and pub/sub channels with presence.
//
// Any backend that can store and fetch a blob, fan a named event out to the
// subscribers of a channel and track who is present satisfies Relay. Memory is
// the in-process backend; wsrelay talks to a relay server over a websocket.
package relay

import (
	"context"

	"github.com/flatplan/flatplan.go/pkg/models"
)

// PresenceKind is the kind of a presence notification.
type PresenceKind string

const (
	// PresenceSync carries the full list of present users.
	PresenceSync PresenceKind = "sync"
	// PresenceJoin carries users that just started tracking.
	PresenceJoin PresenceKind = "join"
	// PresenceLeave carries users that stopped tracking or disconnected.
	PresenceLeave PresenceKind = "leave"
)

// Message is an event broadcast on a channel.
type Message struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload []byte `json:"payload"`
	// From identifies the relay connection that sent the message.
	From string `json:"from,omitempty"`
}

// PresenceEvent reports a change in who is on a channel.
type PresenceEvent struct {
	Kind  PresenceKind  `json:"kind"`
	Users []models.User `json:"users"`
}

// Event is what a subscription handler receives: either a Message or a
// PresenceEvent.
type Event struct {
	Channel  string
	Message  *Message
	Presence *PresenceEvent
}

// Handler receives the events of a subscription in order.
type Handler func(Event)

// Subscription is an active channel subscription.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}

// Relay is the capability set collaboration depends on.
type Relay interface {
	CreateShare(ctx context.Context, blob []byte) (string, error)
	GetShare(ctx context.Context, id string) ([]byte, error)
	Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error)
	Broadcast(ctx context.Context, channel, event string, payload []byte) error
	Track(ctx context.Context, channel string, user models.User) error
	Untrack(ctx context.Context, channel string) error
}
