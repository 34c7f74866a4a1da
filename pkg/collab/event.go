package collab

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// Event is the tag of a collaboration message.
type Event string

const (
	EventUserJoin       Event = "user:join"
	EventUserLeave      Event = "user:leave"
	EventArticleAdd     Event = "article:add"
	EventArticleUpdate  Event = "article:update"
	EventArticleReorder Event = "article:reorder"
	EventArticleDelete  Event = "article:delete"
	EventMagazineUpdate Event = "magazine:update"
	EventStateUpdate    Event = "state:update"
	EventPresenceSync   Event = "presence:sync"
)

// Known reports whether e is an event this version understands.
func (e Event) Known() bool {
	switch e {
	case EventUserJoin, EventUserLeave,
		EventArticleAdd, EventArticleUpdate, EventArticleReorder, EventArticleDelete,
		EventMagazineUpdate, EventStateUpdate, EventPresenceSync:
		return true
	}
	return false
}

// Envelope is the wire form of every message. The payload stays raw until the
// receiver knows which struct the event calls for.
type Envelope struct {
	Version   int             `cbor:"v"`
	Event     Event           `cbor:"event"`
	ID        string          `cbor:"id"`
	User      models.User     `cbor:"user"`
	Timestamp time.Time       `cbor:"ts"`
	Payload   cbor.RawMessage `cbor:"payload"`
}

type ArticleAdd struct {
	Article models.Article `cbor:"article"`
}

type ArticleUpdate struct {
	Article models.Article `cbor:"article"`
}

// ArticleReorder carries the new order. Articles holds the full list so a peer
// that missed an add still converges.
type ArticleReorder struct {
	IDs      []string         `cbor:"ids"`
	Articles []models.Article `cbor:"articles,omitempty"`
}

type ArticleDelete struct {
	ID string `cbor:"articleId"`
}

type MagazineUpdate struct {
	Snapshot models.Snapshot `cbor:"snapshot"`
}

type StateUpdate struct {
	AllowEdit bool `cbor:"allowEdit"`
}

type UserJoin struct {
	User models.User `cbor:"user"`
}

type UserLeave struct {
	UserID string `cbor:"userId"`
}

type Presence struct {
	Users []models.User `cbor:"users"`
}

// NewEnvelope stamps payload with a fresh broadcast id.
func NewEnvelope(event Event, user models.User, at time.Time, payload any) (Envelope, error) {
	raw, err := models.CborMarshaler{}.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{
		Version:   constants.MessageVersion,
		Event:     event,
		ID:        uuid.NewString(),
		User:      user,
		Timestamp: at.UTC(),
		Payload:   raw,
	}, nil
}

// Encode returns the wire bytes of e.
func Encode(e Envelope) ([]byte, error) {
	return models.CborMarshaler{}.Marshal(e)
}

// Decode parses an envelope and rejects versions and events this client does
// not understand.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := (models.CborUnmarshaler{}).Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Version != constants.MessageVersion {
		return e, fmt.Errorf("%w: %d", constants.ErrUnsupportedVersion, e.Version)
	}
	if !e.Event.Known() {
		return e, fmt.Errorf("%w: %q", constants.ErrUnknownEvent, e.Event)
	}
	return e, nil
}

// UnmarshalPayload decodes the payload into v.
func (e Envelope) UnmarshalPayload(v any) error {
	if err := (models.CborUnmarshaler{}).Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}
