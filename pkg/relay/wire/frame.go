// Package wire is the frame format spoken between wsrelay clients and a relay
// server. Frames are CBOR maps, one per websocket binary message.
package wire

import (
	"errors"
	"fmt"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
)

// Op names what a frame asks for or carries.
type Op string

const (
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpBroadcast   Op = "broadcast"
	OpTrack       Op = "track"
	OpUntrack     Op = "untrack"
	OpShareCreate Op = "share.create"
	OpShareGet    Op = "share.get"

	// OpAck answers a request frame with the same ID.
	OpAck Op = "ack"
	// OpMessage is a broadcast delivered to a subscriber.
	OpMessage Op = "message"
	// OpPresence is a presence change delivered to a subscriber.
	OpPresence Op = "presence"
)

// Frame is the single message type of the protocol. Requests carry an ID and
// are answered by an ack with the same ID, with Error set on failure.
type Frame struct {
	ID       string               `json:"id,omitempty"`
	Op       Op                   `json:"op"`
	Channel  string               `json:"channel,omitempty"`
	Event    string               `json:"event,omitempty"`
	Payload  []byte               `json:"payload,omitempty"`
	From     string               `json:"from,omitempty"`
	User     *models.User         `json:"user,omitempty"`
	Presence *relay.PresenceEvent `json:"presence,omitempty"`
	Error    *Error               `json:"error,omitempty"`
}

// IsRequest reports whether the frame expects an ack.
func (f *Frame) IsRequest() bool {
	switch f.Op {
	case OpSubscribe, OpUnsubscribe, OpBroadcast, OpTrack, OpUntrack, OpShareCreate, OpShareGet:
		return true
	}
	return false
}

// Ack builds the successful reply to f.
func (f *Frame) Ack() Frame {
	return Frame{ID: f.ID, Op: OpAck, Channel: f.Channel}
}

// Fail builds the error reply to f.
func (f *Frame) Fail(err error) Frame {
	return Frame{ID: f.ID, Op: OpAck, Channel: f.Channel, Error: NewError(err)}
}

// Error codes carried in Error.Code.
const (
	CodeInternal      = "internal"
	CodeBadRequest    = "bad_request"
	CodeShareNotFound = "share_not_found"
	CodeReadOnly      = "read_only"
)

// Error is the error half of an ack.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError classifies err into a wire error.
func NewError(err error) *Error {
	code := CodeInternal
	switch {
	case errors.Is(err, constants.ErrShareNotFound):
		code = CodeShareNotFound
	case errors.Is(err, constants.ErrReadOnly):
		code = CodeReadOnly
	case errors.Is(err, constants.ErrUnknownEvent):
		code = CodeBadRequest
	}
	return &Error{Code: code, Message: err.Error()}
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay error %s: %s", e.Code, e.Message)
}

// Unwrap maps the code back onto the sentinel errors, so callers can use
// errors.Is on both sides of the socket.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeShareNotFound:
		return constants.ErrShareNotFound
	case CodeReadOnly:
		return constants.ErrReadOnly
	case CodeBadRequest:
		return constants.ErrUnknownEvent
	}
	return nil
}
