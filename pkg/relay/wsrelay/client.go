// Package wsrelay is a relay.Relay that talks to a relay server over a single
// websocket connection.
//
// Requests (subscribe, broadcast, share.create, ...) are CBOR frames answered
// by an ack frame carrying the same id. Messages and presence changes pushed by
// the server are fanned out to subscription handlers through a relay.Router,
// so a slow handler never blocks the read loop.
package wsrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/flatplan/flatplan.go/internal/codec"
	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay"
	"github.com/flatplan/flatplan.go/pkg/relay/wire"
)

// DefaultDialer is gorilla's default dialer with compression enabled and the
// cbor subprotocol requested.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

// Path is where relay servers accept websocket connections.
const Path = "/ws"

type Option func(c *Client)

// WithTimeout bounds how long a request waits for its ack. Zero disables the
// bound and leaves it to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = logger.OrNop(l) }
}

// WithDialer replaces DefaultDialer.
func WithDialer(d *gorilla.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client is one websocket connection to a relay server.
type Client struct {
	// Timeout is how long a request waits for its ack after it was written.
	// A timed out request fails with constants.ErrTimeout.
	Timeout time.Duration

	conn *gorilla.Conn
	// connLock serializes writes and guards conn against Close.
	connLock sync.Mutex

	pending   map[string]chan wire.Frame
	pendingMu sync.Mutex

	// channels counts live subscriptions per channel; the server is told to
	// subscribe on the first and unsubscribe on the last.
	channels   map[string]int
	channelsMu sync.Mutex

	router *relay.Router
	codec  codec.Codec
	dialer *gorilla.Dialer
	logger logger.Logger

	closeCh   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ relay.Relay = (*Client)(nil)

// Dial connects to the relay server at baseURL (ws:// or wss://, without the
// /ws path) and starts the read loop.
func Dial(ctx context.Context, baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		Timeout:  constants.DefaultWSTimeout,
		pending:  make(map[string]chan wire.Frame),
		channels: make(map[string]int),
		codec:    codec.Codec{Marshaler: models.CborMarshaler{}, Unmarshaler: models.CborUnmarshaler{}},
		dialer:   DefaultDialer,
		logger:   logger.Nop(),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.router = relay.NewRouter(c.logger)

	conn, res, err := c.dialer.DialContext(ctx, strings.TrimSuffix(baseURL, "/")+Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	defer res.Body.Close()

	c.connLock.Lock()
	c.conn = conn
	c.connLock.Unlock()

	go c.readLoop(conn)

	return c, nil
}

// IsClosed reports whether the connection was closed, locally or by the
// server.
func (c *Client) IsClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Client) CreateShare(ctx context.Context, blob []byte) (string, error) {
	res, err := c.send(ctx, wire.Frame{Op: wire.OpShareCreate, Payload: blob})
	if err != nil {
		return "", err
	}
	return res.Channel, nil
}

func (c *Client) GetShare(ctx context.Context, id string) ([]byte, error) {
	res, err := c.send(ctx, wire.Frame{Op: wire.OpShareGet, Channel: id})
	if err != nil {
		return nil, err
	}
	return res.Payload, nil
}

func (c *Client) Subscribe(ctx context.Context, channel string, h relay.Handler) (relay.Subscription, error) {
	routeID := channel + "/" + rand.NewRequestID(constants.RequestIDLength)

	// The route exists before the request is written so the presence sync the
	// server sends right after subscribing is not lost.
	c.router.Add(routeID, channel, h)

	c.channelsMu.Lock()
	first := c.channels[channel] == 0
	c.channels[channel]++
	c.channelsMu.Unlock()

	if first {
		if _, err := c.send(ctx, wire.Frame{Op: wire.OpSubscribe, Channel: channel}); err != nil {
			c.release(channel)
			c.router.Remove(routeID)
			return nil, err
		}
	}
	return &subscription{client: c, channel: channel, routeID: routeID}, nil
}

func (c *Client) Broadcast(ctx context.Context, channel, event string, payload []byte) error {
	_, err := c.send(ctx, wire.Frame{Op: wire.OpBroadcast, Channel: channel, Event: event, Payload: payload})
	return err
}

func (c *Client) Track(ctx context.Context, channel string, user models.User) error {
	_, err := c.send(ctx, wire.Frame{Op: wire.OpTrack, Channel: channel, User: &user})
	return err
}

func (c *Client) Untrack(ctx context.Context, channel string) error {
	_, err := c.send(ctx, wire.Frame{Op: wire.OpUntrack, Channel: channel})
	return err
}

// release drops one reference to channel and reports whether it was the last.
func (c *Client) release(channel string) bool {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	c.channels[channel]--
	if c.channels[channel] > 0 {
		return false
	}
	delete(c.channels, channel)
	return true
}

type subscription struct {
	client  *Client
	channel string
	routeID string
	once    sync.Once
}

func (s *subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.client.router.Remove(s.routeID)
		if s.client.release(s.channel) && !s.client.IsClosed() {
			_, err = s.client.send(ctx, wire.Frame{Op: wire.OpUnsubscribe, Channel: s.channel})
		}
	})
	return err
}

// send writes a request frame and waits for its ack.
func (c *Client) send(ctx context.Context, req wire.Frame) (wire.Frame, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	select {
	case <-c.closeCh:
		return wire.Frame{}, c.closeError()
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	default:
	}

	req.ID = rand.NewRequestID(constants.RequestIDLength)
	resCh := make(chan wire.Frame, 1)

	c.pendingMu.Lock()
	if _, ok := c.pending[req.ID]; ok {
		c.pendingMu.Unlock()
		return wire.Frame{}, constants.ErrIDInUse
	}
	c.pending[req.ID] = resCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return wire.Frame{}, err
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return wire.Frame{}, fmt.Errorf("%w: %s %s", constants.ErrTimeout, req.Op, req.Channel)
		}
		return wire.Frame{}, ctx.Err()
	case <-c.closeCh:
		return wire.Frame{}, c.closeError()
	case res := <-resCh:
		if res.Error != nil {
			return wire.Frame{}, res.Error
		}
		return res, nil
	}
}

func (c *Client) write(f wire.Frame) error {
	data, err := c.codec.Marshal(f)
	if err != nil {
		return err
	}

	c.connLock.Lock()
	defer c.connLock.Unlock()
	if c.conn == nil {
		return constants.ErrClosed
	}
	err = c.conn.WriteMessage(gorilla.BinaryMessage, data)
	if errors.Is(err, gorilla.ErrCloseSent) {
		c.closeWithError(err)
	}
	return err
}

func (c *Client) closeWithError(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.closeCh)
	})
}

func (c *Client) closeError() error {
	if c.closeErr == nil || errors.Is(c.closeErr, net.ErrClosed) {
		return constants.ErrClosed
	}
	return fmt.Errorf("%w: %w", constants.ErrClosed, c.closeErr)
}

func (c *Client) readLoop(conn *gorilla.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.closeWithError(readError(err))
			return
		}
		c.handleFrame(data)
	}
}

func readError(err error) error {
	if gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure) {
		return io.ErrClosedPipe
	}
	if errors.Is(err, net.ErrClosed) {
		return net.ErrClosed
	}
	return err
}

func (c *Client) handleFrame(data []byte) {
	var f wire.Frame
	if err := c.codec.Unmarshal(data, &f); err != nil {
		c.logger.Error("dropping malformed relay frame", "error", err, "size", len(data))
		return
	}

	switch f.Op {
	case wire.OpAck:
		c.pendingMu.Lock()
		resCh, ok := c.pending[f.ID]
		c.pendingMu.Unlock()
		if !ok {
			c.logger.Warn("ack for unknown request", "request_id", f.ID)
			return
		}
		// Buffered and written at most once per id.
		select {
		case resCh <- f:
		default:
		}
	case wire.OpMessage:
		c.router.Publish(relay.Event{
			Channel: f.Channel,
			Message: &relay.Message{Channel: f.Channel, Event: f.Event, Payload: f.Payload, From: f.From},
		})
	case wire.OpPresence:
		if f.Presence == nil {
			c.logger.Warn("presence frame without presence", "channel", f.Channel)
			return
		}
		c.router.Publish(relay.Event{Channel: f.Channel, Presence: f.Presence})
	default:
		c.logger.Warn("unexpected relay frame", "op", string(f.Op), "channel", f.Channel)
	}
}

// Close sends a close frame, bounded by ctx's deadline, then closes the socket
// and stops all subscription handlers. Pending requests fail with
// constants.ErrClosed.
func (c *Client) Close(ctx context.Context) error {
	c.connLock.Lock()
	conn := c.conn
	c.conn = nil
	c.connLock.Unlock()

	if conn == nil {
		return nil
	}
	c.closeWithError(net.ErrClosed)
	defer c.router.Close()

	writeErr := make(chan error, 1)
	go func() {
		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetWriteDeadline(deadline); err != nil {
				writeErr <- err
				return
			}
		}
		writeErr <- conn.WriteMessage(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(constants.CloseMessageCode, ""))
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			c.logger.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	return conn.Close()
}
