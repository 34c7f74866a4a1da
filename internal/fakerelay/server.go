// Package fakerelay provides a fake relay websocket server for testing
// wsrelay clients. It speaks the pkg/relay/wire protocol through the same Hub
// as the real relay server, on top of the gws library, and can inject
// failures per operation: delays, dropped requests, corrupted acks, close
// frames and dropped connections.
package fakerelay

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lxzan/gws"

	"github.com/flatplan/flatplan.go/contrib/relayserver"
	"github.com/flatplan/flatplan.go/contrib/relayserver/store"
	"github.com/flatplan/flatplan.go/internal/codec"
	internalrand "github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay/wire"
)

// FailureType is the kind of failure injected while handling a request.
type FailureType string

const (
	// FailureNone injects nothing.
	FailureNone FailureType = "none"
	// FailureRequestDelay sleeps before handling the request.
	FailureRequestDelay FailureType = "request_delay"
	// FailureSwallow drops the request without answering it.
	FailureSwallow FailureType = "swallow"
	// FailureCorruptedMessage answers with a corrupted frame.
	FailureCorruptedMessage FailureType = "corrupted_message"
	// FailureWebSocketClose sends a close frame with CloseCode and CloseReason.
	FailureWebSocketClose FailureType = "websocket_close"
	// FailureDropConnection closes the underlying network connection.
	FailureDropConnection FailureType = "drop_connection"
)

// FailureConfig describes when and how a failure is injected.
type FailureConfig struct {
	Type FailureType
	// Probability of triggering this failure (0.0 to 1.0).
	Probability float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
	CloseCode   uint16
	CloseReason string
}

// Server is a fake relay websocket server.
type Server struct {
	addr     string
	listener net.Listener
	server   *gws.Server
	hub      *relayserver.Hub
	shares   *store.Memory
	codec    codec.Codec

	mu             sync.RWMutex
	failures       map[wire.Op][]FailureConfig
	globalFailures []FailureConfig
	peers          map[*gws.Conn]*peer
	requests       map[wire.Op]int
}

type handler struct {
	server *Server
}

// NewServer creates a fake relay. Use "127.0.0.1:0" to bind to a random port.
func NewServer(addr string, l logger.Logger) *Server {
	l = logger.OrNop(l)
	shares := store.NewMemory()
	s := &Server{
		addr:     addr,
		shares:   shares,
		hub:      relayserver.NewHub(shares, l),
		codec:    codec.Codec{Marshaler: models.CborMarshaler{}, Unmarshaler: models.CborUnmarshaler{}},
		failures: make(map[wire.Op][]FailureConfig),
		peers:    make(map[*gws.Conn]*peer),
		requests: make(map[wire.Op]int),
	}

	s.server = gws.NewServer(&handler{server: s}, &gws.ServerOption{})
	s.server.OnError = func(_ net.Conn, err error) {
		if !isClosedError(err) {
			l.Error("fake relay error", "error", err)
		}
	}
	return s
}

// SetFailures replaces the failures injected on requests of op.
func (s *Server) SetFailures(op wire.Op, failures ...FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = failures
}

// SetGlobalFailures sets failures checked before the per-op ones on every
// request.
func (s *Server) SetGlobalFailures(failures ...FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// Requests is how many requests of op reached the server.
func (s *Server) Requests(op wire.Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[op]
}

// Shares is the store behind the fake relay.
func (s *Server) Shares() *store.Memory {
	return s.shares
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.server.RunListener(listener); err != nil && !isClosedError(err) {
			log.Printf("fake relay stopped: %v", err)
		}
	}()
	return nil
}

// DropConnections closes every open connection and keeps listening, as a
// relay restart behind a load balancer would look to clients.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*gws.Conn, 0, len(s.peers))
	for c := range s.peers {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.NetConn().Close()
	}
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	s.DropConnections()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// URL is the ws:// base URL clients dial.
func (s *Server) URL() string {
	return "ws://" + s.Address()
}

// Address is the address the server listens on.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (h *handler) OnOpen(socket *gws.Conn) {
	p := &peer{id: internalrand.NewRequestID(constants.RequestIDLength), conn: socket, codec: h.server.codec}
	h.server.mu.Lock()
	h.server.peers[socket] = p
	h.server.mu.Unlock()
}

func (h *handler) OnClose(socket *gws.Conn, _ error) {
	h.server.mu.Lock()
	p, ok := h.server.peers[socket]
	delete(h.server.peers, socket)
	h.server.mu.Unlock()

	if ok {
		h.server.hub.Disconnect(p)
	}
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *handler) OnPong(*gws.Conn, []byte) {}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	h.server.mu.Lock()
	p := h.server.peers[socket]
	h.server.mu.Unlock()
	if p == nil {
		return
	}

	var f wire.Frame
	if err := h.server.codec.Unmarshal(message.Bytes(), &f); err != nil {
		_ = p.Send(wire.Frame{Op: wire.OpAck, Error: &wire.Error{Code: wire.CodeBadRequest, Message: "parse error"}})
		return
	}

	h.server.mu.Lock()
	h.server.requests[f.Op]++
	failures := append(append([]FailureConfig(nil), h.server.globalFailures...), h.server.failures[f.Op]...)
	h.server.mu.Unlock()

	for _, failure := range failures {
		if shouldTrigger(failure.Probability) {
			if stop := h.applyFailure(socket, failure, f); stop {
				return
			}
		}
	}

	h.server.hub.Handle(context.Background(), p, f)
}

// applyFailure injects failure and reports whether the request must not be
// handled any further.
func (h *handler) applyFailure(socket *gws.Conn, failure FailureConfig, f wire.Frame) bool {
	switch failure.Type {
	case FailureRequestDelay:
		time.Sleep(randomDuration(failure.MinDelay, failure.MaxDelay))
		return false

	case FailureSwallow:
		return true

	case FailureCorruptedMessage:
		data, err := h.server.codec.Marshal(f.Ack())
		if err != nil {
			return true
		}
		// Truncating a CBOR map always leaves it undecodable.
		_ = socket.WriteMessage(gws.OpcodeBinary, data[:len(data)/2])
		return true

	case FailureWebSocketClose:
		code := failure.CloseCode
		if code == 0 {
			code = 1001
		}
		reason := failure.CloseReason
		if reason == "" {
			reason = "failure injection"
		}
		socket.WriteClose(code, []byte(reason))
		return true

	case FailureDropConnection:
		_ = socket.NetConn().Close()
		return true
	}
	return false
}

type peer struct {
	id    string
	conn  *gws.Conn
	codec codec.Codec
}

func (p *peer) ID() string {
	return p.id
}

func (p *peer) Send(f wire.Frame) error {
	data, err := p.codec.Marshal(f)
	if err != nil {
		return err
	}
	return p.conn.WriteMessage(gws.OpcodeBinary, data)
}

func shouldTrigger(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<53))
	return float64(n.Int64())/float64(1<<53) < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(dMax-dMin)))
	return dMin + time.Duration(n.Int64())
}

func isClosedError(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed) ||
		strings.HasSuffix(err.Error(), "use of closed network connection")
}
