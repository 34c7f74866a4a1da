package relayserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/flatplan/flatplan.go/internal/codec"
	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/relay/wire"
)

// writeWait bounds a single frame write to a peer.
const writeWait = 10 * time.Second

var upgrader = gorilla.Upgrader{
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
	// Editors are served from anywhere; shares are unguessable ids.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsPeer is a websocket connection registered with the hub.
type wsPeer struct {
	id    string
	conn  *gorilla.Conn
	codec codec.Codec

	writeMu sync.Mutex
}

func (p *wsPeer) ID() string {
	return p.id
}

func (p *wsPeer) Send(f wire.Frame) error {
	data, err := p.codec.Marshal(f)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(gorilla.BinaryMessage, data)
}

// handleWebSocket upgrades the request and serves relay frames until the
// client goes away.
//
//	GET /ws
func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		a.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	p := &wsPeer{
		id:    rand.NewRequestID(constants.RequestIDLength),
		conn:  conn,
		codec: codec.Codec{Marshaler: models.CborMarshaler{}, Unmarshaler: models.CborUnmarshaler{}},
	}
	a.logger.Debug("peer connected", "peer", p.id, "remote", r.RemoteAddr)

	serve(r.Context(), a.hub, p, a.logger)
}

// serve reads frames from p until the socket fails, then disconnects it.
func serve(ctx context.Context, hub *Hub, p *wsPeer, log logger.Logger) {
	defer func() {
		hub.Disconnect(p)
		_ = p.conn.Close()
		log.Debug("peer disconnected", "peer", p.id)
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) &&
				gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				log.Warn("peer connection lost", "peer", p.id, "error", err)
			}
			return
		}

		var f wire.Frame
		if err := p.codec.Unmarshal(data, &f); err != nil {
			log.Warn("dropping malformed frame", "peer", p.id, "error", err)
			continue
		}
		hub.Handle(ctx, p, f)
	}
}
