package relayserver

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gorilla/mux"
)

// maxShareBody bounds POST /api/shares bodies.
const maxShareBody = 8 << 20

type createShareResponse struct {
	ID        string    `json:"id"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleCreateShare stores the "state" member of the request body verbatim.
//
//	POST /api/shares
//	{"state": {"magazine": {...}}}
//
// The server never decodes the state; jsonparser slices it out of the body.
func (a *App) handleCreateShare(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxShareBody+1))
	if err != nil {
		return errBadRequest("Invalid request body", err)
	}
	if len(body) > maxShareBody {
		return &HTTPError{Code: http.StatusRequestEntityTooLarge, Message: "Share is too large"}
	}

	state, dataType, _, err := jsonparser.Get(body, "state")
	if err != nil {
		return errBadRequest("Request body must contain a state", err)
	}
	if dataType != jsonparser.Object {
		return errBadRequest("State must be an object", errors.New(dataType.String()))
	}

	s, err := a.store.Create(r.Context(), state)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, createShareResponse{ID: s.ID, Checksum: s.Checksum, CreatedAt: s.CreatedAt})
	return nil
}

// handleGetShare answers {"id": ..., "state": <stored blob>}.
//
//	GET /api/shares/{id}
func (a *App) handleGetShare(w http.ResponseWriter, r *http.Request) error {
	s, err := a.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}

	body := []byte(`{"id":"","state":null}`)
	if body, err = jsonparser.Set(body, quote(s.ID), "id"); err != nil {
		return err
	}
	if body, err = jsonparser.Set(body, s.Blob, "state"); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) error {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"readOnly": a.IsReadOnly(),
		"channels": a.hub.Channels(),
	})
	return nil
}

func quote(s string) []byte {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	b = append(b, s...)
	return append(b, '"')
}
