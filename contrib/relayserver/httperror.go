package relayserver

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
)

// HTTPError is an error with the status code and user-facing message it
// should be answered with.
type HTTPError struct {
	cause   error
	Code    int
	Message string
}

func (he HTTPError) Error() string {
	return he.Message
}

func (he HTTPError) Unwrap() error {
	return he.cause
}

func errBadRequest(message string, cause error) *HTTPError {
	return &HTTPError{cause: cause, Code: http.StatusBadRequest, Message: message}
}

// appHandler is a handler that reports failures by returning them.
type appHandler func(w http.ResponseWriter, r *http.Request) error

// makeHandler answers the errors of h with a JSON envelope
// {"code": ..., "message": ...}. Sentinel errors from the store map onto
// their status codes; anything else is a 500 whose cause is logged, not sent.
func makeHandler(log logger.Logger, h appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		var httpErr *HTTPError
		switch {
		case errors.As(err, &httpErr):
		case errors.Is(err, constants.ErrShareNotFound):
			httpErr = &HTTPError{cause: err, Code: http.StatusNotFound, Message: "Share not found or expired"}
		case errors.Is(err, constants.ErrReadOnly):
			httpErr = &HTTPError{cause: err, Code: http.StatusServiceUnavailable, Message: "Relay is read-only"}
		default:
			httpErr = &HTTPError{cause: err, Code: http.StatusInternalServerError, Message: "Internal Server Error"}
		}

		if httpErr.Code >= http.StatusInternalServerError {
			log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		} else {
			log.Warn("client error response", "method", r.Method, "path", r.URL.Path,
				"code", httpErr.Code, "error", err)
		}
		respondJSON(w, httpErr.Code, map[string]any{"code": httpErr.Code, "message": httpErr.Message})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		response = []byte(`{"code":500,"message":"Internal Server Error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}
