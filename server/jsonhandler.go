package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
)

// JSONHandler is a request handler that returns a JSON-encodable response or
// an error. Errors are translated to a JSON error body with a status derived
// from the lifecycle error types.
type JSONHandler func(r *http.Request) (any, error)

func wrapJSONHandler(fn JSONHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r)
		if err != nil {
			logging.Errorw(r.Context(), "request failed", "error", err,
				"req.method", r.Method, "req.url", r.URL.String())
			writeJSON(w, httpStatus(err), map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func httpStatus(err error) int {
	var structural *docbridge.StructuralError
	switch {
	case errors.Is(err, docbridge.ErrPluginNotFound):
		return http.StatusNotFound
	case errors.Is(err, docbridge.ErrNotInitialized):
		return http.StatusConflict
	case errors.As(err, &structural):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
