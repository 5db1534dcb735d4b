package server

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/roach88/stratum/internal/engine"
)

// errorBody is the uniform error shape: {"error": "..."}.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an operation error to its HTTP status. Conflicts
// report 400 like validation failures; only missing things are 404.
// Anything unclassified is an internal failure whose detail stays in
// the logs, not the response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var opErr *engine.OpError
	if !errors.As(err, &opErr) {
		s.log.Errorw("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch opErr.Class() {
	case engine.ClassValidation, engine.ClassConflict:
		status = http.StatusBadRequest
	case engine.ClassNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Errorw("operation failed", "code", opErr.Code, "error", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: opErr.Message})
}

// decode parses the request body; a malformed body is a validation
// failure in the original's wording.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return false
	}
	return true
}

// requireField reports a missing required field the way the original
// did: 400 with "<description> is required".
func requireField(w http.ResponseWriter, ok bool, description string) bool {
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: description + " is required"})
	}
	return ok
}
