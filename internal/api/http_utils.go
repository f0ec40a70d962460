package api

import (
	"encoding/json"
	"net/http"

	"github.com/jukkahell/spotify-queue-sub000/internal/queue"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error to its HTTP status hint.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	e := queue.AsError(err)
	if e.Status >= 500 {
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, e.Status, "internal error")
		return
	}
	writeError(w, e.Status, e.Message)
}

// userID comes from the out-of-scope auth layer as a plain header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
