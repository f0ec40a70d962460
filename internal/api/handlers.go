package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jukkahell/spotify-queue-sub000/internal/queue"
)

func (s *Server) handleCurrentState(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.GetCurrentState(r.Context(), chi.URLParam(r, "passcode"), userID(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	uid, isOwner, err := s.svc.Join(r.Context(), chi.URLParam(r, "passcode"), userID(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": uid, "isOwner": isOwner})
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var body struct {
		URI    string `json:"uri"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, err := s.svc.AddToQueue(r.Context(), chi.URLParam(r, "passcode"), uid, body.URI, body.Source)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	isCurrent := r.URL.Query().Get("current") == "true"
	err := s.svc.RemoveFromQueue(r.Context(), chi.URLParam(r, "passcode"), uid, chi.URLParam(r, "trackId"), isCurrent)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if err := s.svc.Skip(r.Context(), chi.URLParam(r, "passcode"), uid, chi.URLParam(r, "trackId")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}

func (s *Server) handleMoveUp(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if err := s.svc.MoveUp(r.Context(), chi.URLParam(r, "passcode"), uid, chi.URLParam(r, "trackId")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (s *Server) handleMoveFirst(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if err := s.svc.MoveFirst(r.Context(), chi.URLParam(r, "passcode"), uid, chi.URLParam(r, "trackId")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (s *Server) handleProtect(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	isCurrent := r.URL.Query().Get("current") == "true"
	err := s.svc.ProtectTrack(r.Context(), chi.URLParam(r, "passcode"), uid, chi.URLParam(r, "trackId"), isCurrent)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "protected"})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var body struct {
		Value int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	voteSum, err := s.svc.Vote(r.Context(), chi.URLParam(r, "passcode"), uid, body.Value)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"voteSum": voteSum})
}

func (s *Server) handlePauseResume(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	playing, err := s.svc.PauseResume(r.Context(), chi.URLParam(r, "passcode"), uid)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isPlaying": playing})
}

func (s *Server) handleQueuePlaylist(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var body struct {
		PlaylistID string `json:"playlistId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	n, err := s.svc.QueuePlaylist(r.Context(), chi.URLParam(r, "passcode"), uid, body.PlaylistID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"tracks": n})
}

func (s *Server) handleBuyPerk(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var body struct {
		Perk string `json:"perk"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	perk, err := s.svc.BuyPerk(r.Context(), chi.URLParam(r, "passcode"), uid, body.Perk)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perk)
}

func (s *Server) handleSetDevice(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var body struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.svc.SetDevice(r.Context(), chi.URLParam(r, "passcode"), uid, body.DeviceID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var settings queue.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.svc.UpdateSettings(r.Context(), chi.URLParam(r, "passcode"), uid, settings); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	err := s.svc.RemoveUser(r.Context(), chi.URLParam(r, "passcode"), uid, chi.URLParam(r, "userId"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleResetPoints(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if err := s.svc.ResetPoints(r.Context(), chi.URLParam(r, "passcode"), uid); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if err := s.svc.Logout(r.Context(), chi.URLParam(r, "passcode"), uid); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
