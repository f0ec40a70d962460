// Package api is the thin HTTP surface over the queue service. It decodes
// requests, calls one service method and maps typed errors to status codes;
// no queue semantics live here.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jukkahell/spotify-queue-sub000/internal/queue"
)

// QueueService is the core surface this layer exposes over HTTP.
// *queue.Service implements it; tests substitute mocks.
type QueueService interface {
	GetCurrentState(ctx context.Context, passcode, userID string) (*queue.CurrentState, error)
	Join(ctx context.Context, passcode, userID string) (string, bool, error)
	AddToQueue(ctx context.Context, passcode, userID, trackURI, source string) (*queue.QueueItem, error)
	RemoveFromQueue(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error
	Skip(ctx context.Context, passcode, userID, trackID string) error
	MoveUp(ctx context.Context, passcode, userID, trackID string) error
	MoveFirst(ctx context.Context, passcode, userID, trackID string) error
	ProtectTrack(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error
	Vote(ctx context.Context, passcode, userID string, value int) (int, error)
	PauseResume(ctx context.Context, passcode, userID string) (bool, error)
	QueuePlaylist(ctx context.Context, passcode, userID, playlistID string) (int, error)
	BuyPerk(ctx context.Context, passcode, userID, perkName string) (*queue.Perk, error)
	SetDevice(ctx context.Context, passcode, userID, deviceID string) error
	UpdateSettings(ctx context.Context, passcode, userID string, settings queue.Settings) error
	RemoveUser(ctx context.Context, passcode, userID, targetID string) error
	ResetPoints(ctx context.Context, passcode, userID string) error
	Logout(ctx context.Context, passcode, userID string) error
}

type Server struct {
	svc QueueService
	log zerolog.Logger
}

func NewServer(svc QueueService, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/queue/{passcode}", func(r chi.Router) {
		r.Get("/", s.handleCurrentState)
		r.Post("/join", s.handleJoin)
		r.Post("/tracks", s.handleAddTrack)
		r.Delete("/tracks/{trackId}", s.handleRemoveTrack)
		r.Post("/tracks/{trackId}/skip", s.handleSkip)
		r.Post("/tracks/{trackId}/move-up", s.handleMoveUp)
		r.Post("/tracks/{trackId}/move-first", s.handleMoveFirst)
		r.Post("/tracks/{trackId}/protect", s.handleProtect)
		r.Post("/vote", s.handleVote)
		r.Post("/pause-resume", s.handlePauseResume)
		r.Post("/playlist", s.handleQueuePlaylist)
		r.Post("/perks", s.handleBuyPerk)
		r.Put("/device", s.handleSetDevice)
		r.Put("/settings", s.handleUpdateSettings)
		r.Delete("/users/{userId}", s.handleRemoveUser)
		r.Post("/reset-points", s.handleResetPoints)
		r.Post("/logout", s.handleLogout)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "queue-service",
	})
}
