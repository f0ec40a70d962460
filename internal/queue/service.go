// Package queue owns the collaborative queue aggregate: the mutators that
// edit it under per-session exclusive locks, the scheduler that advances
// playback, and the reconciliation of internal belief against the external
// player.
package queue

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jukkahell/spotify-queue-sub000/internal/gamify"
)

// Service exposes one method per queue operation. Every mutator re-reads the
// aggregate under the store's exclusive lock, validates against that snapshot,
// mutates and writes the whole aggregate back. Mutators never call each other
// while a lock is held.
type Service struct {
	store     SessionStore
	transport Transport
	events    *Events
	sched     *Scheduler
	log       zerolog.Logger

	now     func() time.Time
	randInt func(n int) int
}

func NewService(store SessionStore, transport Transport, events *Events, log zerolog.Logger) *Service {
	s := &Service{
		store:     store,
		transport: transport,
		events:    events,
		log:       log,
		now:       time.Now,
		randInt:   rand.Intn,
	}
	s.sched = newScheduler(s, log)
	return s
}

// Scheduler returns the playback scheduler so the caller can run restart
// recovery and shut timers down on exit.
func (s *Service) Scheduler() *Scheduler {
	return s.sched
}

// CreateSession creates a queue on first successful owner authorization.
// The owner is always a member of their own queue.
func (s *Service) CreateSession(ctx context.Context, creds *Credentials, spotifyUserID, name string) (*Queue, error) {
	ownerID := uuid.NewString()
	passcode := newPasscode()
	q := &Queue{
		Passcode:    passcode,
		Owner:       ownerID,
		Credentials: creds,
		Settings:    DefaultSettings(name),
		Users: []User{{
			ID:            ownerID,
			SpotifyUserID: &spotifyUserID,
			Username:      shortName(ownerID),
			Points:        gamify.StartingPoints,
		}},
		Perks: map[string][]Perk{},
	}
	if err := s.store.Create(ctx, q); err != nil {
		return nil, err
	}
	s.log.Info().Str("passcode", passcode).Msg("queue created")
	return q, nil
}

func newPasscode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func shortName(userID string) string {
	if len(userID) > 8 {
		return userID[:8]
	}
	return userID
}

// charge debits points from the user, rejecting up front when they cannot
// afford the cost. A no-op when gamify is disabled.
func (s *Service) charge(q *Queue, u *User, cost int) error {
	if !q.Settings.Gamify || cost <= 0 {
		return nil
	}
	if u.Points < cost {
		return errInsufficientPoints(cost, u.Points)
	}
	u.Points -= cost
	return nil
}

// refund credits points back. Refunds and rewards are unconditional additions.
func (s *Service) refund(q *Queue, userID string, amount int) {
	if !q.Settings.Gamify || amount <= 0 {
		return
	}
	if u := q.UserByID(userID); u != nil {
		u.Points += amount
	}
}

// effectivePerkLevel is the karma-allowed level of a user's perk, zero when
// the perk is unusable.
func (s *Service) effectivePerkLevel(q *Queue, userID, perkName string) int {
	def, ok := gamify.Lookup(perkName)
	if !ok {
		return 0
	}
	u := q.UserByID(userID)
	if u == nil {
		return 0
	}
	return gamify.KarmaAllowedLevel(def, q.PerkLevel(userID, perkName), u.Karma)
}

// freshCredentials returns live transport credentials, refreshing through the
// transport when the access token expired. Must be called inside a store
// Update so the refreshed token persists with the same transaction.
func (s *Service) freshCredentials(ctx context.Context, q *Queue) (*Credentials, error) {
	if q.Credentials == nil {
		return nil, errSessionInactive()
	}
	if !q.Credentials.Expired(s.now()) {
		return q.Credentials, nil
	}
	creds, err := s.transport.RefreshToken(ctx, q.Credentials)
	if err != nil {
		return nil, errTransport(err)
	}
	q.Credentials = creds
	return creds, nil
}

// refreshCredentials refreshes and persists expired tokens under the
// session lock, for callers that hold no lock of their own.
func (s *Service) refreshCredentials(ctx context.Context, passcode string) (*Credentials, error) {
	q, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		_, err := s.freshCredentials(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q.Credentials, nil
}

// popNext removes and returns the next item to play: user queue first, the
// fallback playlist queue when it is empty. Shuffle draws a uniform random
// index, FIFO takes the front.
func (s *Service) popNext(q *Queue) *QueueItem {
	if len(q.Tracks) > 0 {
		idx := 0
		if q.Settings.ShuffleQueue {
			idx = s.randInt(len(q.Tracks))
		}
		item := q.Tracks[idx]
		q.Tracks = append(q.Tracks[:idx], q.Tracks[idx+1:]...)
		return &item
	}
	if len(q.PlaylistTracks) > 0 {
		idx := 0
		if q.Settings.ShufflePlaylist {
			idx = s.randInt(len(q.PlaylistTracks))
		}
		item := q.PlaylistTracks[idx]
		q.PlaylistTracks = append(q.PlaylistTracks[:idx], q.PlaylistTracks[idx+1:]...)
		return &item
	}
	return nil
}

// finishCurrent distributes end-of-track rewards and clears the current
// track. progressMs is the transport-reported progress at the moment of
// advancement when available, internal progress otherwise.
func (s *Service) finishCurrent(q *Queue, progressMs int) {
	ct := q.CurrentTrack
	if ct == nil {
		return
	}
	voteSum := ct.VoteSum()
	if ct.UserID != nil {
		if owner := q.UserByID(*ct.UserID); owner != nil {
			if q.Settings.Gamify {
				points, karma := gamify.FinishReward(ct.Track.DurationMs, progressMs, voteSum)
				owner.Points += points
				owner.Karma += karma
			} else {
				owner.Karma += voteSum
			}
		}
	}
	if q.Settings.Gamify {
		for i := range q.Users {
			u := &q.Users[i]
			if ct.UserID != nil && u.ID == *ct.UserID {
				continue
			}
			if userHasQueued(q, u.ID) {
				u.Points++
			}
		}
	}
	q.CurrentTrack = nil
}

func userHasQueued(q *Queue, userID string) bool {
	for i := range q.Tracks {
		if q.Tracks[i].UserID != nil && *q.Tracks[i].UserID == userID {
			return true
		}
	}
	return false
}
