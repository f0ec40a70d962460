package queue

import (
	"context"
)

// CurrentState is the read model handed to the HTTP layer.
type CurrentState struct {
	CurrentTrack   *CurrentTrack `json:"currentTrack"`
	Tracks         []QueueItem   `json:"tracks"`
	PlaylistTracks int           `json:"playlistTracks"`
	IsPlaying      bool          `json:"isPlaying"`
	DeviceID       *string       `json:"deviceId"`
	Settings       Settings      `json:"settings"`
	Users          []User        `json:"users"`
	Perks          []Perk        `json:"perks"`
	IsOwner        bool          `json:"isOwner"`
}

// GetCurrentState returns the live queue state, cross-checking internal
// belief against the transport's answer and correcting drift. When the
// transport is unreachable the stale internal state is served once, with a
// best-effort device resume; if that also fails, playback is stopped so
// belief cannot drift indefinitely.
func (s *Service) GetCurrentState(ctx context.Context, passcode, userID string) (*CurrentState, error) {
	q, err := s.store.Get(ctx, passcode)
	if err != nil {
		return nil, err
	}
	if !q.Active() {
		return s.stateView(q, userID), nil
	}

	creds := q.Credentials
	if creds.Expired(s.now()) {
		if creds, err = s.refreshCredentials(ctx, passcode); err != nil {
			return nil, err
		}
	}

	np, err := s.transport.GetNowPlaying(ctx, creds)
	if err != nil {
		s.log.Warn().Err(err).Str("passcode", passcode).Msg("now-playing query failed, serving stale state")
		if q.IsPlaying && q.DeviceID != nil {
			if resumeErr := s.transport.Resume(ctx, creds, *q.DeviceID); resumeErr != nil {
				s.log.Warn().Err(resumeErr).Str("passcode", passcode).Msg("device resume failed, stopping playback")
				s.stopPlayback(ctx, passcode)
				q.IsPlaying = false
			}
		}
		return s.stateView(q, userID), nil
	}

	synced, err := s.syncWithTransport(ctx, passcode, userID, np)
	if err != nil {
		return nil, err
	}
	return s.stateView(synced, userID), nil
}

// syncWithTransport re-reads the aggregate under the lock and applies the
// corrections the live transport answer dictates. The correction is derived
// from the fresh snapshot, never from state read earlier in the request.
func (s *Service) syncWithTransport(ctx context.Context, passcode, userID string, np *NowPlaying) (*Queue, error) {
	return s.store.Update(ctx, passcode, func(q *Queue) error {
		if np.DeviceID != "" && (q.DeviceID == nil || *q.DeviceID != np.DeviceID) {
			device := np.DeviceID
			q.DeviceID = &device
		}

		switch {
		case np.Track == nil:
			// The transport knows of no track at all; internal current is
			// stale belief.
			if q.CurrentTrack != nil {
				q.CurrentTrack = nil
			}
			q.IsPlaying = false
		case q.CurrentTrack != nil && q.CurrentTrack.Track.ID == np.Track.ID:
			// Same track: trust transport progress, keep votes and owner.
			q.CurrentTrack.ProgressMs = np.ProgressMs
			q.CurrentTrack.StartedAt = s.now().Add(-msDuration(np.ProgressMs))
			q.IsPlaying = np.IsPlaying
		default:
			// The device plays something we never started. Adopt it; votes
			// reset and the requester is attributed as its owner.
			requester := userID
			q.CurrentTrack = &CurrentTrack{
				Track:      *np.Track,
				UserID:     &requester,
				ProgressMs: np.ProgressMs,
				Votes:      []Vote{},
				StartedAt:  s.now().Add(-msDuration(np.ProgressMs)),
			}
			q.IsPlaying = np.IsPlaying
		}
		return nil
	})
}

func (s *Service) stateView(q *Queue, userID string) *CurrentState {
	return &CurrentState{
		CurrentTrack:   q.CurrentTrack,
		Tracks:         q.Tracks,
		PlaylistTracks: len(q.PlaylistTracks),
		IsPlaying:      q.IsPlaying,
		DeviceID:       q.DeviceID,
		Settings:       q.Settings,
		Users:          q.Users,
		Perks:          q.Perks[userID],
		IsOwner:        q.Owner == userID,
	}
}
