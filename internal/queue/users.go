package queue

import (
	"context"

	"github.com/google/uuid"

	"github.com/jukkahell/spotify-queue-sub000/internal/gamify"
)

// Join adds the user to the queue, generating an id when the caller has
// none yet. Joining an inactive queue fails so the caller can tell the
// owner to log in again.
func (s *Service) Join(ctx context.Context, passcode, userID string) (string, bool, error) {
	if userID == "" {
		userID = uuid.NewString()
	}
	var isOwner bool
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		if !q.Active() {
			return errSessionInactive()
		}
		isOwner = q.Owner == userID
		if q.UserByID(userID) == nil {
			q.Users = append(q.Users, User{
				ID:       userID,
				Username: shortName(userID),
				Points:   gamify.StartingPoints,
			})
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	s.events.Publish(ctx, passcode, "user.joined", map[string]string{"userId": userID})
	return userID, isOwner, nil
}

// Vote records a ±1 vote on the current track. When the vote sum reaches the
// negative skip threshold the track is skipped immediately, attributed to
// this voter.
func (s *Service) Vote(ctx context.Context, passcode, userID string, value int) (int, error) {
	if value != -1 && value != 1 {
		return 0, errInvalidInput("vote value must be -1 or 1")
	}
	var voteSum, threshold int
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		threshold = q.Settings.SkipThreshold
		if q.UserByID(userID) == nil {
			return errNotFound("user")
		}
		ct := q.CurrentTrack
		if ct == nil {
			return errNotFound("current track")
		}
		if ct.UserID != nil && *ct.UserID == userID {
			return errUnauthorized("you cannot vote on your own track")
		}
		if ct.HasVoted(userID) {
			return errInvalidInput("you have already voted on this track")
		}
		ct.Votes = append(ct.Votes, Vote{UserID: userID, Value: value})
		voteSum = ct.VoteSum()
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.events.Publish(ctx, passcode, "track.voted", map[string]any{"userId": userID, "voteSum": voteSum})

	if threshold > 0 && voteSum < 0 && -voteSum >= threshold {
		s.log.Info().Str("passcode", passcode).Str("user", userID).Int("voteSum", voteSum).
			Msg("downvote threshold reached, skipping track")
		if err := s.advanceNow(ctx, passcode); err != nil {
			s.log.Error().Err(err).Str("passcode", passcode).Msg("vote-triggered skip")
		}
	}
	return voteSum, nil
}

// BuyPerk buys the next level of a catalog perk for the user. Requires
// gamify, enough karma for the new level and enough points for its price.
func (s *Service) BuyPerk(ctx context.Context, passcode, userID, perkName string) (*Perk, error) {
	def, ok := gamify.Lookup(perkName)
	if !ok {
		return nil, errNotFound("perk")
	}
	var bought Perk
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		user := q.UserByID(userID)
		if user == nil {
			return errNotFound("user")
		}
		if !q.Settings.Gamify {
			return errInvalidInput("gamify is disabled for this queue")
		}
		next := q.PerkLevel(userID, perkName) + 1
		if next > def.MaxLevel {
			return errInvalidInput("perk is already at its maximum level")
		}
		if user.Karma < def.RequiredKarma(next) {
			return errInsufficientKarmaOrPerk(perkName)
		}
		if err := s.charge(q, user, def.Price(next)); err != nil {
			return err
		}
		if q.Perks == nil {
			q.Perks = map[string][]Perk{}
		}
		if p := q.PerkFor(userID, perkName); p != nil {
			p.Level = next
			bought = *p
		} else {
			q.Perks[userID] = append(q.Perks[userID], Perk{Name: perkName, Level: next})
			bought = q.Perks[userID][len(q.Perks[userID])-1]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, passcode, "perk.bought", bought)
	return &bought, nil
}

// ownerMutation runs mutate only when the acting user is the queue owner.
func (s *Service) ownerMutation(ctx context.Context, passcode, userID string, mutate func(q *Queue) error) (*Queue, error) {
	return s.store.Update(ctx, passcode, func(q *Queue) error {
		if q.Owner != userID {
			return errUnauthorized("only the queue owner may do this")
		}
		return mutate(q)
	})
}

// SetDevice selects the target playback device. Owner only.
func (s *Service) SetDevice(ctx context.Context, passcode, userID, deviceID string) error {
	if deviceID == "" {
		return errInvalidInput("device id is required")
	}
	_, err := s.ownerMutation(ctx, passcode, userID, func(q *Queue) error {
		q.DeviceID = &deviceID
		return nil
	})
	return err
}

// UpdateSettings replaces the queue settings. Owner only.
func (s *Service) UpdateSettings(ctx context.Context, passcode, userID string, settings Settings) error {
	if settings.Name == "" {
		return errInvalidInput("queue name is required")
	}
	if settings.SkipThreshold < 1 {
		return errInvalidInput("skip threshold must be at least 1")
	}
	_, err := s.ownerMutation(ctx, passcode, userID, func(q *Queue) error {
		q.Settings = settings
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(ctx, passcode, "settings.updated", settings)
	return nil
}

// RemoveUser kicks a member. The owner cannot be removed.
func (s *Service) RemoveUser(ctx context.Context, passcode, userID, targetID string) error {
	_, err := s.ownerMutation(ctx, passcode, userID, func(q *Queue) error {
		if targetID == q.Owner {
			return errInvalidInput("the owner cannot be removed")
		}
		for i := range q.Users {
			if q.Users[i].ID == targetID {
				q.Users = append(q.Users[:i], q.Users[i+1:]...)
				delete(q.Perks, targetID)
				return nil
			}
		}
		return errNotFound("user")
	})
	if err != nil {
		return err
	}
	s.events.Publish(ctx, passcode, "user.removed", map[string]string{"userId": targetID})
	return nil
}

// ResetPoints sets every member back to the starting balance. Owner only.
func (s *Service) ResetPoints(ctx context.Context, passcode, userID string) error {
	_, err := s.ownerMutation(ctx, passcode, userID, func(q *Queue) error {
		for i := range q.Users {
			q.Users[i].Points = gamify.StartingPoints
		}
		return nil
	})
	return err
}

// Logout deactivates the session: credentials and current track are cleared
// and the scheduler timer cancelled. The aggregate itself stays addressable.
func (s *Service) Logout(ctx context.Context, passcode, userID string) error {
	_, err := s.ownerMutation(ctx, passcode, userID, func(q *Queue) error {
		q.Credentials = nil
		q.CurrentTrack = nil
		q.IsPlaying = false
		return nil
	})
	if err != nil {
		return err
	}
	s.sched.Cancel(passcode)
	s.events.Publish(ctx, passcode, "queue.deactivated", nil)
	return nil
}

// QueuePlaylist loads a fallback playlist whose tracks play whenever the
// user queue is empty. Owner only.
func (s *Service) QueuePlaylist(ctx context.Context, passcode, userID, playlistID string) (int, error) {
	if playlistID == "" {
		return 0, errInvalidInput("playlist id is required")
	}
	q, err := s.store.Get(ctx, passcode)
	if err != nil {
		return 0, err
	}
	if !q.Active() {
		return 0, errSessionInactive()
	}
	tracks, err := s.transport.GetPlaylistTracks(ctx, q.Credentials, playlistID)
	if err != nil {
		return 0, errTransport(err)
	}

	loaded := 0
	_, err = s.ownerMutation(ctx, passcode, userID, func(q *Queue) error {
		items := make([]QueueItem, 0, len(tracks))
		for _, t := range tracks {
			items = append(items, QueueItem{
				ID:      uuid.NewString(),
				Track:   t,
				Source:  "playlist",
				AddedAt: s.now(),
			})
		}
		q.PlaylistID = &playlistID
		q.PlaylistTracks = items
		loaded = len(items)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.events.Publish(ctx, passcode, "playlist.queued", map[string]any{"playlistId": playlistID, "tracks": loaded})
	return loaded, nil
}
