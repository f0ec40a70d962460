package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jukkahell/spotify-queue-sub000/internal/gamify"
)

// AddToQueue resolves the track through the transport, applies cost and cap
// checks and appends it to the user queue. When nothing is playing the
// freshly queued track starts immediately.
func (s *Service) AddToQueue(ctx context.Context, passcode, userID, trackURI, source string) (*QueueItem, error) {
	if trackURI == "" {
		return nil, errInvalidInput("track uri is required")
	}

	var added QueueItem
	var startPlayback bool
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		user := q.UserByID(userID)
		if user == nil {
			return errNotFound("user")
		}
		creds, err := s.freshCredentials(ctx, q)
		if err != nil {
			return err
		}
		track, err := s.transport.GetTrack(ctx, creds, trackURI)
		if err != nil {
			return errTransport(err)
		}

		if err := s.checkQueueCaps(q, userID, track); err != nil {
			return err
		}
		if err := s.charge(q, user, gamify.MillisToPoints(track.DurationMs)); err != nil {
			return err
		}

		added = QueueItem{
			ID:      uuid.NewString(),
			Track:   *track,
			UserID:  &userID,
			Source:  source,
			AddedAt: s.now(),
		}
		q.Tracks = append(q.Tracks, added)
		startPlayback = q.CurrentTrack == nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, passcode, "track.added", added)
	if startPlayback {
		if err := s.startNext(ctx, passcode, "", nil); err != nil {
			s.log.Warn().Err(err).Str("passcode", passcode).Msg("autostart after add failed")
		}
	}
	return &added, nil
}

func (s *Service) checkQueueCaps(q *Queue, userID string, track *Track) error {
	duplicates := 0
	owned := 0
	for i := range q.Tracks {
		if q.Tracks[i].Track.URI == track.URI {
			duplicates++
		}
		if q.Tracks[i].UserID != nil && *q.Tracks[i].UserID == userID {
			owned++
		}
	}
	if q.CurrentTrack != nil && q.CurrentTrack.Track.URI == track.URI {
		duplicates++
	}
	if max := q.Settings.MaxDuplicateTracks; max > 0 && duplicates >= max {
		return errInvalidInput("track is already queued the maximum number of times")
	}

	perUser := q.Settings.NumberOfTracksPerUser + s.effectivePerkLevel(q, userID, gamify.PerkQueueMoreSongs)
	if perUser > 0 && owned >= perUser {
		return errInvalidInput("you already have the maximum number of tracks queued")
	}

	seqCap := q.Settings.MaxSequentialTracks + s.effectivePerkLevel(q, userID, gamify.PerkQueueSequential)
	if seqCap > 0 && trailingRun(q.Tracks, userID) >= seqCap {
		return errInvalidInput("too many of your tracks in a row, let others queue first")
	}
	return nil
}

// trailingRun counts how many items at the tail of the queue belong to the
// user, uninterrupted.
func trailingRun(items []QueueItem, userID string) int {
	run := 0
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].UserID == nil || *items[i].UserID != userID {
			break
		}
		run++
	}
	return run
}

// RemoveFromQueue removes a queued track, or skips the current one when
// isCurrent is set. Track owners always remove their own for free and get
// the unplayed queueing cost back; anyone else needs the remove_song perk
// and pays the same cost. Protected tracks reject non-owners outright.
func (s *Service) RemoveFromQueue(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error {
	if isCurrent {
		return s.Skip(ctx, passcode, userID, trackID)
	}
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		if q.UserByID(userID) == nil {
			return errNotFound("user")
		}
		idx := q.TrackIndex(trackID)
		if idx < 0 {
			return errNotFound("track")
		}
		item := q.Tracks[idx]
		owns := item.UserID != nil && *item.UserID == userID

		if !owns && userID != q.Owner {
			if item.Protected {
				return errProtectedTrack()
			}
			if s.gamifyEnabled(q) {
				if s.effectivePerkLevel(q, userID, gamify.PerkRemoveSong) == 0 {
					return errInsufficientKarmaOrPerk(gamify.PerkRemoveSong)
				}
				user := q.UserByID(userID)
				if err := s.charge(q, user, gamify.MillisToPoints(item.Track.DurationMs)); err != nil {
					return err
				}
			}
		}

		// The queueing cost was never played out, give it back.
		if item.UserID != nil {
			s.refund(q, *item.UserID, gamify.MillisToPoints(item.Track.DurationMs))
		}
		q.Tracks = append(q.Tracks[:idx], q.Tracks[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(ctx, passcode, "track.removed", map[string]string{"trackId": trackID})
	return nil
}

// Skip ends the current track early and advances. The track owner and the
// queue owner skip for free; others pay the perk-gated skip cost. When the
// advance itself fails after the charge committed, the cost is given back:
// the user paid for a skip that never happened.
func (s *Service) Skip(ctx context.Context, passcode, userID, trackID string) error {
	var charged int
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		user := q.UserByID(userID)
		if user == nil {
			return errNotFound("user")
		}
		ct := q.CurrentTrack
		if ct == nil || ct.Track.ID != trackID {
			return errNotFound("current track")
		}
		owns := ct.UserID != nil && *ct.UserID == userID
		if owns || userID == q.Owner {
			return nil
		}
		if ct.Protected {
			return errProtectedTrack()
		}
		if !s.gamifyEnabled(q) {
			return nil
		}
		level := s.effectivePerkLevel(q, userID, gamify.PerkSkipSong)
		if level == 0 {
			return errInsufficientKarmaOrPerk(gamify.PerkSkipSong)
		}
		cost := gamify.SkipCost(ct.Track.DurationMs, ct.EstimatedProgress(s.now()), level)
		if err := s.charge(q, user, cost); err != nil {
			return err
		}
		charged = cost
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("passcode", passcode).Str("user", userID).Str("track", trackID).Msg("track skipped")
	if err := s.advanceNow(ctx, passcode); err != nil {
		if charged > 0 {
			if _, rerr := s.store.Update(ctx, passcode, func(q *Queue) error {
				s.refund(q, userID, charged)
				return nil
			}); rerr != nil {
				s.log.Error().Err(rerr).Str("passcode", passcode).Str("user", userID).
					Int("points", charged).Msg("refund after failed skip")
			}
		}
		return err
	}
	return nil
}

// MoveUp shifts the user's own queued track towards the front by as many
// slots as the move_up perk level allows.
func (s *Service) MoveUp(ctx context.Context, passcode, userID, trackID string) error {
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		user := q.UserByID(userID)
		if user == nil {
			return errNotFound("user")
		}
		level := s.effectivePerkLevel(q, userID, gamify.PerkMoveUp)
		if level == 0 {
			return errInsufficientKarmaOrPerk(gamify.PerkMoveUp)
		}
		idx := q.TrackIndex(trackID)
		if idx < 0 {
			return errNotFound("track")
		}
		if q.Tracks[idx].UserID == nil || *q.Tracks[idx].UserID != userID {
			return errUnauthorized("you can only move your own tracks")
		}
		def, _ := gamify.Lookup(gamify.PerkMoveUp)
		if err := s.charge(q, user, def.UseCost); err != nil {
			return err
		}
		target := idx - level
		if target < 0 {
			target = 0
		}
		item := q.Tracks[idx]
		q.Tracks = append(q.Tracks[:idx], q.Tracks[idx+1:]...)
		q.Tracks = append(q.Tracks[:target], append([]QueueItem{item}, q.Tracks[target:]...)...)
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(ctx, passcode, "queue.reordered", nil)
	return nil
}

// MoveFirst puts the user's track at the head of the queue. Perk-gated and
// subject to a server-side cooldown recorded on the perk itself.
func (s *Service) MoveFirst(ctx context.Context, passcode, userID, trackID string) error {
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		user := q.UserByID(userID)
		if user == nil {
			return errNotFound("user")
		}
		if s.effectivePerkLevel(q, userID, gamify.PerkMoveFirst) == 0 {
			return errInsufficientKarmaOrPerk(gamify.PerkMoveFirst)
		}
		def, _ := gamify.Lookup(gamify.PerkMoveFirst)
		perk := q.PerkFor(userID, gamify.PerkMoveFirst)
		if perk != nil && perk.LastUsed != nil && s.now().Sub(*perk.LastUsed) < def.Cooldown {
			return errInsufficientKarmaOrPerk(gamify.PerkMoveFirst)
		}
		idx := q.TrackIndex(trackID)
		if idx < 0 {
			return errNotFound("track")
		}
		if q.Tracks[idx].UserID == nil || *q.Tracks[idx].UserID != userID {
			return errUnauthorized("you can only move your own tracks")
		}
		if err := s.charge(q, user, def.UseCost); err != nil {
			return err
		}
		item := q.Tracks[idx]
		if len(q.Tracks) > 0 {
			item.AddedAt = q.Tracks[0].AddedAt.Add(-time.Second)
		}
		q.Tracks = append(q.Tracks[:idx], q.Tracks[idx+1:]...)
		q.Tracks = append([]QueueItem{item}, q.Tracks...)
		if perk != nil {
			used := s.now()
			perk.LastUsed = &used
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(ctx, passcode, "queue.reordered", nil)
	return nil
}

// ProtectTrack marks the current track or a queued item protected against
// skip and removal by non-owners.
func (s *Service) ProtectTrack(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error {
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		user := q.UserByID(userID)
		if user == nil {
			return errNotFound("user")
		}
		if s.effectivePerkLevel(q, userID, gamify.PerkProtectSong) == 0 {
			return errInsufficientKarmaOrPerk(gamify.PerkProtectSong)
		}
		if isCurrent {
			ct := q.CurrentTrack
			if ct == nil || ct.Track.ID != trackID {
				return errNotFound("current track")
			}
			cost := gamify.ProtectCost(ct.Track.DurationMs, ct.EstimatedProgress(s.now()))
			if err := s.charge(q, user, cost); err != nil {
				return err
			}
			ct.Protected = true
			return nil
		}
		idx := q.TrackIndex(trackID)
		if idx < 0 {
			return errNotFound("track")
		}
		cost := gamify.ProtectCost(q.Tracks[idx].Track.DurationMs, 0)
		if err := s.charge(q, user, cost); err != nil {
			return err
		}
		q.Tracks[idx].Protected = true
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(ctx, passcode, "track.protected", map[string]string{"trackId": trackID})
	return nil
}

func (s *Service) gamifyEnabled(q *Queue) bool {
	return q.Settings.Gamify
}
