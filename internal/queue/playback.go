package queue

import (
	"context"
)

// advanceNow rewards the finishing track and starts the next queued item.
// Transport-reported progress is fetched before the lock is taken and used
// for the reward when available; the internal estimate is the fallback.
func (s *Service) advanceNow(ctx context.Context, passcode string) error {
	expectID := ""
	var liveProgress *int
	if q, err := s.store.Get(ctx, passcode); err == nil && q.Active() && q.CurrentTrack != nil {
		expectID = q.CurrentTrack.Track.ID
		if np, err := s.transport.GetNowPlaying(ctx, q.Credentials); err == nil &&
			np.Track != nil && np.Track.ID == expectID {
			p := np.ProgressMs
			liveProgress = &p
		}
	}
	return s.startNext(ctx, passcode, expectID, liveProgress)
}

// startNext pops the next item under the exclusive lock, commits the new
// current track and then issues the transport start as a best-effort side
// action. A failed start keeps the committed state; the next reconciliation
// cycle retries implicitly.
//
// expectCurrentID is the track the caller decided had ended ("" for none).
// When the locked snapshot shows a different current track, another advance
// already won the race and this call is a no-op, so one track end can never
// be applied twice.
func (s *Service) startNext(ctx context.Context, passcode, expectCurrentID string, liveProgress *int) error {
	var started *CurrentTrack
	var stale bool
	q, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		currentID := ""
		if q.CurrentTrack != nil {
			currentID = q.CurrentTrack.Track.ID
		}
		if currentID != expectCurrentID {
			stale = true
			return nil
		}
		if _, err := s.freshCredentials(ctx, q); err != nil {
			return err
		}
		if q.CurrentTrack != nil {
			progress := q.CurrentTrack.EstimatedProgress(s.now())
			if liveProgress != nil {
				progress = *liveProgress
			}
			s.finishCurrent(q, progress)
		}
		item := s.popNext(q)
		if item == nil {
			q.IsPlaying = false
			return nil
		}
		q.CurrentTrack = &CurrentTrack{
			Track:         item.Track,
			UserID:        item.UserID,
			Votes:         []Vote{},
			Protected:     item.Protected,
			PlaylistTrack: item.UserID == nil,
			StartedAt:     s.now(),
		}
		q.IsPlaying = true
		started = q.CurrentTrack
		return nil
	})
	if err != nil {
		return err
	}
	if stale {
		s.log.Debug().Str("passcode", passcode).Str("expected", expectCurrentID).
			Msg("advance already applied, skipping")
		return nil
	}

	if started == nil {
		s.sched.Cancel(passcode)
		s.events.Publish(ctx, passcode, "queue.ended", nil)
		s.log.Info().Str("passcode", passcode).Msg("queue drained, playback stopped")
		return nil
	}

	deviceID := ""
	if q.DeviceID != nil {
		deviceID = *q.DeviceID
	}
	if err := s.transport.StartTrack(ctx, q.Credentials, []string{started.Track.URI}, deviceID); err != nil {
		s.log.Warn().Err(err).Str("passcode", passcode).
			Str("track", started.Track.ID).Msg("start track failed, leaving state for reconciliation")
	}
	s.sched.Arm(passcode, started.Track.DurationMs)
	s.events.Publish(ctx, passcode, "track.changed", started)
	return nil
}

// stopPlayback clears the playing flag and cancels the session timer. Used
// when the device has become unreachable.
func (s *Service) stopPlayback(ctx context.Context, passcode string) {
	s.sched.Cancel(passcode)
	_, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		q.IsPlaying = false
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("passcode", passcode).Msg("stop playback persist")
	}
}

// PauseResume toggles playback and reports the resulting playing state.
func (s *Service) PauseResume(ctx context.Context, passcode, userID string) (bool, error) {
	q, err := s.store.Get(ctx, passcode)
	if err != nil {
		return false, err
	}
	if q.UserByID(userID) == nil {
		return false, errNotFound("user")
	}
	if !q.Active() {
		return false, errSessionInactive()
	}

	if q.IsPlaying {
		if err := s.transport.Pause(ctx, q.Credentials); err != nil {
			return true, errTransport(err)
		}
		s.sched.Cancel(passcode)
		if _, err := s.store.Update(ctx, passcode, func(q *Queue) error {
			q.IsPlaying = false
			if q.CurrentTrack != nil {
				q.CurrentTrack.ProgressMs = q.CurrentTrack.EstimatedProgress(s.now())
			}
			return nil
		}); err != nil {
			return true, err
		}
		s.events.Publish(ctx, passcode, "playback.paused", nil)
		return false, nil
	}

	if q.CurrentTrack == nil {
		// Nothing paused midway; resume means starting the next queued item.
		if err := s.advanceNow(ctx, passcode); err != nil {
			return false, err
		}
		return true, nil
	}

	deviceID := ""
	if q.DeviceID != nil {
		deviceID = *q.DeviceID
	}
	if err := s.transport.Resume(ctx, q.Credentials, deviceID); err != nil {
		return false, errTransport(err)
	}
	updated, err := s.store.Update(ctx, passcode, func(q *Queue) error {
		q.IsPlaying = true
		if q.CurrentTrack != nil {
			q.CurrentTrack.StartedAt = s.now().Add(-msDuration(q.CurrentTrack.ProgressMs))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if ct := updated.CurrentTrack; ct != nil {
		s.sched.Arm(passcode, ct.Track.DurationMs-ct.ProgressMs)
	}
	s.events.Publish(ctx, passcode, "playback.resumed", nil)
	return true, nil
}
