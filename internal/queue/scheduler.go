package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// leadTime fires the timer slightly before the track ends so the next
	// one can be started without an audible gap.
	leadTime = 1000 * time.Millisecond
	// finishWindow is how close to the end the transport must report the
	// track before the scheduler advances instead of re-arming.
	finishWindow = 5000
	// transport failure handling while reconciling
	maxReconcileFailures = 3
	reconcileRetryDelay  = 10 * time.Second
	reconcileTimeout     = 15 * time.Second
)

// Scheduler owns one cancellable timer per session and drives the
// Idle -> Armed -> Reconciling cycle. Arming replaces any previously armed
// timer for the same session, so advancement can never run twice for one
// track end.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	failures map[string]int

	svc *Service
	log zerolog.Logger
}

func newScheduler(svc *Service, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		timers:   make(map[string]*time.Timer),
		failures: make(map[string]int),
		svc:      svc,
		log:      log,
	}
}

// Arm schedules reconciliation for timeLeftMs - leadTime from now. The
// session enters the Armed state; an existing timer is stopped and replaced.
func (sc *Scheduler) Arm(passcode string, timeLeftMs int) {
	delay := msDuration(timeLeftMs) - leadTime
	if delay < 0 {
		delay = 0
	}
	sc.armAfter(passcode, delay)
}

func (sc *Scheduler) armAfter(passcode string, delay time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if t, ok := sc.timers[passcode]; ok {
		t.Stop()
	}
	sc.timers[passcode] = time.AfterFunc(delay, func() {
		sc.fire(passcode)
	})
	sc.log.Debug().Str("passcode", passcode).Dur("delay", delay).Msg("scheduler armed")
}

// Cancel drops the session's timer, returning it to Idle.
func (sc *Scheduler) Cancel(passcode string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if t, ok := sc.timers[passcode]; ok {
		t.Stop()
		delete(sc.timers, passcode)
	}
	delete(sc.failures, passcode)
}

// Shutdown stops every armed timer.
func (sc *Scheduler) Shutdown() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for p, t := range sc.timers {
		t.Stop()
		delete(sc.timers, p)
	}
}

func (sc *Scheduler) fire(passcode string) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	sc.Reconcile(ctx, passcode)
}

// Reconcile is the Reconciling state: cross-check the transport's live
// answer and either advance to the next track or re-arm for the time that
// actually remains.
func (sc *Scheduler) Reconcile(ctx context.Context, passcode string) {
	q, err := sc.svc.store.Get(ctx, passcode)
	if err != nil {
		sc.log.Error().Err(err).Str("passcode", passcode).Msg("reconcile load queue")
		sc.Cancel(passcode)
		return
	}
	if !q.Active() || !q.IsPlaying {
		sc.Cancel(passcode)
		return
	}

	creds := q.Credentials
	if creds.Expired(sc.svc.now()) {
		refreshed, err := sc.svc.refreshCredentials(ctx, passcode)
		if err != nil {
			sc.transportFailed(passcode, err)
			return
		}
		creds = refreshed
	}

	np, err := sc.svc.transport.GetNowPlaying(ctx, creds)
	if err != nil {
		sc.transportFailed(passcode, err)
		return
	}
	sc.mu.Lock()
	delete(sc.failures, passcode)
	sc.mu.Unlock()

	current := q.CurrentTrack
	if np.Track != nil && current != nil && np.Track.ID != current.Track.ID {
		// The device answer lags behind an advance that already committed.
		// The stored current track is authoritative; re-arm for its own
		// remaining time instead of acting on the stale report.
		sc.Arm(passcode, current.Track.DurationMs-current.EstimatedProgress(sc.svc.now()))
		return
	}

	if np.Track != nil && !np.IsPlaying {
		// Someone paused on the device itself. Correct belief and go idle;
		// the next state query or manual resume picks playback back up.
		sc.svc.stopPlayback(ctx, passcode)
		return
	}

	if np.Track != nil {
		remaining := np.Track.DurationMs - np.ProgressMs
		if remaining > finishWindow {
			sc.Arm(passcode, remaining)
			return
		}
	}

	expectID := ""
	if current != nil {
		expectID = current.Track.ID
	}
	if err := sc.svc.startNext(ctx, passcode, expectID, liveProgressOf(np)); err != nil {
		sc.log.Error().Err(err).Str("passcode", passcode).Msg("reconcile advance")
	}
}

func liveProgressOf(np *NowPlaying) *int {
	if np == nil || np.Track == nil {
		return nil
	}
	p := np.ProgressMs
	return &p
}

// transportFailed re-arms a short retry a bounded number of times, then
// drops the timer to avoid a tight failure loop. The session keeps
// isPlaying=true until a later reconciliation corrects it.
func (sc *Scheduler) transportFailed(passcode string, err error) {
	sc.mu.Lock()
	sc.failures[passcode]++
	n := sc.failures[passcode]
	sc.mu.Unlock()

	if n >= maxReconcileFailures {
		sc.log.Error().Err(err).Str("passcode", passcode).Int("attempts", n).
			Msg("device unreachable, stopping scheduler for session")
		sc.mu.Lock()
		if t, ok := sc.timers[passcode]; ok {
			t.Stop()
			delete(sc.timers, passcode)
		}
		sc.mu.Unlock()
		return
	}
	sc.log.Warn().Err(err).Str("passcode", passcode).Int("attempt", n).Msg("reconcile transport failure, retrying")
	sc.armAfter(passcode, reconcileRetryDelay)
}

// Recover re-enters Reconciling for every session persisted as playing.
// Called once on process start; the live re-check makes restart self-healing
// without a persisted next-fire time.
func (sc *Scheduler) Recover(ctx context.Context) error {
	passcodes, err := sc.svc.store.ListPlaying(ctx)
	if err != nil {
		return err
	}
	for _, p := range passcodes {
		sc.log.Info().Str("passcode", p).Msg("recovering playing session")
		sc.Reconcile(ctx, p)
	}
	return nil
}
