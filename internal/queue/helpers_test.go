package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeStore is an in-memory SessionStore. Update serializes through a
// per-store mutex and round-trips the aggregate through JSON, mirroring the
// exclusive-read row lock and whole-row writes of the real store.
type fakeStore struct {
	mu     sync.Mutex
	queues map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{queues: map[string][]byte{}}
}

func (f *fakeStore) Get(ctx context.Context, passcode string) (*Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.queues[passcode]
	if !ok {
		return nil, errSessionNotFound(passcode)
	}
	q := &Queue{}
	if err := json.Unmarshal(data, q); err != nil {
		return nil, errStore(err)
	}
	return q, nil
}

func (f *fakeStore) Create(ctx context.Context, q *Queue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(q)
	if err != nil {
		return errStore(err)
	}
	f.queues[q.Passcode] = data
	return nil
}

func (f *fakeStore) Update(ctx context.Context, passcode string, mutate func(q *Queue) error) (*Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.queues[passcode]
	if !ok {
		return nil, errSessionNotFound(passcode)
	}
	q := &Queue{}
	if err := json.Unmarshal(data, q); err != nil {
		return nil, errStore(err)
	}
	if err := mutate(q); err != nil {
		return nil, err
	}
	out, err := json.Marshal(q)
	if err != nil {
		return nil, errStore(err)
	}
	f.queues[passcode] = out
	return q, nil
}

func (f *fakeStore) ListPlaying(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for passcode, data := range f.queues {
		q := &Queue{}
		if json.Unmarshal(data, q) == nil && q.IsPlaying {
			out = append(out, passcode)
		}
	}
	return out, nil
}

// fakeTransport implements Transport with overridable funcs and counters.
type fakeTransport struct {
	mu sync.Mutex

	GetNowPlayingFunc func(ctx context.Context, creds *Credentials) (*NowPlaying, error)
	StartTrackFunc    func(ctx context.Context, creds *Credentials, uris []string, deviceID string) error
	GetTrackFunc      func(ctx context.Context, creds *Credentials, uri string) (*Track, error)
	RefreshTokenFunc  func(ctx context.Context, creds *Credentials) (*Credentials, error)

	startCalls  [][]string
	pauseCalls  int
	resumeCalls int
}

func (f *fakeTransport) GetNowPlaying(ctx context.Context, creds *Credentials) (*NowPlaying, error) {
	if f.GetNowPlayingFunc != nil {
		return f.GetNowPlayingFunc(ctx, creds)
	}
	return &NowPlaying{}, nil
}

func (f *fakeTransport) StartTrack(ctx context.Context, creds *Credentials, uris []string, deviceID string) error {
	f.mu.Lock()
	f.startCalls = append(f.startCalls, uris)
	f.mu.Unlock()
	if f.StartTrackFunc != nil {
		return f.StartTrackFunc(ctx, creds, uris, deviceID)
	}
	return nil
}

func (f *fakeTransport) startedTracks() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.startCalls))
	copy(out, f.startCalls)
	return out
}

func (f *fakeTransport) Pause(ctx context.Context, creds *Credentials) error {
	f.mu.Lock()
	f.pauseCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Resume(ctx context.Context, creds *Credentials, deviceID string) error {
	f.mu.Lock()
	f.resumeCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) RefreshToken(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if f.RefreshTokenFunc != nil {
		return f.RefreshTokenFunc(ctx, creds)
	}
	return &Credentials{
		AccessToken:  "refreshed",
		RefreshToken: creds.RefreshToken,
		ExpiresIn:    3600,
		AcquiredAt:   time.Now().Unix(),
	}, nil
}

func (f *fakeTransport) GetTrack(ctx context.Context, creds *Credentials, uri string) (*Track, error) {
	if f.GetTrackFunc != nil {
		return f.GetTrackFunc(ctx, creds, uri)
	}
	return &Track{ID: uri, URI: uri, Name: "Track " + uri, Artist: "Artist", DurationMs: 200000}, nil
}

func (f *fakeTransport) GetPlaylistTracks(ctx context.Context, creds *Credentials, playlistID string) ([]Track, error) {
	return []Track{
		{ID: "pl-1", URI: "spotify:track:pl-1", Name: "Playlist One", DurationMs: 180000},
		{ID: "pl-2", URI: "spotify:track:pl-2", Name: "Playlist Two", DurationMs: 240000},
	}, nil
}

func liveCredentials() *Credentials {
	return &Credentials{
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
		AcquiredAt:   time.Now().Unix(),
	}
}

// newTestService wires a Service over the in-memory fakes with a seeded
// queue: owner plus one member, gamify on.
func newTestService(t *testing.T) (*Service, *fakeStore, *fakeTransport) {
	t.Helper()
	store := newFakeStore()
	transport := &fakeTransport{}
	svc := NewService(store, transport, NewEvents(nil, zerolog.Nop()), zerolog.Nop())
	svc.randInt = func(n int) int { return 0 }
	return svc, store, transport
}

const (
	testPasscode = "abcd1234"
	ownerID      = "owner-1"
	memberID     = "member-1"
)

func seedQueue(store *fakeStore, mutate func(q *Queue)) {
	q := &Queue{
		Passcode:    testPasscode,
		Owner:       ownerID,
		Credentials: liveCredentials(),
		Settings:    DefaultSettings("test queue"),
		Users: []User{
			{ID: ownerID, Username: "owner", Points: 10},
			{ID: memberID, Username: "member", Points: 10},
		},
		Perks: map[string][]Perk{},
	}
	if mutate != nil {
		mutate(q)
	}
	_ = store.Create(context.Background(), q)
}

func mustGet(t *testing.T, store *fakeStore) *Queue {
	t.Helper()
	q, err := store.Get(context.Background(), testPasscode)
	if err != nil {
		t.Fatalf("load queue: %v", err)
	}
	return q
}
