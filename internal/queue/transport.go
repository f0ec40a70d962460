package queue

import "context"

// NowPlaying is the transport's live answer about playback state.
type NowPlaying struct {
	Track      *Track
	ProgressMs int
	IsPlaying  bool
	DeviceID   string
}

// Transport is the thin client abstraction over the external music-streaming
// player. All calls are bounded by the passed context; a timeout counts as a
// transport failure, not a fatal error.
type Transport interface {
	GetNowPlaying(ctx context.Context, creds *Credentials) (*NowPlaying, error)
	StartTrack(ctx context.Context, creds *Credentials, uris []string, deviceID string) error
	Pause(ctx context.Context, creds *Credentials) error
	Resume(ctx context.Context, creds *Credentials, deviceID string) error
	RefreshToken(ctx context.Context, creds *Credentials) (*Credentials, error)
	GetTrack(ctx context.Context, creds *Credentials, uri string) (*Track, error)
	GetPlaylistTracks(ctx context.Context, creds *Credentials, playlistID string) ([]Track, error)
}
