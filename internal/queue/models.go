package queue

import (
	"time"
)

// Credentials are the external-transport tokens owned by the queue owner.
// A nil Credentials on the aggregate means the session is inactive.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	AcquiredAt   int64  `json:"acquiredAt"`
}

// Expired reports whether the access token needs a refresh, with a small
// safety margin so a token never expires mid-request.
func (c *Credentials) Expired(now time.Time) bool {
	return now.Unix() >= c.AcquiredAt+c.ExpiresIn-60
}

// Track is the immutable metadata of one playable track.
type Track struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	ImageURL   string `json:"imageUrl,omitempty"`
	DurationMs int    `json:"durationMs"`
}

// Vote is one user's up/down vote on the current track.
type Vote struct {
	UserID string `json:"userId"`
	Value  int    `json:"value"`
}

// QueueItem is a track plus the user who queued it. Playlist-sourced items
// carry a nil UserID.
type QueueItem struct {
	ID        string    `json:"id"`
	Track     Track     `json:"track"`
	UserID    *string   `json:"userId"`
	Protected bool      `json:"protected"`
	Source    string    `json:"source"`
	AddedAt   time.Time `json:"addedAt"`
}

// CurrentTrack is the track actively playing for a session.
type CurrentTrack struct {
	Track         Track     `json:"track"`
	UserID        *string   `json:"userId"`
	ProgressMs    int       `json:"progressMs"`
	Votes         []Vote    `json:"votes"`
	Protected     bool      `json:"protected"`
	PlaylistTrack bool      `json:"playlistTrack"`
	StartedAt     time.Time `json:"startedAt"`
}

// VoteSum is the signed sum of all votes on the track.
func (ct *CurrentTrack) VoteSum() int {
	sum := 0
	for _, v := range ct.Votes {
		sum += v.Value
	}
	return sum
}

// HasVoted reports whether the user already voted on this track.
func (ct *CurrentTrack) HasVoted(userID string) bool {
	for _, v := range ct.Votes {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

// EstimatedProgress extrapolates playback progress from the last synced
// position, clamped to the track duration.
func (ct *CurrentTrack) EstimatedProgress(now time.Time) int {
	p := int(now.Sub(ct.StartedAt).Milliseconds())
	if p < ct.ProgressMs {
		p = ct.ProgressMs
	}
	if p > ct.Track.DurationMs {
		p = ct.Track.DurationMs
	}
	return p
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Settings are per-queue knobs the owner controls.
type Settings struct {
	Name                  string `json:"name"`
	Gamify                bool   `json:"gamify"`
	MaxDuplicateTracks    int    `json:"maxDuplicateTracks"`
	NumberOfTracksPerUser int    `json:"numberOfTracksPerUser"`
	ShuffleQueue          bool   `json:"shuffleQueue"`
	ShufflePlaylist       bool   `json:"shufflePlaylist"`
	SkipThreshold         int    `json:"skipThreshold"`
	MaxSequentialTracks   int    `json:"maxSequentialTracks"`
	RequireLogin          bool   `json:"requireLogin"`
}

// DefaultSettings for a freshly created queue.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:                  name,
		Gamify:                true,
		MaxDuplicateTracks:    2,
		NumberOfTracksPerUser: 5,
		SkipThreshold:         3,
		MaxSequentialTracks:   3,
	}
}

// User is a queue member with their spendable points and karma.
type User struct {
	ID            string  `json:"id"`
	SpotifyUserID *string `json:"spotifyUserId,omitempty"`
	Username      string  `json:"username"`
	Points        int     `json:"points"`
	Karma         int     `json:"karma"`
}

// Perk is one owned perk level for one user. LastUsed backs server-side
// cooldown enforcement.
type Perk struct {
	Name     string     `json:"name"`
	Level    int        `json:"level"`
	LastUsed *time.Time `json:"lastUsed,omitempty"`
}

// Queue is the root aggregate: the full shared state of one session,
// addressed by passcode and always read and written as a whole.
type Queue struct {
	Passcode       string            `json:"passcode"`
	Owner          string            `json:"owner"`
	Credentials    *Credentials      `json:"credentials"`
	IsPlaying      bool              `json:"isPlaying"`
	DeviceID       *string           `json:"deviceId"`
	CurrentTrack   *CurrentTrack     `json:"currentTrack"`
	Tracks         []QueueItem       `json:"tracks"`
	PlaylistTracks []QueueItem       `json:"playlistTracks"`
	PlaylistID     *string           `json:"playlistId"`
	Settings       Settings          `json:"settings"`
	Users          []User            `json:"users"`
	Perks          map[string][]Perk `json:"perks"`
}

// UserByID returns a pointer into Users, or nil.
func (q *Queue) UserByID(id string) *User {
	for i := range q.Users {
		if q.Users[i].ID == id {
			return &q.Users[i]
		}
	}
	return nil
}

// PerkFor returns the user's owned perk entry, or nil.
func (q *Queue) PerkFor(userID, name string) *Perk {
	perks := q.Perks[userID]
	for i := range perks {
		if perks[i].Name == name {
			return &perks[i]
		}
	}
	return nil
}

// PerkLevel is the owned level of a perk, zero when not owned.
func (q *Queue) PerkLevel(userID, name string) int {
	if p := q.PerkFor(userID, name); p != nil {
		return p.Level
	}
	return 0
}

// TrackIndex finds a queued item by id in Tracks, -1 when absent.
func (q *Queue) TrackIndex(trackID string) int {
	for i := range q.Tracks {
		if q.Tracks[i].ID == trackID {
			return i
		}
	}
	return -1
}

// Active reports whether the session has live credentials.
func (q *Queue) Active() bool {
	return q.Credentials != nil
}
