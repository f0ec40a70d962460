// Package spotify is the thin HTTP client behind the queue's playback
// transport interface. It knows the wire shapes and token refresh dance and
// nothing about queue semantics.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jukkahell/spotify-queue-sub000/internal/queue"
)

const (
	defaultAPIURL   = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"

	trackCacheTTL = time.Hour
	maxRetries    = 3
)

type Client struct {
	apiURL       string
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewClient builds a transport client. rdb is optional; when present, track
// metadata lookups are cached.
func NewClient(clientID, clientSecret string, rdb *redis.Client, log zerolog.Logger) *Client {
	return &Client{
		apiURL:       defaultAPIURL,
		tokenURL:     defaultTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		rdb: rdb,
		log: log,
	}
}

// WithBaseURLs overrides the API endpoints, for tests.
func (c *Client) WithBaseURLs(apiURL, tokenURL string) *Client {
	c.apiURL = apiURL
	c.tokenURL = tokenURL
	return c
}

type currentlyPlayingResponse struct {
	ProgressMs int  `json:"progress_ms"`
	IsPlaying  bool `json:"is_playing"`
	Item       *struct {
		ID         string `json:"id"`
		URI        string `json:"uri"`
		Name       string `json:"name"`
		DurationMs int    `json:"duration_ms"`
		Artists    []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
	Device struct {
		ID string `json:"id"`
	} `json:"device"`
}

func (c *Client) GetNowPlaying(ctx context.Context, creds *queue.Credentials) (*queue.NowPlaying, error) {
	var body []byte
	var status int
	err := c.retry(ctx, func() error {
		var err error
		body, status, err = c.do(ctx, http.MethodGet, c.apiURL+"/me/player", creds, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return &queue.NowPlaying{}, nil
	}

	var resp currentlyPlayingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode now playing: %w", err)
	}
	np := &queue.NowPlaying{
		ProgressMs: resp.ProgressMs,
		IsPlaying:  resp.IsPlaying,
		DeviceID:   resp.Device.ID,
	}
	if resp.Item != nil {
		np.Track = &queue.Track{
			ID:         resp.Item.ID,
			URI:        resp.Item.URI,
			Name:       resp.Item.Name,
			DurationMs: resp.Item.DurationMs,
			Artist:     joinArtists(resp.Item.Artists),
		}
		if len(resp.Item.Album.Images) > 0 {
			np.Track.ImageURL = resp.Item.Album.Images[0].URL
		}
	}
	return np, nil
}

func (c *Client) StartTrack(ctx context.Context, creds *queue.Credentials, uris []string, deviceID string) error {
	endpoint := c.apiURL + "/me/player/play"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}
	payload, err := json.Marshal(map[string]any{"uris": uris})
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, http.MethodPut, endpoint, creds, payload)
	return err
}

func (c *Client) Pause(ctx context.Context, creds *queue.Credentials) error {
	_, _, err := c.do(ctx, http.MethodPut, c.apiURL+"/me/player/pause", creds, nil)
	return err
}

func (c *Client) Resume(ctx context.Context, creds *queue.Credentials, deviceID string) error {
	endpoint := c.apiURL + "/me/player/play"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}
	_, _, err := c.do(ctx, http.MethodPut, endpoint, creds, nil)
	return err
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (c *Client) RefreshToken(ctx context.Context, creds *queue.Credentials) (*queue.Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))

	var tok tokenResponse
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Basic "+basic)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("token refresh status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&tok)
	})
	if err != nil {
		return nil, err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.RefreshToken
	}
	return &queue.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    tok.ExpiresIn,
		AcquiredAt:   time.Now().Unix(),
	}, nil
}

type trackResponse struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	DurationMs int    `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (c *Client) GetTrack(ctx context.Context, creds *queue.Credentials, uri string) (*queue.Track, error) {
	id := trackIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("invalid track uri %q", uri)
	}

	cacheKey := "track:" + id
	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var t queue.Track
			if json.Unmarshal(cached, &t) == nil {
				return &t, nil
			}
		}
	}

	var body []byte
	err := c.retry(ctx, func() error {
		var err error
		body, _, err = c.do(ctx, http.MethodGet, c.apiURL+"/tracks/"+id, creds, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	var resp trackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	track := &queue.Track{
		ID:         resp.ID,
		URI:        resp.URI,
		Name:       resp.Name,
		DurationMs: resp.DurationMs,
		Artist:     joinArtists(resp.Artists),
	}
	if len(resp.Album.Images) > 0 {
		track.ImageURL = resp.Album.Images[0].URL
	}

	if c.rdb != nil {
		if data, err := json.Marshal(track); err == nil {
			if err := c.rdb.Set(ctx, cacheKey, data, trackCacheTTL).Err(); err != nil {
				c.log.Warn().Err(err).Str("track", id).Msg("cache track")
			}
		}
	}
	return track, nil
}

type playlistTracksResponse struct {
	Items []struct {
		Track trackResponse `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

func (c *Client) GetPlaylistTracks(ctx context.Context, creds *queue.Credentials, playlistID string) ([]queue.Track, error) {
	endpoint := c.apiURL + "/playlists/" + url.PathEscape(playlistID) + "/tracks?limit=100"
	var out []queue.Track
	for endpoint != "" {
		var body []byte
		err := c.retry(ctx, func() error {
			var err error
			body, _, err = c.do(ctx, http.MethodGet, endpoint, creds, nil)
			return err
		})
		if err != nil {
			return nil, err
		}
		var resp playlistTracksResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode playlist tracks: %w", err)
		}
		for _, it := range resp.Items {
			t := queue.Track{
				ID:         it.Track.ID,
				URI:        it.Track.URI,
				Name:       it.Track.Name,
				DurationMs: it.Track.DurationMs,
				Artist:     joinArtists(it.Track.Artists),
			}
			if len(it.Track.Album.Images) > 0 {
				t.ImageURL = it.Track.Album.Images[0].URL
			}
			out = append(out, t)
		}
		endpoint = resp.Next
	}
	return out, nil
}

// do performs one authorized request and returns the body and status.
// Non-2xx responses are errors so the retry wrapper sees them.
func (c *Client) do(ctx context.Context, method, endpoint string, creds *queue.Credentials, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("spotify status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, resp.StatusCode, nil
}

// retry wraps transient-failure-prone calls in a bounded exponential backoff.
func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(op, b)
}

// trackIDFromURI accepts "spotify:track:<id>", an open.spotify.com track
// URL, or a bare id.
func trackIDFromURI(uri string) string {
	if strings.HasPrefix(uri, "spotify:track:") {
		return strings.TrimPrefix(uri, "spotify:track:")
	}
	if idx := strings.Index(uri, "open.spotify.com/track/"); idx >= 0 {
		id := uri[idx+len("open.spotify.com/track/"):]
		if q := strings.IndexAny(id, "?#"); q >= 0 {
			id = id[:q]
		}
		return id
	}
	if strings.ContainsAny(uri, ":/") {
		return ""
	}
	return uri
}

func joinArtists(artists []struct {
	Name string `json:"name"`
}) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
