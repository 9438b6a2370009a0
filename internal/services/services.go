// package services defines the HTTP API clients behind the pipeline
//
// Strava (activity tracker), Open-Meteo (weather), Spotify (music streaming)
package services

import (
	"context"
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// ActivityService is the activity tracker runs are sourced from.
type ActivityService interface {
	// Authenticate establishes an API session. Credentials may carry an
	// "auth_code" from a fresh OAuth grant; otherwise the service refreshes
	// from its cached or configured refresh token.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// RecentRuns fetches up to maxRuns recent runs with coordinates,
	// newest first.
	RecentRuns(ctx context.Context, maxRuns int) ([]models.RunRecord, error)

	// ActivityStreams fetches the detailed time series for one activity.
	ActivityStreams(ctx context.Context, activityID int64) (*ActivityStreams, error)

	// Name returns the provider name (e.g. "Strava").
	Name() string
}

// WeatherService resolves the weather at a run's place and time.
type WeatherService interface {
	// SnapshotAt returns the hourly readings nearest to the given instant.
	SnapshotAt(ctx context.Context, lat, lon float64, at time.Time) (*models.WeatherSnapshot, error)
}

// MusicService is the streaming provider that searches tracks and writes playlists.
type MusicService interface {
	// Authenticate establishes an API session, normally via refresh token.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*UserProfile, error)

	// SearchTracks runs a free-text track search.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)

	// AudioFeatures fetches tempo/energy/valence for up to 100 track IDs,
	// keyed by track ID. IDs the provider has no analysis for are absent.
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error)

	// CreatePlaylist creates an empty playlist owned by the given user.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*PlaylistRef, error)

	// AddTracks appends track URIs to a playlist, batching as the provider requires.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// UploadCover replaces the playlist cover with a JPEG image.
	UploadCover(ctx context.Context, playlistID string, jpeg []byte) error

	// Name returns the provider name (e.g. "Spotify").
	Name() string
}

// UserProfile identifies the authenticated streaming-service user.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	Product     string
}

// PlaylistRef points at a created playlist.
type PlaylistRef struct {
	ID     string
	Name   string
	URL    string
	Public bool
}

// ActivityStreams carries the per-sample series for one activity, pared down
// to the stream types the exporter asks for. Slices are index-aligned; a
// stream the tracker did not record is nil.
type ActivityStreams struct {
	ActivityID int64        `json:"activity_id"`
	Time       []int        `json:"time,omitempty"`     // seconds from start
	LatLng     [][2]float64 `json:"latlng,omitempty"`   // degrees
	Altitude   []float64    `json:"altitude,omitempty"` // meters
	HeartRate  []int        `json:"heartrate,omitempty"`
	Velocity   []float64    `json:"velocity_smooth,omitempty"` // m/s
	Cadence    []int        `json:"cadence,omitempty"`
}

// Samples returns the number of points in the longest series.
func (s *ActivityStreams) Samples() int {
	n := len(s.Time)
	for _, l := range []int{len(s.LatLng), len(s.Altitude), len(s.HeartRate), len(s.Velocity), len(s.Cadence)} {
		if l > n {
			n = l
		}
	}
	return n
}
