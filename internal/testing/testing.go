// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
)

// MockActivityService is a test double for [services.ActivityService].
// Unset function fields return zero values and no error.
type MockActivityService struct {
	AuthenticateFunc    func(ctx context.Context, credentials map[string]string) error
	RecentRunsFunc      func(ctx context.Context, maxRuns int) ([]models.RunRecord, error)
	ActivityStreamsFunc func(ctx context.Context, activityID int64) (*services.ActivityStreams, error)
}

func (m *MockActivityService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, credentials)
	}
	return nil
}

func (m *MockActivityService) RecentRuns(ctx context.Context, maxRuns int) ([]models.RunRecord, error) {
	if m.RecentRunsFunc != nil {
		return m.RecentRunsFunc(ctx, maxRuns)
	}
	return nil, nil
}

func (m *MockActivityService) ActivityStreams(ctx context.Context, activityID int64) (*services.ActivityStreams, error) {
	if m.ActivityStreamsFunc != nil {
		return m.ActivityStreamsFunc(ctx, activityID)
	}
	return &services.ActivityStreams{ActivityID: activityID}, nil
}

func (m *MockActivityService) Name() string { return "mock-tracker" }

// MockWeatherService is a test double for [services.WeatherService].
type MockWeatherService struct {
	SnapshotAtFunc func(ctx context.Context, lat, lon float64, at time.Time) (*models.WeatherSnapshot, error)
}

func (m *MockWeatherService) SnapshotAt(ctx context.Context, lat, lon float64, at time.Time) (*models.WeatherSnapshot, error) {
	if m.SnapshotAtFunc != nil {
		return m.SnapshotAtFunc(ctx, lat, lon, at)
	}
	return nil, nil
}

// MockMusicService is a test double for [services.MusicService].
type MockMusicService struct {
	AuthenticateFunc   func(ctx context.Context, credentials map[string]string) error
	CurrentUserFunc    func(ctx context.Context) (*services.UserProfile, error)
	SearchTracksFunc   func(ctx context.Context, query string, limit int) ([]models.Track, error)
	AudioFeaturesFunc  func(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error)
	CreatePlaylistFunc func(ctx context.Context, userID, name, description string, public bool) (*services.PlaylistRef, error)
	AddTracksFunc      func(ctx context.Context, playlistID string, uris []string) error
	UploadCoverFunc    func(ctx context.Context, playlistID string, jpeg []byte) error
}

func (m *MockMusicService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, credentials)
	}
	return nil
}

func (m *MockMusicService) CurrentUser(ctx context.Context) (*services.UserProfile, error) {
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx)
	}
	return &services.UserProfile{ID: "mock-user"}, nil
}

func (m *MockMusicService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if m.SearchTracksFunc != nil {
		return m.SearchTracksFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockMusicService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error) {
	if m.AudioFeaturesFunc != nil {
		return m.AudioFeaturesFunc(ctx, trackIDs)
	}
	return map[string]models.AudioFeatures{}, nil
}

func (m *MockMusicService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.PlaylistRef, error) {
	if m.CreatePlaylistFunc != nil {
		return m.CreatePlaylistFunc(ctx, userID, name, description, public)
	}
	return &services.PlaylistRef{ID: "mock-playlist", Name: name, Public: public}, nil
}

func (m *MockMusicService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.AddTracksFunc != nil {
		return m.AddTracksFunc(ctx, playlistID, uris)
	}
	return nil
}

func (m *MockMusicService) UploadCover(ctx context.Context, playlistID string, jpeg []byte) error {
	if m.UploadCoverFunc != nil {
		return m.UploadCoverFunc(ctx, playlistID, jpeg)
	}
	return nil
}

func (m *MockMusicService) Name() string { return "mock-streaming" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
