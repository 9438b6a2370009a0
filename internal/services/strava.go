// Strava API implementation of [ActivityService]
//
// Response types follow https://developers.strava.com/docs/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/oauth2"
)

const (
	stravaDefaultBase = "https://www.strava.com"
	stravaPerPage     = 30
	stravaMaxRuns     = 50

	// tokens within this many seconds of expiry are refreshed early
	tokenSlackSeconds = 60
)

// StravaActivity is a summary activity from the athlete activities listing.
type StravaActivity struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	StartDateLocal   string    `json:"start_date_local"`
	StartLatLng      []float64 `json:"start_latlng"`
	DistanceM        float64   `json:"distance"`
	MovingTimeS      int       `json:"moving_time"`
	ElapsedTimeS     int       `json:"elapsed_time"`
	AvgSpeedMS       float64   `json:"average_speed"`
	MaxSpeedMS       float64   `json:"max_speed"`
	AvgHeartRate     float64   `json:"average_heartrate"`
	AvgCadence       float64   `json:"average_cadence"`
	ElevationGainM   float64   `json:"total_elevation_gain"`
	AchievementCount int       `json:"achievement_count"`
}

// Run converts the activity into the pipeline's run record. The tracker
// reports start_date_local as local wall-clock time with a UTC marker;
// it is parsed as-is so the hour keeps its local meaning.
func (a StravaActivity) Run() (models.RunRecord, error) {
	start, err := time.Parse(time.RFC3339, a.StartDateLocal)
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("activity %d has invalid start time %q: %w", a.ID, a.StartDateLocal, err)
	}
	run := models.RunRecord{
		ID:             a.ID,
		Name:           a.Name,
		StartTime:      start,
		DistanceM:      a.DistanceM,
		AvgSpeedMS:     a.AvgSpeedMS,
		AvgHeartRate:   a.AvgHeartRate,
		AvgCadence:     a.AvgCadence,
		ElevationGainM: a.ElevationGainM,
	}
	if len(a.StartLatLng) >= 2 {
		run.Lat = a.StartLatLng[0]
		run.Lon = a.StartLatLng[1]
	}
	return run, nil
}

// cachedToken is the on-disk token shape, expires_at as unix seconds.
type cachedToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (c cachedToken) valid(now time.Time) bool {
	return c.AccessToken != "" && c.ExpiresAt-now.Unix() > tokenSlackSeconds
}

// StravaService implements the ActivityService interface for the Strava API.
// Uses [oauth2] for the refresh-token flow and caches the current token on
// disk so repeated invocations skip the refresh while it stays valid.
type StravaService struct {
	config      *oauth2.Config
	token       *oauth2.Token
	httpClient  *http.Client
	credentials map[string]string
	apiBase     string
	tokenPath   string
}

// NewStravaService creates a Strava client from OAuth2 credentials.
// Recognized keys: client_id, client_secret, refresh_token, redirect_uri,
// api_base (override for testing). tokenPath is where the refreshed token
// is cached; empty disables caching.
func NewStravaService(credentials map[string]string, tokenPath string) (*StravaService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	apiBase := credentials["api_base"]
	if apiBase == "" {
		apiBase = stravaDefaultBase
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:8484/callback/strava"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"read,activity:read_all"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  apiBase + "/oauth/authorize",
			TokenURL: apiBase + "/oauth/token",
		},
	}

	return &StravaService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		apiBase:     apiBase,
		tokenPath:   tokenPath,
	}, nil
}

func (s *StravaService) Name() string {
	return "Strava"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *StravaService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// OAuthConfig exposes the OAuth2 config for the callback server's code exchange.
func (s *StravaService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AdoptToken installs a token obtained outside Authenticate (e.g. from the
// OAuth callback flow) and caches it on disk.
func (s *StravaService) AdoptToken(token *oauth2.Token) {
	s.token = token
	s.saveToken(token)
}

// Authenticate establishes an API session. An "auth_code" credential is
// exchanged directly; an "access_token" credential is trusted as-is.
// Otherwise the cached token is reused while valid, and the refresh token
// (cached one first, configured one as fallback) buys a fresh one.
func (s *StravaService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if code, ok := credentials["auth_code"]; ok && code != "" {
		token, err := s.config.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		s.token = token
		s.saveToken(token)
		return nil
	}

	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{AccessToken: accessToken}
		return nil
	}

	cached, haveCache := s.loadToken()
	if haveCache && cached.valid(time.Now()) {
		s.token = &oauth2.Token{
			AccessToken:  cached.AccessToken,
			RefreshToken: cached.RefreshToken,
			Expiry:       time.Unix(cached.ExpiresAt, 0),
		}
		return nil
	}

	refreshToken := ""
	if haveCache {
		refreshToken = cached.RefreshToken
	}
	if refreshToken == "" {
		refreshToken = s.credentials["refresh_token"]
	}
	if refreshToken == "" {
		return fmt.Errorf("%w: no refresh token configured for Strava", shared.ErrNoRefreshToken)
	}

	token, err := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	s.token = token
	s.saveToken(token)
	return nil
}

// loadToken reads the cached token file. A missing or unreadable cache is
// not an error; the caller falls through to a refresh.
func (s *StravaService) loadToken() (cachedToken, bool) {
	if s.tokenPath == "" {
		return cachedToken{}, false
	}
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		return cachedToken{}, false
	}
	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		return cachedToken{}, false
	}
	return cached, true
}

func (s *StravaService) saveToken(token *oauth2.Token) {
	if s.tokenPath == "" {
		return
	}
	cached := cachedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	_ = os.WriteFile(s.tokenPath, data, 0o600)
}

// doRequest performs an authenticated GET against the Strava API.
func (s *StravaService) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := s.apiBase + "/api/v3" + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: strava returned 401", shared.ErrTokenExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: strava returned %d: %s", shared.ErrAPIRequest, resp.StatusCode, body)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// RecentRuns pages through recent activities and keeps runs that carry
// start coordinates, newest first, up to maxRuns.
func (s *StravaService) RecentRuns(ctx context.Context, maxRuns int) ([]models.RunRecord, error) {
	if maxRuns <= 0 {
		maxRuns = stravaMaxRuns
	}

	var runs []models.RunRecord
	for page := 1; len(runs) < maxRuns; page++ {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(stravaPerPage)},
		}
		var activities []StravaActivity
		if err := s.doRequest(ctx, "/athlete/activities", query, &activities); err != nil {
			return nil, err
		}
		if len(activities) == 0 {
			break
		}

		for _, a := range activities {
			if a.Type != "Run" || len(a.StartLatLng) < 2 {
				continue
			}
			run, err := a.Run()
			if err != nil {
				return nil, err
			}
			runs = append(runs, run)
		}
	}

	if len(runs) > maxRuns {
		runs = runs[:maxRuns]
	}
	return runs, nil
}

// ActivityStreams fetches the detailed time series for one activity.
func (s *StravaService) ActivityStreams(ctx context.Context, activityID int64) (*ActivityStreams, error) {
	query := url.Values{
		"keys":        {"time,latlng,altitude,heartrate,velocity_smooth,cadence"},
		"key_by_type": {"true"},
	}

	var raw struct {
		Time struct {
			Data []int `json:"data"`
		} `json:"time"`
		LatLng struct {
			Data [][2]float64 `json:"data"`
		} `json:"latlng"`
		Altitude struct {
			Data []float64 `json:"data"`
		} `json:"altitude"`
		HeartRate struct {
			Data []int `json:"data"`
		} `json:"heartrate"`
		Velocity struct {
			Data []float64 `json:"data"`
		} `json:"velocity_smooth"`
		Cadence struct {
			Data []int `json:"data"`
		} `json:"cadence"`
	}

	path := fmt.Sprintf("/activities/%d/streams", activityID)
	if err := s.doRequest(ctx, path, query, &raw); err != nil {
		return nil, err
	}

	return &ActivityStreams{
		ActivityID: activityID,
		Time:       raw.Time.Data,
		LatLng:     raw.LatLng.Data,
		Altitude:   raw.Altitude.Data,
		HeartRate:  raw.HeartRate.Data,
		Velocity:   raw.Velocity.Data,
		Cadence:    raw.Cadence.Data,
	}, nil
}
