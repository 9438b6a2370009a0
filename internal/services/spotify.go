// Spotify API implementation of [MusicService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyDefaultAccounts = "https://accounts.spotify.com"
	spotifyDefaultAPI      = "https://api.spotify.com/v1"

	spotifySearchLimit    = 50
	spotifyFeatureBatch   = 100
	spotifyTrackBatch     = 100
	spotifyCoverMaxBase64 = 256 * 1024
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAudioFeatures represents the analysis attributes of one track.
type SpotifyAudioFeatures struct {
	ID      string  `json:"id"`
	Tempo   float64 `json:"tempo"`
	Energy  float64 `json:"energy"`
	Valence float64 `json:"valence"`
}

// SpotifyPlaylist is the object returned by playlist creation.
type SpotifyPlaylist struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Public       bool   `json:"public"`
	URI          string `json:"uri"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// SpotifyService implements the MusicService interface for Spotify API
// interactions. Uses [oauth2] for the refresh-token flow and caches the
// current token on disk between invocations.
type SpotifyService struct {
	config      *oauth2.Config
	token       *oauth2.Token
	httpClient  *http.Client
	credentials map[string]string
	apiBase     string
	tokenPath   string
}

// NewSpotifyService creates a Spotify client from OAuth2 credentials.
// Recognized keys: client_id, client_secret, refresh_token, redirect_uri,
// api_base and accounts_base (overrides for testing). tokenPath is where
// the refreshed token is cached; empty disables caching.
func NewSpotifyService(credentials map[string]string, tokenPath string) (*SpotifyService, error) {
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
		apiBase = spotifyDefaultAPI
	}

	accountsBase := credentials["accounts_base"]
	if accountsBase == "" {
		accountsBase = spotifyDefaultAccounts
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:8484/callback/spotify"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-top-read",
			"playlist-modify-public",
			"playlist-modify-private",
			"user-read-playback-state",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  accountsBase + "/authorize",
			TokenURL: accountsBase + "/api/token",
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		apiBase:     apiBase,
		tokenPath:   tokenPath,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the OAuth2 config for the callback server's code exchange.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AdoptToken installs a token obtained outside Authenticate (e.g. from the
// OAuth callback flow) and caches it on disk.
func (s *SpotifyService) AdoptToken(token *oauth2.Token) {
	s.token = token
	s.saveToken(token)
}

// Authenticate establishes an API session. An "auth_code" credential is
// exchanged directly; an "access_token" credential is trusted as-is.
// Otherwise the cached token is reused while valid and the refresh token
// buys a fresh one. Spotify does not rotate refresh tokens, so the one
// that bought the refresh is carried into the new cache entry.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
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
		return fmt.Errorf("%w: no refresh token configured for Spotify", shared.ErrNoRefreshToken)
	}

	token, err := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	s.token = token
	s.saveToken(token)
	return nil
}

func (s *SpotifyService) loadToken() (cachedToken, bool) {
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

func (s *SpotifyService) saveToken(token *oauth2.Token) {
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

// doRequest performs an authenticated HTTP request to the Spotify API.
// A non-nil body is sent as JSON.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := s.apiBase + endpoint

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: spotify rate limit hit (retry-after %s)", shared.ErrAPIRequest, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify returned %d: %s", shared.ErrAPIRequest, resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Search runs a track search and returns the raw provider objects.
func (s *SpotifyService) Search(ctx context.Context, query string, limit int) ([]SpotifyTrack, error) {
	if limit <= 0 || limit > spotifySearchLimit {
		limit = spotifySearchLimit
	}

	params := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(limit)},
	}

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks.Items, nil
}

// TrackAudioFeatures fetches analysis attributes for up to 100 track IDs.
// Tracks the provider has no analysis for come back as null and are skipped.
func (s *SpotifyService) TrackAudioFeatures(ctx context.Context, trackIDs []string) ([]SpotifyAudioFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	if len(trackIDs) > spotifyFeatureBatch {
		return nil, fmt.Errorf("%w: at most %d track IDs per audio-features request", shared.ErrInvalidArgument, spotifyFeatureBatch)
	}

	params := url.Values{"ids": {strings.Join(trackIDs, ",")}}

	var response struct {
		AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/audio-features?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	features := make([]SpotifyAudioFeatures, 0, len(response.AudioFeatures))
	for _, f := range response.AudioFeatures {
		if f != nil {
			features = append(features, *f)
		}
	}
	return features, nil
}

// MusicService interface implementation

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*UserProfile, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, err
	}
	return &UserProfile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Product:     user.Product,
	}, nil
}

// SearchTracks runs a free-text track search.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	items, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		track := models.Track{
			ID:   item.ID,
			URI:  item.URI,
			Name: item.Name,
		}
		for _, artist := range item.Artists {
			track.Artists = append(track.Artists, artist.Name)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// AudioFeatures fetches tempo/energy/valence keyed by track ID.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error) {
	raw, err := s.TrackAudioFeatures(ctx, trackIDs)
	if err != nil {
		return nil, err
	}

	features := make(map[string]models.AudioFeatures, len(raw))
	for _, f := range raw {
		features[f.ID] = models.AudioFeatures{
			Tempo:   f.Tempo,
			Energy:  f.Energy,
			Valence: f.Valence,
		}
	}
	return features, nil
}

// CreatePlaylist creates an empty playlist owned by the given user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*PlaylistRef, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id for playlist creation", shared.ErrInvalidArgument)
	}

	body := map[string]interface{}{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}

	ref := &PlaylistRef{
		ID:     playlist.ID,
		Name:   playlist.Name,
		URL:    playlist.ExternalURLs.Spotify,
		Public: playlist.Public,
	}
	if ref.URL == "" {
		ref.URL = "https://open.spotify.com/playlist/" + playlist.ID
	}
	return ref, nil
}

// AddTracks appends track URIs to a playlist, 100 per request.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	for start := 0; start < len(uris); start += spotifyTrackBatch {
		end := start + spotifyTrackBatch
		if end > len(uris) {
			end = len(uris)
		}
		body := map[string]interface{}{"uris": uris[start:end]}
		endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
		if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return fmt.Errorf("failed to add tracks %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// UploadCover replaces the playlist cover image. Spotify wants the JPEG
// bytes base64-encoded in the request body, capped at 256KB encoded.
func (s *SpotifyService) UploadCover(ctx context.Context, playlistID string, jpeg []byte) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	encoded := base64.StdEncoding.EncodeToString(jpeg)
	if len(encoded) > spotifyCoverMaxBase64 {
		return fmt.Errorf("%w: encoded cover image is %d bytes, limit %d", shared.ErrInvalidArgument, len(encoded), spotifyCoverMaxBase64)
	}

	endpoint := fmt.Sprintf("%s/playlists/%s/images", s.apiBase, url.PathEscape(playlistID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: cover upload returned %d: %s", shared.ErrAPIRequest, resp.StatusCode, respBody)
	}
	return nil
}
