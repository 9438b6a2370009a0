package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/cadence/internal/shared"
)

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://localhost:9999/callback",
			}

			srv, err := NewSpotifyService(credentials, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.config.RedirectURL != "http://localhost:9999/callback" {
				t.Errorf("redirect URI not applied, got %s", srv.config.RedirectURL)
			}
			if len(srv.config.Scopes) == 0 {
				t.Error("expected playlist scopes to be configured")
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "x"}, "")
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "x"}, "")
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Interface", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}, "")
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}
			var _ MusicService = srv
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		srv := newTestSpotify(t, "", "")
		authURL := srv.GetAuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify accounts domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
		if !strings.Contains(authURL, "access_type=offline") {
			t.Error("auth URL should request offline access")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("With Access Token", func(t *testing.T) {
			srv := newTestSpotify(t, "", "")
			err := srv.Authenticate(context.Background(), map[string]string{"access_token": "static_token"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.token == nil || srv.token.AccessToken != "static_token" {
				t.Errorf("expected static token to be set, got %+v", srv.token)
			}
		})

		t.Run("No Refresh Token", func(t *testing.T) {
			srv := newTestSpotify(t, "", "")
			err := srv.Authenticate(context.Background(), nil)
			if !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
		})

		t.Run("Keeps Refresh Token Across Refresh", func(t *testing.T) {
			// Spotify omits refresh_token from refresh responses; the one
			// that bought the refresh must survive for the next invocation
			accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/token" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"fresh_token","token_type":"Bearer","expires_in":3600}`)
			}))
			defer accounts.Close()

			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"refresh_token": "long_lived_refresh",
				"accounts_base": accounts.URL,
			}
			srv, err := NewSpotifyService(credentials, "")
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}

			if err := srv.Authenticate(context.Background(), nil); err != nil {
				t.Fatalf("expected refresh to succeed, got %v", err)
			}
			if srv.token.AccessToken != "fresh_token" {
				t.Errorf("expected refreshed access token, got %s", srv.token.AccessToken)
			}
			if srv.token.RefreshToken != "long_lived_refresh" {
				t.Errorf("refresh token lost: %q", srv.token.RefreshToken)
			}
		})
	})

	t.Run("CurrentUser", func(t *testing.T) {
		server := newSpotifyAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"id": "runner42", "display_name": "Test Runner", "email": "run@example.com", "product": "premium"}`)
		})
		defer server.Close()

		srv := newAuthedSpotify(t, server.URL)
		user, err := srv.CurrentUser(context.Background())
		if err != nil {
			t.Fatalf("CurrentUser returned error: %v", err)
		}
		if user.ID != "runner42" || user.DisplayName != "Test Runner" || user.Product != "premium" {
			t.Errorf("profile not mapped: %+v", user)
		}
	})

	t.Run("SearchTracks", func(t *testing.T) {
		server := newSpotifyAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("type") != "track" {
				t.Errorf("type = %s, want track", q.Get("type"))
			}
			if q.Get("q") != "running playlist" {
				t.Errorf("q = %s", q.Get("q"))
			}
			if q.Get("limit") != "20" {
				t.Errorf("limit = %s, want 20", q.Get("limit"))
			}
			fmt.Fprint(w, `{"tracks": {"items": [
				{"id": "t1", "name": "Song One", "uri": "spotify:track:t1",
				 "artists": [{"name": "Artist A"}, {"name": "Artist B"}]},
				{"id": "", "name": "Local File", "uri": ""},
				{"id": "t2", "name": "Song Two", "uri": "spotify:track:t2",
				 "artists": [{"name": "Artist C"}]}
			]}}`)
		})
		defer server.Close()

		srv := newAuthedSpotify(t, server.URL)
		tracks, err := srv.SearchTracks(context.Background(), "running playlist", 20)
		if err != nil {
			t.Fatalf("SearchTracks returned error: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks (empty id skipped), got %d", len(tracks))
		}
		if tracks[0].ID != "t1" || tracks[0].Name != "Song One" {
			t.Errorf("unexpected first track: %+v", tracks[0])
		}
		if got := tracks[0].ArtistLine(); got != "Artist A, Artist B" {
			t.Errorf("artists not flattened: %s", got)
		}
	})

	t.Run("AudioFeatures", func(t *testing.T) {
		t.Run("Skips Null Entries", func(t *testing.T) {
			server := newSpotifyAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/audio-features" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.URL.Query().Get("ids") != "t1,t2,t3" {
					t.Errorf("ids = %s", r.URL.Query().Get("ids"))
				}
				fmt.Fprint(w, `{"audio_features": [
					{"id": "t1", "tempo": 170.2, "energy": 0.82, "valence": 0.6},
					null,
					{"id": "t3", "tempo": 128.0, "energy": 0.55, "valence": 0.4}
				]}`)
			})
			defer server.Close()

			srv := newAuthedSpotify(t, server.URL)
			features, err := srv.AudioFeatures(context.Background(), []string{"t1", "t2", "t3"})
			if err != nil {
				t.Fatalf("AudioFeatures returned error: %v", err)
			}
			if len(features) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(features))
			}
			if f := features["t1"]; f.Tempo != 170.2 || f.Energy != 0.82 {
				t.Errorf("t1 features not mapped: %+v", f)
			}
			if _, ok := features["t2"]; ok {
				t.Error("null entry should be skipped")
			}
		})

		t.Run("Rejects Oversized Batch", func(t *testing.T) {
			srv := newAuthedSpotify(t, "http://unused.invalid")
			ids := make([]string, 101)
			for i := range ids {
				ids[i] = fmt.Sprintf("t%d", i)
			}
			_, err := srv.AudioFeatures(context.Background(), ids)
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for 101 ids, got %v", err)
			}
		})
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		t.Run("Uses Provider URL", func(t *testing.T) {
			server := newSpotifyAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/users/runner42/playlists" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				var body map[string]interface{}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body["name"] != "Morning Tempo" || body["public"] != true {
					t.Errorf("unexpected body: %v", body)
				}
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"id": "pl1", "name": "Morning Tempo", "public": true,
					"external_urls": {"spotify": "https://open.spotify.com/playlist/pl1"}}`)
			})
			defer server.Close()

			srv := newAuthedSpotify(t, server.URL)
			ref, err := srv.CreatePlaylist(context.Background(), "runner42", "Morning Tempo", "desc", true)
			if err != nil {
				t.Fatalf("CreatePlaylist returned error: %v", err)
			}
			if ref.ID != "pl1" || ref.URL != "https://open.spotify.com/playlist/pl1" {
				t.Errorf("unexpected ref: %+v", ref)
			}
		})

		t.Run("Builds URL When Response Omits It", func(t *testing.T) {
			server := newSpotifyAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"id": "pl2", "name": "Evening Easy"}`)
			})
			defer server.Close()

			srv := newAuthedSpotify(t, server.URL)
			ref, err := srv.CreatePlaylist(context.Background(), "runner42", "Evening Easy", "", false)
			if err != nil {
				t.Fatalf("CreatePlaylist returned error: %v", err)
			}
			if ref.URL != "https://open.spotify.com/playlist/pl2" {
				t.Errorf("URL fallback not applied: %s", ref.URL)
			}
		})

		t.Run("Missing User ID", func(t *testing.T) {
			srv := newAuthedSpotify(t, "http://unused.invalid")
			_, err := srv.CreatePlaylist(context.Background(), "", "name", "", true)
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("AddTracks Batches Requests", func(t *testing.T) {
		var batchSizes []int
		server := newSpotifyAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/pl1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				URIs []string `json:"uris"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			batchSizes = append(batchSizes, len(body.URIs))
			fmt.Fprint(w, `{"snapshot_id": "abc"}`)
		})
		defer server.Close()

		uris := make([]string, 250)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:t%d", i)
		}

		srv := newAuthedSpotify(t, server.URL)
		if err := srv.AddTracks(context.Background(), "pl1", uris); err != nil {
			t.Fatalf("AddTracks returned error: %v", err)
		}
		if len(batchSizes) != 3 || batchSizes[0] != 100 || batchSizes[1] != 100 || batchSizes[2] != 50 {
			t.Errorf("batch sizes = %v, want [100 100 50]", batchSizes)
		}
	})

	t.Run("UploadCover", func(t *testing.T) {
		t.Run("Sends Base64 JPEG", func(t *testing.T) {
			jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0x03}
			server := newSpotifyAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut {
					t.Errorf("method = %s, want PUT", r.Method)
				}
				if r.URL.Path != "/playlists/pl1/images" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
					t.Errorf("content type = %s, want image/jpeg", ct)
				}
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("failed to read body: %v", err)
				}
				decoded, err := base64.StdEncoding.DecodeString(string(raw))
				if err != nil {
					t.Fatalf("body is not valid base64: %v", err)
				}
				if string(decoded) != string(jpeg) {
					t.Error("decoded body does not match uploaded image")
				}
				w.WriteHeader(http.StatusAccepted)
			})
			defer server.Close()

			srv := newAuthedSpotify(t, server.URL)
			if err := srv.UploadCover(context.Background(), "pl1", jpeg); err != nil {
				t.Fatalf("UploadCover returned error: %v", err)
			}
		})

		t.Run("Rejects Oversized Image", func(t *testing.T) {
			srv := newAuthedSpotify(t, "http://unused.invalid")
			big := make([]byte, 256*1024)
			err := srv.UploadCover(context.Background(), "pl1", big)
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for oversized cover, got %v", err)
			}
		})
	})

	t.Run("Expired Token Maps To Sentinel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		srv := newAuthedSpotify(t, server.URL)
		_, err := srv.CurrentUser(context.Background())
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired on 401, got %v", err)
		}
	})

	t.Run("Requires Authentication", func(t *testing.T) {
		srv := newTestSpotify(t, "", "")
		_, err := srv.CurrentUser(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func newTestSpotify(t *testing.T, apiBase, accountsBase string) *SpotifyService {
	t.Helper()
	credentials := map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	}
	if apiBase != "" {
		credentials["api_base"] = apiBase
	}
	if accountsBase != "" {
		credentials["accounts_base"] = accountsBase
	}
	srv, err := NewSpotifyService(credentials, "")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv
}

func newAuthedSpotify(t *testing.T, apiBase string) *SpotifyService {
	t.Helper()
	srv := newTestSpotify(t, apiBase, "")
	if err := srv.Authenticate(context.Background(), map[string]string{"access_token": "static_token"}); err != nil {
		t.Fatalf("auth failed: %v", err)
	}
	return srv
}

func newSpotifyAPIServer(t *testing.T, handler func(http.ResponseWriter, *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer static_token" {
			t.Errorf("missing bearer token, got %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
}

