package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "cadence.db" {
			t.Errorf("expected database path cadence.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8484 {
			t.Errorf("expected server port 8484, got %d", config.Server.Port)
		}

		if config.Recommender.Strategy != "rules" {
			t.Errorf("expected rules strategy, got %s", config.Recommender.Strategy)
		}

		if config.Sync.Schedule != "@hourly" {
			t.Errorf("expected @hourly sync schedule, got %s", config.Sync.Schedule)
		}

		if !config.Sync.Weather {
			t.Error("expected weather enrichment enabled by default")
		}

		if len(config.Recommender.PreferredGenres) == 0 {
			t.Error("expected default preferred genres")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[general]
data_dir = "/var/lib/cadence"
log_level = "debug"

[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 9090

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:9090/callback/spotify"

[credentials.strava]
client_id = "12345"
client_secret = "strava_secret"

[recommender]
strategy = "model"
model_path = "custom_model.json"
max_tracks = 20
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 9090 {
			t.Errorf("expected server port 9090, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.Strava.ClientSecret != "strava_secret" {
			t.Errorf("expected strava secret, got %s", config.Credentials.Strava.ClientSecret)
		}

		if config.Recommender.MaxTracks != 20 {
			t.Errorf("expected max_tracks 20, got %d", config.Recommender.MaxTracks)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Credentials.Strava.RefreshToken = "round_trip_token"

		if err := SaveConfig(config, configPath); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if loaded.Credentials.Strava.RefreshToken != "round_trip_token" {
			t.Errorf("expected refresh token to survive round trip, got %q", loaded.Credentials.Strava.RefreshToken)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_client_id")
		t.Setenv("STRAVA_REFRESH_TOKEN", "env_refresh")
		t.Setenv("DATA_DIR", "/tmp/cadence-env")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_client_id" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Strava.RefreshToken != "env_refresh" {
			t.Errorf("expected env refresh token, got %s", config.Credentials.Strava.RefreshToken)
		}
		if config.General.DataDir != "/tmp/cadence-env" {
			t.Errorf("expected env data dir, got %s", config.General.DataDir)
		}
	})

	t.Run("DataDir", func(t *testing.T) {
		t.Run("falls back when unset", func(t *testing.T) {
			config := &Config{}
			if config.DataDir() != "./data" {
				t.Errorf("expected ./data fallback, got %s", config.DataDir())
			}
		})

		t.Run("expands home prefix", func(t *testing.T) {
			config := &Config{}
			config.General.DataDir = "~/cadence"

			home, err := os.UserHomeDir()
			if err != nil {
				t.Skipf("no home directory: %v", err)
			}
			if got := config.DataDir(); got != filepath.Join(home, "cadence") {
				t.Errorf("expected home expansion, got %s", got)
			}
		})

		t.Run("joins data paths", func(t *testing.T) {
			config := &Config{}
			config.General.DataDir = "/data"
			if got := config.DataPath("runs.json"); got != "/data/runs.json" {
				t.Errorf("expected /data/runs.json, got %s", got)
			}
		})
	})

	t.Run("CallbackAddr", func(t *testing.T) {
		config := &Config{}
		if config.CallbackAddr() != "127.0.0.1:8484" {
			t.Errorf("expected default callback addr, got %s", config.CallbackAddr())
		}

		config.Server.Host = "0.0.0.0"
		config.Server.Port = 3000
		if config.CallbackAddr() != "0.0.0.0:3000" {
			t.Errorf("expected configured callback addr, got %s", config.CallbackAddr())
		}
	})
}
