package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	General     GeneralConfig     `toml:"general"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Recommender RecommenderConfig `toml:"recommender"`
	Sync        SyncConfig        `toml:"sync"`
}

// GeneralConfig contains application-wide settings.
type GeneralConfig struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`

	// Usual running location, used for weather forecasts on planned runs.
	HomeLat float64 `toml:"home_lat"`
	HomeLon float64 `toml:"home_lon"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Strava  StravaConfig  `toml:"strava"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	RefreshToken string `toml:"refresh_token"`
}

// StravaConfig contains Strava API credentials.
type StravaConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	RefreshToken string `toml:"refresh_token"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RecommenderConfig contains playlist generation settings.
type RecommenderConfig struct {
	Strategy        string   `toml:"strategy"`
	ModelPath       string   `toml:"model_path"`
	PreferredGenres []string `toml:"preferred_genres"`
	MaxTracks       int      `toml:"max_tracks"`
	MinCandidates   int      `toml:"min_candidates"`
	PublicPlaylists bool     `toml:"public_playlists"`
	DisableFilter   bool     `toml:"disable_filter"`
	RateLimit       float64  `toml:"rate_limit"`
}

// SyncConfig contains activity sync settings.
type SyncConfig struct {
	MaxRuns  int    `toml:"max_runs"`
	Schedule string `toml:"schedule"`
	Weather  bool   `toml:"weather"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration back to the specified path as TOML.
// Used after OAuth flows to persist refresh tokens.
func SaveConfig(config *Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// ApplyEnv overrides credential fields from environment variables when set.
// Variable names match the original dotenv convention so an existing .env
// keeps working.
func (c *Config) ApplyEnv() {
	overrides := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  &c.Credentials.Spotify.RedirectURI,
		"SPOTIFY_REFRESH_TOKEN": &c.Credentials.Spotify.RefreshToken,
		"STRAVA_CLIENT_ID":      &c.Credentials.Strava.ClientID,
		"STRAVA_CLIENT_SECRET":  &c.Credentials.Strava.ClientSecret,
		"STRAVA_REFRESH_TOKEN":  &c.Credentials.Strava.RefreshToken,
	}

	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		c.General.DataDir = v
	}
}

// DataDir returns the configured data directory with a ~ prefix expanded,
// falling back to ./data when unset.
func (c *Config) DataDir() string {
	dir := c.General.DataDir
	if dir == "" {
		dir = "./data"
	}

	if len(dir) > 1 && dir[0] == '~' && dir[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}

	return dir
}

// DataPath joins the data directory with the given file name.
func (c *Config) DataPath(name string) string {
	return filepath.Join(c.DataDir(), name)
}

// CallbackAddr returns the host:port the OAuth callback server listens on.
func (c *Config) CallbackAddr() string {
	host := c.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8484
	}
	return host + ":" + strconv.Itoa(port)
}
