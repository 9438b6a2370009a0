package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	// .env is optional; environment values override config.toml either way
	_ = godotenv.Load()

	configPath := defaultConfigPath
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to parse config, using defaults", "error", err)
		}
	}
	config.ApplyEnv()

	if level, err := log.ParseLevel(config.General.LogLevel); err == nil {
		shared.SetLogLevel(logger, level)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Activity:   buildStrava(config, logger),
		Weather:    services.NewOpenMeteoService(),
		Music:      buildSpotify(config, logger),
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "cadence",
		Usage:    "Generate running playlists from your training data",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrInsufficientData) {
			logger.Warnf("%v", err)
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// buildStrava constructs the activity client when credentials are configured.
// A nil return leaves sync and import-only workflows available.
func buildStrava(config *shared.Config, logger *log.Logger) services.ActivityService {
	creds := config.Credentials.Strava
	if creds.ClientID == "" || creds.ClientSecret == "" {
		logger.Debug("strava credentials missing, activity sync disabled")
		return nil
	}

	svc, err := services.NewStravaService(map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"redirect_uri":  creds.RedirectURI,
		"refresh_token": creds.RefreshToken,
	}, config.DataPath("strava_token.json"))
	if err != nil {
		logger.Warn("failed to build strava client", "error", err)
		return nil
	}
	return svc
}

// buildSpotify constructs the streaming client when credentials are configured.
func buildSpotify(config *shared.Config, logger *log.Logger) services.MusicService {
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		logger.Debug("spotify credentials missing, playlist generation disabled")
		return nil
	}

	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"redirect_uri":  creds.RedirectURI,
		"refresh_token": creds.RefreshToken,
	}, config.DataPath("spotify_token.json"))
	if err != nil {
		logger.Warn("failed to build spotify client", "error", err)
		return nil
	}
	return svc
}
