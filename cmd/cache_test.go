package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	config := shared.DefaultConfig()
	config.General.DataDir = t.TempDir()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(io.Discard),
		Output: output,
	})
	return runner, output
}

func runCommand(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "cadence", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"cadence"}, args...))
}

func TestCacheCommands(t *testing.T) {
	t.Run("info reports cached counts", func(t *testing.T) {
		runner, output := newTestRunner(t)

		db, err := runner.openDatabase()
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if err := repositories.NewAudioFeatureRepository(db).Store(map[string]models.AudioFeatures{
			"track1": {Tempo: 165, Energy: 0.8, Valence: 0.6},
		}); err != nil {
			t.Fatalf("failed to seed cache: %v", err)
		}
		db.Close()

		if err := runCommand(t, runner, "cache", "info"); err != nil {
			t.Fatalf("cache info failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Audio features: 1") {
			t.Errorf("expected audio-feature count, got %s", got)
		}
		if !strings.Contains(got, "Mirrored runs:  0") {
			t.Errorf("expected run count, got %s", got)
		}
	})

	t.Run("clear empties the feature cache", func(t *testing.T) {
		runner, output := newTestRunner(t)

		db, err := runner.openDatabase()
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		repo := repositories.NewAudioFeatureRepository(db)
		if err := repo.Store(map[string]models.AudioFeatures{
			"track1": {Tempo: 150, Energy: 0.5, Valence: 0.5},
		}); err != nil {
			t.Fatalf("failed to seed cache: %v", err)
		}

		if err := runCommand(t, runner, "cache", "clear", "--features"); err != nil {
			t.Fatalf("cache clear failed: %v", err)
		}
		if !strings.Contains(output.String(), "Cleared audio-feature cache") {
			t.Errorf("expected clear confirmation, got %s", output.String())
		}

		count, err := repo.Count(context.Background())
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected empty cache, got %d rows", count)
		}
		db.Close()
	})
}

func TestPlaylistLatestCommand(t *testing.T) {
	t.Run("renders the latest snapshot", func(t *testing.T) {
		runner, output := newTestRunner(t)

		store, err := runner.snapshots()
		if err != nil {
			t.Fatalf("failed to open snapshot store: %v", err)
		}
		if err := store.SaveLatestPlaylist(models.PlaylistMetadata{
			PlaylistID: "pl123",
			URL:        "https://open.example.com/playlist/pl123",
			Title:      "Cadence - Tempo Run | 5:30/km | 10.0km @ 165 BPM",
			Strategy:   "rules",
			Target:     models.MusicTarget{Tempo: 165, Energy: 0.75, Valence: 0.65},
			TrackCount: 24,
			CreatedAt:  time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("failed to seed latest playlist: %v", err)
		}

		if err := runCommand(t, runner, "playlist", "latest"); err != nil {
			t.Fatalf("playlist latest failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Cadence - Tempo Run") {
			t.Errorf("expected playlist title, got %s", got)
		}
		if !strings.Contains(got, "Tracks: 24") {
			t.Errorf("expected track count, got %s", got)
		}
	})

	t.Run("fails without a snapshot", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		if err := runCommand(t, runner, "playlist", "latest"); err == nil {
			t.Error("expected an error with no generated playlist")
		}
	})
}
