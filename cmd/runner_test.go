package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	tu "github.com/desertthunder/cadence/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			activity := &tu.MockActivityService{}
			weather := &tu.MockWeatherService{}
			music := &tu.MockMusicService{}

			runner := NewRunner(RunnerOpts{
				Config:   config,
				Logger:   logger,
				Output:   output,
				Activity: activity,
				Weather:  weather,
				Music:    music,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.activity != activity {
				t.Error("expected activity service to be set")
			}
			if runner.weather != weather {
				t.Error("expected weather service to be set")
			}
			if runner.music != music {
				t.Error("expected music service to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("buildEngine", func(t *testing.T) {
		t.Run("fails without a music service", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			_, err := runner.buildEngine(nil, nil)
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})

		t.Run("fails when the model strategy has no artifact", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.General.DataDir = t.TempDir()
			config.Recommender.Strategy = "model"

			runner := NewRunner(RunnerOpts{
				Config: config,
				Music:  &tu.MockMusicService{},
			})

			_, err := runner.buildEngine(nil, nil)
			if !errors.Is(err, shared.ErrMissingModel) {
				t.Errorf("expected ErrMissingModel, got %v", err)
			}
		})

		t.Run("builds with the rules strategy", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Music: &tu.MockMusicService{}})

			engine, err := runner.buildEngine(nil, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if engine == nil {
				t.Fatal("expected an engine")
			}
		})
	})

	t.Run("persistRefreshToken", func(t *testing.T) {
		t.Run("writes the token back to config.toml", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			if err := shared.SaveConfig(config, configPath); err != nil {
				t.Fatalf("failed to create test config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath})
			runner.persistRefreshToken("spotify", "fresh_refresh")

			loaded, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.RefreshToken != "fresh_refresh" {
				t.Errorf("expected refresh token persisted, got %q", loaded.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("updates in memory with no config path", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: ""})

			runner.persistRefreshToken("strava", "strava_refresh")

			if config.Credentials.Strava.RefreshToken != "strava_refresh" {
				t.Error("expected in-memory config to be updated")
			}
		})
	})

	t.Run("reportGeneration", func(t *testing.T) {
		t.Run("explains an insufficient outcome", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			result := &tasks.GenerationResult{
				Target:  models.MusicTarget{Tempo: 165},
				Outcome: tasks.SelectionOutcome{Status: tasks.SelectionInsufficient, Candidates: 12},
			}

			if err := runner.reportGeneration(result, false, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			got := output.String()
			if !strings.Contains(got, "Not enough matching tracks") {
				t.Errorf("expected insufficiency notice, got %s", got)
			}
			if !strings.Contains(got, "165 BPM") {
				t.Errorf("expected target BPM in output, got %s", got)
			}
		})

		t.Run("renders a created playlist", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			result := &tasks.GenerationResult{
				Target:  models.MusicTarget{Tempo: 160, Energy: 0.6, Valence: 0.5},
				Outcome: tasks.SelectionOutcome{Status: tasks.SelectionOK, Relaxed: true},
				Metadata: &models.PlaylistMetadata{
					PlaylistID: "pl1",
					Title:      "Cadence - Steady Run",
					Target:     models.MusicTarget{Tempo: 160, Energy: 0.6, Valence: 0.5},
					TrackCount: 18,
				},
			}

			if err := runner.reportGeneration(result, false, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			got := output.String()
			if !strings.Contains(got, "Cadence - Steady Run") {
				t.Errorf("expected playlist title, got %s", got)
			}
			if !strings.Contains(got, "tolerances were relaxed") {
				t.Errorf("expected relaxation note, got %s", got)
			}
		})

		t.Run("emits JSON when asked", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			result := &tasks.GenerationResult{
				Strategy: "rules",
				Outcome:  tasks.SelectionOutcome{Status: tasks.SelectionInsufficient},
			}

			if err := runner.reportGeneration(result, true, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), `"rules"`) {
				t.Errorf("expected JSON output, got %s", output.String())
			}
		})
	})

	t.Run("intentOf", func(t *testing.T) {
		if intent, err := intentOf("fast"); err != nil || intent != models.IntentFast {
			t.Errorf("expected fast intent, got %v (%v)", intent, err)
		}
		if intent, err := intentOf(""); err != nil || intent != models.IntentSteady {
			t.Errorf("expected steady default, got %v (%v)", intent, err)
		}
		if _, err := intentOf("sprint"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestPrepareCover(t *testing.T) {
	t.Run("rejects non-image input", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cover.jpg")
		if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}

		if _, err := prepareCover(path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects a missing file", func(t *testing.T) {
		if _, err := prepareCover(filepath.Join(t.TempDir(), "missing.png")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
