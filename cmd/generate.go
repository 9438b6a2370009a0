package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Generate builds a playlist from a synced run, by ID or the most recent.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticateMusic(ctx); err != nil {
		return err
	}

	store, err := r.snapshots()
	if err != nil {
		return err
	}
	runs, err := store.LoadRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("%w: run history is empty", shared.ErrInsufficientData)
	}

	sets, err := store.LoadFeatures()
	if err != nil {
		r.logger.Warn("no feature snapshot, training-load analysis will be thin", "error", err)
		sets = nil
	}

	run := runs[0]
	if runID := cmd.Int64("run"); runID != 0 {
		found := false
		for _, candidate := range runs {
			if candidate.ID == runID {
				run, found = candidate, true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: run %d is not in the synced history", shared.ErrRunNotFound, runID)
		}
	}
	r.logger.Info("generating playlist", "run", run.Name, "distance_km", run.DistanceKm())

	if strategy := cmd.String("strategy"); strategy != "" {
		r.config.Recommender.Strategy = strategy
	}
	if genres := cmd.StringSlice("genres"); len(genres) > 0 {
		r.config.Recommender.PreferredGenres = genres
	}

	cache, closeCache := r.openFeatureCache()
	defer closeCache()

	engine, err := r.buildEngine(cache, store)
	if err != nil {
		return err
	}

	prog, wg := r.consumeProgress()
	result, err := engine.Generate(ctx, prog, run, runs, sets)
	close(prog)
	wg.Wait()
	if err != nil {
		return err
	}

	return r.reportGeneration(result, cmd.Bool("json"), cmd.Bool("open"))
}

// authenticateMusic ensures the streaming session is live before a pipeline run.
func (r *Runner) authenticateMusic(ctx context.Context) error {
	if r.music == nil {
		return fmt.Errorf("%w: Spotify service not initialized (check credentials)", shared.ErrServiceUnavailable)
	}
	if err := r.music.Authenticate(ctx, nil); err != nil {
		return fmt.Errorf("spotify authentication failed: %w", err)
	}
	return nil
}

// openFeatureCache opens the audio-feature cache best-effort. Generation
// works without it, it just refetches features the provider already served.
func (r *Runner) openFeatureCache() (tasks.FeatureCache, func()) {
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("audio-feature cache unavailable", "error", err)
		return nil, func() {}
	}
	if err := shared.RunMigrations(db); err != nil {
		r.logger.Warn("database migrations failed, cache disabled", "error", err)
		db.Close()
		return nil, func() {}
	}
	return repositories.NewAudioFeatureRepository(db), func() { db.Close() }
}

// reportGeneration prints the outcome of any generation flow.
func (r *Runner) reportGeneration(result *tasks.GenerationResult, asJSON, open bool) error {
	if asJSON {
		return r.writeJSON(result, true)
	}

	if result.Insufficient() {
		r.writePlain("✗ Not enough matching tracks to build a playlist\n")
		r.writePlain("  %d candidates, none within tolerances of %d BPM\n", result.Outcome.Candidates, result.Target.Tempo)
		r.writePlain("  Broaden [recommender] preferred_genres or set disable_filter = true.\n")
		return nil
	}

	text, err := formatter.ExportPlaylistText(*result.Metadata)
	if err != nil {
		return err
	}
	r.writePlain("✓ Playlist created\n\n%s", text)
	if result.Outcome.Relaxed {
		r.writePlain("Note: tolerances were relaxed to fill the playlist.\n")
	}
	if a := result.Analysis; a.FatigueLevel != "" && a.RecentRunsCount > 0 {
		r.writePlain("Training load: %s (%.1f km this week over %d runs)\n",
			a.FatigueLevel, a.WeeklyLoadKm, a.RecentRunsCount)
	}

	if open && result.Playlist != nil && result.Playlist.URL != "" {
		if err := shared.OpenBrowser(result.Playlist.URL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}
	return nil
}

// intentOf parses the intent argument shared by the quick flow.
func intentOf(arg string) (models.Intent, error) {
	intent, err := models.ParseIntent(arg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return intent, nil
}
