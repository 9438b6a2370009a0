package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheInfo shows mirrored-run and audio-feature counts.
func (r *Runner) CacheInfo(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	runs, err := repositories.NewRunRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	features, err := repositories.NewAudioFeatureRepository(db).Count(ctx)
	if err != nil {
		return err
	}

	r.writePlainHeader("Cache")
	r.writePlain("Database:       %s\n", r.dataPath(r.config.Database.Path))
	r.writePlain("Mirrored runs:  %d\n", runs)
	r.writePlain("Audio features: %d\n", features)
	return nil
}

// CacheClear deletes mirrored runs and/or cached audio features. With no
// flags both are cleared. Snapshots are untouched; a sync rebuilds the mirror.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	clearRuns := cmd.Bool("runs")
	clearFeatures := cmd.Bool("features")
	if !clearRuns && !clearFeatures {
		clearRuns, clearFeatures = true, true
	}

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if clearRuns {
		if err := repositories.NewRunRepository(db).Clear(ctx); err != nil {
			return err
		}
		r.writePlain("✓ Cleared mirrored runs\n")
	}
	if clearFeatures {
		if err := repositories.NewAudioFeatureRepository(db).Clear(ctx); err != nil {
			return err
		}
		r.writePlain("✓ Cleared audio-feature cache\n")
	}
	return nil
}
