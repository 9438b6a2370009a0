package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/features"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
)

// Sync refreshes the run history snapshots, optionally on a cron schedule.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if r.activity == nil {
		return fmt.Errorf("%w: Strava client not initialized (check credentials)", shared.ErrServiceUnavailable)
	}

	opts := tasks.SyncOpts{
		MaxRuns: int(cmd.Int("max-runs")),
		Weather: r.config.Sync.Weather && !cmd.Bool("no-weather"),
	}
	if opts.MaxRuns == 0 {
		opts.MaxRuns = r.config.Sync.MaxRuns
	}

	if cmd.Bool("daemon") {
		if schedule := cmd.String("schedule"); schedule != "" {
			r.config.Sync.Schedule = schedule
		}
		return r.syncDaemon(ctx, opts)
	}
	return r.syncOnce(ctx, opts)
}

func (r *Runner) syncOnce(ctx context.Context, opts tasks.SyncOpts) error {
	if err := r.activity.Authenticate(ctx, nil); err != nil {
		return fmt.Errorf("strava authentication failed: %w", err)
	}

	store, err := r.snapshots()
	if err != nil {
		return err
	}

	// mirror failures only cost the queryable copy, never the sync
	var mirror tasks.RunMirror
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("database mirror unavailable", "error", err)
	} else {
		defer db.Close()
		if err := shared.RunMigrations(db); err != nil {
			r.logger.Warn("database migrations failed, mirror disabled", "error", err)
		} else {
			mirror = repositories.NewRunRepository(db)
		}
	}

	deriver := features.NewDeriver(features.DefaultDeriverConfig())
	engine := tasks.NewSyncEngine(r.activity, r.weather, deriver, store, mirror, r.logger)

	prog, wg := r.consumeProgress()
	result, err := engine.Sync(ctx, prog, opts)
	close(prog)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlain("✓ Synced %d runs (%d with weather, %d feature sets)\n", result.Runs, result.WeatherHits, result.Features)
	r.writePlain("Snapshots written to %s\n", store.Dir())
	return nil
}

// syncDaemon runs an immediate sync and then repeats on the configured
// cron schedule until the context is cancelled.
func (r *Runner) syncDaemon(ctx context.Context, opts tasks.SyncOpts) error {
	schedule := r.config.Sync.Schedule
	if schedule == "" {
		schedule = "@hourly"
	}

	if err := r.syncOnce(ctx, opts); err != nil {
		r.logger.Error("initial sync failed", "error", err)
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := r.syncOnce(ctx, opts); err != nil {
			r.logger.Error("scheduled sync failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: invalid sync schedule %q: %v", shared.ErrInvalidConfig, schedule, err)
	}

	r.logger.Info("sync daemon started", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
