package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Plan builds a playlist for a run that has not happened yet.
func (r *Runner) Plan(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticateMusic(ctx); err != nil {
		return err
	}

	pace, err := tasks.ParsePace(cmd.String("pace"))
	if err != nil {
		return err
	}

	spec := tasks.PlanSpec{
		PaceMinKm:  pace,
		DistanceKm: cmd.Float64("distance"),
	}

	if raw := cmd.String("type"); raw != "" {
		runType, err := models.ParseRunType(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		spec.RunType = runType
	}

	if raw := cmd.String("time-of-day"); raw != "" {
		tod, err := models.ParseTimeOfDay(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		spec.TimeOfDay = tod
	}

	if cmd.IsSet("temp") {
		temp := cmd.Float64("temp")
		spec.TempC = &temp
	} else if cmd.Bool("forecast") {
		if temp, ok := r.forecastTemp(ctx); ok {
			spec.TempC = &temp
		}
	}

	// feature history is optional for a plan; defaults fill the gaps
	var sets []models.FeatureSet
	if store, err := r.snapshots(); err == nil {
		if loaded, err := store.LoadFeatures(); err == nil {
			sets = loaded
		}
	}

	cache, closeCache := r.openFeatureCache()
	defer closeCache()

	var snaps tasks.SnapshotWriter
	if store, err := r.snapshots(); err == nil {
		snaps = store
	}

	engine, err := r.buildEngine(cache, snaps)
	if err != nil {
		return err
	}

	prog, wg := r.consumeProgress()
	result, err := engine.GeneratePlanned(ctx, prog, spec, sets)
	close(prog)
	wg.Wait()
	if err != nil {
		return err
	}

	return r.reportGeneration(result, cmd.Bool("json"), false)
}

// forecastTemp pulls the current forecast at the configured home location.
// Any failure degrades to the plan defaults.
func (r *Runner) forecastTemp(ctx context.Context) (float64, bool) {
	lat, lon := r.config.General.HomeLat, r.config.General.HomeLon
	if r.weather == nil || (lat == 0 && lon == 0) {
		r.logger.Warn("forecast requested but no weather service or home location configured")
		return 0, false
	}

	snap, err := r.weather.SnapshotAt(ctx, lat, lon, time.Now())
	if err != nil || snap == nil {
		r.logger.Warn("forecast lookup failed, using default temperature", "error", err)
		return 0, false
	}

	r.logger.Info("forecast", "temp_c", snap.TemperatureC, "humidity_pct", snap.HumidityPct)
	return snap.TemperatureC, true
}
