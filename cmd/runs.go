package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/cadence/internal/features"
	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// RunsList prints the synced run history.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.snapshots()
	if err != nil {
		return err
	}
	runs, err := store.LoadRuns()
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	text, err := formatter.ExportRunsText(runs)
	if err != nil {
		return err
	}
	return r.writePlain("%s", text)
}

// RunsExport writes runs or engineered features to a file in the requested format.
func (r *Runner) RunsExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	output := cmd.String("output")

	store, err := r.snapshots()
	if err != nil {
		return err
	}

	if cmd.Bool("features") {
		sets, err := store.LoadFeatures()
		if err != nil {
			return err
		}
		if format != "csv" {
			return fmt.Errorf("%w: features export only supports csv", shared.ErrInvalidFlag)
		}
		if output == "" {
			output = "features.csv"
		}
		if err := formatter.WriteFeaturesCSV(sets, output); err != nil {
			return err
		}
		return r.writePlain("✓ Exported %d feature sets to %s\n", len(sets), output)
	}

	runs, err := store.LoadRuns()
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		if output == "" {
			output = "runs.csv"
		}
		err = formatter.WriteRunsCSV(runs, output)
	case "markdown", "md":
		if output == "" {
			output = "runs.md"
		}
		err = formatter.WriteRunsMarkdown(runs, output)
	case "json":
		if output == "" {
			output = "runs.json"
		}
		var data []byte
		if data, err = json.MarshalIndent(runs, "", "  "); err == nil {
			err = os.WriteFile(output, data, 0644)
		}
	default:
		return fmt.Errorf("%w: unknown format %q (expected csv, markdown or json)", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return err
	}

	return r.writePlain("✓ Exported %d runs to %s\n", len(runs), output)
}

// RunsImport reads a .fit activity file and merges it into the run history,
// re-deriving features for the whole history.
func (r *Runner) RunsImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to a .fit file is required", shared.ErrMissingArgument)
	}

	run, err := services.ImportFITFile(path)
	if err != nil {
		return err
	}
	r.logger.Info("decoded fit file", "run", run.Name, "distance_km", run.DistanceKm())

	store, err := r.snapshots()
	if err != nil {
		return err
	}

	// a fresh data dir has no snapshot yet; start the history with this run
	runs, err := store.LoadRuns()
	if err != nil {
		r.logger.Warn("no existing run snapshot, starting fresh", "error", err)
		runs = nil
	}

	merged := make([]models.RunRecord, 0, len(runs)+1)
	for _, existing := range runs {
		if existing.ID == run.ID {
			continue
		}
		merged = append(merged, existing)
	}
	merged = append(merged, run)
	features.SortHistory(merged)

	deriver := features.NewDeriver(features.DefaultDeriverConfig())
	sets, err := deriver.DeriveAll(merged)
	if err != nil {
		return fmt.Errorf("feature derivation failed: %w", err)
	}

	if err := store.SaveRuns(merged); err != nil {
		return err
	}
	if err := store.SaveFeatures(sets); err != nil {
		return err
	}

	return r.writePlain("✓ Imported %s (%.1f km), history now has %d runs\n", run.Name, run.DistanceKm(), len(merged))
}

// RunsStreams exports per-run time series through the streams exporter.
func (r *Runner) RunsStreams(ctx context.Context, cmd *cli.Command) error {
	if r.activity == nil {
		return fmt.Errorf("%w: Strava client not initialized (check credentials)", shared.ErrServiceUnavailable)
	}
	if err := r.activity.Authenticate(ctx, nil); err != nil {
		return fmt.Errorf("strava authentication failed: %w", err)
	}

	store, err := r.snapshots()
	if err != nil {
		return err
	}
	runs, err := store.LoadRuns()
	if err != nil {
		return err
	}
	if limit := int(cmd.Int("limit")); limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}

	exporter := tasks.NewStreamsExporter(r.activity, r.logger)

	prog, wg := r.consumeProgress()
	summary, err := exporter.Export(ctx, prog, runs, tasks.StreamsExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
	})
	close(prog)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported streams for %d/%d runs to %s\n", summary.Exported, summary.TotalRuns, summary.OutputDirectory)
	if summary.Failed > 0 {
		r.writePlain("  %d runs failed; see %s\n", summary.Failed, summary.ManifestPath)
	}
	return nil
}
