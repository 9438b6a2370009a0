package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/features"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
)

// RunStore is the persistence slice SyncEngine writes refreshed history to.
// Snapshot writes are authoritative; the database mirror is for querying.
type RunStore interface {
	SaveRuns(runs []models.RunRecord) error
	SaveFeatures(sets []models.FeatureSet) error
}

// RunMirror optionally mirrors synced runs into the relational store.
type RunMirror interface {
	UpsertAll(ctx context.Context, runs []models.RunRecord) error
}

// SyncOpts tunes a single sync invocation.
type SyncOpts struct {
	MaxRuns int
	Weather bool // join a weather snapshot to each run
}

// SyncResult summarizes a completed sync.
type SyncResult struct {
	Runs        int
	WeatherHits int
	Features    int
}

// SyncEngine refreshes the local run history: fetch recent runs from the
// activity tracker, join weather per run, derive features for the whole
// history, and persist both snapshots. Weather failures degrade to runs
// without weather; fetch and persistence failures abort.
type SyncEngine struct {
	activity services.ActivityService
	weather  services.WeatherService
	deriver  *features.Deriver
	store    RunStore
	mirror   RunMirror
	logger   *log.Logger
}

// NewSyncEngine builds a SyncEngine. weather and mirror may be nil; the
// corresponding steps are skipped.
func NewSyncEngine(activity services.ActivityService, weather services.WeatherService, deriver *features.Deriver, store RunStore, mirror RunMirror, logger *log.Logger) *SyncEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{
		activity: activity,
		weather:  weather,
		deriver:  deriver,
		store:    store,
		mirror:   mirror,
		logger:   logger,
	}
}

// Sync runs the full refresh and returns a summary.
func (e *SyncEngine) Sync(ctx context.Context, prog chan<- ProgressUpdate, opts SyncOpts) (*SyncResult, error) {
	if e.activity == nil {
		return nil, fmt.Errorf("%w: activity service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = 30
	}

	sendProgress(prog, fetchRunsUpdate(1, 1))
	runs, err := e.activity.RecentRuns(ctx, opts.MaxRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs from %s: %w", e.activity.Name(), err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no recent runs found", shared.ErrInsufficientData)
	}

	result := &SyncResult{Runs: len(runs)}

	if opts.Weather && e.weather != nil {
		for i := range runs {
			sendProgress(prog, joinWeatherUpdate(i+1, len(runs), runs[i]))
			snap, err := e.weather.SnapshotAt(ctx, runs[i].Lat, runs[i].Lon, runs[i].StartTime)
			if err != nil {
				e.logger.Warn("weather lookup failed", "run", runs[i].ID, "error", err)
				continue
			}
			if snap == nil {
				continue
			}
			runs[i].Weather = snap
			result.WeatherHits++
		}
	}

	features.SortHistory(runs)

	sendProgress(prog, deriveFeaturesUpdate(1, 1))
	sets, err := e.deriver.DeriveAll(runs)
	if err != nil {
		return nil, fmt.Errorf("feature derivation failed: %w", err)
	}
	result.Features = len(sets)

	sendProgress(prog, snapshotUpdate("run history"))
	if err := e.store.SaveRuns(runs); err != nil {
		return nil, fmt.Errorf("failed to persist runs: %w", err)
	}
	sendProgress(prog, snapshotUpdate("engineered features"))
	if err := e.store.SaveFeatures(sets); err != nil {
		return nil, fmt.Errorf("failed to persist features: %w", err)
	}

	if e.mirror != nil {
		if err := e.mirror.UpsertAll(ctx, runs); err != nil {
			e.logger.Warn("database mirror failed", "error", err)
		}
	}

	e.logger.Info("sync complete", "runs", result.Runs, "weather", result.WeatherHits, "features", result.Features)
	return result, nil
}
