package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/time/rate"
)

// StreamsExportOpts contains configuration for bulk stream exports.
type StreamsExportOpts struct {
	Format     string  // json or csv
	OutputDir  string  // base output directory (default: streams_export_{epoch})
	NumWorkers int     // concurrent file writers (default: 5, max 10)
	RateLimit  float64 // tracker requests per second (default: 5)
}

// StreamExportJob pairs a run with its fetched streams for the write workers.
type StreamExportJob struct {
	Run     models.RunRecord
	Streams *services.ActivityStreams
}

// StreamExportResult records the outcome of one run's export.
type StreamExportResult struct {
	RunID   int64    `json:"run_id"`
	RunName string   `json:"run_name"`
	Success bool     `json:"success"`
	Files   []string `json:"files,omitempty"`
	Error   error    `json:"-"`
	Reason  string   `json:"error,omitempty"`
}

// StreamsExportSummary is the aggregate result, also written as the manifest.
type StreamsExportSummary struct {
	TotalRuns       int                  `json:"total_runs"`
	Exported        int                  `json:"exported"`
	Failed          int                  `json:"failed"`
	OutputDirectory string               `json:"output_directory"`
	ManifestPath    string               `json:"-"`
	Results         []StreamExportResult `json:"results"`
}

// StreamsExporter fetches per-sample activity streams for a batch of runs and
// writes one file per run plus a manifest. Tracker fetches are sequential and
// rate limited; file writes fan out across a small worker pool. A run that
// fails to fetch or write is recorded and skipped, never fatal.
type StreamsExporter struct {
	activity services.ActivityService
	logger   *log.Logger
}

// NewStreamsExporter builds a StreamsExporter over the activity tracker.
func NewStreamsExporter(activity services.ActivityService, logger *log.Logger) *StreamsExporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StreamsExporter{activity: activity, logger: logger}
}

// Export runs the bulk export for the given runs.
func (e *StreamsExporter) Export(ctx context.Context, prog chan<- ProgressUpdate, runs []models.RunRecord, opts StreamsExportOpts) (*StreamsExportSummary, error) {
	if e.activity == nil {
		return nil, fmt.Errorf("%w: activity service not initialized", shared.ErrServiceUnavailable)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs to export", shared.ErrInsufficientData)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("streams_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &StreamsExportSummary{
		TotalRuns:       len(runs),
		OutputDirectory: opts.OutputDir,
		Results:         make([]StreamExportResult, 0, len(runs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan StreamExportJob, len(runs))
	results := make(chan StreamExportResult, len(runs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.writeWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, run := range runs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(prog, streamsFetchUpdate(i+1, len(runs), run))
			streams, err := e.activity.ActivityStreams(ctx, run.ID)
			if err != nil {
				results <- StreamExportResult{
					RunID:   run.ID,
					RunName: run.Name,
					Error:   fmt.Errorf("failed to fetch streams: %w", err),
				}
				continue
			}
			jobs <- StreamExportJob{Run: run, Streams: streams}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.Reason = res.Error.Error()
		}
		summary.Results = append(summary.Results, res)

		if res.Success {
			summary.Exported++
			file := ""
			if len(res.Files) > 0 {
				file = res.Files[0]
			}
			sendProgress(prog, streamsExportedUpdate(completed, len(runs), models.RunRecord{ID: res.RunID, Name: res.RunName}, file))
		} else {
			summary.Failed++
			sendProgress(prog, streamsFailedUpdate(completed, len(runs), models.RunRecord{ID: res.RunID, Name: res.RunName}, res.Error))
			e.logger.Warn("stream export failed", "run", res.RunID, "error", res.Error)
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return summary, fmt.Errorf("export completed but manifest marshal failed: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return summary, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	summary.ManifestPath = manifestPath
	return summary, nil
}

// writeWorker drains the jobs channel and writes each run's streams to disk.
func (e *StreamsExporter) writeWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan StreamExportJob, results chan<- StreamExportResult, opts StreamsExportOpts) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- e.writeStreams(job, opts)
	}
}

func (e *StreamsExporter) writeStreams(job StreamExportJob, opts StreamsExportOpts) StreamExportResult {
	result := StreamExportResult{
		RunID:   job.Run.ID,
		RunName: job.Run.Name,
	}

	switch opts.Format {
	case "csv":
		path := filepath.Join(opts.OutputDir, fmt.Sprintf("%d_streams.csv", job.Run.ID))
		if err := formatter.WriteStreamsCSV(job.Streams, path); err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{path}
		result.Success = true

	case "json", "":
		path := filepath.Join(opts.OutputDir, fmt.Sprintf("%d_streams.json", job.Run.ID))
		data, err := json.MarshalIndent(job.Streams, "", "  ")
		if err != nil {
			result.Error = fmt.Errorf("JSON marshal failed: %w", err)
			return result
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			result.Error = fmt.Errorf("JSON write failed: %w", err)
			return result
		}
		result.Files = []string{path}
		result.Success = true

	default:
		result.Error = fmt.Errorf("%w: unknown format %q (expected json or csv)", shared.ErrInvalidInput, opts.Format)
	}
	return result
}
