package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/features"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	activity   services.ActivityService
	weather    services.WeatherService
	music      services.MusicService
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Activity   services.ActivityService
	Weather    services.WeatherService
	Music      services.MusicService
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		activity:   opts.Activity,
		weather:    opts.Weather,
		music:      opts.Music,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger, e.g. for file logging under the TUI.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, runsCommand, generateCommand, planCommand, quickCommand, playlistCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// snapshots opens the snapshot store rooted at the configured data directory.
func (r *Runner) snapshots() (*repositories.SnapshotStore, error) {
	return repositories.NewSnapshotStore(r.config.DataDir())
}

// dataPath resolves a configured file path against the data directory unless
// it is already absolute.
func (r *Runner) dataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return r.config.DataPath(name)
}

// openDatabase opens the SQLite mirror with the configured pool settings.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.dataPath(r.config.Database.Path))
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// buildEngine assembles the playlist engine from the recommender config.
// Cache and snapshots may be nil; the engine degrades accordingly.
func (r *Runner) buildEngine(cache tasks.FeatureCache, snaps tasks.SnapshotWriter) (*tasks.PlaylistEngine, error) {
	if r.music == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized (check credentials)", shared.ErrServiceUnavailable)
	}

	rec := r.config.Recommender
	strategy, err := tasks.NewStrategy(rec.Strategy, r.dataPath(rec.ModelPath))
	if err != nil {
		return nil, err
	}

	srcCfg := tasks.DefaultSourcerConfig()
	if rec.MinCandidates > 0 {
		srcCfg.MinUnique = rec.MinCandidates
	}
	if rec.RateLimit > 0 {
		srcCfg.RateLimit = rec.RateLimit
	}

	selCfg := tasks.DefaultSelectorConfig()
	if rec.MaxTracks > 0 {
		selCfg.MaxTracks = rec.MaxTracks
	}
	selCfg.SkipFilter = rec.DisableFilter

	return tasks.NewPlaylistEngine(tasks.PlaylistEngineOpts{
		Music:           r.music,
		Deriver:         features.NewDeriver(features.DefaultDeriverConfig()),
		Analyzer:        features.NewLoadAnalyzer(features.DefaultAnalyzerConfig()),
		Strategy:        strategy,
		Sourcer:         tasks.NewSourcer(r.music, srcCfg, rec.PreferredGenres, r.logger),
		Selector:        tasks.NewSelector(selCfg, nil),
		Cache:           cache,
		Snapshots:       snaps,
		PublicPlaylists: rec.PublicPlaylists,
		Logger:          r.logger,
	}), nil
}

// consumeProgress starts a goroutine that logs pipeline progress updates.
// The caller closes the channel when the operation finishes and then waits.
func (r *Runner) consumeProgress() (chan tasks.ProgressUpdate, *sync.WaitGroup) {
	prog := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range prog {
			r.logger.Info(update.Message, "phase", update.Phase.String())
		}
	}()
	return prog, &wg
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
