package tasks

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/features"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
)

// FeatureCache is consulted before hitting the audio-features API so repeat
// generations skip refetching. Implementations must tolerate cache misses;
// errors are logged and treated as misses, never as pipeline failures.
type FeatureCache interface {
	Cached(trackIDs []string) (map[string]models.AudioFeatures, error)
	Store(features map[string]models.AudioFeatures) error
}

// SnapshotWriter persists the latest-playlist metadata. Each write replaces
// the previous snapshot wholesale.
type SnapshotWriter interface {
	SaveLatestPlaylist(meta models.PlaylistMetadata) error
}

// PlanSpec describes a run that has not happened yet.
type PlanSpec struct {
	PaceMinKm  float64
	DistanceKm float64
	RunType    models.RunType // empty means classify from pace and distance
	TempC      *float64       // nil means use the default or a forecast
	TimeOfDay  models.TimeOfDay
}

// planDefaults mirror the assumptions made for a run with no recorded data.
const (
	planDefaultTempC       = 15.0
	planDefaultHumidity    = 50.0
	planDefaultConsistency = 0.3
	planDefaultWeeklyKm    = 30.0
)

// GenerationResult carries everything a caller needs to report on a
// completed (or insufficient) generation.
type GenerationResult struct {
	Features *models.FeatureSet
	Intent   models.Intent
	Analysis models.TrainingLoadAnalysis
	Target   models.MusicTarget
	Strategy string
	Outcome  SelectionOutcome
	Playlist *services.PlaylistRef
	Metadata *models.PlaylistMetadata
}

// Insufficient reports whether selection failed to find enough tracks. When
// true, no playlist was created and Playlist/Metadata are nil.
func (r *GenerationResult) Insufficient() bool {
	return r.Outcome.Status == SelectionInsufficient
}

// PlaylistEngineOpts contains the collaborators for a PlaylistEngine.
// Deriver, Analyzer, Strategy, Sourcer and Selector are required; Cache and
// Snapshots are optional.
type PlaylistEngineOpts struct {
	Music    services.MusicService
	Deriver  *features.Deriver
	Analyzer *features.LoadAnalyzer
	Strategy TargetStrategy
	Sourcer  *Sourcer
	Selector *Selector

	Cache     FeatureCache
	Snapshots SnapshotWriter

	PublicPlaylists bool
	Logger          *log.Logger
}

// PlaylistEngine sequences derive → analyze → predict → source → annotate →
// select → create → add → snapshot. Everything runs strictly sequentially;
// a failure at any stage aborts the invocation and already-performed side
// effects (a created but unpopulated playlist) are not rolled back.
type PlaylistEngine struct {
	music    services.MusicService
	deriver  *features.Deriver
	analyzer *features.LoadAnalyzer
	strategy TargetStrategy
	sourcer  *Sourcer
	selector *Selector

	cache     FeatureCache
	snapshots SnapshotWriter

	public bool
	logger *log.Logger
}

// NewPlaylistEngine creates a PlaylistEngine with the provided collaborators.
func NewPlaylistEngine(opts PlaylistEngineOpts) *PlaylistEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		music:     opts.Music,
		deriver:   opts.Deriver,
		analyzer:  opts.Analyzer,
		strategy:  opts.Strategy,
		sourcer:   opts.Sourcer,
		selector:  opts.Selector,
		cache:     opts.Cache,
		snapshots: opts.Snapshots,
		public:    opts.PublicPlaylists,
		logger:    opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never blocks execution.
func sendProgress(prog chan<- ProgressUpdate, update ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- update:
	default:
	}
}

// Generate runs the full pipeline for a recorded run against its history.
// History must be ordered newest first.
func (e *PlaylistEngine) Generate(ctx context.Context, prog chan<- ProgressUpdate, run models.RunRecord, history []models.RunRecord, featureHistory []models.FeatureSet) (*GenerationResult, error) {
	sendProgress(prog, deriveFeaturesUpdate(1, 1))
	fs, err := e.deriver.Derive(run, history)
	if err != nil {
		return nil, err
	}
	return e.generateFromFeatures(ctx, prog, fs, featureHistory)
}

// GeneratePlanned runs the pipeline for a run that has not happened yet,
// synthesizing a feature set from the plan and the feature history.
func (e *PlaylistEngine) GeneratePlanned(ctx context.Context, prog chan<- ProgressUpdate, plan PlanSpec, featureHistory []models.FeatureSet) (*GenerationResult, error) {
	if plan.PaceMinKm <= 0 || plan.DistanceKm <= 0 {
		return nil, fmt.Errorf("%w: planned pace and distance must be positive", shared.ErrInvalidInput)
	}

	sendProgress(prog, deriveFeaturesUpdate(1, 1))
	fs := e.planFeatures(plan, featureHistory)
	return e.generateFromFeatures(ctx, prog, fs, featureHistory)
}

// GenerateQuick builds a playlist from a bare intent: fixed target, generic
// queries, no run data and no training-load analysis.
func (e *PlaylistEngine) GenerateQuick(ctx context.Context, prog chan<- ProgressUpdate, intent models.Intent) (*GenerationResult, error) {
	target := TargetForIntent(intent)
	result := &GenerationResult{
		Intent:   intent,
		Target:   target,
		Strategy: "intent",
	}
	sendProgress(prog, predictTargetUpdate(result.Strategy, target))

	candidates, err := e.sourcer.SourceQueries(ctx, prog, e.sourcer.IntentQueries(intent))
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Cadence - %s Run (%s)", intent.Title(), intent)
	description := fmt.Sprintf("Generated for a %s-effort run. Target: %d BPM, energy %.2f, valence %.2f.",
		intent, target.Tempo, target.Energy, target.Valence)

	return e.finish(ctx, prog, result, candidates, title, description, models.RunSteady, 0)
}

// generateFromFeatures is the shared back half of the run-based flows.
func (e *PlaylistEngine) generateFromFeatures(ctx context.Context, prog chan<- ProgressUpdate, fs models.FeatureSet, featureHistory []models.FeatureSet) (*GenerationResult, error) {
	analysis := e.analyzer.Analyze(featureHistory, fs.RunType, fs.StartTime)
	sendProgress(prog, analyzeLoadUpdate(analysis))

	target, err := e.strategy.Predict(fs)
	if err != nil {
		return nil, fmt.Errorf("target prediction failed: %w", err)
	}
	sendProgress(prog, predictTargetUpdate(e.strategy.Name(), target))

	result := &GenerationResult{
		Features: &fs,
		Analysis: analysis,
		Target:   target,
		Strategy: e.strategy.Name(),
	}

	candidates, err := e.sourcer.Source(ctx, prog, fs)
	if err != nil {
		return nil, err
	}

	title := e.title(fs, target)
	description := e.description(fs, target, analysis)

	return e.finish(ctx, prog, result, candidates, title, description, fs.RunType, fs.DistanceKm)
}

// finish annotates, selects, creates the playlist and writes the snapshot.
func (e *PlaylistEngine) finish(ctx context.Context, prog chan<- ProgressUpdate, result *GenerationResult, candidates []models.Track, title, description string, runType models.RunType, distanceKm float64) (*GenerationResult, error) {
	annotated, err := e.annotate(ctx, prog, candidates)
	if err != nil {
		return nil, err
	}

	outcome := e.selector.Select(annotated, result.Target, runType, distanceKm)
	result.Outcome = outcome
	sendProgress(prog, selectTracksUpdate(outcome))
	if outcome.Status == SelectionInsufficient {
		e.logger.Warn("no tracks within tolerances", "candidates", outcome.Candidates, "target_bpm", result.Target.Tempo)
		return result, nil
	}

	sendProgress(prog, createPlaylistUpdate(title))
	user, err := e.music.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve streaming user: %w", err)
	}

	playlist, err := e.music.CreatePlaylist(ctx, user.ID, title, description, e.public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	result.Playlist = playlist

	uris := make([]string, 0, len(outcome.Tracks))
	for _, t := range outcome.Tracks {
		uris = append(uris, t.URI)
	}
	sendProgress(prog, addTracksUpdate(len(uris)))
	if err := e.music.AddTracks(ctx, playlist.ID, uris); err != nil {
		return result, fmt.Errorf("playlist %s created but adding tracks failed: %w", playlist.ID, err)
	}

	meta := models.PlaylistMetadata{
		PlaylistID:  playlist.ID,
		URL:         playlist.URL,
		Title:       title,
		Description: description,
		Strategy:    result.Strategy,
		Intent:      result.Intent,
		Features:    result.Features,
		Target:      result.Target,
		TrackURIs:   uris,
		TrackCount:  len(uris),
		CreatedAt:   time.Now().UTC(),
	}
	result.Metadata = &meta

	if e.snapshots != nil {
		sendProgress(prog, snapshotUpdate("playlist snapshot"))
		if err := e.snapshots.SaveLatestPlaylist(meta); err != nil {
			return result, fmt.Errorf("playlist created but snapshot write failed: %w", err)
		}
	}
	return result, nil
}

// annotate attaches audio features to candidates, batching requests at the
// provider's cap and consulting the cache first. Tracks the provider has no
// analysis for keep a nil Features and drop out at selection.
func (e *PlaylistEngine) annotate(ctx context.Context, prog chan<- ProgressUpdate, candidates []models.Track) ([]models.Track, error) {
	ids := make([]string, 0, len(candidates))
	for _, t := range candidates {
		ids = append(ids, t.ID)
	}

	known := make(map[string]models.AudioFeatures, len(ids))
	if e.cache != nil {
		cached, err := e.cache.Cached(ids)
		if err != nil {
			e.logger.Warn("audio-feature cache read failed", "error", err)
		} else {
			for id, f := range cached {
				known[id] = f
			}
		}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}

	const batchSize = 100
	batches := (len(missing) + batchSize - 1) / batchSize
	for i := 0; i < len(missing); i += batchSize {
		end := i + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		sendProgress(prog, audioFeaturesUpdate(i/batchSize+1, batches))

		fetched, err := e.music.AudioFeatures(ctx, missing[i:end])
		if err != nil {
			return nil, fmt.Errorf("audio-features fetch failed: %w", err)
		}
		for id, f := range fetched {
			known[id] = f
		}
		if e.cache != nil && len(fetched) > 0 {
			if err := e.cache.Store(fetched); err != nil {
				e.logger.Warn("audio-feature cache write failed", "error", err)
			}
		}
	}

	annotated := make([]models.Track, len(candidates))
	copy(annotated, candidates)
	for i := range annotated {
		if f, ok := known[annotated[i].ID]; ok {
			feat := f
			annotated[i].Features = &feat
		}
	}
	return annotated, nil
}

// planFeatures synthesizes a feature set for a planned run, filling unknowns
// with the same defaults a first-time user gets.
func (e *PlaylistEngine) planFeatures(plan PlanSpec, featureHistory []models.FeatureSet) models.FeatureSet {
	now := time.Now()

	runType := plan.RunType
	if runType == "" {
		runType = e.deriver.DetectRunType("", plan.PaceMinKm, plan.DistanceKm)
	}
	timeOfDay := plan.TimeOfDay
	if timeOfDay == "" {
		timeOfDay = e.deriver.TimeOfDayFor(now)
	}
	temp := planDefaultTempC
	if plan.TempC != nil {
		temp = *plan.TempC
	}

	consistency := planDefaultConsistency
	weekly := planDefaultWeeklyKm
	if len(featureHistory) > 0 {
		analysis := e.analyzer.Analyze(featureHistory, runType, now)
		if analysis.PaceConsistency > 0 {
			consistency = analysis.PaceConsistency
		}
		if analysis.WeeklyLoadKm > 0 {
			weekly = analysis.WeeklyLoadKm
		}
	}

	return models.FeatureSet{
		Name:            fmt.Sprintf("Planned %s run", runType),
		StartTime:       now,
		DistanceKm:      models.Round2(plan.DistanceKm),
		AvgPaceMinKm:    models.Round2(plan.PaceMinKm),
		TempC:           &temp,
		TempBin:         e.deriver.TempBinFor(temp),
		HumidityPct:     planDefaultHumidity,
		TimeOfDay:       timeOfDay,
		RunLengthBin:    e.deriver.LengthBinFor(plan.DistanceKm * 1000),
		RunType:         runType,
		PaceConsistency: consistency,
		WeeklyMileageKm: weekly,
		TargetBPM:       e.deriver.MapPaceToBPM(plan.PaceMinKm),
	}
}

// title formats the playlist name, e.g.
// "Cadence - Tempo Run | 5:30/km | 10.0km @ 165 BPM".
func (e *PlaylistEngine) title(fs models.FeatureSet, target models.MusicTarget) string {
	return fmt.Sprintf("Cadence - %s Run | %s/km | %.1fkm @ %d BPM",
		titleCase(string(fs.RunType)), FormatPace(fs.AvgPaceMinKm), fs.DistanceKm, target.Tempo)
}

func (e *PlaylistEngine) description(fs models.FeatureSet, target models.MusicTarget, analysis models.TrainingLoadAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %d BPM, energy %.2f, valence %.2f.", target.Tempo, target.Energy, target.Valence)
	switch analysis.FatigueLevel {
	case models.FatigueHighLoad:
		fmt.Fprintf(&b, " Heavy week (%.1f km) - consider keeping it easy.", analysis.WeeklyLoadKm)
	case models.FatigueModerate:
		fmt.Fprintf(&b, " Solid week (%.1f km).", analysis.WeeklyLoadKm)
	case models.FatigueFresh:
		b.WriteString(" Fresh legs - a good day to push.")
	}
	if analysis.SuggestedPace > 0 {
		fmt.Fprintf(&b, " Suggested pace %s-%s/km.", FormatPace(analysis.PaceRange[0]), FormatPace(analysis.PaceRange[1]))
	}
	return b.String()
}

// FormatPace renders a decimal pace in min/km as m:ss. Zero or negative
// paces (missing data) render as "-:--".
func FormatPace(pace float64) string {
	if pace <= 0 {
		return "-:--"
	}
	minutes := int(pace)
	seconds := int(math.Round((pace - float64(minutes)) * 60))
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// ParsePace parses a "m:ss" pace string (e.g. "5:30") into decimal min/km.
// A plain decimal like "5.5" is also accepted.
func ParsePace(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty pace", shared.ErrInvalidInput)
	}
	if mins, secs, ok := strings.Cut(s, ":"); ok {
		var m, sec int
		if _, err := fmt.Sscanf(mins, "%d", &m); err != nil || m < 0 {
			return 0, fmt.Errorf("%w: invalid pace %q", shared.ErrInvalidInput, s)
		}
		if _, err := fmt.Sscanf(secs, "%d", &sec); err != nil || sec < 0 || sec > 59 || len(secs) != 2 {
			return 0, fmt.Errorf("%w: invalid pace %q (expected m:ss)", shared.ErrInvalidInput, s)
		}
		return float64(m) + float64(sec)/60.0, nil
	}
	var pace float64
	if _, err := fmt.Sscanf(s, "%f", &pace); err != nil || pace <= 0 {
		return 0, fmt.Errorf("%w: invalid pace %q", shared.ErrInvalidInput, s)
	}
	return pace, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
