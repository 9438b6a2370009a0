package tasks

import (
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchRuns Phase = iota
	JoinWeather
	DeriveFeatures
	AnalyzeLoad
	PredictTarget
	SourceCandidates
	FetchAudioFeatures
	SelectTracks
	CreatePlaylist
	AddTracks
	WriteSnapshot
	ExportStreams
)

func (p Phase) String() string {
	switch p {
	case FetchRuns:
		return "fetch_runs"
	case JoinWeather:
		return "join_weather"
	case DeriveFeatures:
		return "derive_features"
	case AnalyzeLoad:
		return "analyze_load"
	case PredictTarget:
		return "predict_target"
	case SourceCandidates:
		return "source_candidates"
	case FetchAudioFeatures:
		return "fetch_audio_features"
	case SelectTracks:
		return "select_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case WriteSnapshot:
		return "write_snapshot"
	case ExportStreams:
		return "export_streams"
	default:
		return ""
	}
}

func fetchRunsUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRuns,
		Step:    step,
		Total:   total,
		Message: "Fetching recent runs from the activity tracker...",
	}
}

func joinWeatherUpdate(step, total int, run models.RunRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   JoinWeather,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Weather for %s", step, total, run.Name),
	}
}

func deriveFeaturesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DeriveFeatures,
		Step:    step,
		Total:   total,
		Message: "Deriving run features...",
	}
}

func analyzeLoadUpdate(analysis models.TrainingLoadAnalysis) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AnalyzeLoad,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Training load: %s (%.1f km this week)", analysis.FatigueLevel, analysis.WeeklyLoadKm),
		Data:    analysis,
	}
}

func predictTargetUpdate(strategy string, target models.MusicTarget) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PredictTarget,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Target (%s): %d BPM, energy %.2f, valence %.2f", strategy, target.Tempo, target.Energy, target.Valence),
		Data:    target,
	}
}

func sourceQueryUpdate(step, total int, query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SourceCandidates,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching: %s", step, total, query),
	}
}

func sourcedUpdate(unique int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SourceCandidates,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d unique candidate tracks", unique),
	}
}

func audioFeaturesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAudioFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching audio features...", step, total),
	}
}

func selectTracksUpdate(outcome SelectionOutcome) ProgressUpdate {
	msg := fmt.Sprintf("Selected %d tracks", len(outcome.Tracks))
	if outcome.Relaxed {
		msg += " (relaxed tolerances)"
	}
	return ProgressUpdate{
		Phase:   SelectTracks,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    outcome,
	}
}

func createPlaylistUpdate(title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist: %s", title),
	}
}

func addTracksUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks...", count),
	}
}

func streamsFetchUpdate(step, total int, run models.RunRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportStreams,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching streams for %s", step, total, run.Name),
	}
}

func streamsExportedUpdate(step, total int, run models.RunRecord, file string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportStreams,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exported %s -> %s", step, total, run.Name, file),
	}
}

func streamsFailedUpdate(step, total int, run models.RunRecord, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportStreams,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Failed %s: %v", step, total, run.Name, err),
	}
}

func snapshotUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteSnapshot,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing %s...", name),
	}
}
