package features

import (
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// AnalyzerConfig carries the windows and thresholds for training-load analysis.
type AnalyzerConfig struct {
	StatsWindow time.Duration // pace statistics lookback
	LoadWindow  time.Duration // fatigue lookback

	ProgressionNudge float64 // pace cut for tempo and interval suggestions
	PaceRangeDelta   float64 // tolerance around the suggested pace

	HighLoadKm     float64
	ModerateLoadKm float64
	FreshLoadKm    float64

	ConsistencyWindow int
}

// DefaultAnalyzerConfig returns the canonical analysis thresholds.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		StatsWindow:       30 * 24 * time.Hour,
		LoadWindow:        7 * 24 * time.Hour,
		ProgressionNudge:  0.05,
		PaceRangeDelta:    0.15,
		HighLoadKm:        60,
		ModerateLoadKm:    40,
		FreshLoadKm:       15,
		ConsistencyWindow: 5,
	}
}

// LoadAnalyzer summarizes recent training volume and pace relative to a
// planned run. It never errors: thin or empty history degrades to an
// unknown-fatigue, zero-suggestion result.
type LoadAnalyzer struct {
	cfg AnalyzerConfig
}

// NewLoadAnalyzer builds a LoadAnalyzer with the given thresholds.
func NewLoadAnalyzer(cfg AnalyzerConfig) *LoadAnalyzer {
	return &LoadAnalyzer{cfg: cfg}
}

// Analyze scans the feature history for runs inside the stats window before
// at, preferring runs of the requested type and falling back to every recent
// run when none match. The suggested pace is the average of the basis runs,
// nudged slightly faster for tempo and interval sessions. History order does
// not matter; the analyzer sorts a copy.
func (a *LoadAnalyzer) Analyze(history []models.FeatureSet, runType models.RunType, at time.Time) models.TrainingLoadAnalysis {
	if len(history) == 0 {
		return models.TrainingLoadAnalysis{FatigueLevel: models.FatigueUnknown}
	}
	ordered := make([]models.FeatureSet, len(history))
	copy(ordered, history)
	SortFeatureHistory(ordered)

	cutoff := at.Add(-a.cfg.StatsWindow)
	var matched, recent []models.FeatureSet
	for _, f := range ordered {
		if f.StartTime.Before(cutoff) || !f.StartTime.Before(at) {
			continue
		}
		recent = append(recent, f)
		if f.RunType == runType {
			matched = append(matched, f)
		}
	}
	basis := matched
	if len(basis) == 0 {
		basis = recent
	}

	suggested := 0.0
	if paces := nonzeroPaces(basis); len(paces) > 0 {
		suggested = mean(paces)
		if runType == models.RunTempo || runType == models.RunInterval {
			suggested -= a.cfg.ProgressionNudge
		}
		suggested = models.Round2(suggested)
	}
	var paceRange [2]float64
	if suggested > 0 {
		paceRange[0] = models.Round2(suggested - a.cfg.PaceRangeDelta)
		paceRange[1] = models.Round2(suggested + a.cfg.PaceRangeDelta)
	}

	weekly := a.weeklyLoadKm(ordered, at)
	return models.TrainingLoadAnalysis{
		SuggestedPace:   suggested,
		PaceRange:       paceRange,
		FatigueLevel:    a.fatigueFor(weekly),
		WeeklyLoadKm:    round1(weekly),
		RecentRunsCount: len(basis),
		PaceConsistency: models.Round2(a.consistency(ordered, at)),
	}
}

func (a *LoadAnalyzer) weeklyLoadKm(ordered []models.FeatureSet, at time.Time) float64 {
	weekAgo := at.Add(-a.cfg.LoadWindow)
	total := 0.0
	for _, f := range ordered {
		if !f.StartTime.Before(weekAgo) && f.StartTime.Before(at) {
			total += f.DistanceKm
		}
	}
	return total
}

func (a *LoadAnalyzer) fatigueFor(weeklyKm float64) models.FatigueLevel {
	switch {
	case weeklyKm > a.cfg.HighLoadKm:
		return models.FatigueHighLoad
	case weeklyKm > a.cfg.ModerateLoadKm:
		return models.FatigueModerate
	case weeklyKm < a.cfg.FreshLoadKm:
		return models.FatigueFresh
	default:
		return models.FatigueNormal
	}
}

// consistency mirrors the deriver's pace-consistency rule over feature sets:
// cut the window of most recent runs before at, then drop missing paces.
func (a *LoadAnalyzer) consistency(ordered []models.FeatureSet, at time.Time) float64 {
	var prior []models.FeatureSet
	for _, f := range ordered {
		if f.StartTime.Before(at) {
			prior = append(prior, f)
			if len(prior) == a.cfg.ConsistencyWindow {
				break
			}
		}
	}
	var paces []float64
	for _, f := range prior {
		if f.AvgPaceMinKm > 0 {
			paces = append(paces, f.AvgPaceMinKm)
		}
	}
	if len(paces) < 2 {
		return 0
	}
	return sampleStdev(paces)
}

func nonzeroPaces(sets []models.FeatureSet) []float64 {
	var paces []float64
	for _, f := range sets {
		if f.AvgPaceMinKm > 0 {
			paces = append(paces, f.AvgPaceMinKm)
		}
	}
	return paces
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
