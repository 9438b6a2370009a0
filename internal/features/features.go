package features

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// PaceBand maps a half-open pace interval [Lo, Hi) in min/km to a target BPM.
type PaceBand struct {
	Lo  float64
	Hi  float64
	BPM int
}

// TempBand maps a half-open temperature interval [Lo, Hi) in °C to a bin.
type TempBand struct {
	Lo  float64
	Hi  float64
	Bin models.TempBin
}

// DeriverConfig carries the lookup tables and thresholds for feature
// derivation. Pace and temperature bands must be listed in ascending order;
// band scans return the first match.
type DeriverConfig struct {
	PaceBands []PaceBand
	FastBPM   int // pace below the lowest band
	SlowBPM   int // pace at or above the highest band

	TempBands []TempBand

	IntervalWords []string
	TempoWords    []string
	EasyWords     []string
	RaceWords     []string

	LongDistanceKm float64
	RacePace       float64
	TempoPace      float64
	EasyPace       float64

	ConsistencyWindow int
	MileageWindow     time.Duration
}

// DefaultDeriverConfig returns the canonical derivation tables.
func DefaultDeriverConfig() DeriverConfig {
	return DeriverConfig{
		PaceBands: []PaceBand{
			{Lo: 4.0, Hi: 4.5, BPM: 180},
			{Lo: 4.5, Hi: 5.0, BPM: 170},
			{Lo: 5.0, Hi: 5.5, BPM: 165},
			{Lo: 5.5, Hi: 6.0, BPM: 160},
			{Lo: 6.0, Hi: 7.0, BPM: 150},
			{Lo: 7.0, Hi: 8.0, BPM: 140},
		},
		FastBPM: 185,
		SlowBPM: 135,
		TempBands: []TempBand{
			{Lo: -100, Hi: 0, Bin: models.TempVeryCold},
			{Lo: 0, Hi: 10, Bin: models.TempCold},
			{Lo: 10, Hi: 20, Bin: models.TempMild},
			{Lo: 20, Hi: 30, Bin: models.TempWarm},
			{Lo: 30, Hi: 100, Bin: models.TempHot},
		},
		IntervalWords:     []string{"interval", "mas", "repeat", "400m", "200m"},
		TempoWords:        []string{"tempo", "threshold", "marathon pace"},
		EasyWords:         []string{"easy", "recovery", "slow", "jog"},
		RaceWords:         []string{"race", "competition", "pr"},
		LongDistanceKm:    15,
		RacePace:          4.5,
		TempoPace:         5.0,
		EasyPace:          6.5,
		ConsistencyWindow: 5,
		MileageWindow:     7 * 24 * time.Hour,
	}
}

// Deriver turns raw run records into engineered feature sets. All methods are
// pure; construct once and share freely.
type Deriver struct {
	cfg DeriverConfig
}

// NewDeriver builds a Deriver from the given tables.
func NewDeriver(cfg DeriverConfig) *Deriver {
	return &Deriver{cfg: cfg}
}

// MapPaceToBPM maps pace (min/km) to a target BPM through the band table.
// Paces below the lowest band map to FastBPM (a missing pace of 0 lands
// here too), everything at or past the highest band to SlowBPM.
func (d *Deriver) MapPaceToBPM(pace float64) int {
	for _, b := range d.cfg.PaceBands {
		if pace >= b.Lo && pace < b.Hi {
			return b.BPM
		}
	}
	if len(d.cfg.PaceBands) > 0 && pace < d.cfg.PaceBands[0].Lo {
		return d.cfg.FastBPM
	}
	return d.cfg.SlowBPM
}

// TempBinFor bins a temperature in °C. NaN and out-of-band values are Unknown.
func (d *Deriver) TempBinFor(tempC float64) models.TempBin {
	if math.IsNaN(tempC) {
		return models.TempUnknown
	}
	for _, b := range d.cfg.TempBands {
		if tempC >= b.Lo && tempC < b.Hi {
			return b.Bin
		}
	}
	return models.TempUnknown
}

// LengthBinFor bins a run distance given in meters.
func (d *Deriver) LengthBinFor(distanceM float64) models.LengthBin {
	switch km := distanceM / 1000.0; {
	case km < 5:
		return models.LengthShort
	case km < 10:
		return models.LengthMedium
	case km < 15:
		return models.LengthLong
	default:
		return models.LengthVeryLong
	}
}

// TimeOfDayFor buckets the run's wall-clock start hour.
func (d *Deriver) TimeOfDayFor(t time.Time) models.TimeOfDay {
	switch hour := t.Hour(); {
	case hour >= 5 && hour < 12:
		return models.Morning
	case hour >= 12 && hour < 17:
		return models.Afternoon
	case hour >= 17 && hour < 21:
		return models.Evening
	default:
		return models.Night
	}
}

// DetectRunType classifies a run from its name, pace and distance. Name
// keywords win over everything, then explicit long distance, then pace
// thresholds, then the steady default.
func (d *Deriver) DetectRunType(name string, paceMinKm, distanceKm float64) models.RunType {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, d.cfg.IntervalWords):
		return models.RunInterval
	case containsAny(lower, d.cfg.TempoWords):
		return models.RunTempo
	case containsAny(lower, d.cfg.EasyWords):
		return models.RunEasy
	case containsAny(lower, d.cfg.RaceWords):
		return models.RunRace
	case distanceKm > d.cfg.LongDistanceKm:
		return models.RunLong
	}
	switch {
	case paceMinKm < d.cfg.RacePace:
		return models.RunRace
	case paceMinKm < d.cfg.TempoPace:
		return models.RunTempo
	case paceMinKm > d.cfg.EasyPace:
		return models.RunEasy
	default:
		return models.RunSteady
	}
}

// WeeklyMileageKm sums the distance of every history entry inside the
// trailing window [at - MileageWindow, at). The upper bound is strict, so a
// run never counts toward its own weekly mileage.
func (d *Deriver) WeeklyMileageKm(history []models.RunRecord, at time.Time) float64 {
	weekAgo := at.Add(-d.cfg.MileageWindow)
	total := 0.0
	for _, r := range history {
		if !r.StartTime.Before(weekAgo) && r.StartTime.Before(at) {
			total += r.DistanceKm()
		}
	}
	return total
}

// PaceConsistency returns the sample standard deviation of the paces of the
// most recent ConsistencyWindow runs strictly before at. Runs without pace
// data are dropped after the window is cut; fewer than two usable paces
// yields 0. History must be ordered newest first.
func (d *Deriver) PaceConsistency(history []models.RunRecord, at time.Time) float64 {
	start := sort.Search(len(history), func(i int) bool {
		return history[i].StartTime.Before(at)
	})
	prior := history[start:]
	if len(prior) > d.cfg.ConsistencyWindow {
		prior = prior[:d.cfg.ConsistencyWindow]
	}
	var paces []float64
	for _, r := range prior {
		if p := r.PaceMinKm(); p > 0 {
			paces = append(paces, p)
		}
	}
	if len(paces) < 2 {
		return 0
	}
	return sampleStdev(paces)
}

// Derive builds the full feature set for a run against its ordered history.
// The history should contain the runner's recent activity, newest first; it
// may or may not include the run itself, since only entries strictly before
// the run's start time feed the rolling statistics.
func (d *Deriver) Derive(run models.RunRecord, history []models.RunRecord) (models.FeatureSet, error) {
	if err := run.Validate(); err != nil {
		return models.FeatureSet{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if err := ValidateHistoryOrder(history); err != nil {
		return models.FeatureSet{}, err
	}

	pace := run.PaceMinKm()
	fs := models.FeatureSet{
		RunID:           run.ID,
		Name:            run.Name,
		StartTime:       run.StartTime,
		DistanceKm:      models.Round2(run.DistanceKm()),
		AvgPaceMinKm:    models.Round2(pace),
		AvgHeartRate:    run.AvgHeartRate,
		ElevationGainM:  round1(run.ElevationGainM),
		TempBin:         d.TempBinFor(run.TemperatureC()),
		TimeOfDay:       d.TimeOfDayFor(run.StartTime),
		RunLengthBin:    d.LengthBinFor(run.DistanceM),
		RunType:         d.DetectRunType(run.Name, pace, run.DistanceKm()),
		PaceConsistency: models.Round2(d.PaceConsistency(history, run.StartTime)),
		WeeklyMileageKm: round1(d.WeeklyMileageKm(history, run.StartTime)),
		TargetBPM:       d.MapPaceToBPM(pace),
	}
	if w := run.Weather; w != nil {
		temp := w.TemperatureC
		fs.TempC = &temp
		fs.PrecipitationMM = w.PrecipitationMM
		fs.WindSpeedKmh = w.WindSpeedKmh
		fs.HumidityPct = w.HumidityPct
		fs.FeelsLikeC = w.FeelsLikeC
	}
	return fs, nil
}

// DeriveAll derives features for every run in the ordered history, pairing
// each run with the same history so rolling statistics line up the way they
// would when runs are processed one at a time.
func (d *Deriver) DeriveAll(history []models.RunRecord) ([]models.FeatureSet, error) {
	if err := ValidateHistoryOrder(history); err != nil {
		return nil, err
	}
	sets := make([]models.FeatureSet, 0, len(history))
	for _, run := range history {
		fs, err := d.Derive(run, history)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", run.ID, err)
		}
		sets = append(sets, fs)
	}
	return sets, nil
}

// SortHistory orders runs newest first, in place.
func SortHistory(history []models.RunRecord) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].StartTime.After(history[j].StartTime)
	})
}

// SortFeatureHistory orders feature sets newest first, in place.
func SortFeatureHistory(history []models.FeatureSet) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].StartTime.After(history[j].StartTime)
	})
}

// ValidateHistoryOrder checks that the history is ordered newest first.
// Rolling statistics silently come out wrong on unordered input, so callers
// holding data of uncertain origin should sort or fail before deriving.
func ValidateHistoryOrder(history []models.RunRecord) error {
	for i := 1; i < len(history); i++ {
		if history[i].StartTime.After(history[i-1].StartTime) {
			return fmt.Errorf("%w: history not ordered newest first at index %d", shared.ErrInvalidInput, i)
		}
	}
	return nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func sampleStdev(xs []float64) float64 {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
