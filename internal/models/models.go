// package models defines the data model for the cadence playlist generation service
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RunType classifies a run by its training purpose.
type RunType string

const (
	RunEasy     RunType = "easy"
	RunTempo    RunType = "tempo"
	RunInterval RunType = "interval"
	RunLong     RunType = "long"
	RunRace     RunType = "race"
	RunSteady   RunType = "steady"
)

// Known reports whether the run type is one of the defined classifications.
func (t RunType) Known() bool {
	switch t {
	case RunEasy, RunTempo, RunInterval, RunLong, RunRace, RunSteady:
		return true
	}
	return false
}

// ParseRunType normalizes user input into a RunType.
// Empty input falls back to steady; anything else must be a known type.
func ParseRunType(s string) (RunType, error) {
	if s == "" {
		return RunSteady, nil
	}
	t := RunType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Known() {
		return "", fmt.Errorf("unknown run type %q (expected easy, tempo, interval, long, race or steady)", s)
	}
	return t, nil
}

// TempBin buckets temperature into coarse comfort bands.
//
// The literal values match the categorical encoder vocabulary of the trained model.
type TempBin string

const (
	TempVeryCold TempBin = "Very Cold"
	TempCold     TempBin = "Cold"
	TempMild     TempBin = "Mild"
	TempWarm     TempBin = "Warm"
	TempHot      TempBin = "Hot"
	TempUnknown  TempBin = "Unknown"
)

// LengthBin buckets run distance.
type LengthBin string

const (
	LengthShort    LengthBin = "Short"
	LengthMedium   LengthBin = "Medium"
	LengthLong     LengthBin = "Long"
	LengthVeryLong LengthBin = "Very Long"
)

// TimeOfDay buckets the run's local start hour.
type TimeOfDay string

const (
	Morning   TimeOfDay = "Morning"
	Afternoon TimeOfDay = "Afternoon"
	Evening   TimeOfDay = "Evening"
	Night     TimeOfDay = "Night"
)

// Known reports whether the value is one of the four defined day segments.
func (t TimeOfDay) Known() bool {
	switch t {
	case Morning, Afternoon, Evening, Night:
		return true
	}
	return false
}

// ParseTimeOfDay normalizes user input into a TimeOfDay. Empty input means Morning.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if s == "" {
		return Morning, nil
	}
	normalized := strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	t := TimeOfDay(normalized)
	if !t.Known() {
		return "", fmt.Errorf("unknown time of day %q (expected Morning, Afternoon, Evening or Night)", s)
	}
	return t, nil
}

// FatigueLevel is a qualitative label for recent training volume.
type FatigueLevel string

const (
	FatigueFresh    FatigueLevel = "fresh"
	FatigueNormal   FatigueLevel = "normal"
	FatigueModerate FatigueLevel = "moderate"
	FatigueHighLoad FatigueLevel = "high_load"
	FatigueUnknown  FatigueLevel = "unknown"
)

// Intent is the coarse effort level for quick playlist generation without run data.
type Intent string

const (
	IntentSlow   Intent = "slow"
	IntentSteady Intent = "steady"
	IntentFast   Intent = "fast"
)

// ParseIntent normalizes user input into an Intent, falling back to steady
// for empty input. Unknown values are an error rather than a silent fallback.
func ParseIntent(s string) (Intent, error) {
	if s == "" {
		return IntentSteady, nil
	}
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	switch i {
	case IntentSlow, IntentSteady, IntentFast:
		return i, nil
	}
	return "", fmt.Errorf("unknown intent %q (expected slow, steady or fast)", s)
}

// Title returns the display name used in playlist titles for this intent.
func (i Intent) Title() string {
	switch i {
	case IntentFast:
		return "Speed"
	case IntentSlow:
		return "Recovery"
	default:
		return "Endurance"
	}
}

// WeatherSnapshot holds the hourly readings joined to a run's start time.
//
// Field tags mirror the weather API's hourly variable names so the on-disk
// run history keeps the same shape the fetcher produced.
type WeatherSnapshot struct {
	TemperatureC    float64 `json:"temperature_2m"`
	PrecipitationMM float64 `json:"precipitation"`
	WeatherCode     int     `json:"weathercode"`
	HumidityPct     float64 `json:"relative_humidity_2m"`
	FeelsLikeC      float64 `json:"apparent_temperature"`
	WindSpeedKmh    float64 `json:"windspeed_10m"`
}

// RunRecord is a single activity normalized from the activity tracker,
// optionally joined with weather. Immutable once fetched.
//
// StartTime carries the run's local wall-clock time; the tracker reports it
// with a UTC marker, so comparisons between runs stay consistent as long as
// every record comes from the same normalization.
type RunRecord struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	StartTime      time.Time        `json:"start_time"`
	Lat            float64          `json:"lat"`
	Lon            float64          `json:"lon"`
	DistanceM      float64          `json:"distance_m"`
	AvgSpeedMS     float64          `json:"avg_speed"`
	AvgHeartRate   float64          `json:"avg_hr,omitempty"`
	AvgCadence     float64          `json:"avg_cadence,omitempty"`
	ElevationGainM float64          `json:"elevation_gain_m"`
	Weather        *WeatherSnapshot `json:"weather,omitempty"`
}

// PaceMinKm converts average speed (m/s) to pace in minutes per kilometer.
// Returns 0 when speed is missing or non-positive; callers must treat 0 as
// "no pace data", never as a literal pace.
func (r RunRecord) PaceMinKm() float64 {
	if r.AvgSpeedMS > 0 {
		return 1000.0 / r.AvgSpeedMS / 60.0
	}
	return 0
}

// DistanceKm returns the run distance in kilometers.
func (r RunRecord) DistanceKm() float64 {
	return r.DistanceM / 1000.0
}

// TemperatureC returns the joined temperature, or NaN when no weather was attached.
func (r RunRecord) TemperatureC() float64 {
	if r.Weather == nil {
		return math.NaN()
	}
	return r.Weather.TemperatureC
}

// Validate checks the record for the fields the pipeline depends on.
func (r RunRecord) Validate() error {
	if r.ID == 0 {
		return fmt.Errorf("run record missing id")
	}
	if r.StartTime.IsZero() {
		return fmt.Errorf("run record %d missing start time", r.ID)
	}
	if r.DistanceM < 0 {
		return fmt.Errorf("run record %d has negative distance", r.ID)
	}
	return nil
}

// FeatureSet is the engineered, immutable view of a run. Field tags match the
// engineered-features snapshot on disk.
//
// TempC is a pointer because temperature can be genuinely unknown (no weather
// joined); a nil value bins to [TempUnknown] and must never be read as 0°C.
type FeatureSet struct {
	RunID     int64     `json:"run_id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time_utc"`

	DistanceKm     float64 `json:"distance_km"`
	AvgPaceMinKm   float64 `json:"avg_pace_min_km"`
	AvgHeartRate   float64 `json:"avg_hr,omitempty"`
	ElevationGainM float64 `json:"elevation_gain_m"`

	TempC           *float64 `json:"temp_c"`
	TempBin         TempBin  `json:"temp_bin"`
	PrecipitationMM float64  `json:"precipitation"`
	WindSpeedKmh    float64  `json:"windspeed_kmh"`
	HumidityPct     float64  `json:"humidity"`
	FeelsLikeC      float64  `json:"feels_like_c"`

	TimeOfDay    TimeOfDay `json:"time_of_day"`
	RunLengthBin LengthBin `json:"run_length_bin"`
	RunType      RunType   `json:"run_type"`

	PaceConsistency float64 `json:"pace_consistency"`
	WeeklyMileageKm float64 `json:"weekly_mileage_km"`

	TargetBPM int `json:"target_bpm"`
}

// Temperature returns the joined temperature or NaN when unknown.
func (f FeatureSet) Temperature() float64 {
	if f.TempC == nil {
		return math.NaN()
	}
	return *f.TempC
}

// MusicTarget is the desired music profile handed to the track selector.
// Energy and valence are always rounded to two decimals; tempo is an integer BPM.
type MusicTarget struct {
	Tempo   int     `json:"target_tempo"`
	Energy  float64 `json:"target_energy"`
	Valence float64 `json:"target_valence"`
}

// Normalized clamps energy and valence into [0,1] and rounds both to two
// decimals. Tempo is left untouched; strategies that promise a tempo range
// clamp it themselves.
func (t MusicTarget) Normalized() MusicTarget {
	t.Energy = Round2(clampUnit(t.Energy))
	t.Valence = Round2(clampUnit(t.Valence))
	return t
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// TrainingLoadAnalysis summarizes recent training relative to a planned run.
// SuggestedPace of 0 means no suggestion could be derived.
type TrainingLoadAnalysis struct {
	SuggestedPace   float64      `json:"suggested_pace"`
	PaceRange       [2]float64   `json:"pace_range"`
	FatigueLevel    FatigueLevel `json:"fatigue_level"`
	WeeklyLoadKm    float64      `json:"weekly_load_km"`
	RecentRunsCount int          `json:"recent_runs_count"`
	PaceConsistency float64      `json:"pace_consistency"`
}

// AudioFeatures are the per-track attributes used for tolerance filtering.
type AudioFeatures struct {
	Tempo   float64 `json:"tempo"`
	Energy  float64 `json:"energy"`
	Valence float64 `json:"valence"`
}

// Track is a song from the streaming service search API. The Features
// annotation is attached transiently during filtering and never persisted.
type Track struct {
	ID       string         `json:"id"`
	URI      string         `json:"uri"`
	Name     string         `json:"name"`
	Artists  []string       `json:"artists"`
	Features *AudioFeatures `json:"-"`
}

// ArtistLine joins the artist names for display.
func (t Track) ArtistLine() string {
	if len(t.Artists) == 0 {
		return "Unknown"
	}
	return strings.Join(t.Artists, ", ")
}

// PlaylistMetadata is the latest-playlist snapshot written once at the end of
// a successful pipeline run. At most one such record exists at a time; each
// run overwrites the previous snapshot wholesale.
type PlaylistMetadata struct {
	PlaylistID  string      `json:"playlist_id"`
	URL         string      `json:"playlist_url"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Strategy    string      `json:"strategy"`
	Intent      Intent      `json:"run_intent,omitempty"`
	Features    *FeatureSet `json:"run_features,omitempty"`
	Target      MusicTarget `json:"music_target"`
	TrackURIs   []string    `json:"track_uris"`
	TrackCount  int         `json:"track_count"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Validate checks that the snapshot describes a playlist that was actually created.
func (p PlaylistMetadata) Validate() error {
	if p.PlaylistID == "" {
		return fmt.Errorf("playlist metadata missing playlist id")
	}
	if p.Title == "" {
		return fmt.Errorf("playlist metadata missing title")
	}
	if p.TrackCount != len(p.TrackURIs) {
		return fmt.Errorf("playlist metadata track count %d does not match %d uris", p.TrackCount, len(p.TrackURIs))
	}
	return nil
}
