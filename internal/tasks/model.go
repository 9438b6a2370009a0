package tasks

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// Feature-vector layout the artifact was trained on: nine numeric features
// followed by four encoded categoricals, in this exact order.
var modelFeatureOrder = []string{
	"distance_km",
	"avg_pace_min_km",
	"temp_c",
	"precipitation",
	"windspeed_kmh",
	"humidity",
	"elevation_gain_m",
	"pace_consistency",
	"weekly_mileage_km",
	"time_of_day",
	"temp_bin",
	"run_length_bin",
	"run_type",
}

// LinearModel is one target's regression head: a weight per feature plus an
// intercept, applied to the scaled feature vector.
type LinearModel struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// ModelArtifact is the on-disk shape of the trained regressor. Training
// happens offline; this package only loads and evaluates the result.
type ModelArtifact struct {
	FeatureNames []string                      `json:"feature_names"`
	ScalerMean   []float64                     `json:"scaler_mean"`
	ScalerStd    []float64                     `json:"scaler_std"`
	Encodings    map[string]map[string]float64 `json:"encodings"`
	Targets      map[string]LinearModel        `json:"targets"`
}

// Validate checks that the artifact's dimensions line up with the feature
// vector this build assembles.
func (a *ModelArtifact) Validate() error {
	n := len(modelFeatureOrder)
	if len(a.FeatureNames) != n {
		return fmt.Errorf("artifact has %d feature names, expected %d", len(a.FeatureNames), n)
	}
	for i, name := range a.FeatureNames {
		if name != modelFeatureOrder[i] {
			return fmt.Errorf("artifact feature %d is %q, expected %q", i, name, modelFeatureOrder[i])
		}
	}
	if len(a.ScalerMean) != n || len(a.ScalerStd) != n {
		return fmt.Errorf("artifact scaler dimensions do not match %d features", n)
	}
	for _, target := range []string{"tempo", "energy", "valence"} {
		head, ok := a.Targets[target]
		if !ok {
			return fmt.Errorf("artifact missing %s target", target)
		}
		if len(head.Weights) != n {
			return fmt.Errorf("artifact %s head has %d weights, expected %d", target, len(head.Weights), n)
		}
	}
	return nil
}

// ModelStrategy evaluates the trained regression artifact. Outputs are
// clamped: tempo to [100,200], energy and valence to [0,1].
type ModelStrategy struct {
	artifact *ModelArtifact
}

// LoadModelStrategy reads and validates the artifact at path. A missing file
// is a configuration error, not a cue to fall back to rules.
func LoadModelStrategy(path string) (*ModelStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (train and export the model first, or set strategy = \"rules\")", shared.ErrMissingModel, path)
		}
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var artifact ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}
	return NewModelStrategy(&artifact)
}

// NewModelStrategy wraps a validated artifact.
func NewModelStrategy(artifact *ModelArtifact) (*ModelStrategy, error) {
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	return &ModelStrategy{artifact: artifact}, nil
}

func (s *ModelStrategy) Name() string { return "model" }

// Predict assembles the feature vector, scales it, and evaluates the three
// regression heads independently.
func (s *ModelStrategy) Predict(fs models.FeatureSet) (models.MusicTarget, error) {
	vec := s.vector(fs)
	scaled := make([]float64, len(vec))
	for i, v := range vec {
		std := s.artifact.ScalerStd[i]
		if std == 0 {
			std = 1
		}
		scaled[i] = (v - s.artifact.ScalerMean[i]) / std
	}

	tempo := s.evaluate("tempo", scaled)
	energy := s.evaluate("energy", scaled)
	valence := s.evaluate("valence", scaled)

	target := models.MusicTarget{
		Tempo:   clampTempo(int(math.Round(tempo))),
		Energy:  energy,
		Valence: valence,
	}
	return target.Normalized(), nil
}

func (s *ModelStrategy) evaluate(target string, scaled []float64) float64 {
	head := s.artifact.Targets[target]
	sum := head.Intercept
	for i, w := range head.Weights {
		sum += w * scaled[i]
	}
	return sum
}

// vector builds the raw feature vector in the trained order. A missing
// temperature contributes the scaler mean so it scales to zero; unknown
// categorical values encode to 0 rather than erroring.
func (s *ModelStrategy) vector(fs models.FeatureSet) []float64 {
	temp := fs.Temperature()
	if math.IsNaN(temp) {
		temp = s.artifact.ScalerMean[2]
	}
	return []float64{
		fs.DistanceKm,
		fs.AvgPaceMinKm,
		temp,
		fs.PrecipitationMM,
		fs.WindSpeedKmh,
		fs.HumidityPct,
		fs.ElevationGainM,
		fs.PaceConsistency,
		fs.WeeklyMileageKm,
		s.encode("time_of_day", string(fs.TimeOfDay)),
		s.encode("temp_bin", string(fs.TempBin)),
		s.encode("run_length_bin", string(fs.RunLengthBin)),
		s.encode("run_type", string(fs.RunType)),
	}
}

func (s *ModelStrategy) encode(field, value string) float64 {
	if codes, ok := s.artifact.Encodings[field]; ok {
		if code, ok := codes[value]; ok {
			return code
		}
	}
	return 0
}

func clampTempo(bpm int) int {
	if bpm < 100 {
		return 100
	}
	if bpm > 200 {
		return 200
	}
	return bpm
}
