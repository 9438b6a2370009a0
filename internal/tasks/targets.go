package tasks

import (
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// TargetStrategy maps a feature set to a desired music profile. Strategies
// are interchangeable; downstream components only see the MusicTarget.
type TargetStrategy interface {
	Predict(fs models.FeatureSet) (models.MusicTarget, error)
	Name() string
}

// NewStrategy builds the configured strategy. "rules" is the deterministic
// mapping table, "model" loads the trained artifact at modelPath and fails
// fast when the file is missing instead of silently falling back.
func NewStrategy(name, modelPath string) (TargetStrategy, error) {
	switch name {
	case "", "rules":
		return NewRuleStrategy(DefaultRuleConfig()), nil
	case "model":
		return LoadModelStrategy(modelPath)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q (expected rules or model)", shared.ErrInvalidConfig, name)
	}
}

// Profile is a base energy/valence pair for one run type.
type Profile struct {
	Energy  float64
	Valence float64
}

// RuleConfig carries the rule-based mapping tables. RunTypes not present in
// the table fall back to the Base profile.
type RuleConfig struct {
	Base     Profile
	RunTypes map[models.RunType]Profile

	// temperature adjustment: cold lowers valence, warm raises it
	ColdValenceDrop  float64
	ColdValenceFloor float64
	WarmValenceBoost float64
	WarmValenceCeil  float64

	// time-of-day adjustment: mornings brighten, nights soften
	MorningValenceBoost float64
	MorningValenceCeil  float64
	NightEnergyDrop     float64
	NightEnergyFloor    float64
}

// DefaultRuleConfig returns the canonical mapping constants.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Base: Profile{Energy: 0.6, Valence: 0.5},
		RunTypes: map[models.RunType]Profile{
			models.RunInterval: {Energy: 0.85, Valence: 0.70},
			models.RunTempo:    {Energy: 0.75, Valence: 0.65},
			models.RunEasy:     {Energy: 0.40, Valence: 0.60},
			models.RunRace:     {Energy: 0.90, Valence: 0.80},
			models.RunLong:     {Energy: 0.55, Valence: 0.60},
		},
		ColdValenceDrop:     0.15,
		ColdValenceFloor:    0.2,
		WarmValenceBoost:    0.15,
		WarmValenceCeil:     0.9,
		MorningValenceBoost: 0.1,
		MorningValenceCeil:  0.8,
		NightEnergyDrop:     0.15,
		NightEnergyFloor:    0.3,
	}
}

// RuleStrategy derives the target from lookup tables: a per-run-type profile,
// then temperature and time-of-day adjustments applied in that order.
type RuleStrategy struct {
	cfg RuleConfig
}

// NewRuleStrategy builds a RuleStrategy from the given tables.
func NewRuleStrategy(cfg RuleConfig) *RuleStrategy {
	return &RuleStrategy{cfg: cfg}
}

func (s *RuleStrategy) Name() string { return "rules" }

// Predict maps the feature set through the rule tables. Tempo comes straight
// from the pace-derived target BPM; energy and valence start at the run
// type's profile and are nudged by temperature bin and time of day. The
// adjustment order matters and matches the table definitions.
func (s *RuleStrategy) Predict(fs models.FeatureSet) (models.MusicTarget, error) {
	profile, ok := s.cfg.RunTypes[fs.RunType]
	if !ok {
		profile = s.cfg.Base
	}
	energy, valence := profile.Energy, profile.Valence

	switch fs.TempBin {
	case models.TempVeryCold, models.TempCold:
		valence = max(s.cfg.ColdValenceFloor, valence-s.cfg.ColdValenceDrop)
	case models.TempWarm, models.TempHot:
		valence = min(s.cfg.WarmValenceCeil, valence+s.cfg.WarmValenceBoost)
	}

	switch fs.TimeOfDay {
	case models.Morning:
		valence = min(s.cfg.MorningValenceCeil, valence+s.cfg.MorningValenceBoost)
	case models.Night:
		energy = max(s.cfg.NightEnergyFloor, energy-s.cfg.NightEnergyDrop)
	}

	target := models.MusicTarget{
		Tempo:   fs.TargetBPM,
		Energy:  energy,
		Valence: valence,
	}
	return target.Normalized(), nil
}

// TargetForIntent returns the fixed music profile for a quick-generation
// intent, skipping feature derivation entirely.
func TargetForIntent(intent models.Intent) models.MusicTarget {
	switch intent {
	case models.IntentSlow:
		return models.MusicTarget{Tempo: 120, Energy: 0.4, Valence: 0.3}
	case models.IntentFast:
		return models.MusicTarget{Tempo: 160, Energy: 0.8, Valence: 0.7}
	default:
		return models.MusicTarget{Tempo: 140, Energy: 0.6, Valence: 0.5}
	}
}
