// Package features derives structured run features from raw activity and weather records.
//
// # Feature Derivation
//
// The [Deriver] maps a run plus its joined weather into a [models.FeatureSet]:
//
//   - Pace to target BPM through a banded lookup table
//   - Temperature, distance and start-hour binning
//   - Run-type classification from the activity name, pace and distance
//   - Rolling history statistics (trailing 7-day mileage, pace consistency)
//
// All derivation is pure: given the same run and history, the same FeatureSet
// comes back. No external calls happen here.
//
// # Training Load
//
// The [LoadAnalyzer] scans a history of derived feature records and produces a
// [models.TrainingLoadAnalysis]: a suggested pace with a tolerance range for the
// requested run type, and a qualitative fatigue label from trailing weekly volume.
//
// # History Ordering
//
// Both components expect history ordered newest first. [SortHistory] and
// [SortFeatureHistory] normalize slices in place, and [Deriver.Derive] rejects
// unordered input instead of silently deriving wrong statistics from it.
//
// Lookup tables and thresholds live in [DeriverConfig] and [AnalyzerConfig] so
// tests can override them without touching shared state. The default
// configurations carry the canonical constants.
package features
