// Package models defines the domain records for the cadence playlist generation service.
//
// The package contains two categories of types:
//
// 1. Fetched records: payloads normalized from external collaborators
//   - [RunRecord] : A single activity from the activity tracker, with joined weather
//   - [WeatherSnapshot] : Hourly weather readings matched to a run's start time
//   - [Track] : Song metadata from the streaming service search API
//   - [AudioFeatures] : Per-track tempo/energy/valence annotations
//
// 2. Derived records: values produced by the feature and recommendation pipeline
//   - [FeatureSet] : The engineered view of a run (bins, classification, history stats)
//   - [MusicTarget] : Target tempo/energy/valence handed to the track selector
//   - [TrainingLoadAnalysis] : Rolling-window load and pace suggestion
//   - [PlaylistMetadata] : The single latest-playlist snapshot written after a run
//
// Fetched records are immutable once constructed; derived records are produced fresh
// on every pipeline invocation and never mutated after creation. Enumerated fields
// (run type, bins, time of day, fatigue) are typed strings whose literal values are
// shared with the trained model artifact's categorical encoders, so they must not
// be renamed casually.
package models
