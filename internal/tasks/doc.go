// Package tasks orchestrates the run-to-playlist pipelines with real-time progress reporting.
//
// # Core Engines
//
//  1. [PlaylistEngine] : Run → playlist generation
//     - Derives features for a recorded, planned, or intent-only run
//     - Analyzes training load against the feature history
//     - Predicts a music target via the configured [TargetStrategy]
//     - Sources, annotates, and selects tracks, then creates the playlist
//
//  2. [SyncEngine] : Activity history refresh
//     - Fetches recent runs from the activity tracker
//     - Joins an hourly weather snapshot to each run
//     - Derives the engineered feature history and persists both snapshots
//
//  3. [StreamsExporter] : Bulk per-sample stream export
//     - Fetches activity streams sequentially under a rate limit
//     - Fans file writes out across a small worker pool
//     - Writes a manifest summarizing successes and failures
//
// # Target Strategies
//
// [TargetStrategy] maps a feature set to a tempo/energy/valence target.
// [RuleStrategy] uses deterministic lookup tables; [ModelStrategy] evaluates a
// trained regression artifact loaded from disk. The strategy is chosen by
// configuration alone; a missing artifact is an error, never a silent fallback.
//
// # Candidate Flow
//
// [Sourcer] gathers candidates through run-type-specific search queries,
// deduplicating first-seen by track ID and broadening once when the pool is
// thin. [Selector] filters candidates against the target within tolerance
// windows, relaxing once before reporting an insufficient outcome, and orders
// long-run playlists progressively by tempo.
//
// # Progress Reporting
//
// All operations send [ProgressUpdate] values through caller-provided
// channels. Updates use select with default so reporting never blocks the
// pipeline; a nil channel disables reporting.
package tasks
