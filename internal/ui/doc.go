// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for run-driven playlist generation:
//  1. [RunListView] : Browse the synced run history
//  2. [ConfirmView] : Review the run's pace, distance, and classified type before generating
//  3. [GenerateView] : Monitor real-time pipeline progress
//  4. [ResultView] : Display the created playlist, or why selection came up short
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Run history is loaded through a [HistoryLoader] so the model stays decoupled from
// the snapshot store. Progress updates flow through a channel from the PlaylistEngine,
// providing non-blocking status reporting during generation.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
