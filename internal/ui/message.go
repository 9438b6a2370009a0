package ui

import (
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/tasks"
)

// historyLoadedMsg carries the snapshot contents fetched during Init.
type historyLoadedMsg struct {
	runs     []models.RunRecord
	features []models.FeatureSet
	err      error
}

// progressUpdateMsg wraps a pipeline progress event for the generate view.
type progressUpdateMsg tasks.ProgressUpdate

// generationDoneMsg signals the end of a generation, successful or not.
type generationDoneMsg struct {
	result *tasks.GenerationResult
	err    error
}
