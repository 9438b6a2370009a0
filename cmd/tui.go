package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for playlist generation.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticateMusic(ctx); err != nil {
		return err
	}

	store, err := r.snapshots()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.DataPath("cadence-tui.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	cache, closeCache := r.openFeatureCache()
	defer closeCache()

	engine, err := r.buildEngine(cache, store)
	if err != nil {
		return err
	}

	loader := func() ([]models.RunRecord, []models.FeatureSet, error) {
		runs, err := store.LoadRuns()
		if err != nil {
			return nil, nil, err
		}
		sets, err := store.LoadFeatures()
		if err != nil {
			fileLogger.Warn("no feature snapshot", "error", err)
			sets = nil
		}
		return runs, sets, nil
	}

	model := ui.NewModel(ctx, loader, engine)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
