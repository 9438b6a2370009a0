package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunListView ViewState = iota
	ConfirmView
	GenerateView
	ResultView
)

// HistoryLoader fetches the synced run history and engineered features the
// model browses. Usually backed by the snapshot store.
type HistoryLoader func() ([]models.RunRecord, []models.FeatureSet, error)

// Model represents the TUI application state.
type Model struct {
	ctx            context.Context
	view           ViewState
	load           HistoryLoader
	engine         *tasks.PlaylistEngine
	width          int
	height         int
	runList        list.Model
	runs           []models.RunRecord
	featureSets    []models.FeatureSet
	selected       *models.RunRecord
	progressChan   chan tasks.ProgressUpdate
	generationDone chan generationDoneMsg
	progress       tasks.ProgressUpdate
	result         *tasks.GenerationResult
	err            error
	help           help.Model
	keys           keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, load HistoryLoader, engine *tasks.PlaylistEngine) *Model {
	return &Model{
		ctx:    ctx,
		view:   RunListView,
		load:   load,
		engine: engine,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by loading the run history snapshot.
func (m *Model) Init() tea.Cmd {
	return m.loadHistory()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.runList.Width() == 0 {
			m.runList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case RunListView:
			return m.handleRunListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case historyLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.runs = msg.runs
		m.featureSets = msg.features
		items := make([]list.Item, len(msg.runs))
		for i, run := range msg.runs {
			items[i] = runItem{run: run, features: m.featuresFor(run.ID)}
		}
		m.runList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.runList.Title = "Recent Runs"
		m.runList.SetSize(m.width-4, m.height-8)
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case generationDoneMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case RunListView:
		return m.renderRunList()
	case ConfirmView:
		return m.renderConfirm()
	case GenerateView:
		return m.renderGenerate()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleRunListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.runList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(runItem); ok {
				run := item.run
				m.selected = &run
				m.view = ConfirmView
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.runList, cmd = m.runList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "n":
		m.view = RunListView
		m.selected = nil
		return m, nil
	case "y", "enter":
		m.view = GenerateView
		return m, m.startGeneration()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = RunListView
		m.selected = nil
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == RunListView {
		m.runList, cmd = m.runList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		runs, features, err := m.load()
		return historyLoadedMsg{runs: runs, features: features, err: err}
	}
}

func (m *Model) startGeneration() tea.Cmd {
	run := *m.selected
	prog := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = prog

	done := make(chan generationDoneMsg, 1)
	go func() {
		result, err := m.engine.Generate(m.ctx, prog, run, m.runs, m.featureSets)
		close(prog)
		done <- generationDoneMsg{result: result, err: err}
	}()
	m.generationDone = done

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	prog := m.progressChan
	done := m.generationDone
	return func() tea.Msg {
		if prog == nil {
			return <-done
		}
		update, ok := <-prog
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

// featuresFor returns the engineered feature set for a run, or nil when the
// snapshot has none (e.g. a run synced after the last derivation).
func (m *Model) featuresFor(runID int64) *models.FeatureSet {
	for i := range m.featureSets {
		if m.featureSets[i].RunID == runID {
			return &m.featureSets[i]
		}
	}
	return nil
}

func (m *Model) renderRunList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.runList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Generate a playlist for '%s'?", m.selected.Name))

	info := fmt.Sprintf("\nDate: %s\nDistance: %.1f km\nPace: %s/km\n",
		m.selected.StartTime.Format("Mon Jan 2 15:04"),
		m.selected.DistanceKm(),
		tasks.FormatPace(m.selected.PaceMinKm()))
	if fs := m.featuresFor(m.selected.ID); fs != nil {
		info += fmt.Sprintf("Run type: %s\nTarget cadence: %d BPM\n", fs.RunType, fs.TargetBPM)
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderGenerate() string {
	title := styles.title.Render("Generating Playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.AnalyzeLoad:
		phase = "Analyzing training load..."
	case tasks.PredictTarget:
		phase = "Predicting music target..."
	case tasks.SourceCandidates:
		phase = fmt.Sprintf("Sourcing candidates (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.FetchAudioFeatures:
		phase = fmt.Sprintf("Fetching audio features (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.SelectTracks:
		phase = "Filtering and ordering tracks..."
	case tasks.CreatePlaylist, tasks.AddTracks:
		phase = "Creating playlist..."
	case tasks.WriteSnapshot:
		phase = "Saving snapshot..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Generation failed: %v\n\nPress r to pick another run, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to pick another run, q to quit")
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.result.Insufficient() {
		warn := styles.warn.Render("Not enough matching tracks to build a playlist.")
		detail := fmt.Sprintf("\nCandidates: %d\nSurvived filtering: %d (relaxed tolerances tried)\n\nTry a different run or loosen the selector config.",
			m.result.Outcome.Candidates, len(m.result.Outcome.Tracks))
		return fmt.Sprintf("%s%s\n\n%s", warn, detail, helpView)
	}

	title := styles.ok.Render("✓ Playlist Created!")
	info := fmt.Sprintf(
		"\nTitle: %s\nTracks: %d\nTarget: %d BPM, energy %.2f, valence %.2f\nStrategy: %s",
		m.result.Metadata.Title,
		m.result.Metadata.TrackCount,
		m.result.Target.Tempo,
		m.result.Target.Energy,
		m.result.Target.Valence,
		m.result.Strategy,
	)
	if m.result.Playlist != nil && m.result.Playlist.URL != "" {
		info += fmt.Sprintf("\nURL: %s", m.result.Playlist.URL)
	}
	if m.result.Outcome.Relaxed {
		info += fmt.Sprintf("\n\n%s", styles.warn.Render("Tolerances were relaxed to fill the playlist."))
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
