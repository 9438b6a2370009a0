package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/tasks"
)

var _ list.Item = runItem{}

// runItem wraps [models.RunRecord] to implement [list.Item]. The optional
// feature set enriches the description with the classified run type.
type runItem struct {
	run      models.RunRecord
	features *models.FeatureSet
}

func (i runItem) FilterValue() string { return i.run.Name }
func (i runItem) Title() string       { return i.run.Name }
func (i runItem) Description() string {
	desc := fmt.Sprintf("%s • %.1f km • %s/km",
		i.run.StartTime.Format("Jan 2"),
		i.run.DistanceKm(),
		tasks.FormatPace(i.run.PaceMinKm()))
	if i.features != nil {
		desc = fmt.Sprintf("%s • %s", desc, i.features.RunType)
	}
	return desc
}
