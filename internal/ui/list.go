package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/esifleet/internal/models"
)

var (
	_ list.Item = templateItem{}
	_ list.Item = structureItem{}
)

// templateItem wraps [models.FleetTemplate] to implement [list.Item].
type templateItem struct {
	template *models.FleetTemplate
}

func (i templateItem) FilterValue() string { return i.template.Name() }
func (i templateItem) Title() string       { return i.template.Name() }
func (i templateItem) Description() string {
	body := i.template.Body()
	desc := fmt.Sprintf("%d wings • %d squads", len(body.Wings), len(body.Squads))
	if body.Settings != nil && !body.Settings.CapturedAt.IsZero() {
		desc = fmt.Sprintf("%s • captured %s", desc, body.Settings.CapturedAt.Format("2006-01-02"))
	}
	return desc
}

// structureItem is one wing or squad row of a template preview.
type structureItem struct {
	name   string
	detail string
	squad  bool
}

func (i structureItem) FilterValue() string { return i.name }
func (i structureItem) Title() string {
	if i.squad {
		return "  └ " + i.name
	}
	return i.name
}
func (i structureItem) Description() string { return i.detail }

// structureItems flattens a snapshot into wing rows, each followed by its squads.
func structureItems(body models.FleetSnapshot) []list.Item {
	items := make([]list.Item, 0, len(body.Wings)+len(body.Squads))
	for i, w := range body.Wings {
		squads := body.SquadsOf(w.WingID)
		items = append(items, structureItem{
			name:   displayName(w.Name, fmt.Sprintf("Wing %d", i+1)),
			detail: fmt.Sprintf("wing %d • %d squads", i+1, len(squads)),
		})
		for j, s := range squads {
			items = append(items, structureItem{
				name:   displayName(s.Name, fmt.Sprintf("Squad %d", j+1)),
				detail: fmt.Sprintf("squad %d.%d", i+1, j+1),
				squad:  true,
			})
		}
	}
	return items
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback + " (unnamed)"
	}
	return name
}
