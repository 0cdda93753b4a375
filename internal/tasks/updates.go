package tasks

import (
	"fmt"

	"github.com/desertthunder/esifleet/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number across the whole operation
	Total   int    // Total steps in the operation
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveRole Phase = iota
	FetchTemplate
	ApplySettings
	CreateWing
	CreateSquad
	Refetch
	Done
	Failed
	RefreshTokens
)

func (p Phase) String() string {
	switch p {
	case ResolveRole:
		return "resolve_role"
	case FetchTemplate:
		return "fetch_template"
	case ApplySettings:
		return "apply_settings"
	case CreateWing:
		return "create_wing"
	case CreateSquad:
		return "create_squad"
	case Refetch:
		return "refetch"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case RefreshTokens:
		return "refresh_tokens"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func resolveRoleUpdate(characterID int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveRole,
		Message: fmt.Sprintf("Checking fleet role of character %d...", characterID),
	}
}

func fetchTemplateUpdate(tpl *models.FleetTemplate) ProgressUpdate {
	body := tpl.Body()
	return ProgressUpdate{
		Phase:   FetchTemplate,
		Message: fmt.Sprintf("Loaded template %q (%d wings, %d squads)", tpl.Name(), len(body.Wings), len(body.Squads)),
		Data:    tpl.View(),
	}
}

func applySettingsUpdate(step, total int, settings *models.FleetSettings) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ApplySettings,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Applying fleet settings (free move: %t)...", settings.IsFreeMove),
	}
}

func createWingUpdate(step, total, index int, wing models.TemplateWing) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateWing,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating wing %d: %s", step, total, index+1, wing.Name),
		Data:    wing,
	}
}

func createSquadUpdate(step, total, wingIndex, squadIndex int, squad models.TemplateSquad) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateSquad,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating squad %d.%d: %s", step, total, wingIndex+1, squadIndex+1, squad.Name),
		Data:    squad,
	}
}

func refetchUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Refetch,
		Step:    step,
		Total:   total,
		Message: "Reading back fleet structure...",
	}
}

func doneUpdate(total int, mapping LiveFleetMapping) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("✓ Created %d wings and %d squads", len(mapping.Wings), len(mapping.Squads)),
		Data:    mapping,
	}
}

func failedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %v", err),
		Data:    err,
	}
}

func refreshedUpdate(step, total int, characterID int64, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ character %d", step, total, characterID)
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ character %d: %v", step, total, characterID, err)
	}
	return ProgressUpdate{Phase: RefreshTokens, Step: step, Total: total, Message: msg}
}
