package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/shared"
	"golang.org/x/sync/errgroup"
)

// TemplateStore persists write-once fleet templates.
type TemplateStore interface {
	// Save fails with [shared.ErrDuplicateName] when the name is taken.
	Save(ownerID int64, name string, body models.FleetSnapshot) (*models.FleetTemplate, error)

	// Get fails with [shared.ErrNotFound] when no template has the id.
	Get(id string) (*models.FleetTemplate, error)

	GetByName(name string) (*models.FleetTemplate, error)
}

// CaptureResult is the outcome of a capture. The snapshot is returned even when saving it failed.
type CaptureResult struct {
	Snapshot models.FleetSnapshot  // Snapshot of the live fleet
	Template *models.FleetTemplate // Stored template (nil if SaveErr is set)
	Name     string                // Name the template was saved under
	SaveErr  error                 // Persistence failure, logged and not fatal
}

// FleetEngine exposes the template engine's operations to command and HTTP handlers.
type FleetEngine struct {
	api       services.FleetAPI
	reader    *FleetReader
	templates TemplateStore
	logger    *log.Logger
	now       func() time.Time
}

// NewFleetEngine creates a [FleetEngine]. A nil logger discards output.
func NewFleetEngine(api services.FleetAPI, templates TemplateStore, logger *log.Logger) *FleetEngine {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &FleetEngine{
		api:       api,
		reader:    NewFleetReader(api, logger),
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

// Reader returns the engine's [FleetReader].
func (e *FleetEngine) Reader() *FleetReader {
	return e.reader
}

// LeadershipRole returns the character's current leadership role.
func (e *FleetEngine) LeadershipRole(ctx context.Context, characterID int64) (models.LeadershipRole, error) {
	return e.reader.GetLeadershipRole(ctx, characterID)
}

// FullFleetInfo returns the character's full fleet state, or nil when the character is not in a fleet.
func (e *FleetEngine) FullFleetInfo(ctx context.Context, characterID int64) (*models.FullFleetInfo, error) {
	return e.reader.GetFullFleetInfo(ctx, characterID)
}

// Capture snapshots the character's current fleet and saves it as a template.
//
// Any leadership role may capture. name defaults to the fleet's name, then to "Fleet <id>".
// A failed save is logged and reported in [CaptureResult.SaveErr]; reads that fail abort the capture.
func (e *FleetEngine) Capture(ctx context.Context, characterID int64, name string) (*CaptureResult, error) {
	logger := shared.WithLogger(e.logger, "character_id", characterID)

	role, err := e.reader.GetLeadershipRole(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if !role.InFleet || !role.Role.IsLeader() {
		return nil, fmt.Errorf("%w: capturing requires a fleet, wing or squad commander (role: %s)", shared.ErrPermissionDenied, role.Role)
	}
	fleetID := *role.FleetID

	var (
		info  *models.FleetInfo
		wings []models.Wing
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = e.reader.GetFleetInfo(gctx, characterID, fleetID)
		return err
	})
	g.Go(func() error {
		var err error
		wings, err = e.reader.GetFleetWings(gctx, characterID, fleetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read fleet %d: %w", fleetID, err)
	}

	snapshot := BuildSnapshot(*info, wings, e.now().UTC())

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(info.Name)
	}
	if name == "" {
		name = fmt.Sprintf("Fleet %d", fleetID)
	}

	result := &CaptureResult{Snapshot: snapshot, Name: name}
	tpl, err := e.templates.Save(characterID, name, snapshot)
	if err != nil {
		logger.Warn("captured fleet but failed to save template", "fleet_id", fleetID, "name", name, "err", err)
		result.SaveErr = err
		return result, nil
	}

	logger.Info("captured fleet", "fleet_id", fleetID, "template_id", tpl.ID(), "wings", len(snapshot.Wings), "squads", len(snapshot.Squads))
	result.Template = tpl
	return result, nil
}

// BuildSnapshot converts live fleet state into a template body. Unnamed wings and squads get
// "Wing <id>" and "Squad <id>" labels.
func BuildSnapshot(info models.FleetInfo, wings []models.Wing, capturedAt time.Time) models.FleetSnapshot {
	snapshot := models.FleetSnapshot{
		Settings: &models.FleetSettings{IsFreeMove: info.IsFreeMove, MOTD: info.MOTD, CapturedAt: capturedAt},
		Wings:    make([]models.TemplateWing, 0, len(wings)),
		Squads:   []models.TemplateSquad{},
	}

	for _, w := range wings {
		name := w.Name
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Wing %d", w.ID)
		}
		snapshot.Wings = append(snapshot.Wings, models.TemplateWing{WingID: w.ID, Name: name})

		for _, s := range w.Squads {
			squadName := s.Name
			if strings.TrimSpace(squadName) == "" {
				squadName = fmt.Sprintf("Squad %d", s.ID)
			}
			snapshot.Squads = append(snapshot.Squads, models.TemplateSquad{WingID: w.ID, SquadID: s.ID, Name: squadName})
		}
	}
	return snapshot
}

// ResolveTemplate finds a template by id, falling back to its name.
func (e *FleetEngine) ResolveTemplate(ref string) (*models.FleetTemplate, error) {
	tpl, err := e.templates.Get(ref)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return e.templates.GetByName(ref)
}

// Reconstruct replays a template, named by id or name, into the fleet the character commands and
// returns the resulting fleet.
//
// Preconditions are checked in order: the character is in a fleet, is its commander, then the
// template exists. Failing the first two returns [shared.ErrPermissionDenied] before the template
// is looked up. Remote calls run strictly in sequence. A failure partway returns a
// [*ReconstructionError] and leaves created wings and squads in place.
func (e *FleetEngine) Reconstruct(ctx context.Context, characterID int64, templateRef string, progress chan<- ProgressUpdate) (*models.FullFleetInfo, error) {
	sendProgress(progress, resolveRoleUpdate(characterID))
	fleetID, err := e.requireCommander(ctx, characterID, "reconstruct a fleet")
	if err != nil {
		sendProgress(progress, failedUpdate(0, 0, err))
		return nil, err
	}

	tpl, err := e.ResolveTemplate(templateRef)
	if err != nil {
		sendProgress(progress, failedUpdate(0, 0, err))
		return nil, err
	}
	sendProgress(progress, fetchTemplateUpdate(tpl))
	logger := shared.WithLogger(e.logger, "character_id", characterID, "template_id", tpl.ID())

	r := NewReconstructor(e.api, characterID, fleetID, tpl.Body(), logger)
	mapping, err := r.Run(ctx, progress)
	if err != nil {
		return nil, err
	}

	total := r.Steps()
	sendProgress(progress, refetchUpdate(total, total))
	full, err := e.reader.GetFullFleetInfo(ctx, characterID)
	if err != nil {
		sendProgress(progress, failedUpdate(total, total, err))
		return nil, fmt.Errorf("reconstructed fleet but failed to read it back: %w", err)
	}
	if full == nil {
		return nil, fmt.Errorf("%w: character %d is no longer in a fleet", shared.ErrNotFound, characterID)
	}

	logger.Info("reconstructed fleet", "fleet_id", fleetID, "wings", len(mapping.Wings), "squads", len(mapping.Squads))
	sendProgress(progress, doneUpdate(total, mapping))
	return full, nil
}

// requireCommander returns the fleet id when the character is its fleet commander.
func (e *FleetEngine) requireCommander(ctx context.Context, characterID int64, action string) (int64, error) {
	role, err := e.reader.GetLeadershipRole(ctx, characterID)
	if err != nil {
		return 0, err
	}
	if !role.InFleet {
		return 0, fmt.Errorf("%w: character %d is not in a fleet", shared.ErrPermissionDenied, characterID)
	}
	if role.Role != models.RoleFleetCommander {
		return 0, fmt.Errorf("%w: only the fleet commander may %s (role: %s)", shared.ErrPermissionDenied, action, role.Role)
	}
	return *role.FleetID, nil
}

// UpdateSettings changes free-move and/or the MOTD of the commanded fleet.
func (e *FleetEngine) UpdateSettings(ctx context.Context, characterID int64, update models.FleetSettingsUpdate) error {
	fleetID, err := e.requireCommander(ctx, characterID, "change fleet settings")
	if err != nil {
		return err
	}
	return e.api.UpdateFleetSettings(ctx, characterID, fleetID, update)
}

func (e *FleetEngine) DeleteWing(ctx context.Context, characterID, wingID int64) error {
	fleetID, err := e.requireCommander(ctx, characterID, "delete wings")
	if err != nil {
		return err
	}
	return e.api.DeleteWing(ctx, characterID, fleetID, wingID)
}

func (e *FleetEngine) DeleteSquad(ctx context.Context, characterID, squadID int64) error {
	fleetID, err := e.requireCommander(ctx, characterID, "delete squads")
	if err != nil {
		return err
	}
	return e.api.DeleteSquad(ctx, characterID, fleetID, squadID)
}

// MoveMember changes a member's role and position in the commanded fleet.
func (e *FleetEngine) MoveMember(ctx context.Context, characterID, memberID int64, move models.MemberMove) error {
	fleetID, err := e.requireCommander(ctx, characterID, "move members")
	if err != nil {
		return err
	}
	return e.api.MoveMember(ctx, characterID, fleetID, memberID, move)
}
