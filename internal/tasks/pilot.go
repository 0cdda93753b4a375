package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/shared"
	"golang.org/x/sync/errgroup"
)

// PilotReader reads a character's own state. It never touches a fleet or the template store.
type PilotReader struct {
	api    services.PilotAPI
	logger *log.Logger
}

// NewPilotReader creates a reader over api. A nil logger discards output.
func NewPilotReader(api services.PilotAPI, logger *log.Logger) *PilotReader {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &PilotReader{api: api, logger: logger}
}

// Profile reads public info, location, ship and online status concurrently, then the
// corporation and alliance.
//
// Location, ship and online status need their own scopes. A denied read leaves that section
// nil; any other failure aborts the profile.
func (r *PilotReader) Profile(ctx context.Context, characterID int64) (*models.PilotProfile, error) {
	logger := shared.WithLogger(r.logger, "character_id", characterID)
	profile := &models.PilotProfile{CharacterID: characterID}

	var info *models.PilotInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = r.api.GetPilot(gctx, characterID)
		return err
	})
	g.Go(func() error {
		loc, err := r.api.GetLocation(gctx, characterID)
		profile.Location = loc
		return optional(logger, "location", err)
	})
	g.Go(func() error {
		ship, err := r.api.GetShip(gctx, characterID)
		profile.Ship = ship
		return optional(logger, "ship", err)
	})
	g.Go(func() error {
		online, err := r.api.GetOnline(gctx, characterID)
		profile.Online = online
		return optional(logger, "online", err)
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read character %d: %w", characterID, err)
	}
	profile.Info = *info

	corp, err := r.api.GetCorporation(ctx, info.CorporationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read corporation %d: %w", info.CorporationID, err)
	}
	profile.Corporation = corp

	if info.AllianceID != 0 {
		alliance, err := r.api.GetAlliance(ctx, info.AllianceID)
		if err != nil {
			return nil, fmt.Errorf("failed to read alliance %d: %w", info.AllianceID, err)
		}
		profile.Alliance = alliance
	}

	return profile, nil
}

func (r *PilotReader) Skills(ctx context.Context, characterID int64) (*models.Skills, error) {
	return r.api.GetSkills(ctx, characterID)
}

func (r *PilotReader) Clones(ctx context.Context, characterID int64) (*models.Clones, error) {
	return r.api.GetClones(ctx, characterID)
}

func (r *PilotReader) Fatigue(ctx context.Context, characterID int64) (*models.JumpFatigue, error) {
	return r.api.GetFatigue(ctx, characterID)
}

func (r *PilotReader) Fittings(ctx context.Context, characterID int64) ([]models.Fitting, error) {
	return r.api.GetFittings(ctx, characterID)
}

// SetWaypoint validates the destination before calling out.
func (r *PilotReader) SetWaypoint(ctx context.Context, characterID int64, waypoint models.Waypoint) error {
	if waypoint.DestinationID <= 0 {
		return fmt.Errorf("%w: destination id must be positive", shared.ErrInvalidArgument)
	}
	if err := r.api.SetWaypoint(ctx, characterID, waypoint); err != nil {
		return err
	}
	r.logger.Info("waypoint set", "character_id", characterID, "destination_id", waypoint.DestinationID)
	return nil
}

func optional(logger *log.Logger, section string, err error) error {
	if errors.Is(err, shared.ErrPermissionDenied) {
		logger.Debug("section unavailable", "section", section, "err", err)
		return nil
	}
	return err
}
