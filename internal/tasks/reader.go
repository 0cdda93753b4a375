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

// FleetReader answers what a character's live fleet looks like and what the character may do in it.
//
// Nothing is cached: every call goes to the [services.FleetAPI].
type FleetReader struct {
	api    services.FleetAPI
	logger *log.Logger
}

// NewFleetReader creates a reader over api. A nil logger discards output.
func NewFleetReader(api services.FleetAPI, logger *log.Logger) *FleetReader {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &FleetReader{api: api, logger: logger}
}

// GetCurrentFleet returns the character's fleet and raw role, or nil when not in a fleet.
func (r *FleetReader) GetCurrentFleet(ctx context.Context, characterID int64) (*models.FleetRef, error) {
	return r.api.GetCharacterFleet(ctx, characterID)
}

func (r *FleetReader) GetFleetInfo(ctx context.Context, characterID, fleetID int64) (*models.FleetInfo, error) {
	return r.api.GetFleet(ctx, characterID, fleetID)
}

func (r *FleetReader) GetFleetMembers(ctx context.Context, characterID, fleetID int64) ([]models.Member, error) {
	return r.api.GetFleetMembers(ctx, characterID, fleetID)
}

func (r *FleetReader) GetFleetWings(ctx context.Context, characterID, fleetID int64) ([]models.Wing, error) {
	return r.api.GetFleetWings(ctx, characterID, fleetID)
}

// GetLeadershipRole derives the character's role from its own entry in the member list.
//
// A character outside any fleet gets [models.NotInFleet] after a single lookup. ESI only lets
// the fleet boss read members, so a denied or missing member list falls back to the role
// reported with the character's fleet.
func (r *FleetReader) GetLeadershipRole(ctx context.Context, characterID int64) (models.LeadershipRole, error) {
	ref, err := r.api.GetCharacterFleet(ctx, characterID)
	if err != nil {
		return models.NotInFleet(), err
	}
	if ref == nil {
		return models.NotInFleet(), nil
	}

	members, err := r.api.GetFleetMembers(ctx, characterID, ref.FleetID)
	if err != nil {
		if !memberListHidden(err) {
			return models.NotInFleet(), err
		}
		r.logger.Debug("member list unavailable, using fleet role", "character_id", characterID, "fleet_id", ref.FleetID, "err", err)
		members = nil
	}

	return leadership(characterID, ref, members), nil
}

// GetFullFleetInfo reads settings, members and wings concurrently. It returns nil when the
// character is not in a fleet.
func (r *FleetReader) GetFullFleetInfo(ctx context.Context, characterID int64) (*models.FullFleetInfo, error) {
	ref, err := r.api.GetCharacterFleet(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, nil
	}

	var (
		info    *models.FleetInfo
		members []models.Member
		wings   []models.Wing
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = r.api.GetFleet(gctx, characterID, ref.FleetID)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = r.api.GetFleetMembers(gctx, characterID, ref.FleetID)
		if err != nil && memberListHidden(err) {
			members = nil
			return nil
		}
		return err
	})
	g.Go(func() error {
		var err error
		wings, err = r.api.GetFleetWings(gctx, characterID, ref.FleetID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read fleet %d: %w", ref.FleetID, err)
	}

	return &models.FullFleetInfo{
		FleetID:    ref.FleetID,
		Role:       ref.Role,
		WingID:     ref.WingID,
		SquadID:    ref.SquadID,
		Info:       *info,
		Members:    members,
		Wings:      wings,
		Leadership: leadership(characterID, ref, members),
	}, nil
}

func memberListHidden(err error) bool {
	return errors.Is(err, shared.ErrPermissionDenied) || errors.Is(err, shared.ErrNotFound)
}

func leadership(characterID int64, ref *models.FleetRef, members []models.Member) models.LeadershipRole {
	role, wingID, squadID := ref.Role, ref.WingID, ref.SquadID
	for _, m := range members {
		if m.CharacterID == characterID {
			role, wingID, squadID = m.Role, m.WingID, m.SquadID
			break
		}
	}

	return models.LeadershipRole{
		InFleet: true,
		Role:    models.ParseRole(string(role)),
		FleetID: models.OptionalID(ref.FleetID),
		WingID:  models.OptionalID(wingID),
		SquadID: models.OptionalID(squadID),
	}
}
