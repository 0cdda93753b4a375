package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/esifleet/internal/formatter"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/urfave/cli/v3"
)

// idArg parses a required numeric positional argument.
func idArg(cmd *cli.Command, name string) (int64, error) {
	raw := strings.TrimSpace(cmd.StringArg(name))
	if raw == "" {
		return 0, fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", shared.ErrInvalidArgument, name, raw)
	}
	return id, nil
}

// fullFleet loads the character's fleet or reports that it has none.
func (r *Runner) fullFleet(ctx context.Context, characterID int64) (*models.FullFleetInfo, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	full, err := r.engine.FullFleetInfo(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return nil, fmt.Errorf("%w: character %d is not in a fleet", shared.ErrNotFound, characterID)
	}
	return full, nil
}

// FleetRole prints the character's leadership role.
func (r *Runner) FleetRole(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	characterID := cmd.Int64("character")

	role, err := r.engine.LeadershipRole(ctx, characterID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(role, cmd.Bool("pretty"))
	}
	if !role.InFleet {
		return r.writePlain("Character %d is not in a fleet\n", characterID)
	}
	return r.writePlain("Fleet %d: %s\n", *role.FleetID, formatter.RoleSummary(role))
}

// FleetInfo prints settings, structure and member counts of the character's fleet.
func (r *Runner) FleetInfo(ctx context.Context, cmd *cli.Command) error {
	full, err := r.fullFleet(ctx, cmd.Int64("character"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(full, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.FleetSummary(full))
}

// FleetWings lists wings and their squads.
func (r *Runner) FleetWings(ctx context.Context, cmd *cli.Command) error {
	full, err := r.fullFleet(ctx, cmd.Int64("character"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(full.Wings, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Fleet %d: %d wings, %d squads", full.FleetID, len(full.Wings), full.SquadCount()))
	for _, w := range full.Wings {
		r.writePlain("%d  %s\n", w.ID, w.Name)
		for _, s := range w.Squads {
			r.writePlain("   └ %d  %s\n", s.ID, s.Name)
		}
	}
	return nil
}

// FleetMembers lists fleet members with their positions.
func (r *Runner) FleetMembers(ctx context.Context, cmd *cli.Command) error {
	full, err := r.fullFleet(ctx, cmd.Int64("character"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(full.Members, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Fleet %d: %d members", full.FleetID, len(full.Members)))
	for _, m := range full.Members {
		r.writePlain("%-12d %-16s wing %-6s squad %-6s ship %d\n",
			m.CharacterID, m.Role, position(m.WingID), position(m.SquadID), m.ShipTypeID)
	}
	return nil
}

func position(id int64) string {
	if id < 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}

// FleetSettings updates free move and/or the MOTD.
func (r *Runner) FleetSettings(ctx context.Context, cmd *cli.Command) error {
	var update models.FleetSettingsUpdate
	if cmd.IsSet("free-move") {
		freeMove := cmd.Bool("free-move")
		update.IsFreeMove = &freeMove
	}
	if cmd.IsSet("motd") {
		motd := cmd.String("motd")
		update.MOTD = &motd
	}
	if update.IsFreeMove == nil && update.MOTD == nil {
		return fmt.Errorf("%w: --free-move or --motd", shared.ErrMissingArgument)
	}

	if err := r.open(); err != nil {
		return err
	}
	if err := r.engine.UpdateSettings(ctx, cmd.Int64("character"), update); err != nil {
		return err
	}
	return r.writePlain("✓ Fleet settings updated\n")
}

// FleetDeleteWing deletes a wing.
func (r *Runner) FleetDeleteWing(ctx context.Context, cmd *cli.Command) error {
	wingID, err := idArg(cmd, "wing-id")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.engine.DeleteWing(ctx, cmd.Int64("character"), wingID); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted wing %d\n", wingID)
}

// FleetDeleteSquad deletes a squad.
func (r *Runner) FleetDeleteSquad(ctx context.Context, cmd *cli.Command) error {
	squadID, err := idArg(cmd, "squad-id")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.engine.DeleteSquad(ctx, cmd.Int64("character"), squadID); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted squad %d\n", squadID)
}

// FleetMove moves a member to a new role, wing and squad.
func (r *Runner) FleetMove(ctx context.Context, cmd *cli.Command) error {
	memberID, err := idArg(cmd, "member-id")
	if err != nil {
		return err
	}

	role := models.ParseRole(cmd.String("role"))
	if role == models.RoleNone {
		return fmt.Errorf("%w: unknown role %q", shared.ErrInvalidArgument, cmd.String("role"))
	}

	move := models.MemberMove{Role: role}
	if cmd.IsSet("wing") {
		wingID := cmd.Int64("wing")
		move.WingID = &wingID
	}
	if cmd.IsSet("squad") {
		squadID := cmd.Int64("squad")
		move.SquadID = &squadID
	}

	if err := r.open(); err != nil {
		return err
	}
	if err := r.engine.MoveMember(ctx, cmd.Int64("character"), memberID, move); err != nil {
		return err
	}
	return r.writePlain("✓ Moved %d to %s\n", memberID, role)
}
