package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/esifleet/internal/formatter"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/urfave/cli/v3"
)

// CharactersProfile prints the character's public and live state.
func (r *Runner) CharactersProfile(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	profile, err := r.pilots.Profile(ctx, cmd.Int64("character"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(profile, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.PilotSummary(profile))
}

// CharactersSkills prints skill points and each skill's active level.
func (r *Runner) CharactersSkills(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	characterID := cmd.Int64("character")
	skills, err := r.pilots.Skills(ctx, characterID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(skills, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Character %d: %d skills, %d SP", characterID, len(skills.Skills), skills.TotalSP))
	if skills.UnallocatedSP > 0 {
		r.writePlain("Unallocated: %d SP\n", skills.UnallocatedSP)
	}
	for _, sk := range skills.Skills {
		r.writePlain("%-10d level %d/%d  %d SP\n", sk.SkillID, sk.ActiveSkillLevel, sk.TrainedSkillLevel, sk.SkillpointsInSkill)
	}
	return nil
}

// CharactersClones prints the home station, jump clones and active implants.
func (r *Runner) CharactersClones(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	clones, err := r.pilots.Clones(ctx, cmd.Int64("character"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(clones, cmd.Bool("pretty"))
	}

	if clones.HomeLocation != nil {
		r.writePlain("Home: %s %d\n", clones.HomeLocation.LocationType, clones.HomeLocation.LocationID)
	}
	r.writePlain("Active implants: %v\n", clones.ActiveImplants)
	r.writePlain("Jump clones: %d\n", len(clones.JumpClones))
	for _, jc := range clones.JumpClones {
		r.writePlain("%d  %s %d  implants %v\n", jc.JumpCloneID, jc.LocationType, jc.LocationID, jc.Implants)
	}
	return nil
}

// CharactersFatigue prints remaining jump fatigue.
func (r *Runner) CharactersFatigue(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	fatigue, err := r.pilots.Fatigue(ctx, cmd.Int64("character"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(fatigue, cmd.Bool("pretty"))
	}

	remaining := fatigue.Remaining(time.Now())
	if remaining == 0 {
		return r.writePlain("No jump fatigue\n")
	}
	return r.writePlain("Jump fatigue: %s remaining\n", remaining.Round(time.Second))
}

// CharactersFittings lists saved fittings.
func (r *Runner) CharactersFittings(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	characterID := cmd.Int64("character")
	fittings, err := r.pilots.Fittings(ctx, characterID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(fittings, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Character %d: %d fittings", characterID, len(fittings)))
	for _, f := range fittings {
		r.writePlain("%-10d %-24s ship %d, %d items\n", f.FittingID, f.Name, f.ShipTypeID, len(f.Items))
	}
	return nil
}

// CharactersWaypoint sets an autopilot destination.
func (r *Runner) CharactersWaypoint(ctx context.Context, cmd *cli.Command) error {
	destinationID, err := idArg(cmd, "destination-id")
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	waypoint := models.Waypoint{
		DestinationID:       destinationID,
		AddToBeginning:      cmd.Bool("add-to-beginning"),
		ClearOtherWaypoints: cmd.Bool("clear"),
	}
	if err := r.pilots.SetWaypoint(ctx, cmd.Int64("character"), waypoint); err != nil {
		return err
	}
	return r.writePlain("✓ Waypoint set to %d\n", destinationID)
}
