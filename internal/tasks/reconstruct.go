package tasks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/shared"
)

// ReconstructState is the position of a [Reconstructor].
type ReconstructState int

const (
	StateIdle ReconstructState = iota
	StateApplyingSettings
	StateCreatingWing
	StateCreatingSquad
	StateDone
)

func (s ReconstructState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplyingSettings:
		return "applying_settings"
	case StateCreatingWing:
		return "creating_wing"
	case StateCreatingSquad:
		return "creating_squad"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Remote steps named in a [ReconstructionError].
const (
	StepCreateWing  = "create_wing"
	StepRenameWing  = "rename_wing"
	StepCreateSquad = "create_squad"
	StepRenameSquad = "rename_squad"
)

// LiveFleetMapping translates template-local wing and squad ids to the live ids created for them.
type LiveFleetMapping struct {
	Wings  map[int64]int64 `json:"wings"`
	Squads map[int64]int64 `json:"squads"`
}

func newLiveFleetMapping() LiveFleetMapping {
	return LiveFleetMapping{Wings: map[int64]int64{}, Squads: map[int64]int64{}}
}

// ReconstructionError reports a replay that stopped partway. Everything in Mapping exists in
// the live fleet; nothing is rolled back.
//
// It matches both [shared.ErrReconstructionIncomplete] and the remote cause with [errors.Is].
type ReconstructionError struct {
	Mapping    LiveFleetMapping
	State      ReconstructState
	WingIndex  int
	SquadIndex int
	Step       string
	Err        error
}

func (e *ReconstructionError) Error() string {
	pos := fmt.Sprintf("wing %d", e.WingIndex+1)
	if e.State == StateCreatingSquad {
		pos = fmt.Sprintf("wing %d squad %d", e.WingIndex+1, e.SquadIndex+1)
	}
	return fmt.Sprintf("%v: %s failed at %s after %d wings and %d squads: %v",
		shared.ErrReconstructionIncomplete, e.Step, pos, len(e.Mapping.Wings), len(e.Mapping.Squads), e.Err)
}

func (e *ReconstructionError) Unwrap() []error {
	return []error{shared.ErrReconstructionIncomplete, e.Err}
}

// Reconstructor replays a [models.FleetSnapshot] against a live fleet, one awaited remote call at a time.
//
// States advance Idle → ApplyingSettings → CreatingWing(i) → CreatingSquad(i,j) → Done. A failed
// call freezes the machine at its current position.
type Reconstructor struct {
	api         services.FleetAPI
	characterID int64
	fleetID     int64
	template    models.FleetSnapshot
	logger      *log.Logger

	state      ReconstructState
	wingIndex  int
	squadIndex int
	squads     []models.TemplateSquad
	mapping    LiveFleetMapping
	step       int
	total      int
}

// NewReconstructor prepares a replay of template into fleetID on behalf of characterID.
func NewReconstructor(api services.FleetAPI, characterID, fleetID int64, template models.FleetSnapshot, logger *log.Logger) *Reconstructor {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	total := len(template.Wings) + len(template.Squads)
	if template.Settings != nil {
		total++
	}

	return &Reconstructor{
		api:         api,
		characterID: characterID,
		fleetID:     fleetID,
		template:    template,
		logger:      shared.WithLogger(logger, "character_id", characterID, "fleet_id", fleetID),
		state:       StateIdle,
		mapping:     newLiveFleetMapping(),
		total:       total,
	}
}

// State returns the current state and wing/squad position.
func (r *Reconstructor) State() (ReconstructState, int, int) {
	return r.state, r.wingIndex, r.squadIndex
}

// Mapping returns the ids created so far.
func (r *Reconstructor) Mapping() LiveFleetMapping {
	return r.mapping
}

// Steps returns the number of remote units of work (settings, wings, squads) in the replay.
func (r *Reconstructor) Steps() int {
	return r.total
}

// Run drives the machine to Done.
//
// A settings failure returns the remote error as is. A later failure returns a [*ReconstructionError]
// carrying the partial mapping.
func (r *Reconstructor) Run(ctx context.Context, progress chan<- ProgressUpdate) (LiveFleetMapping, error) {
	if r.state != StateIdle {
		return r.mapping, fmt.Errorf("reconstructor already ran (state %s)", r.state)
	}

	r.state = StateApplyingSettings
	for r.state != StateDone {
		var err error
		switch r.state {
		case StateApplyingSettings:
			err = r.applySettings(ctx, progress)
		case StateCreatingWing:
			err = r.createWing(ctx, progress)
		case StateCreatingSquad:
			err = r.createSquad(ctx, progress)
		}
		if err != nil {
			sendProgress(progress, failedUpdate(r.step, r.total, err))
			return r.mapping, err
		}
	}
	return r.mapping, nil
}

func (r *Reconstructor) applySettings(ctx context.Context, progress chan<- ProgressUpdate) error {
	if s := r.template.Settings; s != nil {
		r.step++
		sendProgress(progress, applySettingsUpdate(r.step, r.total, s))

		update := models.FleetSettingsUpdate{IsFreeMove: &s.IsFreeMove, MOTD: &s.MOTD}
		if err := r.api.UpdateFleetSettings(ctx, r.characterID, r.fleetID, update); err != nil {
			r.logger.Warn("failed to apply fleet settings", "err", err)
			return err
		}
	}

	r.enterWing(0)
	return nil
}

func (r *Reconstructor) createWing(ctx context.Context, progress chan<- ProgressUpdate) error {
	wing := r.template.Wings[r.wingIndex]
	r.step++
	sendProgress(progress, createWingUpdate(r.step, r.total, r.wingIndex, wing))

	liveID, err := r.api.CreateWing(ctx, r.characterID, r.fleetID)
	if err != nil {
		return r.fail(StepCreateWing, err)
	}
	r.mapping.Wings[wing.WingID] = liveID

	if err := r.api.RenameWing(ctx, r.characterID, r.fleetID, liveID, wing.Name); err != nil {
		return r.fail(StepRenameWing, err)
	}

	r.logger.Debug("created wing", "template_wing_id", wing.WingID, "wing_id", liveID, "name", wing.Name)

	r.squads = r.template.SquadsOf(wing.WingID)
	if len(r.squads) == 0 {
		r.enterWing(r.wingIndex + 1)
		return nil
	}
	r.state = StateCreatingSquad
	r.squadIndex = 0
	return nil
}

func (r *Reconstructor) createSquad(ctx context.Context, progress chan<- ProgressUpdate) error {
	squad := r.squads[r.squadIndex]
	liveWingID := r.mapping.Wings[squad.WingID]
	r.step++
	sendProgress(progress, createSquadUpdate(r.step, r.total, r.wingIndex, r.squadIndex, squad))

	liveID, err := r.api.CreateSquad(ctx, r.characterID, r.fleetID, liveWingID)
	if err != nil {
		return r.fail(StepCreateSquad, err)
	}
	r.mapping.Squads[squad.SquadID] = liveID

	if err := r.api.RenameSquad(ctx, r.characterID, r.fleetID, liveID, squad.Name); err != nil {
		return r.fail(StepRenameSquad, err)
	}

	r.logger.Debug("created squad", "template_squad_id", squad.SquadID, "squad_id", liveID, "name", squad.Name)

	r.squadIndex++
	if r.squadIndex >= len(r.squads) {
		r.enterWing(r.wingIndex + 1)
	}
	return nil
}

// enterWing moves to wing i, or to Done past the last wing.
func (r *Reconstructor) enterWing(i int) {
	r.wingIndex = i
	r.squadIndex = 0
	r.squads = nil
	if i >= len(r.template.Wings) {
		r.state = StateDone
		return
	}
	r.state = StateCreatingWing
}

func (r *Reconstructor) fail(step string, err error) error {
	r.logger.Warn("reconstruction stopped", "state", r.state, "wing_index", r.wingIndex, "squad_index", r.squadIndex, "step", step, "err", err)
	return &ReconstructionError{
		Mapping:    r.mapping,
		State:      r.state,
		WingIndex:  r.wingIndex,
		SquadIndex: r.squadIndex,
		Step:       step,
		Err:        err,
	}
}
