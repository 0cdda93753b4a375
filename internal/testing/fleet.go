package testing

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

// Call is one recorded [FakeFleetAPI] invocation.
type Call struct {
	Method      string
	CharacterID int64
	FleetID     int64
	// Target is the wing, squad or member the call acted on, or the id it created.
	Target int64
	Name   string
}

type failure struct {
	nth int
	err error
}

// FakeFleetAPI is an in-memory fleet-management service that records every call.
//
// Create calls hand out increasing ids starting at 1000. Failures are injected per method
// with [FakeFleetAPI.FailOn].
type FakeFleetAPI struct {
	mu       sync.Mutex
	refs     map[int64]*models.FleetRef
	infos    map[int64]*models.FleetInfo
	members  map[int64][]models.Member
	wings    map[int64][]models.Wing
	failures map[string]failure
	counts   map[string]int
	calls    []Call
	nextID   int64
}

// NewFakeFleetAPI returns an empty fake; no character is in a fleet.
func NewFakeFleetAPI() *FakeFleetAPI {
	return &FakeFleetAPI{
		refs:     make(map[int64]*models.FleetRef),
		infos:    make(map[int64]*models.FleetInfo),
		members:  make(map[int64][]models.Member),
		wings:    make(map[int64][]models.Wing),
		failures: make(map[string]failure),
		counts:   make(map[string]int),
		nextID:   1000,
	}
}

// AddFleet registers a live fleet with the given info and structure.
func (f *FakeFleetAPI) AddFleet(fleetID int64, info models.FleetInfo, wings []models.Wing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[fleetID] = &info
	f.wings[fleetID] = cloneWings(wings)
}

// Join puts characterID in fleetID with role. Use -1 for a wing or squad that does not apply.
func (f *FakeFleetAPI) Join(characterID, fleetID int64, role models.Role, wingID, squadID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[characterID] = &models.FleetRef{
		FleetID: fleetID, FleetBossID: characterID, Role: role, WingID: wingID, SquadID: squadID,
	}
	f.members[fleetID] = append(f.members[fleetID], models.Member{
		CharacterID: characterID, Role: role, RoleName: string(role), WingID: wingID, SquadID: squadID,
	})
}

// SetMemberRole changes the role in the member list only, leaving the character's fleet ref as is.
func (f *FakeFleetAPI) SetMemberRole(fleetID, characterID int64, role models.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.members[fleetID] {
		if f.members[fleetID][i].CharacterID == characterID {
			f.members[fleetID][i].Role = role
		}
	}
}

// FailOn makes the nth call (1-based) to method fail with err. nth 0 fails every call.
func (f *FakeFleetAPI) FailOn(method string, nth int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = failure{nth: nth, err: err}
}

// Calls returns every recorded call in order.
func (f *FakeFleetAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsTo returns the recorded calls to method.
func (f *FakeFleetAPI) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// MutatingCalls returns the recorded calls that change fleet state.
func (f *FakeFleetAPI) MutatingCalls() []Call {
	var out []Call
	for _, c := range f.Calls() {
		switch c.Method {
		case "GetCharacterFleet", "GetFleet", "GetFleetMembers", "GetFleetWings":
		default:
			out = append(out, c)
		}
	}
	return out
}

// Wings returns the current live structure of fleetID.
func (f *FakeFleetAPI) Wings(fleetID int64) []models.Wing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneWings(f.wings[fleetID])
}

// Info returns the current settings of fleetID.
func (f *FakeFleetAPI) Info(fleetID int64) models.FleetInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.infos[fleetID]; ok {
		return *info
	}
	return models.FleetInfo{}
}

// record must be called with mu held.
func (f *FakeFleetAPI) record(c Call) error {
	f.calls = append(f.calls, c)
	f.counts[c.Method]++

	if fail, ok := f.failures[c.Method]; ok && (fail.nth == 0 || fail.nth == f.counts[c.Method]) {
		return fail.err
	}
	return nil
}

func (f *FakeFleetAPI) fleet(fleetID int64) error {
	if _, ok := f.infos[fleetID]; !ok {
		return fmt.Errorf("%w: fleet %d", shared.ErrNotFound, fleetID)
	}
	return nil
}

func (f *FakeFleetAPI) GetCharacterFleet(ctx context.Context, characterID int64) (*models.FleetRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "GetCharacterFleet", CharacterID: characterID}); err != nil {
		return nil, err
	}

	ref, ok := f.refs[characterID]
	if !ok {
		return nil, nil
	}
	out := *ref
	return &out, nil
}

func (f *FakeFleetAPI) GetFleet(ctx context.Context, characterID, fleetID int64) (*models.FleetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "GetFleet", CharacterID: characterID, FleetID: fleetID}); err != nil {
		return nil, err
	}
	if err := f.fleet(fleetID); err != nil {
		return nil, err
	}
	out := *f.infos[fleetID]
	return &out, nil
}

func (f *FakeFleetAPI) GetFleetMembers(ctx context.Context, characterID, fleetID int64) ([]models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "GetFleetMembers", CharacterID: characterID, FleetID: fleetID}); err != nil {
		return nil, err
	}
	if err := f.fleet(fleetID); err != nil {
		return nil, err
	}
	return slices.Clone(f.members[fleetID]), nil
}

func (f *FakeFleetAPI) GetFleetWings(ctx context.Context, characterID, fleetID int64) ([]models.Wing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "GetFleetWings", CharacterID: characterID, FleetID: fleetID}); err != nil {
		return nil, err
	}
	if err := f.fleet(fleetID); err != nil {
		return nil, err
	}
	return cloneWings(f.wings[fleetID]), nil
}

func (f *FakeFleetAPI) CreateWing(ctx context.Context, characterID, fleetID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	if err := f.record(Call{Method: "CreateWing", CharacterID: characterID, FleetID: fleetID, Target: id}); err != nil {
		return 0, err
	}
	if err := f.fleet(fleetID); err != nil {
		return 0, err
	}

	f.nextID++
	f.wings[fleetID] = append(f.wings[fleetID], models.Wing{ID: id, Name: fmt.Sprintf("Wing %d", len(f.wings[fleetID])+1)})
	return id, nil
}

func (f *FakeFleetAPI) RenameWing(ctx context.Context, characterID, fleetID, wingID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "RenameWing", CharacterID: characterID, FleetID: fleetID, Target: wingID, Name: name}); err != nil {
		return err
	}

	i := f.wingIndex(fleetID, wingID)
	if i < 0 {
		return fmt.Errorf("%w: wing %d", shared.ErrNotFound, wingID)
	}
	f.wings[fleetID][i].Name = name
	return nil
}

func (f *FakeFleetAPI) CreateSquad(ctx context.Context, characterID, fleetID, wingID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	if err := f.record(Call{Method: "CreateSquad", CharacterID: characterID, FleetID: fleetID, Target: wingID}); err != nil {
		return 0, err
	}

	i := f.wingIndex(fleetID, wingID)
	if i < 0 {
		return 0, fmt.Errorf("%w: wing %d", shared.ErrNotFound, wingID)
	}

	f.nextID++
	w := &f.wings[fleetID][i]
	w.Squads = append(w.Squads, models.Squad{ID: id, Name: fmt.Sprintf("Squad %d", len(w.Squads)+1)})
	return id, nil
}

func (f *FakeFleetAPI) RenameSquad(ctx context.Context, characterID, fleetID, squadID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "RenameSquad", CharacterID: characterID, FleetID: fleetID, Target: squadID, Name: name}); err != nil {
		return err
	}

	for wi := range f.wings[fleetID] {
		for si := range f.wings[fleetID][wi].Squads {
			if f.wings[fleetID][wi].Squads[si].ID == squadID {
				f.wings[fleetID][wi].Squads[si].Name = name
				return nil
			}
		}
	}
	return fmt.Errorf("%w: squad %d", shared.ErrNotFound, squadID)
}

func (f *FakeFleetAPI) UpdateFleetSettings(ctx context.Context, characterID, fleetID int64, update models.FleetSettingsUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "UpdateFleetSettings", CharacterID: characterID, FleetID: fleetID}); err != nil {
		return err
	}
	if err := f.fleet(fleetID); err != nil {
		return err
	}

	if update.IsFreeMove != nil {
		f.infos[fleetID].IsFreeMove = *update.IsFreeMove
	}
	if update.MOTD != nil {
		f.infos[fleetID].MOTD = *update.MOTD
	}
	return nil
}

func (f *FakeFleetAPI) DeleteWing(ctx context.Context, characterID, fleetID, wingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "DeleteWing", CharacterID: characterID, FleetID: fleetID, Target: wingID}); err != nil {
		return err
	}

	i := f.wingIndex(fleetID, wingID)
	if i < 0 {
		return fmt.Errorf("%w: wing %d", shared.ErrNotFound, wingID)
	}
	f.wings[fleetID] = slices.Delete(f.wings[fleetID], i, i+1)
	return nil
}

func (f *FakeFleetAPI) DeleteSquad(ctx context.Context, characterID, fleetID, squadID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "DeleteSquad", CharacterID: characterID, FleetID: fleetID, Target: squadID}); err != nil {
		return err
	}

	for wi := range f.wings[fleetID] {
		w := &f.wings[fleetID][wi]
		if si := slices.IndexFunc(w.Squads, func(s models.Squad) bool { return s.ID == squadID }); si >= 0 {
			w.Squads = slices.Delete(w.Squads, si, si+1)
			return nil
		}
	}
	return fmt.Errorf("%w: squad %d", shared.ErrNotFound, squadID)
}

func (f *FakeFleetAPI) MoveMember(ctx context.Context, characterID, fleetID, memberID int64, move models.MemberMove) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "MoveMember", CharacterID: characterID, FleetID: fleetID, Target: memberID}); err != nil {
		return err
	}

	for i := range f.members[fleetID] {
		m := &f.members[fleetID][i]
		if m.CharacterID != memberID {
			continue
		}
		m.Role = move.Role
		m.WingID, m.SquadID = -1, -1
		if move.WingID != nil {
			m.WingID = *move.WingID
		}
		if move.SquadID != nil {
			m.SquadID = *move.SquadID
		}
		return nil
	}
	return fmt.Errorf("%w: member %d", shared.ErrNotFound, memberID)
}

func (f *FakeFleetAPI) wingIndex(fleetID, wingID int64) int {
	return slices.IndexFunc(f.wings[fleetID], func(w models.Wing) bool { return w.ID == wingID })
}

func cloneWings(wings []models.Wing) []models.Wing {
	out := make([]models.Wing, len(wings))
	for i, w := range wings {
		out[i] = models.Wing{ID: w.ID, Name: w.Name, Squads: slices.Clone(w.Squads)}
	}
	return out
}
