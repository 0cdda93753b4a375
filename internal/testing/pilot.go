package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

// Pilot is the state [FakePilotAPI] serves for one character. Nil sections answer
// [shared.ErrPermissionDenied], the way ESI answers a token without the scope.
type Pilot struct {
	Info     models.PilotInfo
	Location *models.Location
	Ship     *models.Ship
	Online   *models.OnlineStatus
	Skills   *models.Skills
	Clones   *models.Clones
	Fatigue  *models.JumpFatigue
	Fittings []models.Fitting
}

// FakePilotAPI serves character reads from memory and records waypoints.
type FakePilotAPI struct {
	mu        sync.Mutex
	pilots    map[int64]*Pilot
	corps     map[int64]models.Corporation
	alliances map[int64]models.Alliance
	failures  map[string]error
	waypoints map[int64][]models.Waypoint
}

func NewFakePilotAPI() *FakePilotAPI {
	return &FakePilotAPI{
		pilots:    make(map[int64]*Pilot),
		corps:     make(map[int64]models.Corporation),
		alliances: make(map[int64]models.Alliance),
		failures:  make(map[string]error),
		waypoints: make(map[int64][]models.Waypoint),
	}
}

func (f *FakePilotAPI) AddPilot(characterID int64, p Pilot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pilots[characterID] = &p
}

func (f *FakePilotAPI) AddCorporation(id int64, c models.Corporation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corps[id] = c
}

func (f *FakePilotAPI) AddAlliance(id int64, a models.Alliance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alliances[id] = a
}

// FailOn makes every call to method fail with err.
func (f *FakePilotAPI) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

// Waypoints returns the waypoints set for characterID, in order.
func (f *FakePilotAPI) Waypoints(characterID int64) []models.Waypoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Waypoint(nil), f.waypoints[characterID]...)
}

func (f *FakePilotAPI) GetPilot(ctx context.Context, characterID int64) (*models.PilotInfo, error) {
	p, err := f.pilot("GetPilot", characterID)
	if err != nil {
		return nil, err
	}
	info := p.Info
	return &info, nil
}

func (f *FakePilotAPI) GetCorporation(ctx context.Context, corporationID int64) (*models.Corporation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures["GetCorporation"]; err != nil {
		return nil, err
	}
	c, ok := f.corps[corporationID]
	if !ok {
		return nil, fmt.Errorf("%w: corporation %d", shared.ErrNotFound, corporationID)
	}
	return &c, nil
}

func (f *FakePilotAPI) GetAlliance(ctx context.Context, allianceID int64) (*models.Alliance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures["GetAlliance"]; err != nil {
		return nil, err
	}
	a, ok := f.alliances[allianceID]
	if !ok {
		return nil, fmt.Errorf("%w: alliance %d", shared.ErrNotFound, allianceID)
	}
	return &a, nil
}

func (f *FakePilotAPI) GetLocation(ctx context.Context, characterID int64) (*models.Location, error) {
	p, err := f.pilot("GetLocation", characterID)
	if err != nil {
		return nil, err
	}
	return scoped(p.Location)
}

func (f *FakePilotAPI) GetShip(ctx context.Context, characterID int64) (*models.Ship, error) {
	p, err := f.pilot("GetShip", characterID)
	if err != nil {
		return nil, err
	}
	return scoped(p.Ship)
}

func (f *FakePilotAPI) GetOnline(ctx context.Context, characterID int64) (*models.OnlineStatus, error) {
	p, err := f.pilot("GetOnline", characterID)
	if err != nil {
		return nil, err
	}
	return scoped(p.Online)
}

func (f *FakePilotAPI) GetSkills(ctx context.Context, characterID int64) (*models.Skills, error) {
	p, err := f.pilot("GetSkills", characterID)
	if err != nil {
		return nil, err
	}
	return scoped(p.Skills)
}

func (f *FakePilotAPI) GetClones(ctx context.Context, characterID int64) (*models.Clones, error) {
	p, err := f.pilot("GetClones", characterID)
	if err != nil {
		return nil, err
	}
	return scoped(p.Clones)
}

func (f *FakePilotAPI) GetFatigue(ctx context.Context, characterID int64) (*models.JumpFatigue, error) {
	p, err := f.pilot("GetFatigue", characterID)
	if err != nil {
		return nil, err
	}
	return scoped(p.Fatigue)
}

func (f *FakePilotAPI) GetFittings(ctx context.Context, characterID int64) ([]models.Fitting, error) {
	p, err := f.pilot("GetFittings", characterID)
	if err != nil {
		return nil, err
	}
	if p.Fittings == nil {
		return nil, fmt.Errorf("%w: missing scope", shared.ErrPermissionDenied)
	}
	return p.Fittings, nil
}

func (f *FakePilotAPI) SetWaypoint(ctx context.Context, characterID int64, waypoint models.Waypoint) error {
	if _, err := f.pilot("SetWaypoint", characterID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waypoints[characterID] = append(f.waypoints[characterID], waypoint)
	return nil
}

func (f *FakePilotAPI) pilot(method string, characterID int64) (*Pilot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[method]; err != nil {
		return nil, err
	}
	p, ok := f.pilots[characterID]
	if !ok {
		return nil, fmt.Errorf("%w: character %d", shared.ErrNotFound, characterID)
	}
	return p, nil
}

func scoped[T any](v *T) (*T, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: missing scope", shared.ErrPermissionDenied)
	}
	c := *v
	return &c, nil
}
