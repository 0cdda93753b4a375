package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/esifleet/internal/models"
)

func (s *ESIService) GetPilot(ctx context.Context, characterID int64) (*models.PilotInfo, error) {
	var info models.PilotInfo
	if err := s.doPublic(ctx, fmt.Sprintf("/characters/%d/", characterID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *ESIService) GetCorporation(ctx context.Context, corporationID int64) (*models.Corporation, error) {
	var corp models.Corporation
	if err := s.doPublic(ctx, fmt.Sprintf("/corporations/%d/", corporationID), &corp); err != nil {
		return nil, err
	}
	return &corp, nil
}

func (s *ESIService) GetAlliance(ctx context.Context, allianceID int64) (*models.Alliance, error) {
	var alliance models.Alliance
	if err := s.doPublic(ctx, fmt.Sprintf("/alliances/%d/", allianceID), &alliance); err != nil {
		return nil, err
	}
	return &alliance, nil
}

// GetLocation needs esi-location.read_location.v1.
func (s *ESIService) GetLocation(ctx context.Context, characterID int64) (*models.Location, error) {
	var loc models.Location
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/location/", characterID), nil, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetShip needs esi-location.read_ship_type.v1.
func (s *ESIService) GetShip(ctx context.Context, characterID int64) (*models.Ship, error) {
	var ship models.Ship
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/ship/", characterID), nil, &ship); err != nil {
		return nil, err
	}
	return &ship, nil
}

// GetOnline needs esi-location.read_online.v1.
func (s *ESIService) GetOnline(ctx context.Context, characterID int64) (*models.OnlineStatus, error) {
	var online models.OnlineStatus
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/online/", characterID), nil, &online); err != nil {
		return nil, err
	}
	return &online, nil
}

func (s *ESIService) GetSkills(ctx context.Context, characterID int64) (*models.Skills, error) {
	var skills models.Skills
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/skills/", characterID), nil, &skills); err != nil {
		return nil, err
	}
	return &skills, nil
}

func (s *ESIService) GetClones(ctx context.Context, characterID int64) (*models.Clones, error) {
	var clones models.Clones
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/clones/", characterID), nil, &clones); err != nil {
		return nil, err
	}

	var implants []int64
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/implants/", characterID), nil, &implants); err != nil {
		return nil, err
	}
	clones.ActiveImplants = implants
	return &clones, nil
}

func (s *ESIService) GetFatigue(ctx context.Context, characterID int64) (*models.JumpFatigue, error) {
	var fatigue models.JumpFatigue
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/fatigue/", characterID), nil, &fatigue); err != nil {
		return nil, err
	}
	return &fatigue, nil
}

func (s *ESIService) GetFittings(ctx context.Context, characterID int64) ([]models.Fitting, error) {
	var fittings []models.Fitting
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/fittings/", characterID), nil, &fittings); err != nil {
		return nil, err
	}
	return fittings, nil
}

// SetWaypoint needs esi-ui.write_waypoint.v1. ESI answers 204 with no body.
func (s *ESIService) SetWaypoint(ctx context.Context, characterID int64, waypoint models.Waypoint) error {
	q := url.Values{}
	q.Set("destination_id", strconv.FormatInt(waypoint.DestinationID, 10))
	q.Set("add_to_beginning", strconv.FormatBool(waypoint.AddToBeginning))
	q.Set("clear_other_waypoints", strconv.FormatBool(waypoint.ClearOtherWaypoints))
	return s.doRequest(ctx, characterID, http.MethodPost, "/ui/autopilot/waypoint/?"+q.Encode(), nil, nil)
}
