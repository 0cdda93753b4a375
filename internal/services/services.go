// package services defines the HTTP clients used by the fleet engine and the web flows
//
// ESI (fleet reads and writes, character reads), EVE SSO, Discord OAuth
package services

import (
	"context"

	"github.com/desertthunder/esifleet/internal/models"
	"golang.org/x/oauth2"
)

// FleetAPI is the remote fleet-management surface. Every call acts on behalf of characterID,
// whose bearer credential is resolved per call.
type FleetAPI interface {
	// GetCharacterFleet returns the character's current fleet, or nil when the character is not in one.
	GetCharacterFleet(ctx context.Context, characterID int64) (*models.FleetRef, error)

	// GetFleet returns fleet settings and name.
	GetFleet(ctx context.Context, characterID, fleetID int64) (*models.FleetInfo, error)

	// GetFleetMembers returns every member with role and position.
	GetFleetMembers(ctx context.Context, characterID, fleetID int64) ([]models.Member, error)

	// GetFleetWings returns the wing/squad hierarchy.
	GetFleetWings(ctx context.Context, characterID, fleetID int64) ([]models.Wing, error)

	// CreateWing creates an unnamed wing and returns its live id.
	CreateWing(ctx context.Context, characterID, fleetID int64) (int64, error)

	RenameWing(ctx context.Context, characterID, fleetID, wingID int64, name string) error

	// CreateSquad creates an unnamed squad under wingID and returns its live id.
	CreateSquad(ctx context.Context, characterID, fleetID, wingID int64) (int64, error)

	RenameSquad(ctx context.Context, characterID, fleetID, squadID int64, name string) error

	// UpdateFleetSettings sets free-move and/or the MOTD.
	UpdateFleetSettings(ctx context.Context, characterID, fleetID int64, update models.FleetSettingsUpdate) error

	DeleteWing(ctx context.Context, characterID, fleetID, wingID int64) error
	DeleteSquad(ctx context.Context, characterID, fleetID, squadID int64) error

	// MoveMember changes a member's role and position.
	MoveMember(ctx context.Context, characterID, fleetID, memberID int64, move models.MemberMove) error
}

// PilotAPI reads a character's own state. Info, corporation and alliance lookups are public;
// everything else acts with the character's own credential.
type PilotAPI interface {
	GetPilot(ctx context.Context, characterID int64) (*models.PilotInfo, error)
	GetCorporation(ctx context.Context, corporationID int64) (*models.Corporation, error)
	GetAlliance(ctx context.Context, allianceID int64) (*models.Alliance, error)

	GetLocation(ctx context.Context, characterID int64) (*models.Location, error)
	GetShip(ctx context.Context, characterID int64) (*models.Ship, error)
	GetOnline(ctx context.Context, characterID int64) (*models.OnlineStatus, error)
	GetSkills(ctx context.Context, characterID int64) (*models.Skills, error)

	// GetClones returns jump clones together with the implants of the active clone.
	GetClones(ctx context.Context, characterID int64) (*models.Clones, error)
	GetFatigue(ctx context.Context, characterID int64) (*models.JumpFatigue, error)
	GetFittings(ctx context.Context, characterID int64) ([]models.Fitting, error)

	// SetWaypoint adds a destination to the character's in-game autopilot route.
	SetWaypoint(ctx context.Context, characterID int64, waypoint models.Waypoint) error
}

// CredentialSource hands out an already valid bearer token for a character.
type CredentialSource interface {
	AccessToken(ctx context.Context, characterID int64) (string, error)
}

// OAuthService is implemented by the providers that drive a browser authorization flow.
type OAuthService interface {
	// GetAuthURL returns the provider's authorization URL for state.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying [oauth2.Config].
	GetOAuthConfig() *oauth2.Config
}
