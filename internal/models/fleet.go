package models

import "time"

// Role is a character's commanding capacity within a fleet, as reported by ESI.
type Role string

const (
	RoleFleetCommander Role = "fleet_commander"
	RoleWingCommander  Role = "wing_commander"
	RoleSquadCommander Role = "squad_commander"
	RoleSquadMember    Role = "squad_member"
	RoleNone           Role = "none"
)

// ParseRole maps an ESI role string onto a [Role]; unknown values become [RoleNone].
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleFleetCommander, RoleWingCommander, RoleSquadCommander, RoleSquadMember:
		return r
	default:
		return RoleNone
	}
}

// IsLeader reports whether the role commands the fleet, a wing or a squad.
func (r Role) IsLeader() bool {
	return r == RoleFleetCommander || r == RoleWingCommander || r == RoleSquadCommander
}

func (r Role) String() string { return string(r) }

// FleetRef is the response of GET /characters/{character_id}/fleet/.
//
// ESI reports -1 for wing and squad ids that do not apply to the character's position.
type FleetRef struct {
	FleetID     int64 `json:"fleet_id"`
	FleetBossID int64 `json:"fleet_boss_id"`
	Role        Role  `json:"role"`
	WingID      int64 `json:"wing_id"`
	SquadID     int64 `json:"squad_id"`
}

// FleetInfo is the response of GET /fleets/{fleet_id}/.
type FleetInfo struct {
	IsFreeMove     bool   `json:"is_free_move"`
	IsRegistered   bool   `json:"is_registered"`
	IsVoiceEnabled bool   `json:"is_voice_enabled"`
	MOTD           string `json:"motd"`
	Name           string `json:"name,omitempty"`
}

// Member is one entry of GET /fleets/{fleet_id}/members/.
type Member struct {
	CharacterID    int64     `json:"character_id"`
	JoinTime       time.Time `json:"join_time"`
	Role           Role      `json:"role"`
	RoleName       string    `json:"role_name"`
	ShipTypeID     int64     `json:"ship_type_id"`
	SolarSystemID  int64     `json:"solar_system_id"`
	SquadID        int64     `json:"squad_id"`
	StationID      int64     `json:"station_id,omitempty"`
	TakesFleetWarp bool      `json:"takes_fleet_warp"`
	WingID         int64     `json:"wing_id"`
}

// Squad is a squad nested in a [Wing].
type Squad struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Wing is one entry of GET /fleets/{fleet_id}/wings/.
type Wing struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Squads []Squad `json:"squads"`
}

// FleetSettingsUpdate is the body of PUT /fleets/{fleet_id}/. Nil fields are left unchanged.
type FleetSettingsUpdate struct {
	IsFreeMove *bool   `json:"is_free_move,omitempty"`
	MOTD       *string `json:"motd,omitempty"`
}

// MemberMove is the body of PUT /fleets/{fleet_id}/members/{member_id}/.
type MemberMove struct {
	Role    Role   `json:"role"`
	WingID  *int64 `json:"wing_id,omitempty"`
	SquadID *int64 `json:"squad_id,omitempty"`
}

// LeadershipRole is derived on every request from the character's fleet and member data.
type LeadershipRole struct {
	InFleet bool   `json:"in_fleet"`
	Role    Role   `json:"role"`
	FleetID *int64 `json:"fleet_id"`
	WingID  *int64 `json:"wing_id"`
	SquadID *int64 `json:"squad_id"`
}

// NotInFleet is the [LeadershipRole] of a character without a fleet.
func NotInFleet() LeadershipRole {
	return LeadershipRole{InFleet: false, Role: RoleNone}
}

// FullFleetInfo combines every read about a character's current fleet.
type FullFleetInfo struct {
	FleetID    int64          `json:"fleet_id"`
	Role       Role           `json:"role"`
	WingID     int64          `json:"wing_id"`
	SquadID    int64          `json:"squad_id"`
	Info       FleetInfo      `json:"info"`
	Members    []Member       `json:"members"`
	Wings      []Wing         `json:"wings"`
	Leadership LeadershipRole `json:"leadership"`
}

// SquadCount returns the number of squads across all wings.
func (f *FullFleetInfo) SquadCount() int {
	n := 0
	for _, w := range f.Wings {
		n += len(w.Squads)
	}
	return n
}

// OptionalID returns nil for ESI's "not applicable" ids (negative or zero), else a pointer to id.
func OptionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
