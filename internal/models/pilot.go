package models

import "time"

// PilotInfo is the public response of GET /characters/{character_id}/.
type PilotInfo struct {
	Name           string    `json:"name"`
	CorporationID  int64     `json:"corporation_id"`
	AllianceID     int64     `json:"alliance_id,omitempty"`
	Birthday       time.Time `json:"birthday"`
	SecurityStatus float64   `json:"security_status"`
	Title          string    `json:"title,omitempty"`
}

// Corporation is the public response of GET /corporations/{corporation_id}/.
type Corporation struct {
	Name        string `json:"name"`
	Ticker      string `json:"ticker"`
	MemberCount int    `json:"member_count"`
	AllianceID  int64  `json:"alliance_id,omitempty"`
}

// Alliance is the public response of GET /alliances/{alliance_id}/.
type Alliance struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// Location is GET /characters/{character_id}/location/. Station and structure are zero in space.
type Location struct {
	SolarSystemID int64 `json:"solar_system_id"`
	StationID     int64 `json:"station_id,omitempty"`
	StructureID   int64 `json:"structure_id,omitempty"`
}

// Docked reports whether the character is in a station or structure.
func (l Location) Docked() bool { return l.StationID != 0 || l.StructureID != 0 }

// Ship is GET /characters/{character_id}/ship/.
type Ship struct {
	ShipItemID int64  `json:"ship_item_id"`
	ShipName   string `json:"ship_name"`
	ShipTypeID int64  `json:"ship_type_id"`
}

// OnlineStatus is GET /characters/{character_id}/online/.
type OnlineStatus struct {
	Online     bool       `json:"online"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	LastLogout *time.Time `json:"last_logout,omitempty"`
	Logins     int        `json:"logins,omitempty"`
}

type Skill struct {
	SkillID            int64 `json:"skill_id"`
	ActiveSkillLevel   int   `json:"active_skill_level"`
	TrainedSkillLevel  int   `json:"trained_skill_level"`
	SkillpointsInSkill int64 `json:"skillpoints_in_skill"`
}

// Skills is GET /characters/{character_id}/skills/.
type Skills struct {
	Skills        []Skill `json:"skills"`
	TotalSP       int64   `json:"total_sp"`
	UnallocatedSP int64   `json:"unallocated_sp,omitempty"`
}

// Level returns the active level of skillID, or 0 when the character has not injected it.
func (s Skills) Level(skillID int64) int {
	for _, sk := range s.Skills {
		if sk.SkillID == skillID {
			return sk.ActiveSkillLevel
		}
	}
	return 0
}

type CloneLocation struct {
	LocationID   int64  `json:"location_id"`
	LocationType string `json:"location_type"`
}

type JumpClone struct {
	JumpCloneID  int64   `json:"jump_clone_id"`
	Name         string  `json:"name,omitempty"`
	LocationID   int64   `json:"location_id"`
	LocationType string  `json:"location_type"`
	Implants     []int64 `json:"implants"`
}

// Clones combines GET /characters/{character_id}/clones/ with the active implants of
// GET /characters/{character_id}/implants/.
type Clones struct {
	HomeLocation      *CloneLocation `json:"home_location,omitempty"`
	JumpClones        []JumpClone    `json:"jump_clones"`
	LastCloneJumpDate *time.Time     `json:"last_clone_jump_date,omitempty"`
	ActiveImplants    []int64        `json:"active_implants"`
}

// JumpFatigue is GET /characters/{character_id}/fatigue/.
type JumpFatigue struct {
	JumpFatigueExpireDate *time.Time `json:"jump_fatigue_expire_date,omitempty"`
	LastJumpDate          *time.Time `json:"last_jump_date,omitempty"`
	LastUpdateDate        *time.Time `json:"last_update_date,omitempty"`
}

// Remaining returns how long fatigue lasts after now, or zero when it has expired.
func (f JumpFatigue) Remaining(now time.Time) time.Duration {
	if f.JumpFatigueExpireDate == nil || !f.JumpFatigueExpireDate.After(now) {
		return 0
	}
	return f.JumpFatigueExpireDate.Sub(now)
}

type FittingItem struct {
	TypeID   int64  `json:"type_id"`
	Flag     string `json:"flag"`
	Quantity int    `json:"quantity"`
}

// Fitting is one saved fitting of GET /characters/{character_id}/fittings/.
type Fitting struct {
	FittingID   int64         `json:"fitting_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	ShipTypeID  int64         `json:"ship_type_id"`
	Items       []FittingItem `json:"items"`
}

// Waypoint is the query of POST /ui/autopilot/waypoint/.
type Waypoint struct {
	DestinationID       int64
	AddToBeginning      bool
	ClearOtherWaypoints bool
}

// PilotProfile is the public and live state of one character, for composition and chat summaries.
type PilotProfile struct {
	CharacterID int64         `json:"character_id"`
	Info        PilotInfo     `json:"info"`
	Corporation *Corporation  `json:"corporation,omitempty"`
	Alliance    *Alliance     `json:"alliance,omitempty"`
	Location    *Location     `json:"location,omitempty"`
	Ship        *Ship         `json:"ship,omitempty"`
	Online      *OnlineStatus `json:"online,omitempty"`
}
