package models

import (
	"fmt"
	"strings"
	"time"
)

// FleetSettings are the fleet-wide settings captured with a template.
type FleetSettings struct {
	IsFreeMove bool      `json:"is_free_move" yaml:"is_free_move"`
	MOTD       string    `json:"motd" yaml:"motd"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
}

// TemplateWing is a wing record in a [FleetSnapshot], addressed by its template-local id.
type TemplateWing struct {
	WingID int64  `json:"wing_id" yaml:"wing_id"`
	Name   string `json:"name" yaml:"name"`
}

// TemplateSquad is a squad record in a [FleetSnapshot]. WingID references a [TemplateWing] in the same snapshot.
type TemplateSquad struct {
	WingID  int64  `json:"wing_id" yaml:"wing_id"`
	SquadID int64  `json:"squad_id" yaml:"squad_id"`
	Name    string `json:"name" yaml:"name"`
}

// FleetSnapshot is a captured template body. Wings and squads keep the order in which they were captured.
type FleetSnapshot struct {
	Settings *FleetSettings  `json:"settings,omitempty" yaml:"settings,omitempty"`
	Wings    []TemplateWing  `json:"wings" yaml:"wings"`
	Squads   []TemplateSquad `json:"squads" yaml:"squads"`
}

// Validate checks that wing and squad ids are unique and that every squad references a wing in the snapshot.
func (s *FleetSnapshot) Validate() error {
	wings := make(map[int64]bool, len(s.Wings))
	for i, w := range s.Wings {
		if wings[w.WingID] {
			return fmt.Errorf("wing %d: duplicate wing id %d", i, w.WingID)
		}
		wings[w.WingID] = true
	}

	squads := make(map[int64]bool, len(s.Squads))
	for i, sq := range s.Squads {
		if !wings[sq.WingID] {
			return fmt.Errorf("squad %d: references unknown wing id %d", i, sq.WingID)
		}
		if squads[sq.SquadID] {
			return fmt.Errorf("squad %d: duplicate squad id %d", i, sq.SquadID)
		}
		squads[sq.SquadID] = true
	}
	return nil
}

// SquadsOf returns the squads belonging to wingID, in stored order.
func (s *FleetSnapshot) SquadsOf(wingID int64) []TemplateSquad {
	var out []TemplateSquad
	for _, sq := range s.Squads {
		if sq.WingID == wingID {
			out = append(out, sq)
		}
	}
	return out
}

// FleetTemplate is a named, write-once [FleetSnapshot] captured by a character.
type FleetTemplate struct {
	record
	ownerID int64
	name    string
	body    FleetSnapshot
}

// NewFleetTemplate creates a new template owned by the given character id.
func NewFleetTemplate(sequence int, ownerID int64, name string, body FleetSnapshot) *FleetTemplate {
	return &FleetTemplate{
		record:  newRecord(sequence),
		ownerID: ownerID,
		name:    strings.TrimSpace(name),
		body:    body,
	}
}

func (t *FleetTemplate) OwnerID() int64      { return t.ownerID }
func (t *FleetTemplate) Name() string        { return t.name }
func (t *FleetTemplate) Body() FleetSnapshot { return t.body }

// Validate checks the template's name and owner and its body's referential integrity.
func (t *FleetTemplate) Validate() error {
	if t.name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.ownerID <= 0 {
		return fmt.Errorf("template owner is required")
	}
	if err := t.body.Validate(); err != nil {
		return fmt.Errorf("template body: %w", err)
	}
	return nil
}

// TemplateView is the serializable form of a [FleetTemplate].
type TemplateView struct {
	ID        string        `json:"id" yaml:"id"`
	OwnerID   int64         `json:"owner_id" yaml:"owner_id"`
	Name      string        `json:"name" yaml:"name"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	Body      FleetSnapshot `json:"body" yaml:"body"`
}

// View returns the serializable form of the template.
func (t *FleetTemplate) View() TemplateView {
	return TemplateView{
		ID:        t.ID(),
		OwnerID:   t.ownerID,
		Name:      t.name,
		CreatedAt: t.CreatedAt(),
		Body:      t.body,
	}
}
