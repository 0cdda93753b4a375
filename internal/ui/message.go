package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTemplatesFetched MsgKind = iota
	MsgRoleFetched
	MsgProgressUpdate
	MsgReconstructComplete
)

type templatesFetched struct {
	templates []*models.FleetTemplate
	err       error
}

type roleFetched struct {
	role models.LeadershipRole
	err  error
}

type reconstructComplete struct {
	fleet *models.FullFleetInfo
	err   error
}

// templatesFetchedMsg is the constructor for [MsgTemplatesFetched]
func templatesFetchedMsg(templates []*models.FleetTemplate, err error) Msg {
	return Msg{kind: MsgTemplatesFetched, data: templatesFetched{templates, err}}
}

// roleFetchedMsg is the constructor for [MsgRoleFetched]
func roleFetchedMsg(role models.LeadershipRole, err error) Msg {
	return Msg{kind: MsgRoleFetched, data: roleFetched{role, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// reconstructCompleteMsg is the constructor for [MsgReconstructComplete]
func reconstructCompleteMsg(fleet *models.FullFleetInfo, err error) Msg {
	return Msg{kind: MsgReconstructComplete, data: reconstructComplete{fleet, err}}
}
