package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/esifleet/internal/formatter"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TemplateListView ViewState = iota
	PreviewView
	ConfirmView
	ReconstructView
	ResultView
)

const progressWidth = 30

// Engine is the subset of [tasks.FleetEngine] the TUI drives.
type Engine interface {
	LeadershipRole(ctx context.Context, characterID int64) (models.LeadershipRole, error)
	Reconstruct(ctx context.Context, characterID int64, templateID string, progress chan<- tasks.ProgressUpdate) (*models.FullFleetInfo, error)
}

// TemplateLister lists stored templates.
type TemplateLister interface {
	List(criteria map[string]any) ([]*models.FleetTemplate, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       Engine
	templates    TemplateLister
	characterID  int64
	width        int
	height       int
	templateList list.Model
	preview      list.Model
	selected     *models.FleetTemplate
	role         *models.LeadershipRole
	loaded       bool
	progressChan chan tasks.ProgressUpdate
	done         chan reconstructComplete
	progress     tasks.ProgressUpdate
	log          []string
	fleet        *models.FullFleetInfo
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI that reconstructs templates into the fleet of characterID.
func NewModel(ctx context.Context, engine Engine, templates TemplateLister, characterID int64) *Model {
	return &Model{
		ctx:         ctx,
		view:        TemplateListView,
		engine:      engine,
		templates:   templates,
		characterID: characterID,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init loads the stored templates.
func (m *Model) Init() tea.Cmd {
	return m.fetchTemplates()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.loaded {
			m.templateList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.selected != nil {
			m.preview.SetSize(msg.Width-4, msg.Height-12)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TemplateListView:
			return m.handleTemplateListKeys(msg)
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ReconstructView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTemplatesFetched:
		data := msg.data.(templatesFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.templates))
		for i, t := range data.templates {
			items[i] = templateItem{template: t}
		}
		m.templateList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.templateList.Title = "Fleet Templates"
		m.templateList.SetSize(m.width-4, m.height-8)
		m.loaded = true
		return m, nil

	case MsgRoleFetched:
		data := msg.data.(roleFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.role = &data.role
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		m.log = append(m.log, m.progress.Message)
		return m, m.waitForProgress()

	case MsgReconstructComplete:
		data := msg.data.(reconstructComplete)
		m.fleet = data.fleet
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case TemplateListView:
		return m.renderTemplateList()
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case ReconstructView:
		return m.renderReconstruct()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleTemplateListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.loaded {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if m.templateList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.templateList, cmd = m.templateList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.templateList.SelectedItem().(templateItem); ok {
			m.selected = item.template
			m.preview = list.New(structureItems(item.template.Body()), list.NewDefaultDelegate(), 0, 0)
			m.preview.Title = item.template.Name()
			m.preview.SetShowStatusBar(false)
			m.preview.SetSize(m.width-4, m.height-12)
			m.view = PreviewView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.templateList, cmd = m.templateList.Update(msg)
	return m, cmd
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = TemplateListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.build):
		m.view = ConfirmView
		m.role = nil
		return m, m.fetchRole()
	}

	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = PreviewView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		if m.role == nil || !m.canReconstruct() {
			return m, nil
		}
		m.view = ReconstructView
		return m, m.startReconstruct()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = TemplateListView
		m.selected = nil
		m.role = nil
		m.fleet = nil
		m.err = nil
		m.log = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.view == TemplateListView && m.loaded:
		m.templateList, cmd = m.templateList.Update(msg)
	case m.view == PreviewView && m.selected != nil:
		m.preview, cmd = m.preview.Update(msg)
	}
	return m, cmd
}

func (m *Model) canReconstruct() bool {
	return m.role.InFleet && m.role.Role == models.RoleFleetCommander
}

func (m *Model) fetchTemplates() tea.Cmd {
	return func() tea.Msg {
		templates, err := m.templates.List(nil)
		return templatesFetchedMsg(templates, err)
	}
}

func (m *Model) fetchRole() tea.Cmd {
	return func() tea.Msg {
		role, err := m.engine.LeadershipRole(m.ctx, m.characterID)
		return roleFetchedMsg(role, err)
	}
}

// startReconstruct runs the engine in the background. Reconstruct never closes the progress
// channel; the goroutine closes it after publishing the result.
func (m *Model) startReconstruct() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan reconstructComplete, 1)
	m.progressChan = progress
	m.log = nil

	templateID := m.selected.ID()
	go func() {
		fleet, err := m.engine.Reconstruct(m.ctx, m.characterID, templateID, progress)
		done <- reconstructComplete{fleet, err}
		close(progress)
	}()

	m.done = done
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress != nil {
			if update, ok := <-progress; ok {
				return progressUpdateMsg(update)
			}
		}
		result := <-done
		return reconstructCompleteMsg(result.fleet, result.err)
	}
}

func (m *Model) renderTemplateList() string {
	if !m.loaded {
		return styles.help.Render("Loading templates...")
	}
	if len(m.templateList.Items()) == 0 {
		return fmt.Sprintf("%s\n\nNo templates saved yet. Run `esifleet templates capture` while in a fleet.\n\n%s",
			styles.title.Render("Fleet Templates"), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.templateList.View(), helpView)
}

func (m *Model) renderPreview() string {
	body := m.selected.Body()

	var settings []string
	if body.Settings != nil {
		settings = append(settings, field("Free move", yesNo(body.Settings.IsFreeMove)))
		if body.Settings.MOTD != "" {
			settings = append(settings, field("MOTD", firstLine(body.Settings.MOTD)))
		}
	} else {
		settings = append(settings, field("Settings", "not captured"))
	}
	settings = append(settings, field("Structure", fmt.Sprintf("%d wings, %d squads", len(body.Wings), len(body.Squads))))

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.build, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", styles.box.Render(strings.Join(settings, "\n")), m.preview.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Reconstruct '%s'?", m.selected.Name()))
	body := m.selected.Body()
	info := fmt.Sprintf("%s\n%s\n%s",
		field("Template", m.selected.Name()),
		field("Creates", fmt.Sprintf("%d wings, %d squads", len(body.Wings), len(body.Squads))),
		field("Character", fmt.Sprintf("%d", m.characterID)),
	)

	var status string
	switch {
	case m.role == nil:
		status = styles.help.Render("Checking fleet role...")
	case !m.canReconstruct():
		status = styles.warn.Render(fmt.Sprintf("Only the fleet commander can reconstruct (%s).", formatter.RoleSummary(*m.role)))
	default:
		status = styles.ok.Render(formatter.RoleSummary(*m.role)) + "\n" +
			styles.help.Render("Existing wings and squads are kept; new ones are added after them.")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, info, status, helpView)
}

func (m *Model) renderReconstruct() string {
	title := styles.title.Render(fmt.Sprintf("Reconstructing '%s'", m.selected.Name()))

	phase := "Starting..."
	if m.progress.Total > 0 || m.progress.Message != "" {
		phase = fmt.Sprintf("%s %s", bar(m.progress.Step, m.progress.Total), m.progress.Phase)
	}

	lines := m.log
	if limit := m.height - 8; limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return fmt.Sprintf("%s\n%s\n\n%s", title, phase, strings.Join(lines, "\n"))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	var rerr *tasks.ReconstructionError
	switch {
	case errors.As(m.err, &rerr):
		title := styles.warn.Render("⚠ Reconstruction incomplete")
		info := fmt.Sprintf("\nStopped at %s after creating %d wings and %d squads.\nCreated wings and squads were left in the fleet.\n\n%s",
			strings.ReplaceAll(rerr.Step, "_", " "), len(rerr.Mapping.Wings), len(rerr.Mapping.Squads), styles.err.Render(rerr.Err.Error()))
		return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
	case m.err != nil:
		return styles.err.Render(fmt.Sprintf("Reconstruction failed: %v", m.err)) + "\n\n" + helpView
	case m.fleet == nil:
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Fleet reconstructed")
	return fmt.Sprintf("%s\n\n%s\n%s", title, formatter.FleetSummary(m.fleet), helpView)
}

func bar(step, total int) string {
	if total <= 0 {
		return "[" + strings.Repeat(" ", progressWidth) + "]"
	}
	filled := min(progressWidth*step/total, progressWidth)
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("=", filled), strings.Repeat(" ", progressWidth-filled), step, total)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
