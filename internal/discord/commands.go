package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/formatter"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/desertthunder/esifleet/internal/tasks"
)

const (
	colorInfo    = 0x00C8FF
	colorSuccess = 0x2ECC71
	colorWarning = 0xE3B341

	maxTemplatesListed = 25
	maxDescription     = 4096
)

// Engine is the subset of [tasks.FleetEngine] the bot drives.
type Engine interface {
	FullFleetInfo(ctx context.Context, characterID int64) (*models.FullFleetInfo, error)
	Capture(ctx context.Context, characterID int64, name string) (*tasks.CaptureResult, error)
	ResolveTemplate(ref string) (*models.FleetTemplate, error)
	Reconstruct(ctx context.Context, characterID int64, templateRef string, progress chan<- tasks.ProgressUpdate) (*models.FullFleetInfo, error)
}

// TemplateLister lists stored templates.
type TemplateLister interface {
	List(criteria map[string]any) ([]*models.FleetTemplate, error)
}

// Pilots reads a character's profile.
type Pilots interface {
	Profile(ctx context.Context, characterID int64) (*models.PilotProfile, error)
}

// UserLookup finds the user behind a Discord id.
type UserLookup interface {
	GetByDiscordID(discordID string) (*models.User, error)
}

// Invocation is a slash command as received from Discord.
type Invocation struct {
	UserID   string
	Username string
	Name     string
	Options  map[string]string
}

// Reply is the bot's answer to an [Invocation].
type Reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

// Commands returns the slash commands registered to the guild.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "hello", Description: "Say hello to the fleet bot"},
		{Name: "link", Description: "Link an EVE character to your Discord account"},
		{Name: "fleet", Description: "Show your fleet role and structure"},
		{Name: "pilot", Description: "Show your linked character's corporation, location and ship"},
		{
			Name:        "capture",
			Description: "Save your current fleet's structure as a template",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name (defaults to the fleet name)"},
			},
		},
		{
			Name:        "reconstruct",
			Description: "Rebuild a template's wings and squads in the fleet you command",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "template", Description: "Template id or name", Required: true},
			},
		},
		{Name: "templates", Description: "List saved fleet templates"},
	}
}

// ephemeral reports whether only the invoking user should see the reply.
func ephemeral(command string) bool {
	return command == "link" || command == "fleet" || command == "pilot"
}

// CommandHandler answers slash commands.
type CommandHandler struct {
	engine    Engine
	templates TemplateLister
	users     UserLookup
	pilots    Pilots
	baseURL   string
	logger    *log.Logger
}

func NewCommandHandler(engine Engine, templates TemplateLister, users UserLookup, pilots Pilots, baseURL string, logger *log.Logger) *CommandHandler {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &CommandHandler{
		engine:    engine,
		templates: templates,
		users:     users,
		pilots:    pilots,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// Handle dispatches a slash command.
func (h *CommandHandler) Handle(ctx context.Context, inv Invocation) Reply {
	switch inv.Name {
	case "hello":
		return Reply{Content: fmt.Sprintf("Hello <@%s>! Use `/link` to connect an EVE character, then `/fleet` once you are in a fleet.", inv.UserID)}
	case "link":
		return h.cmdLink(inv)
	case "fleet":
		return h.cmdFleet(ctx, inv)
	case "pilot":
		return h.cmdPilot(ctx, inv)
	case "capture":
		return h.cmdCapture(ctx, inv)
	case "reconstruct":
		return h.cmdReconstruct(ctx, inv)
	case "templates":
		return h.cmdTemplates()
	default:
		return Reply{Content: fmt.Sprintf("Unknown command `/%s`.", inv.Name)}
	}
}

func (h *CommandHandler) cmdLink(inv Invocation) Reply {
	return Reply{Embed: &discordgo.MessageEmbed{
		Title:       "Link an EVE character",
		Description: fmt.Sprintf("Log in with EVE Online to link a character:\n%s/eve/login/%s", h.baseURL, inv.UserID),
		Color:       colorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: "The link is tied to your Discord account. Do not share it."},
	}}
}

func (h *CommandHandler) cmdFleet(ctx context.Context, inv Invocation) Reply {
	characterID, reply, ok := h.character(inv)
	if !ok {
		return reply
	}

	full, err := h.engine.FullFleetInfo(ctx, characterID)
	if err != nil {
		return h.errorReply(inv, err)
	}
	if full == nil {
		return Reply{Content: "Your character is not in a fleet."}
	}

	title := fmt.Sprintf("Fleet %d", full.FleetID)
	if full.Info.Name != "" {
		title = full.Info.Name
	}

	var structure strings.Builder
	for _, w := range full.Wings {
		fmt.Fprintf(&structure, "**%s**\n", w.Name)
		for _, s := range w.Squads {
			fmt.Fprintf(&structure, "- %s\n", s.Name)
		}
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Role", Value: formatter.RoleSummary(full.Leadership), Inline: true},
		{Name: "Members", Value: fmt.Sprintf("%d", len(full.Members)), Inline: true},
		{Name: "Wings / Squads", Value: fmt.Sprintf("%d / %d", len(full.Wings), full.SquadCount()), Inline: true},
	}
	if full.Info.MOTD != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "MOTD", Value: truncate(full.Info.MOTD, 1024)})
	}

	return Reply{Embed: &discordgo.MessageEmbed{
		Title:       title,
		Description: truncate(structure.String(), maxDescription),
		Color:       colorInfo,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}}
}

func (h *CommandHandler) cmdPilot(ctx context.Context, inv Invocation) Reply {
	characterID, reply, ok := h.character(inv)
	if !ok {
		return reply
	}

	p, err := h.pilots.Profile(ctx, characterID)
	if err != nil {
		return h.errorReply(inv, err)
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Security", Value: fmt.Sprintf("%.2f", p.Info.SecurityStatus), Inline: true},
	}
	if p.Corporation != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Corporation", Value: fmt.Sprintf("%s [%s]", p.Corporation.Name, p.Corporation.Ticker), Inline: true,
		})
	}
	if p.Alliance != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Alliance", Value: fmt.Sprintf("%s [%s]", p.Alliance.Name, p.Alliance.Ticker), Inline: true,
		})
	}
	if p.Online != nil {
		status := "Offline"
		if p.Online.Online {
			status = "Online"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Status", Value: status, Inline: true})
	}
	if p.Location != nil {
		where := fmt.Sprintf("System %d", p.Location.SolarSystemID)
		if p.Location.Docked() {
			where += ", docked"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Location", Value: where, Inline: true})
	}
	if p.Ship != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Ship", Value: truncate(fmt.Sprintf("%s (type %d)", p.Ship.ShipName, p.Ship.ShipTypeID), 1024), Inline: true,
		})
	}

	return Reply{Embed: &discordgo.MessageEmbed{
		Title:     p.Info.Name,
		Color:     colorInfo,
		Fields:    fields,
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: fmt.Sprintf("https://images.evetech.net/characters/%d/portrait?size=128", characterID)},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}
}

func (h *CommandHandler) cmdCapture(ctx context.Context, inv Invocation) Reply {
	characterID, reply, ok := h.character(inv)
	if !ok {
		return reply
	}

	res, err := h.engine.Capture(ctx, characterID, inv.Options["name"])
	if err != nil {
		return h.errorReply(inv, err)
	}

	wings, squads := len(res.Snapshot.Wings), len(res.Snapshot.Squads)
	if res.SaveErr != nil {
		msg := fmt.Sprintf("Captured %d wings and %d squads, but the template could not be saved.", wings, squads)
		if errors.Is(res.SaveErr, shared.ErrDuplicateName) {
			msg = fmt.Sprintf("A template named **%s** already exists. Capture again with another name.", res.Name)
		}
		return Reply{Embed: &discordgo.MessageEmbed{Title: "Template not saved", Description: msg, Color: colorWarning}}
	}

	return Reply{Embed: &discordgo.MessageEmbed{
		Title:       "Template saved",
		Description: fmt.Sprintf("**%s** with %d wings and %d squads.", res.Name, wings, squads),
		Color:       colorSuccess,
		Footer:      &discordgo.MessageEmbedFooter{Text: "id " + res.Template.ID()},
	}}
}

func (h *CommandHandler) cmdReconstruct(ctx context.Context, inv Invocation) Reply {
	ref := strings.TrimSpace(inv.Options["template"])
	if ref == "" {
		return Reply{Content: "Usage: `/reconstruct template:<id or name>`"}
	}

	characterID, reply, ok := h.character(inv)
	if !ok {
		return reply
	}

	full, err := h.engine.Reconstruct(ctx, characterID, ref, nil)
	if err != nil {
		return h.errorReply(inv, err)
	}

	name := ref
	if tpl, err := h.engine.ResolveTemplate(ref); err == nil {
		name = tpl.Name()
	}

	return Reply{Embed: &discordgo.MessageEmbed{
		Title:       "Fleet reconstructed",
		Description: fmt.Sprintf("Applied **%s**. The fleet now has %d wings and %d squads.", name, len(full.Wings), full.SquadCount()),
		Color:       colorSuccess,
	}}
}

func (h *CommandHandler) cmdTemplates() Reply {
	list, err := h.templates.List(map[string]any{"limit": maxTemplatesListed})
	if err != nil {
		h.logger.Error("failed to list templates", "err", err)
		return Reply{Content: "Templates could not be loaded. Please try again."}
	}
	if len(list) == 0 {
		return Reply{Content: "No templates saved yet. Use `/capture` while in a fleet."}
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(list))
	for _, t := range list {
		body := t.Body()
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  t.Name(),
			Value: fmt.Sprintf("%d wings, %d squads\n`%s`", len(body.Wings), len(body.Squads), t.ID()),
		})
	}
	return Reply{Embed: &discordgo.MessageEmbed{Title: "Fleet templates", Color: colorInfo, Fields: fields}}
}

// character returns the first character linked to the invoking user.
func (h *CommandHandler) character(inv Invocation) (int64, Reply, bool) {
	user, err := h.users.GetByDiscordID(inv.UserID)
	if err != nil || len(user.CharacterIDs()) == 0 {
		return 0, Reply{Content: "No EVE character is linked to your account. Use `/link` first."}, false
	}
	return user.CharacterIDs()[0], Reply{}, true
}

// errorReply turns an engine error into a message for the user.
func (h *CommandHandler) errorReply(inv Invocation, err error) Reply {
	var rerr *tasks.ReconstructionError

	switch {
	case errors.As(err, &rerr):
		return Reply{Embed: &discordgo.MessageEmbed{
			Title: "Reconstruction incomplete",
			Description: fmt.Sprintf("Stopped at %s after creating %d wings and %d squads. They were left in place.\n%v",
				strings.ReplaceAll(rerr.Step, "_", " "), len(rerr.Mapping.Wings), len(rerr.Mapping.Squads), rerr.Err),
			Color: colorWarning,
		}}
	case errors.Is(err, shared.ErrPermissionDenied):
		return Reply{Content: err.Error()}
	case errors.Is(err, shared.ErrNotFound):
		return Reply{Content: "Not found: " + err.Error()}
	case errors.Is(err, shared.ErrRemoteUnavailable), errors.Is(err, shared.ErrRemoteTimeout):
		return Reply{Content: "EVE's servers did not respond. Please try again in a moment."}
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired):
		return Reply{Content: "Your character's EVE login has expired. Use `/link` to log in again."}
	default:
		h.logger.Error("command failed", "command", inv.Name, "discord_id", inv.UserID, "err", err)
		return Reply{Content: "Something went wrong. Please try again."}
	}
}

// truncate shortens s to at most n characters, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
