package discord

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/shared"
)

// commandTimeout bounds one command, reconstruction included.
const commandTimeout = 2 * time.Minute

// Bot connects the [CommandHandler] to a Discord guild.
type Bot struct {
	session  *discordgo.Session
	appID    string
	guildID  string
	commands *CommandHandler
	logger   *log.Logger
}

// NewBot creates a bot session. It returns nil when no bot token is configured so callers
// can run the web server without Discord.
func NewBot(cfg shared.DiscordConfig, commands *CommandHandler, logger *log.Logger) (*Bot, error) {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if cfg.BotToken == "" {
		logger.Warn("discord bot token not set, bot disabled")
		return nil, nil
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		session:  session,
		appID:    cfg.AppID,
		guildID:  cfg.GuildID,
		commands: commands,
		logger:   shared.WithLogger(logger, "component", "discord"),
	}
	session.AddHandler(b.onInteraction)
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("connected to discord", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	return b, nil
}

// Start opens the gateway connection and registers the slash commands with the guild.
func (b *Bot) Start() error {
	if b == nil {
		return nil
	}
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	appID := b.appID
	if appID == "" && b.session.State != nil && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, Commands())
	if err != nil {
		b.session.Close()
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	b.logger.Info("registered slash commands", "count", len(registered), "guild", b.guildID)
	return nil
}

func (b *Bot) Stop() error {
	if b == nil {
		return nil
	}
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	inv := invocationFrom(i)
	logger := shared.WithLogger(b.logger, "command", inv.Name, "discord_id", inv.UserID)

	var flags discordgo.MessageFlags
	if ephemeral(inv.Name) {
		flags = discordgo.MessageFlagsEphemeral
	}

	// Discord requires an acknowledgement within three seconds; the reply is edited in afterwards.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		logger.Error("failed to acknowledge interaction", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply := b.commands.Handle(ctx, inv)
	logger.Debug("command handled")

	edit := &discordgo.WebhookEdit{}
	if reply.Content != "" {
		edit.Content = &reply.Content
	}
	if reply.Embed != nil {
		embeds := []*discordgo.MessageEmbed{reply.Embed}
		edit.Embeds = &embeds
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		logger.Error("failed to send reply", "err", err)
	}
}

func invocationFrom(i *discordgo.InteractionCreate) Invocation {
	data := i.ApplicationCommandData()
	inv := Invocation{Name: data.Name, Options: make(map[string]string, len(data.Options))}

	switch {
	case i.Member != nil && i.Member.User != nil:
		inv.UserID, inv.Username = i.Member.User.ID, i.Member.User.Username
	case i.User != nil:
		inv.UserID, inv.Username = i.User.ID, i.User.Username
	}

	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			inv.Options[opt.Name] = opt.StringValue()
		}
	}
	return inv
}
