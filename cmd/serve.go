package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/desertthunder/esifleet/internal/discord"
	"github.com/desertthunder/esifleet/internal/server"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the web login and fleet API, the Discord bot and the token refresher until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.ValidateDiscord(); err != nil {
		return err
	}
	sso, err := r.sso()
	if err != nil {
		return err
	}
	discordAuth, err := services.NewDiscordService(r.config.Discord, r.httpClient)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	secure := strings.HasPrefix(r.config.Discord.BaseURL, "https://")
	sessions, err := server.NewSessions(r.config.Server.SessionSecret, 0, secure)
	if err != nil {
		return err
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(server.NewAuthHandler(discordAuth, sso, r.users, r.characters, sessions, r.logger))
	router.Handler(server.NewFleetHandler(r.engine, r.templates, r.users, r.characters, sessions, r.logger))

	commands := discord.NewCommandHandler(r.engine, r.templates, r.users, r.pilots, r.config.Discord.BaseURL, r.logger)
	bot, err := discord.NewBot(r.config.Discord, commands, r.logger)
	if err != nil {
		return err
	}
	if err := bot.Start(); err != nil {
		return fmt.Errorf("failed to start discord bot: %w", err)
	}
	defer bot.Stop()

	refresher := tasks.NewTokenRefresher(r.characters, sso, r.refreshOpts(), r.logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	r.writePlain("→ Serving on http://%s (Ctrl+C to stop)\n", r.config.Server.Addr())
	return server.ListenAndServe(ctx, server.NewHTTPServer(r.config.Server.Addr(), router), r.logger)
}
