package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/server"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/desertthunder/esifleet/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// characterView is the JSON shape of a linked character. Tokens are never printed.
type characterView struct {
	CharacterID int64     `json:"character_id"`
	Name        string    `json:"name"`
	UserID      string    `json:"user_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	Scopes      []string  `json:"scopes"`
}

func (r *Runner) sso() (*services.EVESSOService, error) {
	if err := r.config.ValidateESI(); err != nil {
		return nil, err
	}
	return services.NewEVESSOService(r.config.ESI.Map(), r.config.ESI.Scopes)
}

// AuthEVE performs the EVE SSO flow against a local callback server and stores the character's tokens.
//
// The callback path comes from esi.callback_url, so it must point at this machine.
func (r *Runner) AuthEVE(ctx context.Context, cmd *cli.Command) error {
	sso, err := r.sso()
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	var userID string
	if discordID := cmd.String("discord-id"); discordID != "" {
		user, err := r.users.GetByDiscordID(discordID)
		if err != nil {
			return fmt.Errorf("failed to find discord user %s (log in through the web first): %w", discordID, err)
		}
		userID = user.ID()
	}

	token, err := r.doOAuth(sso, "EVE SSO login")
	if err != nil {
		return err
	}

	identity, err := services.ParseIdentity(token)
	if err != nil {
		return err
	}

	character := models.NewCharacter(0, identity.CharacterID, identity.Name)
	character.SetUserID(userID)
	character.SetScopes(identity.Scopes)
	character.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry)
	if err := r.characters.Upsert(character); err != nil {
		return fmt.Errorf("failed to store character: %w", err)
	}

	r.writePlainln("✓ Linked %s (%d)", identity.Name, identity.CharacterID)
	r.writePlain("Token expires %s; %d scopes granted\n", token.Expiry.Local().Format(time.RFC1123), len(identity.Scopes))
	r.writePlain("You can now use: esifleet fleet role -C %d\n", identity.CharacterID)
	return nil
}

// AuthList lists linked characters.
func (r *Runner) AuthList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if discordID := cmd.String("discord-id"); discordID != "" {
		user, err := r.users.GetByDiscordID(discordID)
		if err != nil {
			return err
		}
		criteria["user_id"] = user.ID()
	}

	characters, err := r.characters.List(criteria)
	if err != nil {
		return err
	}

	views := make([]characterView, len(characters))
	for i, c := range characters {
		views[i] = characterView{
			CharacterID: c.CharacterID(),
			Name:        c.Name(),
			UserID:      c.UserID(),
			ExpiresAt:   c.ExpiresAt(),
			Scopes:      c.Scopes(),
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d linked characters:\n\n", len(views))
	now := time.Now()
	for _, v := range views {
		status := "✓ valid"
		switch {
		case v.ExpiresAt.IsZero():
			status = "✗ no token"
		case !v.ExpiresAt.After(now):
			status = "⚠ expired"
		}
		r.writePlain("%d  %-24s %s (expires %s)\n", v.CharacterID, v.Name, status, v.ExpiresAt.Local().Format(time.Kitchen))
	}
	return nil
}

// AuthRefresh runs one token refresh pass and prints each character's outcome.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	sso, err := r.sso()
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	refresher := tasks.NewTokenRefresher(r.characters, sso, r.refreshOpts(), r.logger)
	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result := refresher.RefreshOnce(ctx, progress)
	close(progress)
	<-done

	r.writePlainln("Refreshed %d of %d tokens", result.Refreshed, result.Total)
	if result.Failed > 0 {
		return fmt.Errorf("%w: %d tokens could not be refreshed", shared.ErrRefreshFailed, result.Failed)
	}
	return nil
}

func (r *Runner) refreshOpts() tasks.RefreshOpts {
	return tasks.RefreshOpts{
		Interval: r.config.Refresh.Interval.Duration,
		Window:   r.config.Refresh.Window.Duration,
		Workers:  r.config.Refresh.Workers,
	}
}

// doOAuth starts a local callback server, opens the browser and waits for the authorization code exchange.
func (r *Runner) doOAuth(oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := server.NewHTTPServer(r.config.Server.Addr(), router)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
