package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/shared"
)

const (
	defaultExchangeTimeout = 30 * time.Second
	stateTTL               = 10 * time.Minute
)

// DiscordAuth is the Discord login flow used by [AuthHandler].
type DiscordAuth interface {
	GetAuthURL(state string) string
	Authorize(ctx context.Context, code string) (*services.DiscordUser, error)
}

// EVEAuth is the EVE SSO flow used by [AuthHandler].
type EVEAuth interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*services.EVEIdentity, error)
}

// UserStore loads and upserts Discord users.
type UserStore interface {
	Upsert(discordID, username string) (*models.User, error)
	GetByDiscordID(discordID string) (*models.User, error)
}

// CharacterStore loads and upserts linked characters.
type CharacterStore interface {
	GetByCharacterID(characterID int64) (*models.Character, error)
	Upsert(c *models.Character) error
	List(criteria map[string]any) ([]*models.Character, error)
}

// AuthHandler serves Discord web login and EVE character linking.
//
//	GET /                       → landing page (redirects to /login without a session)
//	GET /login                  → Discord authorize
//	GET /auth/discord/callback  → guild/role gate, user upsert, session cookie
//	GET /logout                 → clears the session
//	GET /eve/login/{discordId}  → EVE SSO authorize on behalf of a Discord user
//	GET /eve/sso                → code exchange, character upsert and link
type AuthHandler struct {
	discord    DiscordAuth
	eve        EVEAuth
	users      UserStore
	characters CharacterStore
	sessions   *Sessions
	states     *stateStore
	logger     *log.Logger
	mux        *http.ServeMux
}

// NewAuthHandler wires the login and linking routes. A nil logger discards output.
func NewAuthHandler(discord DiscordAuth, eve EVEAuth, users UserStore, characters CharacterStore, sessions *Sessions, logger *log.Logger) *AuthHandler {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	h := &AuthHandler{
		discord:    discord,
		eve:        eve,
		users:      users,
		characters: characters,
		sessions:   sessions,
		states:     newStateStore(stateTTL),
		logger:     logger,
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("GET /login", h.login)
	h.mux.HandleFunc("GET /auth/discord/callback", h.discordCallback)
	h.mux.HandleFunc("GET /logout", h.logout)
	h.mux.HandleFunc("GET /eve/login/{discordId}", h.eveLogin)
	h.mux.HandleFunc("GET /eve/sso", h.eveCallback)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{
		"GET /{$}",
		"GET /login",
		"GET /auth/discord/callback",
		"GET /logout",
		"GET /eve/login/{discordId}",
		"GET /eve/sso",
	}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *AuthHandler) index(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Parse(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	msg := "No characters linked yet. Use /link in Discord to add one."
	if user, err := h.users.GetByDiscordID(session.DiscordID); err == nil {
		if n := len(user.CharacterIDs()); n > 0 {
			msg = fmt.Sprintf("%d character(s) linked.", n)
		}
	}
	renderPage(w, http.StatusOK, "Welcome, "+session.Username, msg)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "err", err)
		renderPage(w, http.StatusInternalServerError, "Login failed", "Please try again.")
		return
	}
	h.states.Put(state, "")
	http.Redirect(w, r, h.discord.GetAuthURL(state), http.StatusFound)
}

func (h *AuthHandler) discordCallback(w http.ResponseWriter, r *http.Request) {
	code, _, ok := h.callback(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultExchangeTimeout)
	defer cancel()

	du, err := h.discord.Authorize(ctx, code)
	switch {
	case errors.Is(err, shared.ErrPermissionDenied):
		renderPage(w, http.StatusForbidden, "Access denied", "You need to be a member of the corporation Discord with a fleet role.")
		return
	case err != nil:
		h.logger.Warn("discord login failed", "err", err)
		renderPage(w, http.StatusBadGateway, "Login failed", "Discord could not be reached. Please try again.")
		return
	}

	user, err := h.users.Upsert(du.ID, du.DisplayName())
	if err != nil {
		h.logger.Error("failed to save user", "discord_id", du.ID, "err", err)
		renderPage(w, http.StatusInternalServerError, "Login failed", "Please try again.")
		return
	}

	if err := h.sessions.Issue(w, user.DiscordID(), user.Username()); err != nil {
		h.logger.Error("failed to issue session", "err", err)
		renderPage(w, http.StatusInternalServerError, "Login failed", "Please try again.")
		return
	}

	h.logger.Info("user logged in", "discord_id", user.DiscordID())
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	renderPage(w, http.StatusOK, "Logged out", "You can close this window.")
}

func (h *AuthHandler) eveLogin(w http.ResponseWriter, r *http.Request) {
	discordID := r.PathValue("discordId")
	if _, err := h.users.GetByDiscordID(discordID); err != nil {
		renderPage(w, http.StatusNotFound, "Unknown user", "Log in with Discord before linking a character.")
		return
	}

	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "err", err)
		renderPage(w, http.StatusInternalServerError, "Linking failed", "Please try again.")
		return
	}
	h.states.Put(state, discordID)
	http.Redirect(w, r, h.eve.GetAuthURL(state), http.StatusFound)
}

func (h *AuthHandler) eveCallback(w http.ResponseWriter, r *http.Request) {
	code, discordID, ok := h.callback(w, r)
	if !ok {
		return
	}
	if discordID == "" {
		renderPage(w, http.StatusBadRequest, "Linking failed", "This login was not started from a link.")
		return
	}

	user, err := h.users.GetByDiscordID(discordID)
	if err != nil {
		renderPage(w, http.StatusNotFound, "Unknown user", "Log in with Discord before linking a character.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultExchangeTimeout)
	defer cancel()

	id, err := h.eve.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("eve sso exchange failed", "discord_id", discordID, "err", err)
		renderPage(w, http.StatusBadGateway, "Linking failed", "EVE SSO did not accept the login. Please try again.")
		return
	}

	c := models.NewCharacter(0, id.CharacterID, id.Name)
	c.SetUserID(user.ID())
	c.SetScopes(id.Scopes)
	c.SetTokens(id.Token.AccessToken, id.Token.RefreshToken, id.Token.Expiry)

	if err := h.characters.Upsert(c); err != nil {
		h.logger.Error("failed to save character", "character_id", id.CharacterID, "err", err)
		renderPage(w, http.StatusInternalServerError, "Linking failed", "Please try again.")
		return
	}

	h.logger.Info("linked character", "discord_id", discordID, "character_id", id.CharacterID)
	renderPage(w, http.StatusOK, "Character linked", fmt.Sprintf("%s is now linked. You can close this window.", id.Name))
}

// callback validates state and code. It writes the error page itself when ok is false.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) (code, discordID string, ok bool) {
	q := r.URL.Query()

	discordID, ok = h.states.Take(q.Get("state"))
	if !ok {
		renderPage(w, http.StatusBadRequest, "Login failed", "The login link expired. Please start again.")
		return "", "", false
	}

	code = q.Get("code")
	if code == "" {
		h.logger.Warn("authorization denied", "error", q.Get("error"), "description", q.Get("error_description"))
		renderPage(w, http.StatusBadRequest, "Login failed", "Authorization was denied.")
		return "", "", false
	}
	return code, discordID, true
}
