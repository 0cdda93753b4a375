// Discord OAuth2 login and guild membership gate
//
// https://discord.com/developers/docs/topics/oauth2
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/desertthunder/esifleet/internal/shared"
	"golang.org/x/oauth2"
)

const (
	discordAuthURL  = "https://discord.com/oauth2/authorize"
	discordTokenURL = "https://discord.com/api/oauth2/token"
	discordAPIURL   = "https://discord.com/api/v10"
)

// DiscordUser is the response of GET /users/@me.
type DiscordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// DisplayName returns the global name when set, else the username.
func (u *DiscordUser) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// DiscordMember is the response of GET /users/@me/guilds/{guild.id}/member.
type DiscordMember struct {
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}

// DiscordService implements [OAuthService] for Discord and checks the configured guild and roles.
type DiscordService struct {
	config     *oauth2.Config
	apiURL     string
	guildID    string
	guildRoles []string
	httpClient *http.Client
}

// NewDiscordService creates a Discord OAuth client. A nil client uses [http.DefaultClient].
func NewDiscordService(cfg shared.DiscordConfig, client *http.Client) (*DiscordService, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("%w: missing discord app_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing discord client_secret", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &DiscordService{
		config: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"identify", "guilds.members.read"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   discordAuthURL,
				TokenURL:  discordTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL:     discordAPIURL,
		guildID:    cfg.GuildID,
		guildRoles: cfg.GuildRoles,
		httpClient: client,
	}, nil
}

func (s *DiscordService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

func (s *DiscordService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Authorize exchanges the code, then requires membership of the configured guild
// and, when roles are configured, at least one of them.
func (s *DiscordService) Authorize(ctx context.Context, code string) (*DiscordUser, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	user, err := s.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.guildID == "" {
		return user, nil
	}

	member, err := s.GuildMember(ctx, token)
	if err != nil {
		return nil, err
	}

	if !s.hasAllowedRole(member) {
		return nil, fmt.Errorf("%w: %s has none of the required guild roles", shared.ErrPermissionDenied, user.Username)
	}
	return user, nil
}

func (s *DiscordService) hasAllowedRole(member *DiscordMember) bool {
	if len(s.guildRoles) == 0 {
		return true
	}
	for _, role := range member.Roles {
		if slices.Contains(s.guildRoles, role) {
			return true
		}
	}
	return false
}

// CurrentUser fetches the profile of the token's owner.
func (s *DiscordService) CurrentUser(ctx context.Context, token *oauth2.Token) (*DiscordUser, error) {
	var user DiscordUser
	if err := s.get(ctx, token, "/users/@me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GuildMember fetches the token owner's membership of the configured guild.
//
// Discord answers 404 when the user is not a member, which is reported as [shared.ErrPermissionDenied].
func (s *DiscordService) GuildMember(ctx context.Context, token *oauth2.Token) (*DiscordMember, error) {
	var member DiscordMember
	if err := s.get(ctx, token, fmt.Sprintf("/users/@me/guilds/%s/member", s.guildID), &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *DiscordService) get(ctx context.Context, token *oauth2.Token, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: discord %s: %v", shared.ErrRemoteUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: discord %s: status %d", shared.ErrPermissionDenied, endpoint, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: discord %s", shared.ErrNotAuthenticated, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: discord %s: status %d", shared.ErrRemoteUnavailable, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
