// EVE Online SSO (OAuth2 authorization code flow)
//
// https://docs.esi.evetech.net/docs/sso/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	eveAuthURL  = "https://login.eveonline.com/v2/oauth/authorize"
	eveTokenURL = "https://login.eveonline.com/v2/oauth/token"
)

// EVEIdentity is the character an SSO token was issued for.
type EVEIdentity struct {
	CharacterID int64
	Name        string
	Scopes      []string
	Token       *oauth2.Token
}

// scopeList decodes the scp claim, which is a string for a single scope and an array otherwise.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*s = many
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = []string{one}
	return nil
}

type eveClaims struct {
	jwt.RegisteredClaims
	Name   string    `json:"name"`
	Scopes scopeList `json:"scp"`
}

// EVESSOService implements [OAuthService] for EVE Online SSO.
type EVESSOService struct {
	config *oauth2.Config
}

// NewEVESSOService creates an SSO client from the ESI credentials map (client_id, client_secret, redirect_uri).
func NewEVESSOService(credentials map[string]string, scopes []string) (*EVESSOService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  credentials["redirect_uri"],
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   eveAuthURL,
			TokenURL:  eveTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &EVESSOService{config: config}, nil
}

func (s *EVESSOService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

func (s *EVESSOService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Exchange trades an authorization code for tokens and identifies the character.
func (s *EVESSOService) Exchange(ctx context.Context, code string) (*EVEIdentity, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return ParseIdentity(token)
}

// Refresh trades a refresh token for a new token pair.
func (s *EVESSOService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, err := s.config.TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// ParseIdentity reads the character id, name and scopes from an SSO access token.
//
// The signature is not checked: the token was received directly from the token endpoint.
func ParseIdentity(token *oauth2.Token) (*EVEIdentity, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", shared.ErrAuthFailed)
	}

	claims := &eveClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse access token: %v", shared.ErrAuthFailed, err)
	}

	// sub is "CHARACTER:EVE:<id>"
	parts := strings.Split(claims.Subject, ":")
	if len(parts) != 3 || parts[0] != "CHARACTER" {
		return nil, fmt.Errorf("%w: unexpected subject %q", shared.ErrAuthFailed, claims.Subject)
	}

	characterID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid character id in subject %q", shared.ErrAuthFailed, claims.Subject)
	}

	return &EVEIdentity{
		CharacterID: characterID,
		Name:        claims.Name,
		Scopes:      claims.Scopes,
		Token:       token,
	}, nil
}
