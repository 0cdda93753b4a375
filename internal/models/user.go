package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// User is a Discord account that passed the guild membership and role gate.
type User struct {
	record
	discordID    string
	username     string
	characterIDs []int64
}

// NewUser creates a new user for the given Discord account.
func NewUser(sequence int, discordID, username string) *User {
	return &User{record: newRecord(sequence), discordID: discordID, username: username}
}

func (u *User) DiscordID() string { return u.discordID }
func (u *User) Username() string  { return u.username }

// CharacterIDs returns the EVE character ids linked to this user, in link order.
func (u *User) CharacterIDs() []int64 { return slices.Clone(u.characterIDs) }

func (u *User) SetUsername(name string)     { u.username = name }
func (u *User) SetCharacterIDs(ids []int64) { u.characterIDs = slices.Clone(ids) }

// HasCharacter reports whether characterID is linked to this user.
func (u *User) HasCharacter(characterID int64) bool {
	return slices.Contains(u.characterIDs, characterID)
}

// Validate checks that the Discord id and username are present.
func (u *User) Validate() error {
	if strings.TrimSpace(u.discordID) == "" {
		return fmt.Errorf("discord id is required")
	}
	if strings.TrimSpace(u.username) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// Character is an EVE character linked through SSO, holding the tokens used for ESI calls.
type Character struct {
	record
	characterID  int64
	name         string
	userID       string
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	scopes       []string
}

// NewCharacter creates a new character record.
func NewCharacter(sequence int, characterID int64, name string) *Character {
	return &Character{record: newRecord(sequence), characterID: characterID, name: name}
}

func (c *Character) CharacterID() int64   { return c.characterID }
func (c *Character) Name() string         { return c.name }
func (c *Character) UserID() string       { return c.userID }
func (c *Character) AccessToken() string  { return c.accessToken }
func (c *Character) RefreshToken() string { return c.refreshToken }
func (c *Character) ExpiresAt() time.Time { return c.expiresAt }
func (c *Character) Scopes() []string     { return slices.Clone(c.scopes) }

func (c *Character) SetName(name string)     { c.name = name }
func (c *Character) SetUserID(userID string) { c.userID = userID }
func (c *Character) SetScopes(s []string)    { c.scopes = slices.Clone(s) }

// SetTokens replaces the character's ESI credentials.
func (c *Character) SetTokens(access, refresh string, expiresAt time.Time) {
	c.accessToken = access
	c.refreshToken = refresh
	c.expiresAt = expiresAt
}

// ExpiresWithin reports whether the access token expires before now+d.
func (c *Character) ExpiresWithin(now time.Time, d time.Duration) bool {
	return c.expiresAt.Before(now.Add(d))
}

// Validate checks that the character id and name are present.
func (c *Character) Validate() error {
	if c.characterID <= 0 {
		return fmt.Errorf("character id is required")
	}
	if strings.TrimSpace(c.name) == "" {
		return fmt.Errorf("character name is required")
	}
	return nil
}
