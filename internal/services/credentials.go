package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

// CharacterStore looks up linked characters by EVE character id.
type CharacterStore interface {
	GetByCharacterID(characterID int64) (*models.Character, error)
}

// CredentialStore implements [CredentialSource] from stored SSO tokens.
//
// It never refreshes: an expired token is reported as [shared.ErrTokenExpired] and left to the refresher.
type CredentialStore struct {
	characters CharacterStore
	now        func() time.Time
}

// NewCredentialStore creates a [CredentialStore] over characters.
func NewCredentialStore(characters CharacterStore) *CredentialStore {
	return &CredentialStore{characters: characters, now: time.Now}
}

func (s *CredentialStore) AccessToken(ctx context.Context, characterID int64) (string, error) {
	c, err := s.characters.GetByCharacterID(characterID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}

	if c.AccessToken() == "" {
		return "", fmt.Errorf("%w: character %d has no ESI token", shared.ErrNotAuthenticated, characterID)
	}

	if !c.ExpiresAt().IsZero() && !c.ExpiresAt().After(s.now()) {
		return "", fmt.Errorf("%w: character %d", shared.ErrTokenExpired, characterID)
	}
	return c.AccessToken(), nil
}
