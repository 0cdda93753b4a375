package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

type characterMap map[int64]*models.Character

func (m characterMap) GetByCharacterID(id int64) (*models.Character, error) {
	c, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: character %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func TestCredentialStore(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	valid := models.NewCharacter(0, 1, "Valid")
	valid.SetTokens("access-1", "refresh-1", now.Add(10*time.Minute))
	expired := models.NewCharacter(0, 2, "Expired")
	expired.SetTokens("access-2", "refresh-2", now.Add(-time.Minute))
	unlinked := models.NewCharacter(0, 3, "Unlinked")

	store := NewCredentialStore(characterMap{1: valid, 2: expired, 3: unlinked})
	store.now = func() time.Time { return now }

	tc := []struct {
		name        string
		characterID int64
		want        string
		wantErr     []error
	}{
		{name: "valid", characterID: 1, want: "access-1"},
		{name: "expired", characterID: 2, wantErr: []error{shared.ErrTokenExpired}},
		{name: "no token", characterID: 3, wantErr: []error{shared.ErrNotAuthenticated}},
		{name: "unknown", characterID: 4, wantErr: []error{shared.ErrNotAuthenticated, shared.ErrNotFound}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.AccessToken(context.Background(), tt.characterID)
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("expected %v, got %v", want, err)
				}
			}
			if len(tt.wantErr) == 0 && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected token %q, got %q", tt.want, got)
			}
		})
	}
}
