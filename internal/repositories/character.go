package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

// CharacterRepository implements [models.MutableRepository] for [models.Character] persistence.
//
// Characters are keyed internally by a generated id and externally by their EVE character id.
type CharacterRepository struct {
	db *sql.DB
}

// NewCharacterRepository creates a new [CharacterRepository] with the given database connection
func NewCharacterRepository(db *sql.DB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

const characterColumns = `id, sequence, character_id, name, user_id, access_token, refresh_token, expires_at, scopes, created_at, updated_at, deleted_at`

// Create inserts a new character with generated ID and sequence
func (r *CharacterRepository) Create(c *models.Character) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "characters")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO characters (id, sequence, character_id, name, user_id, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, c.CharacterID(), c.Name(), nullString(c.UserID()),
		c.AccessToken(), c.RefreshToken(), nullTime(c.ExpiresAt()), strings.Join(c.Scopes(), " "),
		c.CreatedAt(), c.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: character %d already exists", shared.ErrDuplicateName, c.CharacterID())
		}
		return fmt.Errorf("failed to insert character: %w", err)
	}

	c.SetID(id)
	c.SetSequence(sequence)
	return nil
}

// Get retrieves a character by internal ID, excluding soft-deleted characters
func (r *CharacterRepository) Get(id string) (*models.Character, error) {
	return r.getWhere("id = ?", id)
}

// GetByCharacterID retrieves a character by EVE character id.
func (r *CharacterRepository) GetByCharacterID(characterID int64) (*models.Character, error) {
	return r.getWhere("character_id = ?", characterID)
}

func (r *CharacterRepository) getWhere(cond string, arg any) (*models.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE ` + cond + ` AND deleted_at IS NULL`

	c, err := scanCharacter(r.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: character %v", shared.ErrNotFound, arg)
	}
	return c, err
}

// Upsert stores the character's tokens, creating the row on first link.
//
// The owning user is only replaced when userID is non-empty.
func (r *CharacterRepository) Upsert(c *models.Character) error {
	existing, err := r.GetByCharacterID(c.CharacterID())
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return r.Create(c)
	case err != nil:
		return err
	}

	c.SetID(existing.ID())
	c.SetSequence(existing.Sequence())
	c.SetCreatedAt(existing.CreatedAt())
	if c.UserID() == "" {
		c.SetUserID(existing.UserID())
	}
	return r.Update(c)
}

// Update modifies an existing character in the database
func (r *CharacterRepository) Update(c *models.Character) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE characters
		SET name = ?, user_id = ?, access_token = ?, refresh_token = ?, expires_at = ?, scopes = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, c.Name(), nullString(c.UserID()), c.AccessToken(), c.RefreshToken(), nullTime(c.ExpiresAt()),
		strings.Join(c.Scopes(), " "), now, c.ID())
	if err != nil {
		return fmt.Errorf("failed to update character: %w", err)
	}

	if err := affectedOne(result, fmt.Errorf("%w: character %s", shared.ErrNotFound, c.ID())); err != nil {
		return err
	}
	c.SetUpdatedAt(now)
	return nil
}

// UpdateTokens replaces the ESI tokens of the character with the given EVE character id.
func (r *CharacterRepository) UpdateTokens(characterID int64, access, refresh string, expiresAt time.Time) error {
	result, err := r.db.Exec(`
		UPDATE characters SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE character_id = ? AND deleted_at IS NULL
	`, access, refresh, nullTime(expiresAt), time.Now().UTC(), characterID)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return affectedOne(result, fmt.Errorf("%w: character %d", shared.ErrNotFound, characterID))
}

// Delete soft-deletes a character by internal ID
func (r *CharacterRepository) Delete(id string) error {
	result, err := r.db.Exec(`
		UPDATE characters SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	return affectedOne(result, fmt.Errorf("%w: character %s", shared.ErrNotFound, id))
}

// List retrieves characters in link order. Supported criteria:
// "user_id" (string), "expiring_before" ([time.Time]) and "has_refresh_token" (bool).
func (r *CharacterRepository) List(criteria map[string]any) ([]*models.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if before, ok := criteria["expiring_before"].(time.Time); ok {
		query += " AND (expires_at IS NULL OR expires_at < ?)"
		args = append(args, before)
	}
	if hasRefresh, ok := criteria["has_refresh_token"].(bool); ok && hasRefresh {
		query += " AND refresh_token != ''"
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer rows.Close()

	var characters []*models.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		characters = append(characters, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return characters, nil
}

func scanCharacter(s scanner) (*models.Character, error) {
	var (
		id           string
		sequence     int
		characterID  int64
		name         string
		userID       sql.NullString
		accessToken  string
		refreshToken string
		expiresAt    sql.NullTime
		scopes       string
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := s.Scan(&id, &sequence, &characterID, &name, &userID, &accessToken, &refreshToken,
		&expiresAt, &scopes, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan character: %w", err)
	}

	c := models.NewCharacter(sequence, characterID, name)
	c.SetID(id)
	c.SetUserID(userID.String)
	c.SetTokens(accessToken, refreshToken, expiresAt.Time)
	c.SetScopes(strings.Fields(scopes))
	c.SetCreatedAt(createdAt)
	c.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		c.SetDeletedAt(&deletedAt.Time)
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
