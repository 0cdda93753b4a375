package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

// UserRepository implements [models.MutableRepository] for [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO users (id, sequence, discord_id, username, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, user.DiscordID(), user.Username(), user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	user.SetSequence(sequence)
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	return r.getWhere("id = ?", id)
}

// GetByDiscordID retrieves a user by Discord account id.
func (r *UserRepository) GetByDiscordID(discordID string) (*models.User, error) {
	return r.getWhere("discord_id = ?", discordID)
}

func (r *UserRepository) getWhere(cond string, arg any) (*models.User, error) {
	query := `
		SELECT id, sequence, discord_id, username, created_at, updated_at, deleted_at
		FROM users
		WHERE ` + cond + ` AND deleted_at IS NULL
	`

	user, err := scanUser(r.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %v", shared.ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadCharacterIDs(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Upsert returns the user for discordID, creating it or refreshing its username.
func (r *UserRepository) Upsert(discordID, username string) (*models.User, error) {
	user, err := r.GetByDiscordID(discordID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		user = models.NewUser(0, discordID, username)
		if err := r.Create(user); err != nil {
			return nil, err
		}
		return user, nil
	case err != nil:
		return nil, err
	}

	if user.Username() != username {
		user.SetUsername(username)
		if err := r.Update(user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE users SET username = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, user.Username(), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := affectedOne(result, fmt.Errorf("%w: user %s", shared.ErrNotFound, user.ID())); err != nil {
		return err
	}
	user.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec(`
		UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return affectedOne(result, fmt.Errorf("%w: user %s", shared.ErrNotFound, id))
}

// List retrieves all users matching the given criteria, excluding soft-deleted users.
// Supported criteria: "discord_id" (string).
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `
		SELECT id, sequence, discord_id, username, created_at, updated_at, deleted_at
		FROM users
		WHERE deleted_at IS NULL
	`
	args := []any{}

	if discordID, ok := criteria["discord_id"].(string); ok && discordID != "" {
		query += " AND discord_id = ?"
		args = append(args, discordID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, user := range users {
		if err := r.loadCharacterIDs(user); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (r *UserRepository) loadCharacterIDs(user *models.User) error {
	rows, err := r.db.Query(`
		SELECT character_id FROM characters WHERE user_id = ? AND deleted_at IS NULL ORDER BY sequence ASC
	`, user.ID())
	if err != nil {
		return fmt.Errorf("failed to query linked characters: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan character id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	user.SetCharacterIDs(ids)
	return nil
}

func scanUser(s scanner) (*models.User, error) {
	var (
		userID    string
		sequence  int
		discordID string
		username  string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := s.Scan(&userID, &sequence, &discordID, &username, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, discordID, username)
	user.SetID(userID)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}
	return user, nil
}
