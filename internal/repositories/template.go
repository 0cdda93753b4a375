package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

// TemplateRepository implements [models.Repository] for write-once [models.FleetTemplate] persistence.
//
// There is no Update or Delete: a template is created by a capture and read thereafter.
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new [TemplateRepository] with the given database connection
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Save builds and stores a template, returning [shared.ErrDuplicateName] if the name is taken.
func (r *TemplateRepository) Save(ownerID int64, name string, body models.FleetSnapshot) (*models.FleetTemplate, error) {
	tpl := models.NewFleetTemplate(0, ownerID, name, body)
	if err := r.Create(tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// Create inserts a new template with a generated ID and sequence.
//
// The sequence bump and insert share a transaction; a name collision rolls back both.
func (r *TemplateRepository) Create(tpl *models.FleetTemplate) error {
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidTemplate, err)
	}

	body, err := json.Marshal(tpl.Body())
	if err != nil {
		return fmt.Errorf("failed to encode template body: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequence(tx, "fleet_templates")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO fleet_templates (id, sequence, owner_id, name, body, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, id, sequence, tpl.OwnerID(), tpl.Name(), string(body), tpl.CreatedAt()); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a template named %q already exists", shared.ErrDuplicateName, tpl.Name())
		}
		return fmt.Errorf("failed to insert template: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit template: %w", err)
	}

	tpl.SetID(id)
	tpl.SetSequence(sequence)
	return nil
}

// Get retrieves a template by ID, returning [shared.ErrNotFound] when it does not exist.
func (r *TemplateRepository) Get(id string) (*models.FleetTemplate, error) {
	row := r.db.QueryRow(`
		SELECT id, sequence, owner_id, name, body, created_at FROM fleet_templates WHERE id = ?
	`, id)

	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template %s", shared.ErrNotFound, id)
	}
	return tpl, err
}

// GetByName retrieves a template by its unique name.
func (r *TemplateRepository) GetByName(name string) (*models.FleetTemplate, error) {
	row := r.db.QueryRow(`
		SELECT id, sequence, owner_id, name, body, created_at FROM fleet_templates WHERE name = ?
	`, name)

	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template named %q", shared.ErrNotFound, name)
	}
	return tpl, err
}

// List retrieves templates in creation order. Supported criteria: "owner_id" (int64), "limit" (int).
func (r *TemplateRepository) List(criteria map[string]any) ([]*models.FleetTemplate, error) {
	query := `SELECT id, sequence, owner_id, name, body, created_at FROM fleet_templates WHERE 1 = 1`
	args := []any{}

	if ownerID, ok := criteria["owner_id"].(int64); ok && ownerID > 0 {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.FleetTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return templates, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s scanner) (*models.FleetTemplate, error) {
	var (
		id        string
		sequence  int
		ownerID   int64
		name      string
		rawBody   string
		createdAt time.Time
	)

	if err := s.Scan(&id, &sequence, &ownerID, &name, &rawBody, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	var body models.FleetSnapshot
	if err := json.Unmarshal([]byte(rawBody), &body); err != nil {
		return nil, fmt.Errorf("failed to decode template %s body: %w", id, err)
	}

	tpl := models.NewFleetTemplate(sequence, ownerID, name, body)
	tpl.SetID(id)
	tpl.SetCreatedAt(createdAt)
	tpl.SetUpdatedAt(createdAt)
	return tpl, nil
}
