package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// BlueprintStore provides CRUD operations for blueprints.
type BlueprintStore struct {
	db *DB
}

// NewBlueprintStore creates a new blueprint store.
func NewBlueprintStore(db *DB) *BlueprintStore {
	return &BlueprintStore{db: db}
}

// Save inserts or replaces a blueprint. CreatedAt is preserved on update;
// UpdatedAt is always refreshed.
func (s *BlueprintStore) Save(bp *Blueprint) error {
	if bp.ID == "" {
		return fmt.Errorf("blueprint id is empty")
	}

	tags, err := json.Marshal(bp.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	now := time.Now().UTC()
	if bp.CreatedAt.IsZero() {
		bp.CreatedAt = now
	}
	bp.UpdatedAt = now

	query := `
		INSERT INTO blueprints (id, name, description, code, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			code = excluded.code,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`
	_, err = s.db.sqlDB.Exec(query,
		bp.ID, bp.Name, bp.Description, bp.Code, string(tags),
		bp.CreatedAt.Format(time.RFC3339Nano), bp.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save blueprint: %w", err)
	}
	return nil
}

// Get retrieves a blueprint by id. A missing id returns (nil, nil).
func (s *BlueprintStore) Get(id string) (*Blueprint, error) {
	query := `
		SELECT id, name, description, code, tags, created_at, updated_at
		FROM blueprints WHERE id = ?
	`
	bp, err := scanBlueprint(s.db.sqlDB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get blueprint: %w", err)
	}
	return bp, nil
}

// List returns all blueprints ordered by creation time.
func (s *BlueprintStore) List() ([]*Blueprint, error) {
	query := `
		SELECT id, name, description, code, tags, created_at, updated_at
		FROM blueprints ORDER BY created_at, id
	`
	rows, err := s.db.sqlDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}
	defer rows.Close()

	var blueprints []*Blueprint
	for rows.Next() {
		bp, err := scanBlueprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blueprint: %w", err)
		}
		blueprints = append(blueprints, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blueprints: %w", err)
	}
	return blueprints, nil
}

// Delete removes a blueprint by id.
func (s *BlueprintStore) Delete(id string) error {
	if _, err := s.db.sqlDB.Exec("DELETE FROM blueprints WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete blueprint: %w", err)
	}
	return nil
}

// Count returns the number of stored blueprints.
func (s *BlueprintStore) Count() (int, error) {
	var count int
	if err := s.db.sqlDB.QueryRow("SELECT COUNT(*) FROM blueprints").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count blueprints: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlueprint(row rowScanner) (*Blueprint, error) {
	var bp Blueprint
	var tags string
	var createdAtValue, updatedAtValue any

	if err := row.Scan(
		&bp.ID, &bp.Name, &bp.Description, &bp.Code, &tags,
		&createdAtValue, &updatedAtValue,
	); err != nil {
		return nil, err
	}

	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &bp.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse tags: %w", err)
		}
	}

	createdAt, err := parseTimeValue(createdAtValue)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	bp.CreatedAt = createdAt

	updatedAt, err := parseTimeValue(updatedAtValue)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	bp.UpdatedAt = updatedAt

	return &bp, nil
}
