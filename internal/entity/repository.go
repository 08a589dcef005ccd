package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for entity persistence.
//
// Persisted entities are re-supplied to the reconciler at startup before its
// first pass runs, so switches survive restarts with their identity (and
// last visible state) intact. The abstraction also enables unit testing
// without a database.
type Repository interface {
	// List retrieves all persisted entities, ordered by action ID.
	List(ctx context.Context) ([]*Entity, error)

	// Create inserts a new entity.
	// Returns ErrEntityExists if the action ID is already persisted.
	Create(ctx context.Context, e *Entity) error

	// Delete removes an entity by action ID.
	// Returns ErrEntityNotFound if the action ID is not persisted.
	Delete(ctx context.Context, actionID string) error

	// UpdateState persists only the visible on/off state.
	UpdateState(ctx context.Context, actionID string, on bool) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the entities
// table migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all persisted entities, ordered by action ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Entity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action_id, display_name, invoke_url, is_on
		FROM entities
		ORDER BY action_id`)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var (
			e    Entity
			isOn int
		)
		if err := rows.Scan(&e.ActionID, &e.DisplayName, &e.InvokeURL, &isOn); err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		e.SetOn(isOn != 0)
		entities = append(entities, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// Create inserts a new entity.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entities (action_id, display_name, invoke_url, is_on, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ActionID, e.DisplayName, e.InvokeURL, boolToInt(e.IsOn()), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEntityExists
		}
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// Delete removes an entity by action ID.
func (r *SQLiteRepository) Delete(ctx context.Context, actionID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM entities WHERE action_id = ?", actionID)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// UpdateState persists only the visible on/off state.
func (r *SQLiteRepository) UpdateState(ctx context.Context, actionID string, on bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		UPDATE entities SET is_on = ?, updated_at = ? WHERE action_id = ?`,
		boolToInt(on), now, actionID,
	)
	if err != nil {
		return fmt.Errorf("updating entity state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// boolToInt converts a bool to the 0/1 form stored in SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether the error is a primary key conflict.
// The sqlite3 driver wraps these as constraint errors mentioning UNIQUE.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE")
}
