package entity

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the entities table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE entities (
			action_id    TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			invoke_url   TEXT NOT NULL,
			is_on        INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, New("a2", "Fan", "http://gw.local/api/v1/a2")); err != nil {
		t.Fatalf("Create(a2) error = %v", err)
	}
	if err := repo.Create(ctx, New("a1", "Lamp", "http://gw.local/api/v1/a1")); err != nil {
		t.Fatalf("Create(a1) error = %v", err)
	}

	entities, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(entities) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(entities))
	}
	// Ordered by action ID
	if entities[0].ActionID != "a1" || entities[1].ActionID != "a2" {
		t.Errorf("List() order = [%s, %s], want [a1, a2]", entities[0].ActionID, entities[1].ActionID)
	}
	if entities[0].DisplayName != "Lamp" {
		t.Errorf("DisplayName = %q, want %q", entities[0].DisplayName, "Lamp")
	}
	if entities[0].IsOn() {
		t.Error("restored entity should be off")
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, New("a1", "Lamp", "http://gw.local/api/v1/a1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, New("a1", "Lamp again", "http://gw.local/api/v1/a1"))
	if !errors.Is(err, ErrEntityExists) {
		t.Errorf("Create() error = %v, want ErrEntityExists", err)
	}
}

func TestSQLiteRepository_CreateInvalid(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.Create(context.Background(), New("", "No ID", "http://gw.local/api/v1/"))
	if !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("Create() error = %v, want ErrInvalidEntity", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, New("a1", "Lamp", "http://gw.local/api/v1/a1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	entities, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("len(List()) = %d after delete, want 0", len(entities))
	}
}

func TestSQLiteRepository_DeleteUnknown(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.Delete(context.Background(), "ghost")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Delete() error = %v, want ErrEntityNotFound", err)
	}
}

func TestSQLiteRepository_UpdateState(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, New("a1", "Lamp", "http://gw.local/api/v1/a1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdateState(ctx, "a1", true); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	entities, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !entities[0].IsOn() {
		t.Error("entity should be on after UpdateState(true)")
	}
}

func TestSQLiteRepository_UpdateStateUnknown(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.UpdateState(context.Background(), "ghost", true)
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("UpdateState() error = %v, want ErrEntityNotFound", err)
	}
}
