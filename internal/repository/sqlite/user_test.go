package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// Using ":memory:" creates a fresh database that exists only during the test.
// Each test gets its own database, and goose migrates it on open.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "hash"}
	if err := db.Create(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// =========================================================================
// USER TESTS
// =========================================================================

func TestCreateUser_AssignsID(t *testing.T) {
	db := newTestDB(t)

	first := createTestUser(t, db, "ada@example.com")
	second := createTestUser(t, db, "bob@example.com")

	if first.ID <= 0 || second.ID <= 0 {
		t.Fatalf("Create() ids = %d, %d; want positive", first.ID, second.ID)
	}
	if first.ID == second.ID {
		t.Error("Create() assigned the same id twice")
	}
	if first.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}
}

func TestCreateUser_DuplicateEmailIsConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ada@example.com")

	err := db.Create(context.Background(), &model.User{Email: "ada@example.com", PasswordHash: "x"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() duplicate = %v, want ErrConflict", err)
	}
}

func TestGetByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "ada@example.com")

	got, err := db.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != created.ID || got.PasswordHash != "hash" {
		t.Errorf("GetByEmail() = %+v, want id %d with stored hash", got, created.ID)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByEmail() = %v, want ErrNotFound", err)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	// A second run finds everything applied and does nothing.
	if err := db.migrate(context.Background()); err != nil {
		t.Fatalf("migrate() second run error = %v", err)
	}
}
