package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/famille/internal/database"
	"github.com/dukerupert/famille/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createMember(t *testing.T, db *sql.DB, name string, role model.Role) *model.Member {
	t.Helper()
	m, err := NewMemberStore(db).Create(name, role, "#FF0000", "")
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return m
}
