package store

import (
	"testing"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	m := createMember(t, db, "Papa", model.RoleParent)
	s := NewSessionStore(db, time.Hour)

	sess, err := s.Create(m.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.MemberID != m.ID {
		t.Errorf("member_id = %d, want %d", sess.MemberID, m.ID)
	}

	got, err := s.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatalf("GetByToken = %v, want session %d", got, sess.ID)
	}

	if err := s.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.GetByToken(sess.Token)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	m := createMember(t, db, "Papa", model.RoleParent)
	s := NewSessionStore(db, time.Hour)

	sess, _ := s.Create(m.ID)
	if _, err := db.Exec(`UPDATE sessions SET expires_at = datetime('now', '-1 hour') WHERE id = ?`, sess.ID); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	got, err := s.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expired session should not be returned")
	}

	n, err := s.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDeleteByMember(t *testing.T) {
	db := setupTestDB(t)
	m := createMember(t, db, "Papa", model.RoleParent)
	s := NewSessionStore(db, 0)

	a, _ := s.Create(m.ID)
	b, _ := s.Create(m.ID)

	if err := s.DeleteByMemberID(m.ID); err != nil {
		t.Fatalf("delete by member: %v", err)
	}
	for _, tok := range []string{a.Token, b.Token} {
		if got, _ := s.GetByToken(tok); got != nil {
			t.Errorf("session %s still present", tok)
		}
	}
}
