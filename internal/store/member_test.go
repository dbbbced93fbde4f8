package store

import (
	"testing"

	"github.com/dukerupert/famille/internal/model"
)

func TestMemberCRUD(t *testing.T) {
	s := NewMemberStore(setupTestDB(t))

	anna, err := s.Create("Anna", model.RoleEnfant, "#F472B6", "🦄")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if anna.Role != model.RoleEnfant {
		t.Errorf("role = %q, want %q", anna.Role, model.RoleEnfant)
	}
	if anna.HasPIN {
		t.Error("new member should not have a PIN")
	}
	if anna.SortOrder != 0 {
		t.Errorf("sort_order = %d, want 0", anna.SortOrder)
	}

	papa, err := s.Create("Papa", model.RoleParent, "#3B82F6", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if papa.SortOrder != 1 {
		t.Errorf("sort_order = %d, want 1", papa.SortOrder)
	}

	updated, err := s.Update(anna.ID, "Anna-Lou", model.RoleEnfant, "#000000", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Anna-Lou" {
		t.Errorf("name = %q, want %q", updated.Name, "Anna-Lou")
	}

	if err := s.Delete(papa.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.GetByID(papa.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestMemberDuplicateName(t *testing.T) {
	s := NewMemberStore(setupTestDB(t))

	if _, err := s.Create("Anna", model.RoleEnfant, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create("Anna", model.RoleEnfant, "", ""); err == nil {
		t.Error("expected unique violation for duplicate name")
	}

	exists, err := s.NameExists("Anna", 0)
	if err != nil {
		t.Fatalf("name exists: %v", err)
	}
	if !exists {
		t.Error("NameExists = false, want true")
	}
}

func TestMemberSortOrder(t *testing.T) {
	s := NewMemberStore(setupTestDB(t))

	a, _ := s.Create("A", model.RoleEnfant, "", "")
	b, _ := s.Create("B", model.RoleEnfant, "", "")
	c, _ := s.Create("C", model.RoleEnfant, "", "")

	if err := s.UpdateSortOrder([]int64{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("update sort order: %v", err)
	}

	members, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"C", "A", "B"}
	for i, name := range want {
		if members[i].Name != name {
			t.Errorf("members[%d] = %q, want %q", i, members[i].Name, name)
		}
	}

	ids, err := s.ListIDs()
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("len(ids) = %d, want 3", len(ids))
	}
}

func TestMemberListByRole(t *testing.T) {
	s := NewMemberStore(setupTestDB(t))

	s.Create("Maman", model.RoleParent, "", "")
	s.Create("Admin", model.RoleAdmin, "", "")
	s.Create("Anna", model.RoleEnfant, "", "")

	managers, err := s.ListByRole(model.RoleParent, model.RoleAdmin)
	if err != nil {
		t.Fatalf("list by role: %v", err)
	}
	if len(managers) != 2 {
		t.Fatalf("len = %d, want 2", len(managers))
	}
	for _, m := range managers {
		if !m.Role.CanManage() {
			t.Errorf("unexpected role %q", m.Role)
		}
	}
}

func TestMemberPIN(t *testing.T) {
	s := NewMemberStore(setupTestDB(t))
	m, _ := s.Create("Papa", model.RoleParent, "", "")

	hash, err := s.GetPINHash(m.ID)
	if err != nil {
		t.Fatalf("get pin hash: %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty", hash)
	}

	if err := s.SetPIN(m.ID, "$2a$10$hash"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	got, _ := s.GetByID(m.ID)
	if !got.HasPIN {
		t.Error("HasPIN = false after SetPIN")
	}
	hash, _ = s.GetPINHash(m.ID)
	if hash != "$2a$10$hash" {
		t.Errorf("hash = %q, want %q", hash, "$2a$10$hash")
	}

	if err := s.ClearPIN(m.ID); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	got, _ = s.GetByID(m.ID)
	if got.HasPIN {
		t.Error("HasPIN = true after ClearPIN")
	}

	if _, err := s.GetPINHash(9999); err == nil {
		t.Error("expected error for unknown member")
	}
}
