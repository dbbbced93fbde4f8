package store

import (
	"testing"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

func TestCalendarEventRange(t *testing.T) {
	db := setupTestDB(t)
	anna := createMember(t, db, "Anna", model.RoleEnfant)
	s := NewEventStore(db)

	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	karate, err := s.Create("Karaté", "", day.Add(17*time.Hour), day.Add(18*time.Hour), false, &anna.ID, "Dojo")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if karate.MemberID == nil || *karate.MemberID != anna.ID {
		t.Errorf("member_id = %v, want %d", karate.MemberID, anna.ID)
	}
	s.Create("Vacances", "", day, day.Add(24*time.Hour), true, nil, "")
	s.Create("Dentiste", "", day.Add(48*time.Hour), day.Add(49*time.Hour), false, nil, "")

	events, err := s.ListByDateRange(day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if !events[0].AllDay {
		t.Error("all-day events should sort first")
	}
	if !events[1].StartTime.Equal(day.Add(17 * time.Hour)) {
		t.Errorf("start = %v, want %v", events[1].StartTime, day.Add(17*time.Hour))
	}

	updated, err := s.Update(karate.ID, "Karaté", "ceinture", day.Add(17*time.Hour), day.Add(19*time.Hour), false, nil, "Dojo")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MemberID != nil {
		t.Errorf("member_id = %v, want nil", *updated.MemberID)
	}

	if err := s.Delete(karate.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.GetByID(karate.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestMealSlotUnique(t *testing.T) {
	db := setupTestDB(t)
	papa := createMember(t, db, "Papa", model.RoleParent)
	s := NewMealStore(db)

	dinner, err := s.Create("2026-10-15", model.MealDinner, "Gratin", "", &papa.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create("2026-10-15", model.MealDinner, "Pizza", "", nil); err != ErrSlotTaken {
		t.Errorf("err = %v, want ErrSlotTaken", err)
	}
	s.Create("2026-10-15", model.MealBreakfast, "Crêpes", "", nil)
	s.Create("2026-10-20", model.MealLunch, "Soupe", "", nil)

	meals, err := s.ListByDateRange("2026-10-12", "2026-10-18")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(meals) != 2 {
		t.Fatalf("len = %d, want 2", len(meals))
	}
	if meals[0].Slot != model.MealBreakfast {
		t.Errorf("meals[0].Slot = %q, want breakfast", meals[0].Slot)
	}

	updated, err := s.Update(dinner.ID, "2026-10-16", model.MealDinner, "Gratin", "", nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Date != "2026-10-16" || updated.CookID != nil {
		t.Errorf("updated = %+v", updated)
	}
}

func TestHomeworkToggle(t *testing.T) {
	db := setupTestDB(t)
	anna := createMember(t, db, "Anna", model.RoleEnfant)
	s := NewHomeworkStore(db)

	maths, err := s.Create(anna.ID, "Maths", "Exercice 4 p.32", "", "2026-10-16")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Create(anna.ID, "Français", "Poésie", "", "2026-10-20")

	toggled, err := s.ToggleDone(maths.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Done || toggled.DoneAt == nil {
		t.Errorf("toggled = %+v, want done with done_at", toggled)
	}

	pending, _ := s.ListByMember(anna.ID, true)
	if len(pending) != 1 || pending[0].Subject != "Français" {
		t.Errorf("pending = %+v, want only Français", pending)
	}
	all, _ := s.ListByMember(anna.ID, false)
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}

	toggled, _ = s.ToggleDone(maths.ID)
	if toggled.Done || toggled.DoneAt != nil {
		t.Errorf("toggled back = %+v, want not done", toggled)
	}
}

func TestKarateProgress(t *testing.T) {
	db := setupTestDB(t)
	anna := createMember(t, db, "Anna", model.RoleEnfant)
	s := NewKarateStore(db)

	belts, err := s.ListBelts()
	if err != nil {
		t.Fatalf("list belts: %v", err)
	}
	if len(belts) != 7 || belts[0].Name != "Blanche" {
		t.Fatalf("belts = %+v, want 7 starting with Blanche", belts)
	}

	progress, err := s.Progress(anna.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.CurrentBelt != nil {
		t.Errorf("current = %+v, want nil", progress.CurrentBelt)
	}
	if progress.NextBelt == nil || progress.NextBelt.Name != "Blanche" {
		t.Errorf("next = %+v, want Blanche", progress.NextBelt)
	}

	if _, err := s.Promote(anna.ID, belts[0].ID, "2025-06-01", ""); err != nil {
		t.Fatalf("promote white: %v", err)
	}
	if _, err := s.Promote(anna.ID, belts[1].ID, "2026-06-01", "bravo"); err != nil {
		t.Fatalf("promote yellow: %v", err)
	}
	if _, err := s.Promote(anna.ID, belts[0].ID, "2026-07-01", ""); err != ErrBeltNotHigher {
		t.Errorf("err = %v, want ErrBeltNotHigher", err)
	}

	progress, _ = s.Progress(anna.ID)
	if progress.CurrentBelt == nil || progress.CurrentBelt.Name != "Jaune" {
		t.Errorf("current = %+v, want Jaune", progress.CurrentBelt)
	}
	if progress.NextBelt == nil || progress.NextBelt.Name != "Orange" {
		t.Errorf("next = %+v, want Orange", progress.NextBelt)
	}
	if len(progress.Promotions) != 2 {
		t.Errorf("len(promotions) = %d, want 2", len(progress.Promotions))
	}
}
