package store

import (
	"testing"

	"github.com/dukerupert/famille/internal/model"
)

func TestTaskCRUDWithAssignments(t *testing.T) {
	db := setupTestDB(t)
	anna := createMember(t, db, "Anna", model.RoleEnfant)
	leo := createMember(t, db, "Leo", model.RoleEnfant)
	s := NewCatalogStore(db)

	task, err := s.CreateTask("Mettre la table", "", 3, true, []int64{anna.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Points != 3 {
		t.Errorf("points = %d, want 3", task.Points)
	}
	if len(task.AssignedTo) != 1 || task.AssignedTo[0] != anna.ID {
		t.Errorf("assigned_to = %v, want [%d]", task.AssignedTo, anna.ID)
	}

	shared, _ := s.CreateTask("Nourrir le chat", "", 2, true, nil)
	s.CreateTask("Ancienne tâche", "", 1, false, nil)

	forLeo, err := s.ListTasksForMember(leo.ID)
	if err != nil {
		t.Fatalf("list for member: %v", err)
	}
	if len(forLeo) != 1 || forLeo[0].ID != shared.ID {
		t.Errorf("tasks for leo = %+v, want only %q", forLeo, shared.Title)
	}

	forAnna, _ := s.ListTasksForMember(anna.ID)
	if len(forAnna) != 2 {
		t.Errorf("len(tasks for anna) = %d, want 2", len(forAnna))
	}

	updated, err := s.UpdateTask(task.ID, "Mettre la table", "midi et soir", 4, true, []int64{anna.ID, leo.ID})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Points != 4 || len(updated.AssignedTo) != 2 {
		t.Errorf("updated = %+v, want 4 points and 2 assignees", updated)
	}

	all, _ := s.ListTasks()
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
	if all[len(all)-1].Active {
		t.Error("inactive tasks should sort last")
	}

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	got, _ := s.GetTask(task.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestTaskNegativePointsRejected(t *testing.T) {
	s := NewCatalogStore(setupTestDB(t))
	if _, err := s.CreateTask("Bad", "", -1, true, nil); err == nil {
		t.Error("expected check constraint error for negative points")
	}
}

func TestRewardCRUD(t *testing.T) {
	s := NewCatalogStore(setupTestDB(t))

	cinema, err := s.CreateReward("Cinéma", "", 30, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	s.CreateReward("Bonbon", "", 5, true)

	rewards, err := s.ListRewards()
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(rewards) != 2 || rewards[0].Title != "Bonbon" {
		t.Errorf("rewards = %+v, want cheapest first", rewards)
	}

	updated, err := s.UpdateReward(cinema.ID, "Cinéma", "", 25, false)
	if err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if updated.Cost != 25 || updated.Active {
		t.Errorf("updated = %+v, want cost 25 inactive", updated)
	}

	if err := s.DeleteReward(cinema.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}
	got, _ := s.GetReward(cinema.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestConsequenceCRUD(t *testing.T) {
	s := NewCatalogStore(setupTestDB(t))

	c, err := s.CreateConsequence("Gros mot", "", 2, true)
	if err != nil {
		t.Fatalf("create consequence: %v", err)
	}
	if c.Cost != 2 {
		t.Errorf("cost = %d, want 2", c.Cost)
	}

	updated, err := s.UpdateConsequence(c.ID, "Gros mot", "", 3, true)
	if err != nil {
		t.Fatalf("update consequence: %v", err)
	}
	if updated.Cost != 3 {
		t.Errorf("cost = %d, want 3", updated.Cost)
	}

	list, _ := s.ListConsequences()
	if len(list) != 1 {
		t.Errorf("len = %d, want 1", len(list))
	}

	if err := s.DeleteConsequence(c.ID); err != nil {
		t.Fatalf("delete consequence: %v", err)
	}
	got, _ := s.GetConsequence(c.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}
