package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		day, from, to string
	}{
		{"2024-03-13", "2024-03-11", "2024-03-17"}, // Wednesday
		{"2024-03-11", "2024-03-11", "2024-03-17"}, // Monday
		{"2024-03-17", "2024-03-11", "2024-03-17"}, // Sunday
		{"2024-03-01", "2024-02-26", "2024-03-03"}, // across months
	}
	for _, tt := range tests {
		day, _ := time.Parse(dateLayout, tt.day)
		from, to := weekBounds(day)
		if from != tt.from || to != tt.to {
			t.Errorf("weekBounds(%s) = %s..%s, want %s..%s", tt.day, from, to, tt.from, tt.to)
		}
	}
}

func TestMealPlanning(t *testing.T) {
	env := setupEnv(t)
	h := NewMealHandler(store.NewMealStore(env.db), env.members, env.hub, env.logger)
	paul := env.member(t, "Paul", model.RoleParent)

	body := map[string]any{"date": "2024-03-13", "slot": "dinner", "title": "Ratatouille", "cook_id": paul.ID}
	rec := serve(t, "POST /api/meals", h.Create, "POST", "/api/meals", body, as(paul))
	wantStatus(t, rec, http.StatusCreated)

	rec = serve(t, "POST /api/meals", h.Create, "POST", "/api/meals", body, as(paul))
	wantStatus(t, rec, http.StatusConflict)

	rec = serve(t, "POST /api/meals", h.Create, "POST", "/api/meals",
		map[string]any{"date": "2024-03-13", "slot": "brunch", "title": "Crêpes"}, as(paul))
	wantStatus(t, rec, http.StatusBadRequest)

	rec = serve(t, "GET /api/meals", h.List, "GET", "/api/meals?week=2024-03-17", nil, as(paul))
	wantStatus(t, rec, http.StatusOK)
	week := decode[struct {
		WeekStart string       `json:"week_start"`
		Meals     []model.Meal `json:"meals"`
	}](t, rec)
	if week.WeekStart != "2024-03-11" {
		t.Errorf("week_start = %q, want %q", week.WeekStart, "2024-03-11")
	}
	if len(week.Meals) != 1 || week.Meals[0].Title != "Ratatouille" {
		t.Errorf("meals = %+v, want the ratatouille", week.Meals)
	}
}

func TestCalendarEventValidation(t *testing.T) {
	env := setupEnv(t)
	h := NewCalendarEventHandler(store.NewEventStore(env.db), env.members, env.hub, env.logger)
	paul := env.member(t, "Paul", model.RoleParent)

	rec := serve(t, "POST /api/events", h.Create, "POST", "/api/events", map[string]any{
		"title": "Karaté", "start_time": "2024-03-13T18:00:00Z", "end_time": "2024-03-13T17:00:00Z",
	}, as(paul))
	wantStatus(t, rec, http.StatusBadRequest)

	rec = serve(t, "POST /api/events", h.Create, "POST", "/api/events", map[string]any{
		"title": "Karaté", "start_time": "2024-03-13T18:00:00Z", "end_time": "2024-03-13T19:00:00Z", "member_id": 999,
	}, as(paul))
	wantStatus(t, rec, http.StatusBadRequest)

	rec = serve(t, "POST /api/events", h.Create, "POST", "/api/events", map[string]any{
		"title": "Karaté", "start_time": "2024-03-13T18:00:00Z", "end_time": "2024-03-13T19:00:00Z",
	}, as(paul))
	wantStatus(t, rec, http.StatusCreated)

	rec = serve(t, "GET /api/events", h.List, "GET", "/api/events?start=2024-03-13&end=2024-03-14", nil, as(paul))
	wantStatus(t, rec, http.StatusOK)
	if got := len(decode[[]model.CalendarEvent](t, rec)); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}

	rec = serve(t, "GET /api/events", h.List, "GET", "/api/events?start=2024-03-13", nil, as(paul))
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestHomeworkOwnership(t *testing.T) {
	env := setupEnv(t)
	h := NewHomeworkHandler(store.NewHomeworkStore(env.db), env.members, env.hub, env.logger)
	anna := env.member(t, "Anna", model.RoleEnfant)
	leo := env.member(t, "Léo", model.RoleEnfant)

	rec := serve(t, "POST /api/homework", h.Create, "POST", "/api/homework",
		map[string]any{"subject": "Maths", "title": "Fractions", "due_date": "2024-03-14"}, as(anna))
	wantStatus(t, rec, http.StatusCreated)
	hw := decode[model.Homework](t, rec)
	if hw.MemberID != anna.ID {
		t.Errorf("MemberID = %d, want %d", hw.MemberID, anna.ID)
	}

	rec = serve(t, "POST /api/homework/{id}/done", h.ToggleDone, "POST", "/api/homework/"+itoa(hw.ID)+"/done", nil, as(leo))
	wantStatus(t, rec, http.StatusForbidden)

	rec = serve(t, "POST /api/homework/{id}/done", h.ToggleDone, "POST", "/api/homework/"+itoa(hw.ID)+"/done", nil, as(anna))
	wantStatus(t, rec, http.StatusOK)
	if !decode[model.Homework](t, rec).Done {
		t.Error("homework should be done")
	}

	rec = serve(t, "GET /api/members/{id}/homework", h.ListForMember, "GET",
		"/api/members/"+itoa(anna.ID)+"/homework?pending=true", nil, as(anna))
	wantStatus(t, rec, http.StatusOK)
	if got := len(decode[[]model.Homework](t, rec)); got != 0 {
		t.Errorf("pending homework = %d, want 0", got)
	}
}

func TestKaratePromotion(t *testing.T) {
	env := setupEnv(t)
	ks := store.NewKarateStore(env.db)
	h := NewKarateHandler(ks, env.members, env.hub, env.logger)
	paul := env.member(t, "Paul", model.RoleParent)
	leo := env.member(t, "Léo", model.RoleEnfant)

	belts, err := ks.ListBelts()
	if err != nil || len(belts) < 2 {
		t.Fatalf("ListBelts = %d belts, %v", len(belts), err)
	}

	promote := func(beltID int64) int {
		rec := serve(t, "POST /api/members/{id}/karate", h.Promote, "POST", "/api/members/"+itoa(leo.ID)+"/karate",
			map[string]any{"belt_id": beltID, "awarded_on": "2024-03-13"}, as(paul))
		return rec.Code
	}
	if got := promote(belts[1].ID); got != http.StatusCreated {
		t.Fatalf("promote to %s = %d, want %d", belts[1].Name, got, http.StatusCreated)
	}
	if got := promote(belts[0].ID); got != http.StatusConflict {
		t.Errorf("demote to %s = %d, want %d", belts[0].Name, got, http.StatusConflict)
	}

	rec := serve(t, "GET /api/members/{id}/karate", h.Progress, "GET", "/api/members/"+itoa(leo.ID)+"/karate", nil, as(leo))
	wantStatus(t, rec, http.StatusOK)
	progress := decode[model.KarateProgress](t, rec)
	if progress.CurrentBelt == nil || progress.CurrentBelt.ID != belts[1].ID {
		t.Errorf("current belt = %+v, want %s", progress.CurrentBelt, belts[1].Name)
	}
}
