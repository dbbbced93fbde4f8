package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
	"github.com/dukerupert/famille/internal/websocket"
)

type MealHandler struct {
	mealStore   *store.MealStore
	memberStore *store.MemberStore
	hub         *websocket.Hub
	logger      *slog.Logger
	now         func() time.Time
}

func NewMealHandler(ms *store.MealStore, members *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *MealHandler {
	return &MealHandler{mealStore: ms, memberStore: members, hub: hub, logger: logger, now: time.Now}
}

type mealRequest struct {
	Date   string         `json:"date"`
	Slot   model.MealSlot `json:"slot"`
	Title  string         `json:"title"`
	Notes  string         `json:"notes"`
	CookID *int64         `json:"cook_id"`
}

func (h *MealHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (*mealRequest, bool) {
	var req mealRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return nil, false
	}
	if !validDate(req.Date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return nil, false
	}
	if !req.Slot.Valid() {
		writeError(w, http.StatusBadRequest, "slot must be breakfast, lunch, dinner or snack")
		return nil, false
	}
	if req.CookID != nil {
		m, err := h.memberStore.GetByID(*req.CookID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check member")
			return nil, false
		}
		if m == nil {
			writeError(w, http.StatusBadRequest, "cook not found")
			return nil, false
		}
	}
	return &req, true
}

// weekBounds returns the Monday and Sunday of the week containing day.
func weekBounds(day time.Time) (string, string) {
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return monday.Format(dateLayout), monday.AddDate(0, 0, 6).Format(dateLayout)
}

// List handles GET /api/meals?week=YYYY-MM-DD. Any day of the week selects
// it; the current week is the default.
func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	day := h.now()
	if v := r.URL.Query().Get("week"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "week must be YYYY-MM-DD")
			return
		}
		day = t
	}
	from, to := weekBounds(day)

	meals, err := h.mealStore.ListByDateRange(from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list meals")
		return
	}
	if meals == nil {
		meals = []model.Meal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"week_start": from,
		"week_end":   to,
		"meals":      meals,
	})
}

func (h *MealHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	meal, err := h.mealStore.Create(req.Date, req.Slot, req.Title, req.Notes, req.CookID)
	if errors.Is(err, store.ErrSlotTaken) {
		writeError(w, http.StatusConflict, "a meal is already planned for that slot")
		return
	}
	if err != nil {
		h.logger.Error("create meal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create meal")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("meal", "created", meal.ID, meal))
	writeJSON(w, http.StatusCreated, meal)
}

func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.mealStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get meal")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}

	req, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	meal, err := h.mealStore.Update(id, req.Date, req.Slot, req.Title, req.Notes, req.CookID)
	if errors.Is(err, store.ErrSlotTaken) {
		writeError(w, http.StatusConflict, "a meal is already planned for that slot")
		return
	}
	if err != nil {
		h.logger.Error("update meal", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update meal")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("meal", "updated", meal.ID, meal))
	writeJSON(w, http.StatusOK, meal)
}

func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.mealStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get meal")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}

	if err := h.mealStore.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete meal")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("meal", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
