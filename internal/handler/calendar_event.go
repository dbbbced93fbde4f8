package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
	"github.com/dukerupert/famille/internal/websocket"
)

type CalendarEventHandler struct {
	eventStore  *store.EventStore
	memberStore *store.MemberStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewCalendarEventHandler(es *store.EventStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *CalendarEventHandler {
	return &CalendarEventHandler{eventStore: es, memberStore: ms, hub: hub, logger: logger}
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	AllDay      bool   `json:"all_day"`
	MemberID    *int64 `json:"member_id"`
	Location    string `json:"location"`
}

type validEvent struct {
	eventRequest
	start, end time.Time
}

func (h *CalendarEventHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (*validEvent, bool) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return nil, false
	}

	start, err := parseFlexibleTime(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 or YYYY-MM-DD format")
		return nil, false
	}
	end, err := parseFlexibleTime(req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 or YYYY-MM-DD format")
		return nil, false
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_time must not be before start_time")
		return nil, false
	}

	if req.MemberID != nil {
		member, err := h.memberStore.GetByID(*req.MemberID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check member")
			return nil, false
		}
		if member == nil {
			writeError(w, http.StatusBadRequest, "member not found")
			return nil, false
		}
	}

	return &validEvent{eventRequest: req, start: start, end: end}, true
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	event, err := h.eventStore.Create(req.Title, req.Description, req.start, req.end, req.AllDay, req.MemberID, req.Location)
	if err != nil {
		h.logger.Error("create calendar event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("event", "created", event.ID, event))
	writeJSON(w, http.StatusCreated, event)
}

// List handles GET /api/events?start=...&end=..., returning events that
// overlap the window.
func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	start, err := parseFlexibleTime(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	events, err := h.eventStore.ListByDateRange(start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	event, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	req, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	event, err := h.eventStore.Update(id, req.Title, req.Description, req.start, req.end, req.AllDay, req.MemberID, req.Location)
	if err != nil {
		h.logger.Error("update calendar event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("event", "updated", event.ID, event))
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	if err := h.eventStore.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("event", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, s)
}
