package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famille/internal/auth"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
	"github.com/dukerupert/famille/internal/websocket"
)

// HomeworkHandler lets a child manage their own assignments and parents
// manage everyone's.
type HomeworkHandler struct {
	homeworkStore *store.HomeworkStore
	memberStore   *store.MemberStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewHomeworkHandler(hs *store.HomeworkStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *HomeworkHandler {
	return &HomeworkHandler{homeworkStore: hs, memberStore: ms, hub: hub, logger: logger}
}

type homeworkRequest struct {
	MemberID int64  `json:"member_id"`
	Subject  string `json:"subject"`
	Title    string `json:"title"`
	Notes    string `json:"notes"`
	DueDate  string `json:"due_date"`
}

func decodeHomework(w http.ResponseWriter, r *http.Request) (*homeworkRequest, bool) {
	var req homeworkRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return nil, false
	}
	if !validDate(req.DueDate) {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return nil, false
	}
	return &req, true
}

// owned loads the assignment and checks the caller may touch it.
func (h *HomeworkHandler) owned(w http.ResponseWriter, r *http.Request) (*model.Homework, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	hw, err := h.homeworkStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get homework")
		return nil, false
	}
	if hw == nil {
		writeError(w, http.StatusNotFound, "homework not found")
		return nil, false
	}
	if !auth.CanActFor(r.Context(), hw.MemberID) {
		writeError(w, http.StatusForbidden, "not your homework")
		return nil, false
	}
	return hw, true
}

// ListForMember handles GET /api/members/{id}/homework?pending=true.
func (h *HomeworkHandler) ListForMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	pendingOnly := r.URL.Query().Get("pending") == "true"

	items, err := h.homeworkStore.ListByMember(memberID, pendingOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list homework")
		return
	}
	if items == nil {
		items = []model.Homework{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HomeworkHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeHomework(w, r)
	if !ok {
		return
	}
	if req.MemberID == 0 {
		req.MemberID = auth.MemberID(r.Context())
	}
	if !auth.CanActFor(r.Context(), req.MemberID) {
		writeError(w, http.StatusForbidden, "cannot add homework for another member")
		return
	}
	member, err := h.memberStore.GetByID(req.MemberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check member")
		return
	}
	if member == nil {
		writeError(w, http.StatusBadRequest, "member not found")
		return
	}

	hw, err := h.homeworkStore.Create(req.MemberID, req.Subject, req.Title, req.Notes, req.DueDate)
	if err != nil {
		h.logger.Error("create homework", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create homework")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("homework", "created", hw.ID, hw).ForMember(hw.MemberID))
	writeJSON(w, http.StatusCreated, hw)
}

func (h *HomeworkHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}
	req, ok := decodeHomework(w, r)
	if !ok {
		return
	}

	hw, err := h.homeworkStore.Update(existing.ID, req.Subject, req.Title, req.Notes, req.DueDate)
	if err != nil {
		h.logger.Error("update homework", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update homework")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("homework", "updated", hw.ID, hw).ForMember(hw.MemberID))
	writeJSON(w, http.StatusOK, hw)
}

// ToggleDone handles POST /api/homework/{id}/done.
func (h *HomeworkHandler) ToggleDone(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}

	hw, err := h.homeworkStore.ToggleDone(existing.ID)
	if err != nil {
		h.logger.Error("toggle homework", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update homework")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("homework", "toggled", hw.ID, hw).ForMember(hw.MemberID))
	writeJSON(w, http.StatusOK, hw)
}

func (h *HomeworkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.homeworkStore.Delete(existing.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete homework")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("homework", "deleted", existing.ID, nil).ForMember(existing.MemberID))
	w.WriteHeader(http.StatusNoContent)
}
