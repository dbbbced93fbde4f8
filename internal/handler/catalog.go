package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
	"github.com/dukerupert/famille/internal/websocket"
)

// CatalogHandler serves tasks, rewards and consequences. Writes are
// mounted behind RequireManager.
type CatalogHandler struct {
	catalog     *store.CatalogStore
	memberStore *store.MemberStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewCatalogHandler(cs *store.CatalogStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cs, memberStore: ms, hub: hub, logger: logger}
}

type catalogRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Points      int     `json:"points"`
	Cost        int     `json:"cost"`
	Active      *bool   `json:"active"`
	AssignedTo  []int64 `json:"assigned_to"`
}

func (req *catalogRequest) active() bool {
	return req.Active == nil || *req.Active
}

func decodeCatalog(w http.ResponseWriter, r *http.Request) (*catalogRequest, bool) {
	var req catalogRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return nil, false
	}
	if req.Points < 0 || req.Cost < 0 {
		writeError(w, http.StatusBadRequest, "points and cost must not be negative")
		return nil, false
	}
	return &req, true
}

func (h *CatalogHandler) checkAssignees(w http.ResponseWriter, ids []int64) bool {
	for _, id := range ids {
		m, err := h.memberStore.GetByID(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check member")
			return false
		}
		if m == nil {
			writeError(w, http.StatusBadRequest, "assigned member not found")
			return false
		}
	}
	return true
}

// --- Tasks ---

func (h *CatalogHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.catalog.ListTasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ListMemberTasks lists the tasks offered to one member.
func (h *CatalogHandler) ListMemberTasks(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tasks, err := h.catalog.ListTasksForMember(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *CatalogHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCatalog(w, r)
	if !ok || !h.checkAssignees(w, req.AssignedTo) {
		return
	}

	task, err := h.catalog.CreateTask(req.Title, req.Description, req.Points, req.active(), req.AssignedTo)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("task", "created", task.ID, task))
	writeJSON(w, http.StatusCreated, task)
}

func (h *CatalogHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.catalog.GetTask(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	req, ok := decodeCatalog(w, r)
	if !ok || !h.checkAssignees(w, req.AssignedTo) {
		return
	}

	task, err := h.catalog.UpdateTask(id, req.Title, req.Description, req.Points, req.active(), req.AssignedTo)
	if err != nil {
		h.logger.Error("update task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("task", "updated", task.ID, task))
	writeJSON(w, http.StatusOK, task)
}

func (h *CatalogHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.catalog.GetTask(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if err := h.catalog.DeleteTask(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("task", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// --- Rewards ---

func (h *CatalogHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.catalog.ListRewards()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *CatalogHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCatalog(w, r)
	if !ok {
		return
	}

	reward, err := h.catalog.CreateReward(req.Title, req.Description, req.Cost, req.active())
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("reward", "created", reward.ID, reward))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *CatalogHandler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.catalog.GetReward(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	req, ok := decodeCatalog(w, r)
	if !ok {
		return
	}

	reward, err := h.catalog.UpdateReward(id, req.Title, req.Description, req.Cost, req.active())
	if err != nil {
		h.logger.Error("update reward", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("reward", "updated", reward.ID, reward))
	writeJSON(w, http.StatusOK, reward)
}

func (h *CatalogHandler) DeleteReward(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.catalog.GetReward(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	if err := h.catalog.DeleteReward(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("reward", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// --- Consequences ---

func (h *CatalogHandler) ListConsequences(w http.ResponseWriter, r *http.Request) {
	consequences, err := h.catalog.ListConsequences()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list consequences")
		return
	}
	if consequences == nil {
		consequences = []model.Consequence{}
	}
	writeJSON(w, http.StatusOK, consequences)
}

func (h *CatalogHandler) CreateConsequence(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCatalog(w, r)
	if !ok {
		return
	}

	c, err := h.catalog.CreateConsequence(req.Title, req.Description, req.Cost, req.active())
	if err != nil {
		h.logger.Error("create consequence", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create consequence")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("consequence", "created", c.ID, c))
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) UpdateConsequence(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.catalog.GetConsequence(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get consequence")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "consequence not found")
		return
	}

	req, ok := decodeCatalog(w, r)
	if !ok {
		return
	}

	c, err := h.catalog.UpdateConsequence(id, req.Title, req.Description, req.Cost, req.active())
	if err != nil {
		h.logger.Error("update consequence", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update consequence")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("consequence", "updated", c.ID, c))
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteConsequence(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.catalog.GetConsequence(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get consequence")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "consequence not found")
		return
	}

	if err := h.catalog.DeleteConsequence(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete consequence")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("consequence", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
