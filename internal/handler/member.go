package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/famille/internal/auth"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
	"github.com/dukerupert/famille/internal/websocket"
)

type MemberHandler struct {
	store  *store.MemberStore
	cache  cacheForgetter
	hub    *websocket.Hub
	logger *slog.Logger
}

// cacheForgetter drops a deleted member's points view.
type cacheForgetter interface {
	Forget(memberID int64)
}

func NewMemberHandler(s *store.MemberStore, cache cacheForgetter, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{store: s, cache: cache, hub: hub, logger: logger}
}

type memberRequest struct {
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	Color  string     `json:"color"`
	Avatar string     `json:"avatar"`
}

// validate normalises req against existing (nil on create) and writes the
// error response itself.
func (h *MemberHandler) validate(w http.ResponseWriter, r *http.Request, req *memberRequest, existing *model.Member) bool {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return false
	}

	switch {
	case req.Role == "" && existing != nil:
		req.Role = existing.Role
	case req.Role == "":
		req.Role = model.RoleEnfant
	case !req.Role.Valid():
		writeError(w, http.StatusBadRequest, "role must be admin, parent or enfant")
		return false
	}
	changingToAdmin := req.Role == model.RoleAdmin && (existing == nil || existing.Role != model.RoleAdmin)
	if changingToAdmin && !auth.IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "only an admin can grant the admin role")
		return false
	}

	if req.Color == "" {
		req.Color = "#3B82F6"
		if existing != nil {
			req.Color = existing.Color
		}
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return false
	}
	if req.Avatar == "" && existing != nil {
		req.Avatar = existing.Avatar
	}

	var excludeID int64
	if existing != nil {
		excludeID = existing.ID
	}
	exists, err := h.store.NameExists(req.Name, excludeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return false
	}
	if exists {
		writeError(w, http.StatusConflict, "a member with that name already exists")
		return false
	}
	return true
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	member, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.validate(w, r, &req, nil) {
		return
	}

	member, err := h.store.Create(req.Name, req.Role, req.Color, req.Avatar)
	if err != nil {
		h.logger.Error("create member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create member")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("member", "created", member.ID, member))
	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.validate(w, r, &req, existing) {
		return
	}

	member, err := h.store.Update(id, req.Name, req.Role, req.Color, req.Avatar)
	if err != nil {
		h.logger.Error("update member", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update member")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("member", "updated", member.ID, member))
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if id == auth.MemberID(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	if err := h.store.Delete(id); err != nil {
		h.logger.Error("delete member", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete member")
		return
	}
	if h.cache != nil {
		h.cache.Forget(id)
	}

	h.hub.Broadcast(websocket.NewMessage("member", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := h.store.UpdateSortOrder(req.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update sort order")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("member", "reordered", 0, req.IDs))
	w.WriteHeader(http.StatusNoContent)
}

// SetPIN is allowed for the member themselves or a parent/admin.
func (h *MemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if !auth.CanActFor(r.Context(), id) {
		writeError(w, http.StatusForbidden, "cannot change another member's PIN")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeError(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash PIN")
		return
	}
	if err := h.store.SetPIN(id, string(hash)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *MemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if !auth.CanActFor(r.Context(), id) {
		writeError(w, http.StatusForbidden, "cannot change another member's PIN")
		return
	}

	if err := h.store.ClearPIN(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}
