package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
	"github.com/dukerupert/famille/internal/websocket"
)

type KarateHandler struct {
	karateStore *store.KarateStore
	memberStore *store.MemberStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewKarateHandler(ks *store.KarateStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *KarateHandler {
	return &KarateHandler{karateStore: ks, memberStore: ms, hub: hub, logger: logger}
}

func (h *KarateHandler) ListBelts(w http.ResponseWriter, r *http.Request) {
	belts, err := h.karateStore.ListBelts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list belts")
		return
	}
	if belts == nil {
		belts = []model.Belt{}
	}
	writeJSON(w, http.StatusOK, belts)
}

// Progress handles GET /api/members/{id}/karate.
func (h *KarateHandler) Progress(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	member, err := h.memberStore.GetByID(memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	progress, err := h.karateStore.Progress(memberID)
	if err != nil {
		h.logger.Error("karate progress", "member_id", memberID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Promote handles POST /api/members/{id}/karate.
func (h *KarateHandler) Promote(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		BeltID    int64  `json:"belt_id"`
		AwardedOn string `json:"awarded_on"`
		Notes     string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validDate(req.AwardedOn) {
		writeError(w, http.StatusBadRequest, "awarded_on must be YYYY-MM-DD")
		return
	}

	member, err := h.memberStore.GetByID(memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	belt, err := h.karateStore.GetBelt(req.BeltID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get belt")
		return
	}
	if belt == nil {
		writeError(w, http.StatusBadRequest, "belt not found")
		return
	}

	promo, err := h.karateStore.Promote(memberID, belt.ID, req.AwardedOn, strings.TrimSpace(req.Notes))
	if errors.Is(err, store.ErrBeltNotHigher) {
		writeError(w, http.StatusConflict, "belt must outrank the current one")
		return
	}
	if err != nil {
		h.logger.Error("promote", "member_id", memberID, "belt_id", belt.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record promotion")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("karate", "promoted", promo.ID, promo).ForMember(memberID))
	writeJSON(w, http.StatusCreated, promo)
}

// DeletePromotion handles DELETE /api/karate/promotions/{id}.
func (h *KarateHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.karateStore.DeletePromotion(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete promotion")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("karate", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
