package handler

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/famille/internal/auth"
	"github.com/dukerupert/famille/internal/middleware"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

type AuthHandler struct {
	memberStore  *store.MemberStore
	sessionStore *store.SessionStore
	logger       *slog.Logger
}

func NewAuthHandler(ms *store.MemberStore, ss *store.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{memberStore: ms, sessionStore: ss, logger: logger}
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Member    *model.Member `json:"member"`
}

// Login handles POST /login. A member without a PIN may only log in when
// they are a child; parents and admins must set one first.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID int64  `json:"member_id"`
		PIN      string `json:"pin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.memberStore.GetByID(req.MemberID)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if member == nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	hash, err := h.memberStore.GetPINHash(member.ID)
	if err != nil {
		h.logger.Error("login pin lookup", "member_id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	switch {
	case hash == "" && member.Role == model.RoleEnfant && req.PIN == "":
	case hash == "":
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)) != nil:
		h.logger.Warn("login failed", "member_id", member.ID)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess, err := h.sessionStore.Create(member.ID)
	if err != nil {
		h.logger.Error("create session", "member_id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	h.logger.Info("member logged in", "member_id", member.ID, "role", member.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, Member: member})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated member.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	member, err := h.memberStore.GetByID(auth.MemberID(r.Context()))
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
