package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/famille/internal/auth"
	"github.com/dukerupert/famille/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "famille_session"

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SessionToken returns the token from the session cookie or, failing that,
// an "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth validates the session and populates AuthContext with the
// member's current role.
func RequireAuth(sessionStore *store.SessionStore, memberStore *store.MemberStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			sess, err := sessionStore.GetByToken(token)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "session lookup failed")
				return
			}
			if sess == nil {
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}

			member, err := memberStore.GetByID(sess.MemberID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "member lookup failed")
				return
			}
			if member == nil {
				writeError(w, http.StatusUnauthorized, "member not found")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				MemberID:  member.ID,
				Role:      member.Role,
				SessionID: sess.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager lets only parents and admins through.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.CanManage(r.Context()) {
			writeError(w, http.StatusForbidden, "parent or admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks that the authenticated member has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
