package handler

import (
	"net/http"
	"testing"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/push"
	"github.com/dukerupert/famille/internal/store"
)

func TestPushSubscriptions(t *testing.T) {
	env := setupEnv(t)
	h := NewPushHandler(store.NewPushStore(env.db), push.NewService("", "", ""), env.logger)
	paul := env.member(t, "Paul", model.RoleParent)
	claire := env.member(t, "Claire", model.RoleAdmin)

	rec := serve(t, "POST /api/push/subscriptions", h.Subscribe, "POST", "/api/push/subscriptions",
		map[string]string{"endpoint": "https://push.example/abc"}, as(paul))
	wantStatus(t, rec, http.StatusBadRequest)

	rec = serve(t, "POST /api/push/subscriptions", h.Subscribe, "POST", "/api/push/subscriptions",
		map[string]string{"endpoint": "https://push.example/abc", "p256dh": "key", "auth": "secret", "device_name": "Tablette"}, as(paul))
	wantStatus(t, rec, http.StatusCreated)
	sub := decode[model.PushSubscription](t, rec)

	rec = serve(t, "DELETE /api/push/subscriptions/{id}", h.Unsubscribe, "DELETE", "/api/push/subscriptions/"+itoa(sub.ID), nil, as(claire))
	wantStatus(t, rec, http.StatusNoContent)

	rec = serve(t, "GET /api/push/subscriptions", h.ListSubscriptions, "GET", "/api/push/subscriptions", nil, as(paul))
	wantStatus(t, rec, http.StatusOK)
	if got := len(decode[[]model.PushSubscription](t, rec)); got != 1 {
		t.Errorf("subscriptions = %d, want 1 (another member cannot remove it)", got)
	}
}

func TestVAPIDKeyWhenDisabled(t *testing.T) {
	env := setupEnv(t)
	h := NewPushHandler(store.NewPushStore(env.db), push.NewService("", "", ""), env.logger)
	paul := env.member(t, "Paul", model.RoleParent)

	rec := serve(t, "GET /api/push/vapid-key", h.GetVAPIDKey, "GET", "/api/push/vapid-key", nil, as(paul))
	wantStatus(t, rec, http.StatusServiceUnavailable)
}
