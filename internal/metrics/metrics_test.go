package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/famille/internal/ledger"
	"github.com/dukerupert/famille/internal/model"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "POST /api/members/{id}/rewards/{reward_id}/redeem", 409, 12*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "POST /api/members/{id}/rewards/{reward_id}/redeem", "409"))
	if got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	got = testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404"))
	if got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestNotifyCountsLedgerEvents(t *testing.T) {
	m := New()
	ctx := context.Background()
	m.Notify(ctx, ledger.Event{Kind: ledger.EventTaskCompleted, Entry: &model.HistoryEntry{Type: model.EntryTask, Value: 5}})
	m.Notify(ctx, ledger.Event{Kind: ledger.EventTaskCompleted, Entry: &model.HistoryEntry{Type: model.EntryTask, Value: 3}})
	m.Notify(ctx, ledger.Event{Kind: ledger.EventCorrection})

	if got := testutil.ToFloat64(m.ledgerEvents.WithLabelValues("task_completed")); got != 2 {
		t.Errorf("task_completed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ledgerPoints.WithLabelValues("task")); got != 8 {
		t.Errorf("task points = %v, want 8", got)
	}
	if got := testutil.ToFloat64(m.ledgerEvents.WithLabelValues("correction")); got != 1 {
		t.Errorf("correction = %v, want 1", got)
	}
}

func TestHandlerExposesGauge(t *testing.T) {
	m := New()
	m.GaugeFunc("websocket_clients", "Connected websocket clients", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "famille_websocket_clients 3") {
		t.Errorf("metrics output missing gauge:\n%s", body)
	}
}
