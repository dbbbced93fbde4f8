package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dukerupert/famille/internal/archive"
	"github.com/dukerupert/famille/internal/auth"
	"github.com/dukerupert/famille/internal/database"
	"github.com/dukerupert/famille/internal/ledger"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
	"github.com/dukerupert/famille/internal/websocket"
)

type testEnv struct {
	db       *sql.DB
	members  *store.MemberStore
	sessions *store.SessionStore
	catalog  *store.CatalogStore
	ledger   *store.LedgerStore
	engine   *ledger.Engine
	hub      *websocket.Hub
	logger   *slog.Logger
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		db:       db,
		members:  store.NewMemberStore(db),
		sessions: store.NewSessionStore(db, time.Hour),
		catalog:  store.NewCatalogStore(db),
		ledger:   store.NewLedgerStore(db),
		hub:      websocket.NewHub(logger),
		logger:   logger,
	}
	env.engine = ledger.NewEngine(env.ledger, env.catalog, env.members, ledger.Options{
		Clock:  ledger.NewClock(time.UTC),
		Logger: logger,
	})
	t.Cleanup(env.engine.Close)
	return env
}

func (e *testEnv) archives() *archive.Manager {
	return archive.NewManager(archive.Config{}, e.ledger, store.NewArchiveStore(e.db), e.logger)
}

func (e *testEnv) member(t *testing.T, name string, role model.Role) *model.Member {
	t.Helper()
	m, err := e.members.Create(name, role, "#3B82F6", "")
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return m
}

func as(m *model.Member) auth.AuthContext {
	return auth.AuthContext{MemberID: m.ID, Role: m.Role}
}

// serve routes one request through a mux holding pattern so path values
// resolve, with ac installed as the caller.
func serve(t *testing.T, pattern string, h http.HandlerFunc, method, target string, body any, ac auth.AuthContext) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	req := httptest.NewRequest(method, target, r)
	if ac.MemberID != 0 {
		req = req.WithContext(auth.WithAuth(context.Background(), ac))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

var noAuth auth.AuthContext
