package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/famille/internal/archive"
	"github.com/dukerupert/famille/internal/config"
	"github.com/dukerupert/famille/internal/handler"
	"github.com/dukerupert/famille/internal/ledger"
	"github.com/dukerupert/famille/internal/metrics"
	"github.com/dukerupert/famille/internal/middleware"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/push"
	"github.com/dukerupert/famille/internal/store"
	ws "github.com/dukerupert/famille/internal/websocket"
)

const (
	loginLimit  = 10
	loginWindow = time.Minute
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	metrics       *metrics.Metrics
	engine        *ledger.Engine
	authH         *handler.AuthHandler
	memberH       *handler.MemberHandler
	catalogH      *handler.CatalogHandler
	ledgerH       *handler.LedgerHandler
	calendarH     *handler.CalendarEventHandler
	mealH         *handler.MealHandler
	homeworkH     *handler.HomeworkHandler
	karateH       *handler.KarateHandler
	pushH         *handler.PushHandler
	sessionStore  *store.SessionStore
	memberStore   *store.MemberStore
	rateLimiter   *middleware.RateLimiter
	archives      *archive.Manager
	pushNotifier  *push.Notifier
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

// New wires stores, the points engine and its side channels.
func New(db *sql.DB, cfg config.Config, logger *slog.Logger) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger)
	m := metrics.New()

	memberStore := store.NewMemberStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)
	catalogStore := store.NewCatalogStore(db)
	ledgerStore := store.NewLedgerStore(db)
	pushStore := store.NewPushStore(db)
	homeworkStore := store.NewHomeworkStore(db)

	archives := archive.NewManager(cfg.Archive, ledgerStore, store.NewArchiveStore(db), logger)

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	pushNotifier := push.NewNotifier(pushSvc, pushStore, memberStore, logger)
	var pushSched *push.Scheduler
	if pushSvc.Enabled() && cfg.HomeworkReminderHour >= 0 {
		pushSched = push.NewScheduler(pushNotifier, homeworkStore, loc, cfg.HomeworkReminderHour)
	}

	opts := ledger.Options{
		Clock:       ledger.NewClock(loc),
		RevertDelay: cfg.TaskRevert,
		CacheTTL:    cfg.CacheTTL,
		Notifier:    ledger.Notifiers{hub, pushNotifier, m},
		Logger:      logger,
	}
	// A nil *Manager in the interface would look configured to the engine.
	if archives.Enabled() {
		opts.Archiver = archives
	}
	engine := ledger.NewEngine(ledgerStore, catalogStore, memberStore, opts)

	m.GaugeFunc("websocket_clients", "Connected websocket clients", func() float64 {
		return float64(hub.ClientCount())
	})
	m.GaugeFunc("ledger_cached_members", "Members with a cached points view", func() float64 {
		return float64(engine.Cache().Len())
	})

	return &Server{
		db:            db,
		hub:           hub,
		metrics:       m,
		engine:        engine,
		authH:         handler.NewAuthHandler(memberStore, sessionStore, logger.With("component", "auth")),
		memberH:       handler.NewMemberHandler(memberStore, engine.Cache(), hub, logger.With("component", "member")),
		catalogH:      handler.NewCatalogHandler(catalogStore, memberStore, hub, logger.With("component", "catalog")),
		ledgerH:       handler.NewLedgerHandler(engine, ledgerStore, memberStore, archives, logger.With("component", "ledger_handler")),
		calendarH:     handler.NewCalendarEventHandler(store.NewEventStore(db), memberStore, hub, logger.With("component", "calendar")),
		mealH:         handler.NewMealHandler(store.NewMealStore(db), memberStore, hub, logger.With("component", "meal")),
		homeworkH:     handler.NewHomeworkHandler(homeworkStore, memberStore, hub, logger.With("component", "homework")),
		karateH:       handler.NewKarateHandler(store.NewKarateStore(db), memberStore, hub, logger.With("component", "karate")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		sessionStore:  sessionStore,
		memberStore:   memberStore,
		rateLimiter:   middleware.NewRateLimiter(),
		archives:      archives,
		pushNotifier:  pushNotifier,
		pushScheduler: pushSched,
		logger:        logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushScheduler returns the homework reminder, nil when push is disabled.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Engine() *ledger.Engine {
	return s.engine
}

// Member looks up a member by id, nil when absent.
func (s *Server) Member(id int64) (*model.Member, error) {
	return s.memberStore.GetByID(id)
}

// Close stops revert timers and waits for in-flight push deliveries.
func (s *Server) Close() {
	s.engine.Close()
	s.pushNotifier.Wait()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.Handle("POST /login", middleware.RateLimit(s.rateLimiter, middleware.ByIP, loginLimit, loginWindow)(http.HandlerFunc(s.authH.Login)))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes share one mux with the public ones so the request
	// logger sees the matched pattern.
	s.registerProtectedRoutes(routes{mux: mux, auth: middleware.RequireAuth(s.sessionStore, s.memberStore)})

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

type routes struct {
	mux  *http.ServeMux
	auth func(http.Handler) http.Handler
}

// member mounts h for any logged-in member.
func (rt routes) member(pattern string, h http.HandlerFunc) {
	rt.mux.Handle(pattern, rt.auth(h))
}

// manager mounts h for parents and admins only.
func (rt routes) manager(pattern string, h http.HandlerFunc) {
	rt.mux.Handle(pattern, rt.auth(middleware.RequireManager(h)))
}

func (s *Server) registerProtectedRoutes(rt routes) {
	rt.member("POST /logout", s.authH.Logout)
	rt.member("GET /api/me", s.authH.Me)
	rt.member("GET /ws", ws.HandleWebSocket(s.hub))

	// Members
	rt.member("GET /api/members", s.memberH.List)
	rt.member("GET /api/members/{id}", s.memberH.Get)
	rt.manager("POST /api/members", s.memberH.Create)
	rt.manager("PUT /api/members/sort", s.memberH.UpdateSortOrder)
	rt.manager("PUT /api/members/{id}", s.memberH.Update)
	rt.manager("DELETE /api/members/{id}", s.memberH.Delete)
	rt.member("POST /api/members/{id}/pin", s.memberH.SetPIN)
	rt.member("DELETE /api/members/{id}/pin", s.memberH.ClearPIN)

	// Catalog
	rt.member("GET /api/tasks", s.catalogH.ListTasks)
	rt.manager("POST /api/tasks", s.catalogH.CreateTask)
	rt.manager("PUT /api/tasks/{id}", s.catalogH.UpdateTask)
	rt.manager("DELETE /api/tasks/{id}", s.catalogH.DeleteTask)
	rt.member("GET /api/members/{id}/tasks", s.catalogH.ListMemberTasks)
	rt.member("GET /api/rewards", s.catalogH.ListRewards)
	rt.manager("POST /api/rewards", s.catalogH.CreateReward)
	rt.manager("PUT /api/rewards/{id}", s.catalogH.UpdateReward)
	rt.manager("DELETE /api/rewards/{id}", s.catalogH.DeleteReward)
	rt.member("GET /api/consequences", s.catalogH.ListConsequences)
	rt.manager("POST /api/consequences", s.catalogH.CreateConsequence)
	rt.manager("PUT /api/consequences/{id}", s.catalogH.UpdateConsequence)
	rt.manager("DELETE /api/consequences/{id}", s.catalogH.DeleteConsequence)

	// Ledger
	rt.member("POST /api/members/{id}/tasks/{task_id}/toggle", s.ledgerH.ToggleTask)
	rt.member("POST /api/members/{id}/rewards/{reward_id}/redeem", s.ledgerH.Redeem)
	rt.member("POST /api/members/{id}/consequences/{consequence_id}/apply", s.ledgerH.ApplyConsequence)
	rt.member("GET /api/members/{id}/points", s.ledgerH.Points)
	rt.member("POST /api/members/{id}/points/reconcile", s.ledgerH.Reconcile)
	rt.member("GET /api/members/{id}/history/today", s.ledgerH.Today)
	rt.member("GET /api/history", s.ledgerH.History)
	rt.member("GET /api/leaderboard", s.ledgerH.Leaderboard)
	rt.manager("POST /api/ledger/reset", s.ledgerH.Reset)
	rt.manager("GET /api/ledger/archives", s.ledgerH.ListArchives)
	rt.manager("GET /api/ledger/archives/{id}", s.ledgerH.GetArchive)

	// Calendar
	rt.member("GET /api/events", s.calendarH.List)
	rt.member("GET /api/events/{id}", s.calendarH.Get)
	rt.manager("POST /api/events", s.calendarH.Create)
	rt.manager("PUT /api/events/{id}", s.calendarH.Update)
	rt.manager("DELETE /api/events/{id}", s.calendarH.Delete)

	// Meals
	rt.member("GET /api/meals", s.mealH.List)
	rt.manager("POST /api/meals", s.mealH.Create)
	rt.manager("PUT /api/meals/{id}", s.mealH.Update)
	rt.manager("DELETE /api/meals/{id}", s.mealH.Delete)

	// Homework
	rt.member("GET /api/members/{id}/homework", s.homeworkH.ListForMember)
	rt.member("POST /api/homework", s.homeworkH.Create)
	rt.member("PUT /api/homework/{id}", s.homeworkH.Update)
	rt.member("POST /api/homework/{id}/done", s.homeworkH.ToggleDone)
	rt.member("DELETE /api/homework/{id}", s.homeworkH.Delete)

	// Karate
	rt.member("GET /api/karate/belts", s.karateH.ListBelts)
	rt.member("GET /api/members/{id}/karate", s.karateH.Progress)
	rt.manager("POST /api/members/{id}/karate", s.karateH.Promote)
	rt.manager("DELETE /api/karate/promotions/{id}", s.karateH.DeletePromotion)

	// Push notifications
	rt.member("POST /api/push/subscriptions", s.pushH.Subscribe)
	rt.member("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	rt.member("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	rt.member("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	rt.member("POST /api/push/test", s.pushH.TestNotification)
}
