package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/famille/internal/archive"
	"github.com/dukerupert/famille/internal/auth"
	"github.com/dukerupert/famille/internal/ledger"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

const defaultHistoryDays = 7

// LedgerHandler exposes the points engine. Children may only act on their
// own ledger; parents and admins may act on anyone's.
type LedgerHandler struct {
	engine      *ledger.Engine
	ledgerStore *store.LedgerStore
	memberStore *store.MemberStore
	archives    *archive.Manager
	logger      *slog.Logger
}

func NewLedgerHandler(engine *ledger.Engine, ls *store.LedgerStore, ms *store.MemberStore, archives *archive.Manager, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{engine: engine, ledgerStore: ls, memberStore: ms, archives: archives, logger: logger}
}

func actor(r *http.Request) ledger.Actor {
	return ledger.Actor{MemberID: auth.MemberID(r.Context()), Role: auth.Role(r.Context())}
}

// member resolves the {id} path value to an existing member the caller may
// act for, writing the error response when it cannot.
func (h *LedgerHandler) member(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	if !auth.CanActFor(r.Context(), id) {
		writeError(w, http.StatusForbidden, "cannot act for another member")
		return 0, false
	}
	m, err := h.memberStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return 0, false
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return 0, false
	}
	return id, true
}

// ToggleTask handles POST /api/members/{id}/tasks/{task_id}/toggle.
func (h *LedgerHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.member(w, r)
	if !ok {
		return
	}
	taskID, err := parsePathID(r, "task_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	result, err := h.engine.CompleteTask(r.Context(), memberID, taskID)
	if err != nil {
		writeLedgerError(w, h.logger, "complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Redeem handles POST /api/members/{id}/rewards/{reward_id}/redeem.
func (h *LedgerHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.member(w, r)
	if !ok {
		return
	}
	rewardID, err := parsePathID(r, "reward_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reward id")
		return
	}

	result, err := h.engine.RedeemReward(r.Context(), memberID, rewardID)
	if err != nil {
		writeLedgerError(w, h.logger, "redeem reward", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ApplyConsequence handles POST /api/members/{id}/consequences/{consequence_id}/apply.
func (h *LedgerHandler) ApplyConsequence(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.member(w, r)
	if !ok {
		return
	}
	consequenceID, err := parsePathID(r, "consequence_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consequence id")
		return
	}

	result, err := h.engine.ApplyConsequence(r.Context(), actor(r), memberID, consequenceID)
	if err != nil {
		writeLedgerError(w, h.logger, "apply consequence", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *LedgerHandler) Points(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.member(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Points(r.Context(), memberID)
	if err != nil {
		writeLedgerError(w, h.logger, "get points", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.member(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Reconcile(r.Context(), memberID)
	if err != nil {
		writeLedgerError(w, h.logger, "reconcile points", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *LedgerHandler) Today(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.member(w, r)
	if !ok {
		return
	}
	entries, err := h.engine.History().TodaysEntries(r.Context(), memberID)
	if err != nil {
		writeLedgerError(w, h.logger, "list today's entries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":     h.engine.Clock().Today(),
		"points":  ledger.SumSigned(entries),
		"entries": entries,
	})
}

// History handles GET /api/history?member=ID&since=YYYY-MM-DD. Without
// member a parent sees the household and a child sees themselves. since
// defaults to a week ago.
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var memberID *int64
	if v := q.Get("member"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid member")
			return
		}
		if !auth.CanActFor(r.Context(), id) {
			writeError(w, http.StatusForbidden, "cannot read another member's history")
			return
		}
		memberID = &id
	} else if !auth.CanManage(r.Context()) {
		self := auth.MemberID(r.Context())
		memberID = &self
	}

	clock := h.engine.Clock()
	var (
		entries []model.HistoryEntry
		err     error
	)
	if since := q.Get("since"); since != "" {
		start, perr := clock.StartOfDay(since)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		entries, err = h.engine.History().Range(r.Context(), memberID, start)
	} else {
		entries, err = h.engine.History().RangeDays(r.Context(), memberID, defaultHistoryDays)
	}
	if err != nil {
		writeLedgerError(w, h.logger, "list history", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Reset handles POST /api/ledger/reset. A partial failure still returns the
// report alongside the error.
func (h *LedgerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Reset(r.Context(), actor(r))
	if err != nil && report == nil {
		writeLedgerError(w, h.logger, "reset ledger", err)
		return
	}
	if err != nil {
		h.logger.Error("reset ledger", "failed", report.Failed, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "reset incomplete", "report": report})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *LedgerHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	archives, err := h.archives.List(limit)
	if err != nil {
		h.logger.Error("list archives", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	writeJSON(w, http.StatusOK, archives)
}

func (h *LedgerHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if !h.archives.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "archive storage not configured")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	snap, err := h.archives.Fetch(r.Context(), id)
	if err != nil {
		h.logger.Error("fetch archive", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch archive")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *LedgerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	totals, err := h.ledgerStore.ListTotals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list totals")
		return
	}
	if totals == nil {
		totals = []model.PointsTotal{}
	}
	writeJSON(w, http.StatusOK, totals)
}
