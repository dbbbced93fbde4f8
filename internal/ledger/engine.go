package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"

	"github.com/dukerupert/famille/internal/model"
)

type Options struct {
	Clock Clock
	// RevertDelay un-completes a task automatically after it is toggled
	// done. Zero disables the timer.
	RevertDelay time.Duration
	CacheTTL    time.Duration
	Archiver    Archiver
	Notifier    Notifier
	Logger      *slog.Logger
}

// Result is what a ledger action hands back to callers.
type Result struct {
	Entry    *model.HistoryEntry `json:"entry,omitempty"`
	Done     *bool               `json:"done,omitempty"`
	Snapshot Snapshot            `json:"points"`
}

type Engine struct {
	store       Store
	catalog     Catalog
	members     Members
	history     *History
	cache       *Cache
	clock       Clock
	revertDelay time.Duration
	archiver    Archiver
	notify      Notifier
	logger      *slog.Logger
	timers      *xsync.MapOf[string, *time.Timer]
	// timerMu serialises replacing a timer with its callback's release.
	timerMu sync.Mutex
}

func NewEngine(store Store, catalog Catalog, members Members, opts Options) *Engine {
	clock := opts.Clock
	if clock.loc == nil && clock.now == nil {
		clock = NewClock(time.Local)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notify := opts.Notifier
	if notify == nil {
		notify = Notifiers(nil)
	}
	history := NewHistory(store, clock)
	return &Engine{
		store:       store,
		catalog:     catalog,
		members:     members,
		history:     history,
		cache:       NewCache(store, history, clock, opts.CacheTTL),
		clock:       clock,
		revertDelay: opts.RevertDelay,
		archiver:    opts.Archiver,
		notify:      notify,
		logger:      logger.With("component", "ledger"),
		timers:      xsync.NewMapOf[*time.Timer](),
	}
}

func (e *Engine) History() *History { return e.history }
func (e *Engine) Cache() *Cache     { return e.cache }
func (e *Engine) Clock() Clock      { return e.clock }

// Close stops every pending auto-revert timer.
func (e *Engine) Close() {
	e.timers.Range(func(key string, t *time.Timer) bool {
		t.Stop()
		e.timers.Delete(key)
		return true
	})
}

func timerKey(memberID, taskID int64) string {
	return strconv.FormatInt(memberID, 10) + ":" + strconv.FormatInt(taskID, 10)
}

func (e *Engine) newEntry(memberID int64, label string, value int, typ model.EntryType) model.HistoryEntry {
	now := e.clock.Now()
	return model.HistoryEntry{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		Day:       e.clock.DayKey(now),
		Label:     label,
		Value:     value,
		Type:      typ,
		Timestamp: now,
	}
}

// Points returns the member's cached snapshot.
func (e *Engine) Points(ctx context.Context, memberID int64) (Snapshot, error) {
	return e.cache.Get(ctx, memberID)
}

// Reconcile reloads the member's snapshot from the store, broadcasting a
// correction when the view had drifted.
func (e *Engine) Reconcile(ctx context.Context, memberID int64) (Snapshot, error) {
	snap, drifted, err := e.cache.Reconcile(ctx, memberID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reconcile member %d: %w", memberID, err)
	}
	if drifted {
		e.logger.Info("points view drifted", "member_id", memberID, "total", snap.Total, "today", snap.Today)
		e.notify.Notify(ctx, Event{Kind: EventCorrection, MemberID: memberID, Snapshot: &snap})
	}
	return snap, nil
}

// CompleteTask toggles the member's done flag for the task. Marking it done
// credits the task's points and logs one entry. Marking it undone only
// lowers the served view; the store keeps the credit.
func (e *Engine) CompleteTask(ctx context.Context, memberID, taskID int64) (*Result, error) {
	task, err := e.catalog.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil || !task.Active || !task.AssignedToMember(memberID) {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Points < 0 {
		return nil, fmt.Errorf("task %d has %d points: %w", taskID, task.Points, ErrInvalidValue)
	}

	var nowDone bool
	snap, err := e.cache.Update(ctx, memberID, func(s *Snapshot) error {
		nowDone = !s.Done[taskID]
		if nowDone {
			s.Done[taskID] = true
			s.Total += task.Points
			s.Today += task.Points
		} else {
			delete(s.Done, taskID)
			s.Total -= task.Points
			s.Today -= task.Points
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update points view: %w", err)
	}

	if !nowDone {
		if t, ok := e.timers.LoadAndDelete(timerKey(memberID, taskID)); ok {
			t.Stop()
		}
		e.notify.Notify(ctx, Event{Kind: EventTaskReverted, MemberID: memberID, Snapshot: &snap})
		return &Result{Done: &nowDone, Snapshot: snap}, nil
	}

	entry := e.newEntry(memberID, task.Title, task.Points, model.EntryTask)
	if _, err := e.store.Apply(ctx, entry); err != nil {
		e.logger.Error("record task completion", "member_id", memberID, "task_id", taskID, "error", err)
		e.correct(ctx, memberID, taskID)
		return nil, fmt.Errorf("record task completion: %w", err)
	}

	snap, err = e.afterWrite(ctx, memberID)
	if err != nil {
		return nil, err
	}
	e.scheduleRevert(memberID, taskID, task.Points)
	e.notify.Notify(ctx, Event{Kind: EventTaskCompleted, MemberID: memberID, Entry: &entry, Snapshot: &snap})
	return &Result{Entry: &entry, Done: &nowDone, Snapshot: snap}, nil
}

// correct undoes an optimistic completion whose write failed.
func (e *Engine) correct(ctx context.Context, memberID, taskID int64) {
	_, _ = e.cache.Update(ctx, memberID, func(s *Snapshot) error {
		delete(s.Done, taskID)
		s.Stale = true
		return nil
	})
	snap, _, err := e.cache.Reconcile(ctx, memberID)
	if err != nil {
		e.logger.Error("reconcile after failed write", "member_id", memberID, "error", err)
		return
	}
	e.notify.Notify(ctx, Event{Kind: EventCorrection, MemberID: memberID, Snapshot: &snap})
}

// afterWrite reloads the snapshot so it reflects the committed total.
func (e *Engine) afterWrite(ctx context.Context, memberID int64) (Snapshot, error) {
	snap, _, err := e.cache.Reconcile(ctx, memberID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reconcile member %d: %w", memberID, err)
	}
	return snap, nil
}

func (e *Engine) scheduleRevert(memberID, taskID int64, points int) {
	if e.revertDelay <= 0 {
		return
	}
	key := timerKey(memberID, taskID)
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	var t *time.Timer
	t = time.AfterFunc(e.revertDelay, func() {
		if !e.releaseTimer(key, t) {
			return
		}
		e.revert(memberID, taskID, points)
	})
	if old, loaded := e.timers.LoadAndStore(key, t); loaded {
		old.Stop()
	}
}

// releaseTimer removes t from the timer map if it is still the registered
// timer for key. A false return means t was cancelled or replaced.
func (e *Engine) releaseTimer(key string, t *time.Timer) bool {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	cur, ok := e.timers.Load(key)
	if !ok || cur != t {
		return false
	}
	e.timers.Delete(key)
	return true
}

// revert is the timer-driven undo of a completion. It is a no-op when the
// task was already toggled back by hand.
func (e *Engine) revert(memberID, taskID int64, points int) {
	ctx := context.Background()
	reverted := false
	snap, err := e.cache.Update(ctx, memberID, func(s *Snapshot) error {
		if !s.Done[taskID] {
			return nil
		}
		reverted = true
		delete(s.Done, taskID)
		s.Total -= points
		s.Today -= points
		return nil
	})
	if err != nil {
		e.logger.Error("auto revert task", "member_id", memberID, "task_id", taskID, "error", err)
		return
	}
	if reverted {
		e.logger.Debug("task auto reverted", "member_id", memberID, "task_id", taskID)
		e.notify.Notify(ctx, Event{Kind: EventTaskReverted, MemberID: memberID, Snapshot: &snap})
	}
}

// RedeemReward spends the reward's cost. The balance check and the debit
// share one store transaction.
func (e *Engine) RedeemReward(ctx context.Context, memberID, rewardID int64) (*Result, error) {
	reward, err := e.catalog.GetReward(rewardID)
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	if reward == nil || !reward.Active {
		return nil, fmt.Errorf("reward %d: %w", rewardID, ErrNotFound)
	}
	if reward.Cost < 0 {
		return nil, fmt.Errorf("reward %d costs %d: %w", rewardID, reward.Cost, ErrInvalidValue)
	}

	entry := e.newEntry(memberID, reward.Title, reward.Cost, model.EntryReward)
	total, ok, err := e.store.Spend(ctx, entry)
	if err != nil {
		e.logger.Error("record reward redemption", "member_id", memberID, "reward_id", rewardID, "error", err)
		return nil, fmt.Errorf("record reward redemption: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("reward %q costs %d, balance is %d: %w", reward.Title, reward.Cost, total, ErrInsufficientPoints)
	}

	snap, err := e.afterWrite(ctx, memberID)
	if err != nil {
		return nil, err
	}
	e.notify.Notify(ctx, Event{Kind: EventRewardRedeemed, MemberID: memberID, Entry: &entry, Snapshot: &snap})
	return &Result{Entry: &entry, Snapshot: snap}, nil
}

// ApplyConsequence debits the consequence's cost unconditionally; the total
// may go negative. Only parents and admins may apply one.
func (e *Engine) ApplyConsequence(ctx context.Context, actor Actor, memberID, consequenceID int64) (*Result, error) {
	if !actor.Role.CanManage() {
		return nil, fmt.Errorf("apply consequence as %s: %w", actor.Role, ErrForbidden)
	}
	c, err := e.catalog.GetConsequence(consequenceID)
	if err != nil {
		return nil, fmt.Errorf("get consequence: %w", err)
	}
	if c == nil || !c.Active {
		return nil, fmt.Errorf("consequence %d: %w", consequenceID, ErrNotFound)
	}
	if c.Cost < 0 {
		return nil, fmt.Errorf("consequence %d costs %d: %w", consequenceID, c.Cost, ErrInvalidValue)
	}

	entry := e.newEntry(memberID, c.Title, c.Cost, model.EntryConsequence)
	if _, err := e.store.Apply(ctx, entry); err != nil {
		e.logger.Error("record consequence", "member_id", memberID, "consequence_id", consequenceID, "error", err)
		return nil, fmt.Errorf("record consequence: %w", err)
	}

	snap, err := e.afterWrite(ctx, memberID)
	if err != nil {
		return nil, err
	}
	e.notify.Notify(ctx, Event{Kind: EventConsequenceApplied, MemberID: memberID, Entry: &entry, Snapshot: &snap})
	return &Result{Entry: &entry, Snapshot: snap}, nil
}

// IsClientError reports whether err stems from a rejected request rather
// than a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientPoints) || errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
