package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

// History answers read-only questions about the log.
type History struct {
	store Store
	clock Clock
}

func NewHistory(store Store, clock Clock) *History {
	return &History{store: store, clock: clock}
}

// TodaysEntries returns today's partition for the member in insertion order.
func (h *History) TodaysEntries(ctx context.Context, memberID int64) ([]model.HistoryEntry, error) {
	entries, err := h.store.ListHistoryEntries(ctx, memberID, h.clock.Today())
	if err != nil {
		return nil, fmt.Errorf("todays entries: %w", err)
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return entries, nil
}

// TodayPoints sums today's entries. It never derives from the running total.
func (h *History) TodayPoints(ctx context.Context, memberID int64) (int, error) {
	entries, err := h.TodaysEntries(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return SumSigned(entries), nil
}

// Range returns entries at or after since, newest first. A nil memberID
// covers the whole household.
func (h *History) Range(ctx context.Context, memberID *int64, since time.Time) ([]model.HistoryEntry, error) {
	entries, err := h.store.ListHistorySince(ctx, memberID, since)
	if err != nil {
		return nil, fmt.Errorf("history range: %w", err)
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return entries, nil
}

// RangeDays is Range with since set to midnight days ago.
func (h *History) RangeDays(ctx context.Context, memberID *int64, days int) ([]model.HistoryEntry, error) {
	start, err := h.clock.StartOfDay(h.clock.Today())
	if err != nil {
		return nil, err
	}
	return h.Range(ctx, memberID, start.AddDate(0, 0, -days))
}

func SumSigned(entries []model.HistoryEntry) int {
	sum := 0
	for _, e := range entries {
		sum += e.Signed()
	}
	return sum
}
