package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/dukerupert/famille/internal/model"
)

type ResetReport struct {
	Members        []int64        `json:"members"`
	EntriesRemoved int64          `json:"entries_removed"`
	Archive        *model.Archive `json:"archive,omitempty"`
	Failed         []int64        `json:"failed,omitempty"`
}

// Reset zeroes every member's total and clears their history. Each member
// is reset in its own transaction; a failure is recorded and the loop moves
// on. When an archiver is configured the ledger is archived first and an
// archive failure aborts before anything is deleted.
func (e *Engine) Reset(ctx context.Context, actor Actor) (*ResetReport, error) {
	if !actor.Role.CanManage() {
		return nil, fmt.Errorf("reset as %s: %w", actor.Role, ErrForbidden)
	}

	ids, err := e.members.ListIDs()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	report := &ResetReport{Members: []int64{}}
	if e.archiver != nil {
		archive, err := e.archiver.Archive(ctx, actor.MemberID)
		if err != nil {
			return nil, fmt.Errorf("archive ledger: %w", err)
		}
		report.Archive = archive
	}

	var errs error
	for _, id := range ids {
		n, err := e.store.ResetMember(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reset member %d: %w", id, err))
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Members = append(report.Members, id)
		report.EntriesRemoved += n
		e.stopMemberTimers(id)
		e.cache.Forget(id)
	}

	e.logger.Info("ledger reset",
		"actor_id", actor.MemberID,
		"members", len(report.Members),
		"failed", len(report.Failed),
		"entries_removed", report.EntriesRemoved,
	)
	e.notify.Notify(ctx, Event{Kind: EventReset, MemberID: actor.MemberID})
	return report, errs
}

func (e *Engine) stopMemberTimers(memberID int64) {
	prefix := strconv.FormatInt(memberID, 10) + ":"
	e.timers.Range(func(key string, t *time.Timer) bool {
		if strings.HasPrefix(key, prefix) {
			t.Stop()
			e.timers.Delete(key)
		}
		return true
	})
}
