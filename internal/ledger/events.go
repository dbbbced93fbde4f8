package ledger

import (
	"context"

	"github.com/dukerupert/famille/internal/model"
)

type EventKind string

const (
	EventTaskCompleted      EventKind = "task_completed"
	EventTaskReverted       EventKind = "task_reverted"
	EventRewardRedeemed     EventKind = "reward_redeemed"
	EventConsequenceApplied EventKind = "consequence_applied"
	EventCorrection         EventKind = "correction"
	EventReset              EventKind = "reset"
)

// Event describes a ledger change for live views and side channels.
// Snapshot is nil for reset events.
type Event struct {
	Kind     EventKind           `json:"kind"`
	MemberID int64               `json:"member_id"`
	Entry    *model.HistoryEntry `json:"entry,omitempty"`
	Snapshot *Snapshot           `json:"points,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Notifiers fans an event out in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}
