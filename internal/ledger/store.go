package ledger

import (
	"context"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

// Store is the persistence contract for totals and day-partitioned history.
// Apply, Spend and ResetMember must each be atomic for a single member.
type Store interface {
	GetTotal(ctx context.Context, memberID int64) (int, error)
	SetTotal(ctx context.Context, memberID int64, total int) error
	AppendHistoryEntry(ctx context.Context, memberID int64, day string, e model.HistoryEntry) error
	ListHistoryEntries(ctx context.Context, memberID int64, day string) ([]model.HistoryEntry, error)
	ListHistoryDays(ctx context.Context, memberID int64) ([]string, error)
	DeleteHistoryEntry(ctx context.Context, memberID int64, day, entryID string) error
	ListHistorySince(ctx context.Context, memberID *int64, since time.Time) ([]model.HistoryEntry, error)

	Apply(ctx context.Context, e model.HistoryEntry) (int, error)
	Spend(ctx context.Context, e model.HistoryEntry) (total int, ok bool, err error)
	ResetMember(ctx context.Context, memberID int64) (int64, error)
}

// Catalog looks up the definitions the engine copies into history entries.
type Catalog interface {
	GetTask(id int64) (*model.Task, error)
	GetReward(id int64) (*model.Reward, error)
	GetConsequence(id int64) (*model.Consequence, error)
}

type Members interface {
	ListIDs() ([]int64, error)
}

// Archiver snapshots the ledger somewhere durable before a reset.
type Archiver interface {
	Archive(ctx context.Context, createdBy int64) (*model.Archive, error)
}

// Actor is the member performing a privileged operation.
type Actor struct {
	MemberID int64
	Role     model.Role
}
