package model

import "time"

type EntryType string

const (
	EntryTask        EntryType = "task"
	EntryReward      EntryType = "reward"
	EntryConsequence EntryType = "consequence"
)

// HistoryEntry is one immutable point-affecting event. Value is always a
// non-negative magnitude; Type decides the sign.
type HistoryEntry struct {
	ID        string    `json:"id"`
	MemberID  int64     `json:"member_id"`
	Day       string    `json:"day"`
	Label     string    `json:"label"`
	Value     int       `json:"value"`
	Type      EntryType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Signed returns the entry's contribution to the member's total.
func (e HistoryEntry) Signed() int {
	if e.Type == EntryTask {
		return e.Value
	}
	return -e.Value
}

type PointsTotal struct {
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
	Color      string `json:"color"`
	Avatar     string `json:"avatar"`
	Total      int    `json:"total"`
}

type ArchiveStatus string

const (
	ArchiveStatusPending   ArchiveStatus = "pending"
	ArchiveStatusCompleted ArchiveStatus = "completed"
	ArchiveStatusFailed    ArchiveStatus = "failed"
)

type Archive struct {
	ID           int64         `json:"id"`
	ObjectKey    string        `json:"object_key"`
	SizeBytes    int64         `json:"size_bytes"`
	EntryCount   int           `json:"entry_count"`
	Status       ArchiveStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedBy    *int64        `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}
