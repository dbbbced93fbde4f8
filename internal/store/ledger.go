package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

// LedgerStore persists per-member point totals and the day-partitioned
// history log. Every mutation that touches both runs in one transaction
// and adjusts the total in SQL, so concurrent writers cannot lose updates.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.HistoryEntry, error) {
	var e model.HistoryEntry
	var typ string
	var micros int64
	err := scanner.Scan(&e.ID, &e.MemberID, &e.Day, &e.Label, &e.Value, &typ, &micros)
	if err != nil {
		return nil, err
	}
	e.Type = model.EntryType(typ)
	e.Timestamp = time.UnixMicro(micros).UTC()
	return &e, nil
}

const entryCols = `id, member_id, day, label, value, type, occurred_at`

func queryEntries(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// --- Totals ---

// GetTotal returns the member's running total, 0 when no row exists yet.
func (s *LedgerStore) GetTotal(ctx context.Context, memberID int64) (int, error) {
	return getTotal(ctx, s.db, memberID)
}

func getTotal(ctx context.Context, q execer, memberID int64) (int, error) {
	var total int
	err := q.QueryRowContext(ctx, `SELECT total FROM points_totals WHERE member_id = ?`, memberID).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get total: %w", err)
	}
	return total, nil
}

// SetTotal overwrites the member's total. Last write wins.
func (s *LedgerStore) SetTotal(ctx context.Context, memberID int64, total int) error {
	return setTotal(ctx, s.db, memberID, total)
}

func setTotal(ctx context.Context, q execer, memberID int64, total int) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO points_totals (member_id, total) VALUES (?, ?)
		 ON CONFLICT(member_id) DO UPDATE SET total = excluded.total, updated_at = CURRENT_TIMESTAMP`,
		memberID, total,
	)
	if err != nil {
		return fmt.Errorf("set total: %w", err)
	}
	return nil
}

func addTotal(ctx context.Context, q execer, memberID int64, delta int) (int, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO points_totals (member_id, total) VALUES (?, ?)
		 ON CONFLICT(member_id) DO UPDATE SET total = total + excluded.total, updated_at = CURRENT_TIMESTAMP`,
		memberID, delta,
	)
	if err != nil {
		return 0, fmt.Errorf("adjust total: %w", err)
	}
	return getTotal(ctx, q, memberID)
}

// ListTotals returns every member's total, highest first.
func (s *LedgerStore) ListTotals(ctx context.Context) ([]model.PointsTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.name, m.color, m.avatar, COALESCE(p.total, 0) AS total
		 FROM members m LEFT JOIN points_totals p ON p.member_id = m.id
		 ORDER BY total DESC, m.name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list totals: %w", err)
	}
	defer rows.Close()

	var totals []model.PointsTotal
	for rows.Next() {
		var t model.PointsTotal
		if err := rows.Scan(&t.MemberID, &t.MemberName, &t.Color, &t.Avatar, &t.Total); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// --- History partitions ---

// AppendHistoryEntry inserts an entry into the (member, day) partition
// without touching the total.
func (s *LedgerStore) AppendHistoryEntry(ctx context.Context, memberID int64, day string, e model.HistoryEntry) error {
	e.MemberID = memberID
	e.Day = day
	return insertEntry(ctx, s.db, e)
}

func insertEntry(ctx context.Context, q execer, e model.HistoryEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO history_entries (id, member_id, day, label, value, type, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MemberID, e.Day, e.Label, e.Value, string(e.Type), e.Timestamp.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ListHistoryEntries returns one day's entries in insertion order.
func (s *LedgerStore) ListHistoryEntries(ctx context.Context, memberID int64, day string) ([]model.HistoryEntry, error) {
	entries, err := queryEntries(ctx, s.db,
		`SELECT `+entryCols+` FROM history_entries WHERE member_id = ? AND day = ? ORDER BY seq ASC`,
		memberID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	return entries, nil
}

// ListHistoryDays returns the day keys that hold at least one entry, oldest first.
func (s *LedgerStore) ListHistoryDays(ctx context.Context, memberID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT day FROM history_entries WHERE member_id = ? ORDER BY day ASC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (s *LedgerStore) DeleteHistoryEntry(ctx context.Context, memberID int64, day, entryID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM history_entries WHERE member_id = ? AND day = ? AND id = ?`,
		memberID, day, entryID,
	)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}

// ListHistorySince returns entries at or after since, newest first. A nil
// memberID scans every member.
func (s *LedgerStore) ListHistorySince(ctx context.Context, memberID *int64, since time.Time) ([]model.HistoryEntry, error) {
	var (
		entries []model.HistoryEntry
		err     error
	)
	if memberID == nil {
		entries, err = queryEntries(ctx, s.db,
			`SELECT `+entryCols+` FROM history_entries WHERE occurred_at >= ? ORDER BY occurred_at DESC, seq DESC`,
			since.UnixMicro(),
		)
	} else {
		entries, err = queryEntries(ctx, s.db,
			`SELECT `+entryCols+` FROM history_entries WHERE member_id = ? AND occurred_at >= ? ORDER BY occurred_at DESC, seq DESC`,
			*memberID, since.UnixMicro(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list history since: %w", err)
	}
	return entries, nil
}

// ListAllEntries returns the whole log in insertion order.
func (s *LedgerStore) ListAllEntries(ctx context.Context) ([]model.HistoryEntry, error) {
	entries, err := queryEntries(ctx, s.db, `SELECT `+entryCols+` FROM history_entries ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	return entries, nil
}

// --- Atomic ledger mutations ---

// Apply appends e and adjusts the member's total by e.Signed() in one
// transaction, returning the new total.
func (s *LedgerStore) Apply(ctx context.Context, e model.HistoryEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx, tx, e); err != nil {
		return 0, err
	}
	total, err := addTotal(ctx, tx, e.MemberID, e.Signed())
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// Spend is Apply guarded by a balance check inside the same transaction.
// ok is false, and nothing is written, when the total is below e.Value.
func (s *LedgerStore) Spend(ctx context.Context, e model.HistoryEntry) (total int, ok bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getTotal(ctx, tx, e.MemberID)
	if err != nil {
		return 0, false, err
	}
	if current < e.Value {
		return current, false, nil
	}

	if err := insertEntry(ctx, tx, e); err != nil {
		return 0, false, err
	}
	total, err = addTotal(ctx, tx, e.MemberID, e.Signed())
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}
	return total, true, nil
}

// ResetMember zeroes the total and deletes every history partition for the
// member in one transaction. It returns the number of entries removed.
func (s *LedgerStore) ResetMember(ctx context.Context, memberID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := setTotal(ctx, tx, memberID, 0); err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM history_entries WHERE member_id = ?`, memberID)
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
