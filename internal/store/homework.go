package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

type HomeworkStore struct {
	db *sql.DB
}

func NewHomeworkStore(db *sql.DB) *HomeworkStore {
	return &HomeworkStore{db: db}
}

func scanHomework(scanner interface{ Scan(...any) error }) (*model.Homework, error) {
	var h model.Homework
	var done int
	var doneAt sql.NullTime
	err := scanner.Scan(&h.ID, &h.MemberID, &h.Subject, &h.Title, &h.Notes, &h.DueDate, &done, &doneAt, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.Done = done != 0
	if doneAt.Valid {
		h.DoneAt = &doneAt.Time
	}
	return &h, nil
}

const homeworkCols = `id, member_id, subject, title, notes, due_date, done, done_at, created_at, updated_at`

func (s *HomeworkStore) Create(memberID int64, subject, title, notes, dueDate string) (*model.Homework, error) {
	result, err := s.db.Exec(
		`INSERT INTO homework (member_id, subject, title, notes, due_date) VALUES (?, ?, ?, ?, ?)`,
		memberID, subject, title, notes, dueDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert homework: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HomeworkStore) GetByID(id int64) (*model.Homework, error) {
	row := s.db.QueryRow(`SELECT `+homeworkCols+` FROM homework WHERE id = ?`, id)
	h, err := scanHomework(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get homework: %w", err)
	}
	return h, nil
}

// ListByMember returns a member's homework by due date. With pendingOnly,
// finished assignments are left out.
func (s *HomeworkStore) ListByMember(memberID int64, pendingOnly bool) ([]model.Homework, error) {
	query := `SELECT ` + homeworkCols + ` FROM homework WHERE member_id = ?`
	if pendingOnly {
		query += ` AND done = 0`
	}
	query += ` ORDER BY done ASC, due_date ASC, id ASC`

	rows, err := s.db.Query(query, memberID)
	if err != nil {
		return nil, fmt.Errorf("list homework: %w", err)
	}
	defer rows.Close()

	var items []model.Homework
	for rows.Next() {
		h, err := scanHomework(rows)
		if err != nil {
			return nil, fmt.Errorf("scan homework: %w", err)
		}
		items = append(items, *h)
	}
	return items, rows.Err()
}

// ListPendingDueOn returns unfinished homework due on date across members.
func (s *HomeworkStore) ListPendingDueOn(date string) ([]model.Homework, error) {
	rows, err := s.db.Query(
		`SELECT `+homeworkCols+` FROM homework WHERE due_date = ? AND done = 0 ORDER BY member_id, id`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list homework due: %w", err)
	}
	defer rows.Close()

	var items []model.Homework
	for rows.Next() {
		h, err := scanHomework(rows)
		if err != nil {
			return nil, fmt.Errorf("scan homework: %w", err)
		}
		items = append(items, *h)
	}
	return items, rows.Err()
}

func (s *HomeworkStore) Update(id int64, subject, title, notes, dueDate string) (*model.Homework, error) {
	_, err := s.db.Exec(
		`UPDATE homework SET subject = ?, title = ?, notes = ?, due_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		subject, title, notes, dueDate, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update homework: %w", err)
	}
	return s.GetByID(id)
}

// ToggleDone flips the done flag, stamping done_at when it becomes done.
func (s *HomeworkStore) ToggleDone(id int64) (*model.Homework, error) {
	_, err := s.db.Exec(
		`UPDATE homework
		 SET done = CASE WHEN done = 0 THEN 1 ELSE 0 END,
		     done_at = CASE WHEN done = 0 THEN ? ELSE NULL END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle homework: %w", err)
	}
	return s.GetByID(id)
}

func (s *HomeworkStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM homework WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	return nil
}
