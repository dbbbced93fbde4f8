package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var allDay int
	var memberID sql.NullInt64
	err := scanner.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &allDay, &memberID, &e.Location, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.AllDay = allDay != 0
	e.MemberID = int64Ptr(memberID)
	return &e, nil
}

const eventCols = `id, title, description, start_time, end_time, all_day, member_id, location, created_at, updated_at`

// Times are stored as UTC text so range comparisons sort correctly.
func dbTime(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

func (s *EventStore) Create(title, description string, startTime, endTime time.Time, allDay bool, memberID *int64, location string) (*model.CalendarEvent, error) {
	result, err := s.db.Exec(
		`INSERT INTO calendar_events (title, description, start_time, end_time, all_day, member_id, location)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title, description, dbTime(startTime), dbTime(endTime), boolInt(allDay), nullInt64(memberID), location,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.CalendarEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM calendar_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return e, nil
}

// ListByDateRange returns events overlapping [start, end), all-day first.
func (s *EventStore) ListByDateRange(start, end time.Time) ([]model.CalendarEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM calendar_events
		 WHERE start_time < ? AND end_time > ?
		 ORDER BY all_day DESC, start_time ASC`,
		dbTime(end), dbTime(start),
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(id int64, title, description string, startTime, endTime time.Time, allDay bool, memberID *int64, location string) (*model.CalendarEvent, error) {
	_, err := s.db.Exec(
		`UPDATE calendar_events
		 SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?, member_id = ?, location = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		title, description, dbTime(startTime), dbTime(endTime), boolInt(allDay), nullInt64(memberID), location, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update calendar event: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec("DELETE FROM calendar_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
