package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famille/internal/model"
)

// ArchiveStore records ledger snapshots written to object storage.
type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

func scanArchive(scanner interface{ Scan(...any) error }) (*model.Archive, error) {
	var a model.Archive
	var status string
	var createdBy sql.NullInt64
	var completedAt sql.NullTime
	err := scanner.Scan(&a.ID, &a.ObjectKey, &a.SizeBytes, &a.EntryCount, &status, &a.ErrorMessage, &createdBy, &a.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.ArchiveStatus(status)
	if createdBy.Valid {
		a.CreatedBy = &createdBy.Int64
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

const archiveCols = `id, object_key, size_bytes, entry_count, status, error_message, created_by, created_at, completed_at`

func (s *ArchiveStore) Create(objectKey string, createdBy *int64) (*model.Archive, error) {
	var by sql.NullInt64
	if createdBy != nil {
		by = sql.NullInt64{Int64: *createdBy, Valid: true}
	}
	result, err := s.db.Exec(
		`INSERT INTO archives (object_key, status, created_by) VALUES (?, ?, ?)`,
		objectKey, string(model.ArchiveStatusPending), by,
	)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ArchiveStore) GetByID(id int64) (*model.Archive, error) {
	row := s.db.QueryRow(`SELECT `+archiveCols+` FROM archives WHERE id = ?`, id)
	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive %d: %w", id, err)
	}
	return a, nil
}

func (s *ArchiveStore) List(limit int) ([]model.Archive, error) {
	rows, err := s.db.Query(`SELECT `+archiveCols+` FROM archives ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var archives []model.Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		archives = append(archives, *a)
	}
	return archives, rows.Err()
}

func (s *ArchiveStore) MarkFailed(id int64, errorMsg string) error {
	_, err := s.db.Exec(
		`UPDATE archives SET status = ?, error_message = ? WHERE id = ?`,
		string(model.ArchiveStatusFailed), errorMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark archive failed: %w", err)
	}
	return nil
}

func (s *ArchiveStore) MarkCompleted(id, sizeBytes int64, entryCount int) error {
	_, err := s.db.Exec(
		`UPDATE archives SET status = ?, size_bytes = ?, entry_count = ?, completed_at = ? WHERE id = ?`,
		string(model.ArchiveStatusCompleted), sizeBytes, entryCount, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark archive completed: %w", err)
	}
	return nil
}
