package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/famille/internal/model"
)

// ErrSlotTaken is returned when a meal already occupies the (date, slot).
var ErrSlotTaken = errors.New("meal slot already planned")

type MealStore struct {
	db *sql.DB
}

func NewMealStore(db *sql.DB) *MealStore {
	return &MealStore{db: db}
}

func scanMeal(scanner interface{ Scan(...any) error }) (*model.Meal, error) {
	var m model.Meal
	var slot string
	var cookID sql.NullInt64
	err := scanner.Scan(&m.ID, &m.Date, &slot, &m.Title, &m.Notes, &cookID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Slot = model.MealSlot(slot)
	m.CookID = int64Ptr(cookID)
	return &m, nil
}

const mealCols = `id, date, slot, title, notes, cook_id, created_at, updated_at`

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *MealStore) Create(date string, slot model.MealSlot, title, notes string, cookID *int64) (*model.Meal, error) {
	result, err := s.db.Exec(
		`INSERT INTO meals (date, slot, title, notes, cook_id) VALUES (?, ?, ?, ?, ?)`,
		date, string(slot), title, notes, nullInt64(cookID),
	)
	if isUniqueViolation(err) {
		return nil, ErrSlotTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert meal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MealStore) GetByID(id int64) (*model.Meal, error) {
	row := s.db.QueryRow(`SELECT `+mealCols+` FROM meals WHERE id = ?`, id)
	m, err := scanMeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	return m, nil
}

// ListByDateRange returns meals with from <= date <= to, by date then slot.
func (s *MealStore) ListByDateRange(from, to string) ([]model.Meal, error) {
	rows, err := s.db.Query(
		`SELECT `+mealCols+` FROM meals WHERE date >= ? AND date <= ?
		 ORDER BY date ASC,
		   CASE slot WHEN 'breakfast' THEN 0 WHEN 'lunch' THEN 1 WHEN 'snack' THEN 2 ELSE 3 END ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()

	var meals []model.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals = append(meals, *m)
	}
	return meals, rows.Err()
}

func (s *MealStore) Update(id int64, date string, slot model.MealSlot, title, notes string, cookID *int64) (*model.Meal, error) {
	_, err := s.db.Exec(
		`UPDATE meals SET date = ?, slot = ?, title = ?, notes = ?, cook_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		date, string(slot), title, notes, nullInt64(cookID), id,
	)
	if isUniqueViolation(err) {
		return nil, ErrSlotTaken
	}
	if err != nil {
		return nil, fmt.Errorf("update meal: %w", err)
	}
	return s.GetByID(id)
}

func (s *MealStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM meals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	return nil
}
