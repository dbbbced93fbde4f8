package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/famille/internal/model"
)

// ErrBeltNotHigher is returned when a promotion does not raise the member's rank.
var ErrBeltNotHigher = errors.New("belt must rank above the current belt")

type KarateStore struct {
	db *sql.DB
}

func NewKarateStore(db *sql.DB) *KarateStore {
	return &KarateStore{db: db}
}

func (s *KarateStore) ListBelts() ([]model.Belt, error) {
	rows, err := s.db.Query(`SELECT id, name, color, rank FROM karate_belts ORDER BY rank ASC`)
	if err != nil {
		return nil, fmt.Errorf("list belts: %w", err)
	}
	defer rows.Close()

	var belts []model.Belt
	for rows.Next() {
		var b model.Belt
		if err := rows.Scan(&b.ID, &b.Name, &b.Color, &b.Rank); err != nil {
			return nil, fmt.Errorf("scan belt: %w", err)
		}
		belts = append(belts, b)
	}
	return belts, rows.Err()
}

func (s *KarateStore) GetBelt(id int64) (*model.Belt, error) {
	var b model.Belt
	err := s.db.QueryRow(`SELECT id, name, color, rank FROM karate_belts WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.Color, &b.Rank)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get belt: %w", err)
	}
	return &b, nil
}

const promotionSelect = `SELECT p.id, p.member_id, p.awarded_on, p.notes, p.created_at, b.id, b.name, b.color, b.rank
	FROM karate_promotions p JOIN karate_belts b ON b.id = p.belt_id`

func scanPromotion(scanner interface{ Scan(...any) error }) (*model.Promotion, error) {
	var p model.Promotion
	err := scanner.Scan(&p.ID, &p.MemberID, &p.AwardedOn, &p.Notes, &p.CreatedAt, &p.Belt.ID, &p.Belt.Name, &p.Belt.Color, &p.Belt.Rank)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPromotions returns a member's promotions, highest rank first.
func (s *KarateStore) ListPromotions(memberID int64) ([]model.Promotion, error) {
	rows, err := s.db.Query(promotionSelect+` WHERE p.member_id = ? ORDER BY b.rank DESC, p.id DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var promotions []model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		promotions = append(promotions, *p)
	}
	return promotions, rows.Err()
}

// Progress assembles the member's current belt, the next belt and history.
func (s *KarateStore) Progress(memberID int64) (*model.KarateProgress, error) {
	promotions, err := s.ListPromotions(memberID)
	if err != nil {
		return nil, err
	}
	belts, err := s.ListBelts()
	if err != nil {
		return nil, err
	}

	progress := &model.KarateProgress{MemberID: memberID, Promotions: promotions}
	if progress.Promotions == nil {
		progress.Promotions = []model.Promotion{}
	}
	currentRank := 0
	if len(promotions) > 0 {
		current := promotions[0].Belt
		progress.CurrentBelt = &current
		currentRank = current.Rank
	}
	for i := range belts {
		if belts[i].Rank > currentRank {
			next := belts[i]
			progress.NextBelt = &next
			break
		}
	}
	return progress, nil
}

// Promote records a new belt. The belt must outrank the member's current one.
func (s *KarateStore) Promote(memberID, beltID int64, awardedOn, notes string) (*model.Promotion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var newRank int
	if err := tx.QueryRow(`SELECT rank FROM karate_belts WHERE id = ?`, beltID).Scan(&newRank); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("belt %d not found", beltID)
		}
		return nil, fmt.Errorf("get belt rank: %w", err)
	}

	var currentRank int
	err = tx.QueryRow(
		`SELECT COALESCE(MAX(b.rank), 0) FROM karate_promotions p JOIN karate_belts b ON b.id = p.belt_id WHERE p.member_id = ?`,
		memberID,
	).Scan(&currentRank)
	if err != nil {
		return nil, fmt.Errorf("current rank: %w", err)
	}
	if newRank <= currentRank {
		return nil, ErrBeltNotHigher
	}

	result, err := tx.Exec(
		`INSERT INTO karate_promotions (member_id, belt_id, awarded_on, notes) VALUES (?, ?, ?, ?)`,
		memberID, beltID, awardedOn, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert promotion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	row := s.db.QueryRow(promotionSelect+` WHERE p.id = ?`, id)
	return scanPromotion(row)
}

func (s *KarateStore) DeletePromotion(id int64) error {
	_, err := s.db.Exec(`DELETE FROM karate_promotions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	return nil
}
