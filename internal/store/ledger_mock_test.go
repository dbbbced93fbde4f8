package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dukerupert/famille/internal/model"
)

func TestLedgerApplyRollsBackOnTotalFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO history_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO points_totals").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := NewLedgerStore(db)
	_, err = s.Apply(context.Background(), entry(1, "2026-10-15", "Vaisselle", 3, model.EntryTask, time.Now()))
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLedgerSpendDoesNotWriteWhenShort(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total FROM points_totals").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(2))
	mock.ExpectRollback()

	s := NewLedgerStore(db)
	total, ok, err := s.Spend(context.Background(), entry(1, "2026-10-15", "Film", 5, model.EntryReward, time.Now()))
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if ok {
		t.Error("ok = true, want false")
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
