package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

type fakeArchiver struct {
	err   error
	calls int
}

func (a *fakeArchiver) Archive(_ context.Context, createdBy int64) (*model.Archive, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &model.Archive{ID: 1, ObjectKey: "archives/test.json", Status: model.ArchiveStatusCompleted, CreatedBy: &createdBy}, nil
}

func seedLedger(t *testing.T, f *fixture, ids ...int64) {
	t.Helper()
	ctx := context.Background()
	task := f.task(t, "Devoirs", 5)
	for _, id := range ids {
		_, err := f.engine.CompleteTask(ctx, id, task)
		require.NoError(t, err)
		_, err = f.engine.CompleteTask(ctx, id, task)
		require.NoError(t, err)
		*f.clock = f.clock.AddDate(0, 0, -1)
		_, err = f.engine.CompleteTask(ctx, id, task)
		require.NoError(t, err)
		*f.clock = testNow
	}
}

func TestResetClearsEveryMember(t *testing.T) {
	ctx := context.Background()
	archiver := &fakeArchiver{}
	f := newFixture(t, Options{Archiver: archiver})
	anna := f.member(t, "Anna", model.RoleEnfant)
	leo := f.member(t, "Leo", model.RoleEnfant)
	maman := f.member(t, "Maman", model.RoleParent)
	seedLedger(t, f, anna, leo)

	report, err := f.engine.Reset(ctx, Actor{MemberID: maman, Role: model.RoleParent})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{anna, leo, maman}, report.Members)
	assert.EqualValues(t, 4, report.EntriesRemoved)
	assert.Equal(t, 1, archiver.calls)
	require.NotNil(t, report.Archive)

	for _, id := range []int64{anna, leo, maman} {
		total, err := f.ledger.GetTotal(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, total)
		for _, day := range []string{"2026-10-14", "2026-10-15"} {
			entries, err := f.ledger.ListHistoryEntries(ctx, id, day)
			require.NoError(t, err)
			assert.Empty(t, entries)
		}
	}

	snap, err := f.engine.Points(ctx, anna)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Empty(t, snap.Done)
	assert.Contains(t, f.events.kinds(), EventReset)
}

func TestResetForbiddenForChild(t *testing.T) {
	ctx := context.Background()
	archiver := &fakeArchiver{}
	f := newFixture(t, Options{Archiver: archiver})
	anna := f.member(t, "Anna", model.RoleEnfant)
	seedLedger(t, f, anna)

	_, err := f.engine.Reset(ctx, Actor{MemberID: anna, Role: model.RoleEnfant})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, archiver.calls)

	total, _ := f.ledger.GetTotal(ctx, anna)
	assert.Equal(t, 10, total)
	days, _ := f.ledger.ListHistoryDays(ctx, anna)
	assert.Len(t, days, 2)
}

func TestResetAbortsWhenArchiveFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Archiver: &fakeArchiver{err: errors.New("bucket not found")}})
	anna := f.member(t, "Anna", model.RoleEnfant)
	seedLedger(t, f, anna)

	_, err := f.engine.Reset(ctx, Actor{Role: model.RoleAdmin})
	require.Error(t, err)

	total, _ := f.ledger.GetTotal(ctx, anna)
	assert.Equal(t, 10, total)
}

type flakyReset struct {
	*store.LedgerStore
	failFor int64
}

func (s flakyReset) ResetMember(ctx context.Context, memberID int64) (int64, error) {
	if memberID == s.failFor {
		return 0, errors.New("disk I/O error")
	}
	return s.LedgerStore.ResetMember(ctx, memberID)
}

func TestResetContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	anna := f.member(t, "Anna", model.RoleEnfant)
	leo := f.member(t, "Leo", model.RoleEnfant)
	seedLedger(t, f, anna, leo)

	engine := NewEngine(flakyReset{LedgerStore: f.ledger, failFor: anna}, f.catalog, f.members, Options{Clock: f.engine.clock})
	defer engine.Close()

	report, err := engine.Reset(ctx, Actor{Role: model.RoleParent})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, []int64{anna}, report.Failed)
	assert.Equal(t, []int64{leo}, report.Members)

	total, _ := f.ledger.GetTotal(ctx, anna)
	assert.Equal(t, 10, total)
	total, _ = f.ledger.GetTotal(ctx, leo)
	assert.Zero(t, total)
}
