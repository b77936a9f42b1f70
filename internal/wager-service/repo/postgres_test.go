package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
)

var wagerCols = []string{
	"id", "creator_id", "points", "game_type", "title", "description", "status", "side", "counterpart_id",
	"shared_code", "self_result", "self_submitted", "evidence_ref", "winner_id", "dispute_reason", "cancel_reason",
	"resolution_notes", "created_at", "expires_at", "code_shared_at", "completed_at", "updated_at",
}

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func addWagerRow(rows *sqlmock.Rows, id, creator, status string, counterpart any) *sqlmock.Rows {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id, creator, int64(100), "chess", nil, nil, status, "CREATOR", counterpart,
		nil, "", false, nil, nil, nil, nil,
		nil, ts, ts.Add(24*time.Hour), nil, nil, ts)
}

func TestPostgres_LockWagersKeepsRequestedOrder(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows(wagerCols)
	addWagerRow(rows, "a", "alice", "ACCEPTED", "b")
	addWagerRow(rows, "b", "bob", "ACCEPTED", "a")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM wagers WHERE id = ANY\(\$1\) ORDER BY id FOR UPDATE`).
		WithArgs(pq.Array([]string{"a", "b"})).
		WillReturnRows(rows)
	mock.ExpectCommit()

	err := p.InTx(ctx, func(tx Tx) error {
		ws, err := tx.LockWagers(ctx, "b", "a")
		require.NoError(t, err)
		require.Len(t, ws, 2)
		assert.Equal(t, "b", ws[0].ID)
		assert.Equal(t, "a", ws[1].ID)
		assert.Equal(t, "a", ws[0].Counterpart())
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LockWagersMissing(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM wagers WHERE id = ANY`).
		WillReturnRows(sqlmock.NewRows(wagerCols))
	mock.ExpectRollback()

	err := p.InTx(ctx, func(tx Tx) error {
		_, err := tx.LockWagers(ctx, "nope")
		return err
	})
	require.ErrorIs(t, err, domain.ErrWagerNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateWagerStale(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE wagers SET .* WHERE id=\$1 AND status=\$15`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	w := &domain.Wager{ID: "w1", Status: domain.StatusAccepted}
	err := p.InTx(ctx, func(tx Tx) error {
		return tx.UpdateWager(ctx, w, domain.StatusPending)
	})
	require.ErrorIs(t, err, domain.ErrStaleWager)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddPointsCheckViolation(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE accounts SET available_points = available_points \+ \$1`).
		WithArgs(int64(-500), "alice").
		WillReturnError(&pq.Error{Code: pgCheckViolation})
	mock.ExpectRollback()

	err := p.InTx(ctx, func(tx Tx) error {
		_, err := tx.AddPoints(ctx, "alice", -500)
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddPointsUnknownAccount(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE accounts`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := p.InTx(ctx, func(tx Tx) error {
		_, err := tx.AddPoints(ctx, "ghost", 10)
		return err
	})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestPostgres_InTxRetriesSerializationFailure(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET wins`).WillReturnError(&pq.Error{Code: pgSerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET wins`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err := p.InTx(ctx, func(tx Tx) error {
		attempts++
		return tx.IncrementRecord(ctx, "alice", 1, 0)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InTxGivesUpAfterRetries(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	for i := 0; i <= p.maxRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE accounts SET wins`).WillReturnError(&pq.Error{Code: pgDeadlockDetected})
		mock.ExpectRollback()
	}

	err := p.InTx(ctx, func(tx Tx) error {
		return tx.IncrementRecord(ctx, "alice", 1, 0)
	})
	require.Error(t, err)
	assert.True(t, isRetryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateAccountConflict(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts .* ON CONFLICT \(id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := p.InTx(ctx, func(tx Tx) error {
		return tx.CreateAccount(ctx, &domain.Account{ID: "alice"})
	})
	require.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestPostgres_GetWagerRejectsUnknownStatus(t *testing.T) {
	p, mock := newMockStore(t)

	rows := sqlmock.NewRows(wagerCols)
	addWagerRow(rows, "w1", "alice", "SETTLED", nil)
	mock.ExpectQuery(`FROM wagers WHERE id=\$1`).WithArgs("w1").WillReturnRows(rows)

	_, err := p.GetWager(context.Background(), "w1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestPostgres_GetAccountNotFound(t *testing.T) {
	p, mock := newMockStore(t)
	mock.ExpectQuery(`FROM accounts WHERE id=\$1`).WillReturnError(sql.ErrNoRows)

	_, err := p.GetAccount(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestPostgres_FindPendingForMatchUsesSkipLocked(t *testing.T) {
	p, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(wagerCols)
	addWagerRow(rows, "w-old", "bob", "PENDING", nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`ORDER BY created_at, id LIMIT \$5 FOR UPDATE SKIP LOCKED`).
		WithArgs("chess", int64(100), "alice", now, 10).
		WillReturnRows(rows)
	mock.ExpectCommit()

	err := p.InTx(ctx, func(tx Tx) error {
		got, err := tx.FindPendingForMatch(ctx, PendingQuery{GameType: "chess", Points: 100, ExcludeCreatorID: "alice", Now: now})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "w-old", got[0].ID)
		assert.False(t, got[0].IsPaired())
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedUnique([]string{"c", "a", "b", "a"}))
}
