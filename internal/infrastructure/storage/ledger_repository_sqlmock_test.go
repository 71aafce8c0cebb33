package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// newBunDBWithMock builds a bun.DB backed by go-sqlmock, for exercising a
// single repository method against a scripted result set without a live
// Postgres connection. Uses QueryMatcherRegexp so ExpectQuery patterns are
// treated as regexps, since bun's generated SQL isn't worth matching verbatim.
func newBunDBWithMock(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	bunDB := bun.NewDB(db, pgdialect.New())
	registerModels(bunDB)
	return bunDB, mock
}

var accountColumns = []string{
	"id", "user_id", "plan_id", "status", "points_balance", "reserved_points",
	"earnings_balance", "daily_chat_count", "daily_chat_reset_at",
	"created_at", "updated_at",
}

func TestLedgerRepository_GetAccountByID_ShouldReturnAccount_WhenRowExists(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewLedgerRepository(bunDB, 0, 0)

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(accountColumns).
		AddRow(id, uuid.New(), "free", "active", int64(500), int64(0), int64(0), 0, now, now, now)
	mock.ExpectQuery("^SELECT").WillReturnRows(rows)

	account, err := repo.GetAccountByID(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), account.ID)
	assert.Equal(t, int64(500), account.PointsBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_GetAccountByID_ShouldReturnNotFound_WhenNoRow(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewLedgerRepository(bunDB, 0, 0)

	rows := sqlmock.NewRows(accountColumns)
	mock.ExpectQuery("^SELECT").WillReturnRows(rows)

	account, err := repo.GetAccountByID(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, pkgmodels.ErrAccountNotFound)
	assert.Nil(t, account)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_GetAccountByID_ShouldReturnInvalidID_WhenIDIsNotUUID(t *testing.T) {
	bunDB, _ := newBunDBWithMock(t)
	repo := NewLedgerRepository(bunDB, 0, 0)

	account, err := repo.GetAccountByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, pkgmodels.ErrInvalidID)
	assert.Nil(t, account)
}

func TestLedgerRepository_GetTransactionByIdempotencyKey_ShouldReturnNilNil_WhenNoRow(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewLedgerRepository(bunDB, 0, 0)

	txColumns := []string{
		"id", "account_id", "type", "amount", "status", "reservation_id",
		"job_id", "description", "idempotency_key", "balance_before",
		"balance_after", "created_at",
	}
	mock.ExpectQuery("^SELECT").WillReturnRows(sqlmock.NewRows(txColumns))

	tx, err := repo.GetTransactionByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Nil(t, tx)
	require.NoError(t, mock.ExpectationsWereMet())
}
