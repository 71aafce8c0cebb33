package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/aidocs/platform/internal/infrastructure/storage/models"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// LedgerRepository persists the points ledger: accounts, reservations and
// the append-only transaction log. Every balance mutation goes through a
// single serializable transaction that locks the account row with SELECT
// ... FOR UPDATE before computing the new balance, never a read in one
// statement followed by a write in another.
type LedgerRepository struct {
	db         bun.IDB
	maxRetries int
	backoff    time.Duration
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db bun.IDB, maxRetries int, backoff time.Duration) *LedgerRepository {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &LedgerRepository{db: db, maxRetries: maxRetries, backoff: backoff}
}

// CreateAccount inserts a new ledger account for a user, seeded with the
// plan's welcome points.
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *pkgmodels.Account) error {
	m, err := models.FromAccountDomain(account)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	account.ID = m.ID.String()
	account.CreatedAt = m.CreatedAt
	account.UpdatedAt = m.UpdatedAt
	return nil
}

// GetAccountByID fetches an account by its ID.
func (r *LedgerRepository) GetAccountByID(ctx context.Context, id string) (*pkgmodels.Account, error) {
	accID, err := uuid.Parse(id)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}
	m := new(models.AccountModel)
	err = r.db.NewSelect().Model(m).Where("id = ?", accID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return models.ToAccountDomain(m), nil
}

// GetAccountByUserID fetches the ledger account belonging to a user.
func (r *LedgerRepository) GetAccountByUserID(ctx context.Context, userID string) (*pkgmodels.Account, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}
	m := new(models.AccountModel)
	err = r.db.NewSelect().Model(m).Where("user_id = ?", uid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by user: %w", err)
	}
	return models.ToAccountDomain(m), nil
}

// GetTransactionByIdempotencyKey returns the transaction already recorded
// under a key, or nil (not an error) if none exists yet. Callers use this to
// make reserve/commit/refund idempotent before attempting the mutation.
func (r *LedgerRepository) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*pkgmodels.PointsTransaction, error) {
	m := new(models.PointsTransactionModel)
	err := r.db.NewSelect().Model(m).Where("idempotency_key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by idempotency key: %w", err)
	}
	return models.ToTransactionDomain(m), nil
}

// Reserve locks in a points hold against an account for an in-flight job.
// It returns ErrInsufficientBalance if the account cannot cover the amount,
// and is idempotent on idempotencyKey. Retries on CAS conflict up to
// maxRetries with linear backoff, never retrying a read and a write as two
// separate operations.
func (r *LedgerRepository) Reserve(ctx context.Context, accountID, jobID string, amount int64, idempotencyKey, description string) (*pkgmodels.Reservation, error) {
	if existing, err := r.GetTransactionByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return r.getReservationByID(ctx, existing.ReservationID)
	}

	accID, err := uuid.Parse(accountID)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}
	jID, err := uuid.Parse(jobID)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}

	var reservation *pkgmodels.Reservation
	op := func(ctx context.Context, dbTx bun.Tx) error {
		accountModel := new(models.AccountModel)
		if err := dbTx.NewSelect().Model(accountModel).Where("id = ?", accID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return pkgmodels.ErrAccountNotFound
			}
			return err
		}
		if accountModel.Status != string(pkgmodels.SubscriptionStatusActive) {
			return pkgmodels.ErrAccountSuspended
		}
		available := accountModel.PointsBalance - accountModel.ReservedPoints
		if amount <= 0 || available < amount {
			return pkgmodels.ErrInsufficientBalance
		}

		rsvModel := &models.ReservationModel{AccountID: accID, JobID: jID, Amount: amount}
		if _, err := dbTx.NewInsert().Model(rsvModel).Exec(ctx); err != nil {
			return err
		}

		balanceBefore := accountModel.PointsBalance
		accountModel.ReservedPoints += amount

		txModel := &models.PointsTransactionModel{
			AccountID:      accID,
			Type:           string(pkgmodels.PointsTxReserve),
			Amount:         amount,
			Status:         string(pkgmodels.PointsTxStatusCompleted),
			ReservationID:  rsvModel.ID.String(),
			JobID:          jobID,
			Description:    description,
			IdempotencyKey: idempotencyKey,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   accountModel.PointsBalance,
		}
		if _, err := dbTx.NewInsert().Model(txModel).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(accountModel).
			Column("reserved_points", "updated_at").
			Where("id = ?", accID).Exec(ctx); err != nil {
			return err
		}

		reservation = models.ToReservationDomain(rsvModel)
		return nil
	}

	if err := r.runWithRetry(ctx, op); err != nil {
		return nil, err
	}
	return reservation, nil
}

// Commit makes a reservation's debit permanent: it moves the reserved
// points out of both PointsBalance and ReservedPoints. Idempotent: a
// reservation already consumed is a no-op success.
func (r *LedgerRepository) Commit(ctx context.Context, reservationID, idempotencyKey string) error {
	if existing, err := r.GetTransactionByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	rsvID, err := uuid.Parse(reservationID)
	if err != nil {
		return pkgmodels.ErrInvalidID
	}

	op := func(ctx context.Context, dbTx bun.Tx) error {
		rsvModel := new(models.ReservationModel)
		if err := dbTx.NewSelect().Model(rsvModel).Where("id = ?", rsvID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return pkgmodels.ErrReservationNotFound
			}
			return err
		}
		if rsvModel.Consumed {
			return nil
		}

		accountModel := new(models.AccountModel)
		if err := dbTx.NewSelect().Model(accountModel).Where("id = ?", rsvModel.AccountID).For("UPDATE").Scan(ctx); err != nil {
			return err
		}

		balanceBefore := accountModel.PointsBalance
		accountModel.PointsBalance -= rsvModel.Amount
		accountModel.ReservedPoints -= rsvModel.Amount

		now := time.Now()
		rsvModel.Consumed = true
		rsvModel.ConsumedAt = &now

		txModel := &models.PointsTransactionModel{
			AccountID:      rsvModel.AccountID,
			Type:           string(pkgmodels.PointsTxCommit),
			Amount:         rsvModel.Amount,
			Status:         string(pkgmodels.PointsTxStatusCompleted),
			ReservationID:  reservationID,
			JobID:          rsvModel.JobID.String(),
			IdempotencyKey: idempotencyKey,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   accountModel.PointsBalance,
		}
		if _, err := dbTx.NewInsert().Model(txModel).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(rsvModel).Column("consumed", "consumed_at").Where("id = ?", rsvID).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(accountModel).
			Column("points_balance", "reserved_points", "updated_at").
			Where("id = ?", rsvModel.AccountID).Exec(ctx); err != nil {
			return err
		}
		return nil
	}

	return r.runWithRetry(ctx, op)
}

// Refund releases a reservation's hold without debiting the account, in
// full or for the given partial amount. Idempotent.
func (r *LedgerRepository) Refund(ctx context.Context, reservationID string, partialAmount int64, idempotencyKey string) error {
	if existing, err := r.GetTransactionByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	rsvID, err := uuid.Parse(reservationID)
	if err != nil {
		return pkgmodels.ErrInvalidID
	}

	op := func(ctx context.Context, dbTx bun.Tx) error {
		rsvModel := new(models.ReservationModel)
		if err := dbTx.NewSelect().Model(rsvModel).Where("id = ?", rsvID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return pkgmodels.ErrReservationNotFound
			}
			return err
		}
		if rsvModel.Consumed {
			return pkgmodels.ErrReservationConsumed
		}

		refundAmount := rsvModel.Amount
		if partialAmount > 0 && partialAmount < refundAmount {
			refundAmount = partialAmount
		}

		accountModel := new(models.AccountModel)
		if err := dbTx.NewSelect().Model(accountModel).Where("id = ?", rsvModel.AccountID).For("UPDATE").Scan(ctx); err != nil {
			return err
		}

		balanceBefore := accountModel.PointsBalance
		accountModel.ReservedPoints -= refundAmount

		now := time.Now()
		rsvModel.Consumed = true
		rsvModel.ConsumedAt = &now

		txModel := &models.PointsTransactionModel{
			AccountID:      rsvModel.AccountID,
			Type:           string(pkgmodels.PointsTxRefund),
			Amount:         refundAmount,
			Status:         string(pkgmodels.PointsTxStatusCompleted),
			ReservationID:  reservationID,
			JobID:          rsvModel.JobID.String(),
			IdempotencyKey: idempotencyKey,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   accountModel.PointsBalance,
		}
		if _, err := dbTx.NewInsert().Model(txModel).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(rsvModel).Column("consumed", "consumed_at").Where("id = ?", rsvID).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(accountModel).
			Column("reserved_points", "updated_at").
			Where("id = ?", rsvModel.AccountID).Exec(ctx); err != nil {
			return err
		}
		return nil
	}

	return r.runWithRetry(ctx, op)
}

// RevenueCredit credits a marketplace owner's earnings balance, separate
// from their spendable points balance.
func (r *LedgerRepository) RevenueCredit(ctx context.Context, ownerAccountID string, amount int64, reference, idempotencyKey string) error {
	if existing, err := r.GetTransactionByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	accID, err := uuid.Parse(ownerAccountID)
	if err != nil {
		return pkgmodels.ErrInvalidID
	}

	op := func(ctx context.Context, dbTx bun.Tx) error {
		accountModel := new(models.AccountModel)
		if err := dbTx.NewSelect().Model(accountModel).Where("id = ?", accID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return pkgmodels.ErrAccountNotFound
			}
			return err
		}

		balanceBefore := accountModel.EarningsBalance
		accountModel.EarningsBalance += amount

		txModel := &models.PointsTransactionModel{
			AccountID:      accID,
			Type:           string(pkgmodels.PointsTxRevenueCredit),
			Amount:         amount,
			Status:         string(pkgmodels.PointsTxStatusCompleted),
			Description:    reference,
			IdempotencyKey: idempotencyKey,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   accountModel.EarningsBalance,
		}
		if _, err := dbTx.NewInsert().Model(txModel).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(accountModel).
			Column("earnings_balance", "updated_at").
			Where("id = ?", accID).Exec(ctx); err != nil {
			return err
		}
		return nil
	}

	return r.runWithRetry(ctx, op)
}

// Withdraw debits a user's earnings balance against a payout request.
// Returns ErrInsufficientEarnings if the balance cannot cover it.
func (r *LedgerRepository) Withdraw(ctx context.Context, accountID string, amount int64, payoutRef, idempotencyKey string) (*pkgmodels.Withdrawal, error) {
	if existing, err := r.GetTransactionByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return &pkgmodels.Withdrawal{
			UserID:      accountID,
			Amount:      amount,
			Status:      pkgmodels.WithdrawalStatusPending,
			PayoutRef:   payoutRef,
			RequestedAt: existing.CreatedAt,
		}, nil
	}

	accID, err := uuid.Parse(accountID)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}

	withdrawal := &pkgmodels.Withdrawal{
		UserID:    accountID,
		Amount:    amount,
		Status:    pkgmodels.WithdrawalStatusPending,
		PayoutRef: payoutRef,
	}

	op := func(ctx context.Context, dbTx bun.Tx) error {
		accountModel := new(models.AccountModel)
		if err := dbTx.NewSelect().Model(accountModel).Where("id = ?", accID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return pkgmodels.ErrAccountNotFound
			}
			return err
		}
		if amount <= 0 || accountModel.EarningsBalance < amount {
			return pkgmodels.ErrInsufficientEarnings
		}

		balanceBefore := accountModel.EarningsBalance
		accountModel.EarningsBalance -= amount

		txModel := &models.PointsTransactionModel{
			AccountID:      accID,
			Type:           string(pkgmodels.PointsTxWithdrawal),
			Amount:         amount,
			Status:         string(pkgmodels.PointsTxStatusCompleted),
			Description:    payoutRef,
			IdempotencyKey: idempotencyKey,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   accountModel.EarningsBalance,
		}
		if _, err := dbTx.NewInsert().Model(txModel).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(accountModel).
			Column("earnings_balance", "updated_at").
			Where("id = ?", accID).Exec(ctx); err != nil {
			return err
		}
		withdrawal.RequestedAt = txModel.CreatedAt
		return nil
	}

	if err := r.runWithRetry(ctx, op); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// Grant credits an account's spendable balance directly, e.g. the welcome
// grant on signup or a monthly plan renewal.
func (r *LedgerRepository) Grant(ctx context.Context, accountID string, amount int64, description, idempotencyKey string) error {
	if existing, err := r.GetTransactionByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	accID, err := uuid.Parse(accountID)
	if err != nil {
		return pkgmodels.ErrInvalidID
	}

	op := func(ctx context.Context, dbTx bun.Tx) error {
		accountModel := new(models.AccountModel)
		if err := dbTx.NewSelect().Model(accountModel).Where("id = ?", accID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return pkgmodels.ErrAccountNotFound
			}
			return err
		}

		balanceBefore := accountModel.PointsBalance
		accountModel.PointsBalance += amount

		txModel := &models.PointsTransactionModel{
			AccountID:      accID,
			Type:           string(pkgmodels.PointsTxGrant),
			Amount:         amount,
			Status:         string(pkgmodels.PointsTxStatusCompleted),
			Description:    description,
			IdempotencyKey: idempotencyKey,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   accountModel.PointsBalance,
		}
		if _, err := dbTx.NewInsert().Model(txModel).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewUpdate().Model(accountModel).
			Column("points_balance", "updated_at").
			Where("id = ?", accID).Exec(ctx); err != nil {
			return err
		}
		return nil
	}

	return r.runWithRetry(ctx, op)
}

// ResetAndIncrementDailyCounter atomically rolls a stale daily counter over
// to the given resetAt and increments it to 1, or increments the current
// counter by 1 if it is not yet stale. Used by the entitlement resolver
// after a free-tier action passes its check, per spec.md §4.2's rule that
// the reset and increment happen as one conditional update, not a
// read-then-write.
func (r *LedgerRepository) ResetAndIncrementDailyCounter(ctx context.Context, accountID string, now, nextResetAt time.Time) (int, error) {
	accID, err := uuid.Parse(accountID)
	if err != nil {
		return 0, pkgmodels.ErrInvalidID
	}

	var count int
	op := func(ctx context.Context, dbTx bun.Tx) error {
		accountModel := new(models.AccountModel)
		if err := dbTx.NewSelect().Model(accountModel).Where("id = ?", accID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return pkgmodels.ErrAccountNotFound
			}
			return err
		}
		if !now.Before(accountModel.DailyChatResetAt) {
			accountModel.DailyChatCount = 1
			accountModel.DailyChatResetAt = nextResetAt
		} else {
			accountModel.DailyChatCount++
		}
		count = accountModel.DailyChatCount
		_, err := dbTx.NewUpdate().Model(accountModel).
			Column("daily_chat_count", "daily_chat_reset_at", "updated_at").
			Where("id = ?", accID).Exec(ctx)
		return err
	}

	if err := r.runWithRetry(ctx, op); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LedgerRepository) getReservationByID(ctx context.Context, id string) (*pkgmodels.Reservation, error) {
	if id == "" {
		return nil, nil
	}
	rsvID, err := uuid.Parse(id)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}
	m := new(models.ReservationModel)
	err = r.db.NewSelect().Model(m).Where("id = ?", rsvID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return models.ToReservationDomain(m), nil
}

// runWithRetry wraps op in a single serializable transaction and retries on
// a CAS conflict (a serialization failure raised by Postgres when the
// locked-row snapshot changed underneath the transaction) up to maxRetries
// times with linear backoff. It never splits a read and a write into
// separate operations across retries: each attempt re-reads under the lock.
func (r *LedgerRepository) runWithRetry(ctx context.Context, op func(ctx context.Context, dbTx bun.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, op)
		if err == nil {
			return nil
		}
		if isTerminalLedgerError(err) {
			return err
		}
		lastErr = err
		if r.backoff > 0 {
			time.Sleep(r.backoff * time.Duration(attempt+1))
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", pkgmodels.ErrCASRetriesExhausted, lastErr)
	}
	return pkgmodels.ErrCASRetriesExhausted
}

// isTerminalLedgerError reports whether err is a domain error that should
// propagate immediately rather than be retried as a transient CAS conflict.
func isTerminalLedgerError(err error) bool {
	switch {
	case errors.Is(err, pkgmodels.ErrAccountNotFound),
		errors.Is(err, pkgmodels.ErrAccountSuspended),
		errors.Is(err, pkgmodels.ErrInsufficientBalance),
		errors.Is(err, pkgmodels.ErrInsufficientEarnings),
		errors.Is(err, pkgmodels.ErrReservationNotFound),
		errors.Is(err, pkgmodels.ErrReservationConsumed),
		errors.Is(err, pkgmodels.ErrInvalidID):
		return true
	default:
		return false
	}
}
