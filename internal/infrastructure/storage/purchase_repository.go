package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/aidocs/platform/internal/infrastructure/storage/models"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// PurchaseRepository persists marketplace purchase grants and earnings
// withdrawal requests.
type PurchaseRepository struct {
	db bun.IDB
}

// NewPurchaseRepository constructs a PurchaseRepository.
func NewPurchaseRepository(db bun.IDB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create inserts a new purchase grant.
func (r *PurchaseRepository) Create(ctx context.Context, p *pkgmodels.PurchaseGrant) error {
	m, err := models.FromPurchaseGrantDomain(p)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert purchase grant: %w", err)
	}
	p.ID = m.ID.String()
	p.PurchasedAt = m.PurchasedAt
	return nil
}

// GetByBuyerAndArtifact fetches a buyer's active grant on an artifact, if any.
func (r *PurchaseRepository) GetByBuyerAndArtifact(ctx context.Context, buyerID, artifactID string) (*pkgmodels.PurchaseGrant, error) {
	bid, err := parseUUID(buyerID)
	if err != nil {
		return nil, err
	}
	aid, err := parseUUID(artifactID)
	if err != nil {
		return nil, err
	}
	m := new(models.PurchaseGrantModel)
	err = r.db.NewSelect().Model(m).
		Where("buyer_id = ? AND artifact_id = ? AND is_active = true", bid, aid).
		Order("purchased_at DESC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase grant: %w", err)
	}
	return models.ToPurchaseGrantDomain(m), nil
}

// IncrementViewCount atomically increments a one-time grant's view count
// and deactivates it once its views are exhausted, in a single statement so
// concurrent view attempts cannot both succeed past MaxViews.
func (r *PurchaseRepository) IncrementViewCount(ctx context.Context, grantID string) error {
	gid, err := parseUUID(grantID)
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model((*models.PurchaseGrantModel)(nil)).
		Set("view_count = view_count + 1").
		Set("is_active = (max_views = 0 OR view_count + 1 < max_views)").
		Where("id = ? AND is_active = true AND (max_views = 0 OR view_count < max_views)", gid).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pkgmodels.ErrOneTimeViewConsumed
	}
	return nil
}

// ListByBuyer lists a buyer's active purchase grants.
func (r *PurchaseRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*pkgmodels.PurchaseGrant, error) {
	bid, err := parseUUID(buyerID)
	if err != nil {
		return nil, err
	}
	var rows []models.PurchaseGrantModel
	err = r.db.NewSelect().Model(&rows).
		Where("buyer_id = ? AND is_active = true", bid).
		Order("purchased_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list purchase grants: %w", err)
	}
	out := make([]*pkgmodels.PurchaseGrant, len(rows))
	for i := range rows {
		out[i] = models.ToPurchaseGrantDomain(&rows[i])
	}
	return out, nil
}

// CreateWithdrawal inserts a new withdrawal request.
func (r *PurchaseRepository) CreateWithdrawal(ctx context.Context, w *pkgmodels.Withdrawal) error {
	m, err := models.FromWithdrawalDomain(w)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	w.ID = m.ID.String()
	w.RequestedAt = m.RequestedAt
	return nil
}

// ResolveWithdrawal marks a pending withdrawal paid or rejected.
func (r *PurchaseRepository) ResolveWithdrawal(ctx context.Context, w *pkgmodels.Withdrawal) error {
	m, err := models.FromWithdrawalDomain(w)
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(m).
		Column("status", "payout_ref", "resolved_at").
		Where("id = ? AND status = ?", m.ID, string(pkgmodels.WithdrawalStatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("resolve withdrawal: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pkgmodels.ErrWithdrawalNotPending
	}
	return nil
}

// ListWithdrawalsByUser lists a user's withdrawal requests, newest first.
func (r *PurchaseRepository) ListWithdrawalsByUser(ctx context.Context, userID string) ([]*pkgmodels.Withdrawal, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return nil, err
	}
	var rows []models.WithdrawalModel
	err = r.db.NewSelect().Model(&rows).Where("user_id = ?", uid).Order("requested_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	out := make([]*pkgmodels.Withdrawal, len(rows))
	for i := range rows {
		out[i] = models.ToWithdrawalDomain(&rows[i])
	}
	return out, nil
}

// PlanRepository persists subscription plan definitions.
type PlanRepository struct {
	db bun.IDB
}

// NewPlanRepository constructs a PlanRepository.
func NewPlanRepository(db bun.IDB) *PlanRepository {
	return &PlanRepository{db: db}
}

// GetByID fetches a plan by ID.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*pkgmodels.Plan, error) {
	m := new(models.PlanModel)
	err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return models.ToPlanDomain(m), nil
}

// List lists every defined plan.
func (r *PlanRepository) List(ctx context.Context) ([]*pkgmodels.Plan, error) {
	var rows []models.PlanModel
	if err := r.db.NewSelect().Model(&rows).Order("price_cents ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	out := make([]*pkgmodels.Plan, len(rows))
	for i := range rows {
		out[i] = models.ToPlanDomain(&rows[i])
	}
	return out, nil
}
