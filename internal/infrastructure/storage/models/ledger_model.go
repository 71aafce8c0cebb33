package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// AccountModel is the bun row for one user's points ledger account.
type AccountModel struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID              uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID          uuid.UUID `bun:"user_id,notnull,unique"`
	PlanID          string    `bun:"plan_id,notnull"`
	Status          string    `bun:"status,notnull"`
	PointsBalance   int64     `bun:"points_balance,notnull,default:0"`
	ReservedPoints  int64     `bun:"reserved_points,notnull,default:0"`
	EarningsBalance int64     `bun:"earnings_balance,notnull,default:0"`
	DailyChatCount    int       `bun:"daily_chat_count,notnull,default:0"`
	DailyChatResetAt  time.Time `bun:"daily_chat_reset_at,notnull,default:current_timestamp"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (a *AccountModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (a *AccountModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	a.UpdatedAt = time.Now()
	return nil
}

// ReservationModel backs a points hold against an in-flight job.
type ReservationModel struct {
	bun.BaseModel `bun:"table:reservations,alias:rsv"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	AccountID  uuid.UUID  `bun:"account_id,notnull"`
	JobID      uuid.UUID  `bun:"job_id,notnull"`
	Amount     int64      `bun:"amount,notnull"`
	Consumed   bool       `bun:"consumed,notnull,default:false"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	ConsumedAt *time.Time `bun:"consumed_at"`
}

func (r *ReservationModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	return nil
}

// PointsTransactionModel is the append-only ledger entry row.
type PointsTransactionModel struct {
	bun.BaseModel `bun:"table:points_transactions,alias:ptx"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	AccountID      uuid.UUID `bun:"account_id,notnull"`
	Type           string    `bun:"type,notnull"`
	Amount         int64     `bun:"amount,notnull"`
	Status         string    `bun:"status,notnull"`
	ReservationID  string    `bun:"reservation_id"`
	JobID          string    `bun:"job_id"`
	Description    string    `bun:"description"`
	IdempotencyKey string    `bun:"idempotency_key,notnull,unique"`
	BalanceBefore  int64     `bun:"balance_before,notnull"`
	BalanceAfter   int64     `bun:"balance_after,notnull"`
	Metadata       JSONBMap  `bun:"metadata,type:jsonb"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`

	Account *AccountModel `bun:"rel:belongs-to,join:account_id=id"`
}

func (t *PointsTransactionModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	return nil
}

// PlanModel backs a subscription tier definition.
type PlanModel struct {
	bun.BaseModel `bun:"table:plans,alias:pln"`

	ID            string    `bun:"id,pk"`
	Name          string    `bun:"name,notnull"`
	MonthlyPoints int64     `bun:"monthly_points,notnull"`
	PriceCents    int64     `bun:"price_cents,notnull"`
	Quotas        JSONBMap  `bun:"quotas,type:jsonb"`
	Features      StringArray `bun:"features,type:text[]"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToAccountDomain converts a bun row to the domain Account.
func ToAccountDomain(m *AccountModel) *pkgmodels.Account {
	return &pkgmodels.Account{
		ID:              m.ID.String(),
		UserID:          m.UserID.String(),
		PlanID:          m.PlanID,
		Status:          pkgmodels.SubscriptionStatus(m.Status),
		PointsBalance:   m.PointsBalance,
		ReservedPoints:  m.ReservedPoints,
		EarningsBalance: m.EarningsBalance,
		DailyChatCount:    m.DailyChatCount,
		DailyChatResetAt:  m.DailyChatResetAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// FromAccountDomain converts a domain Account to its bun row. The ID field
// is parsed if non-empty; a blank ID is left nil for BeforeInsert to assign.
func FromAccountDomain(a *pkgmodels.Account) (*AccountModel, error) {
	m := &AccountModel{
		PlanID:          a.PlanID,
		Status:          string(a.Status),
		PointsBalance:   a.PointsBalance,
		ReservedPoints:  a.ReservedPoints,
		EarningsBalance: a.EarningsBalance,
		DailyChatCount:    a.DailyChatCount,
		DailyChatResetAt:  a.DailyChatResetAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.ID != "" {
		id, err := uuid.Parse(a.ID)
		if err != nil {
			return nil, fmt.Errorf("parse account id: %w", err)
		}
		m.ID = id
	}
	userID, err := uuid.Parse(a.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	m.UserID = userID
	return m, nil
}

// ToTransactionDomain converts a bun row to the domain PointsTransaction.
func ToTransactionDomain(m *PointsTransactionModel) *pkgmodels.PointsTransaction {
	return &pkgmodels.PointsTransaction{
		ID:             m.ID.String(),
		AccountID:      m.AccountID.String(),
		Type:           pkgmodels.PointsTransactionType(m.Type),
		Amount:         m.Amount,
		Status:         pkgmodels.PointsTransactionStatus(m.Status),
		ReservationID:  m.ReservationID,
		JobID:          m.JobID,
		Description:    m.Description,
		IdempotencyKey: m.IdempotencyKey,
		BalanceBefore:  m.BalanceBefore,
		BalanceAfter:   m.BalanceAfter,
		Metadata:       map[string]any(m.Metadata),
		CreatedAt:      m.CreatedAt,
	}
}

// FromTransactionDomain converts a domain PointsTransaction to its bun row.
func FromTransactionDomain(t *pkgmodels.PointsTransaction) (*PointsTransactionModel, error) {
	m := &PointsTransactionModel{
		Type:           string(t.Type),
		Amount:         t.Amount,
		Status:         string(t.Status),
		ReservationID:  t.ReservationID,
		JobID:          t.JobID,
		Description:    t.Description,
		IdempotencyKey: t.IdempotencyKey,
		BalanceBefore:  t.BalanceBefore,
		BalanceAfter:   t.BalanceAfter,
		Metadata:       JSONBMap(t.Metadata),
		CreatedAt:      t.CreatedAt,
	}
	if t.ID != "" {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			return nil, fmt.Errorf("parse transaction id: %w", err)
		}
		m.ID = id
	}
	accountID, err := uuid.Parse(t.AccountID)
	if err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	m.AccountID = accountID
	return m, nil
}

// ToReservationDomain converts a bun row to the domain Reservation.
func ToReservationDomain(m *ReservationModel) *pkgmodels.Reservation {
	r := &pkgmodels.Reservation{
		ID:        m.ID.String(),
		AccountID: m.AccountID.String(),
		JobID:     m.JobID.String(),
		Amount:    m.Amount,
		Consumed:  m.Consumed,
		CreatedAt: m.CreatedAt,
	}
	if m.ConsumedAt != nil {
		r.ConsumedAt = *m.ConsumedAt
	}
	return r
}

// FromReservationDomain converts a domain Reservation to its bun row.
func FromReservationDomain(r *pkgmodels.Reservation) (*ReservationModel, error) {
	m := &ReservationModel{
		Amount:    r.Amount,
		Consumed:  r.Consumed,
		CreatedAt: r.CreatedAt,
	}
	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse reservation id: %w", err)
		}
		m.ID = id
	}
	accountID, err := uuid.Parse(r.AccountID)
	if err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	m.AccountID = accountID
	jobID, err := uuid.Parse(r.JobID)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	m.JobID = jobID
	if !r.ConsumedAt.IsZero() {
		m.ConsumedAt = &r.ConsumedAt
	}
	return m, nil
}

// ToPlanDomain converts a bun row to the domain Plan.
func ToPlanDomain(m *PlanModel) *pkgmodels.Plan {
	quotas := make(map[string]int, len(m.Quotas))
	for k, v := range m.Quotas {
		switch n := v.(type) {
		case int:
			quotas[k] = n
		case int64:
			quotas[k] = int(n)
		case float64:
			quotas[k] = int(n)
		}
	}
	return &pkgmodels.Plan{
		ID:            m.ID,
		Name:          m.Name,
		MonthlyPoints: m.MonthlyPoints,
		PriceCents:    m.PriceCents,
		Quotas:        quotas,
		Features:      []string(m.Features),
		CreatedAt:     m.CreatedAt,
	}
}

// FromPlanDomain converts a domain Plan to its bun row.
func FromPlanDomain(p *pkgmodels.Plan) *PlanModel {
	quotas := make(JSONBMap, len(p.Quotas))
	for k, v := range p.Quotas {
		quotas[k] = v
	}
	return &PlanModel{
		ID:            p.ID,
		Name:          p.Name,
		MonthlyPoints: p.MonthlyPoints,
		PriceCents:    p.PriceCents,
		Quotas:        quotas,
		Features:      StringArray(p.Features),
		CreatedAt:     p.CreatedAt,
	}
}
