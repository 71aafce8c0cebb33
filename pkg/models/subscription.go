package models

import "time"

// SubscriptionStatus describes the lifecycle state of a subscription account.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusClosed    SubscriptionStatus = "closed"
)

// Account is a user's points ledger account: one row per user, holding the
// current spendable balance plus the amount reserved against in-flight jobs.
type Account struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	PlanID          string             `json:"plan_id"`
	Status          SubscriptionStatus `json:"status"`
	PointsBalance   int64              `json:"points_balance"`
	ReservedPoints  int64              `json:"reserved_points"`
	EarningsBalance int64              `json:"earnings_balance"`
	DailyChatCount    int       `json:"daily_chat_count"`
	DailyChatResetAt  time.Time `json:"daily_chat_reset_at"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// AvailableBalance returns the spendable balance net of outstanding reservations.
func (a *Account) AvailableBalance() int64 {
	return a.PointsBalance - a.ReservedPoints
}

// CanReserve reports whether amount can be reserved without overdrawing the account.
func (a *Account) CanReserve(amount int64) bool {
	return a.Status == SubscriptionStatusActive && amount > 0 && a.AvailableBalance() >= amount
}

// Validate validates the account structure.
func (a *Account) Validate() error {
	if a.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if a.PlanID == "" {
		return &ValidationError{Field: "plan_id", Message: "plan ID is required"}
	}
	if a.PointsBalance < 0 {
		return &ValidationError{Field: "points_balance", Message: "balance cannot be negative"}
	}
	return nil
}

// PointsTransactionType enumerates the kinds of points-ledger entries.
type PointsTransactionType string

const (
	PointsTxReserve       PointsTransactionType = "reserve"
	PointsTxCommit        PointsTransactionType = "commit"
	PointsTxRefund        PointsTransactionType = "refund"
	PointsTxGrant         PointsTransactionType = "grant"
	PointsTxRevenueCredit PointsTransactionType = "revenue_credit"
	PointsTxWithdrawal    PointsTransactionType = "withdrawal"
)

// PointsTransactionStatus mirrors the entry's position in its lifecycle.
type PointsTransactionStatus string

const (
	PointsTxStatusPending   PointsTransactionStatus = "pending"
	PointsTxStatusCompleted PointsTransactionStatus = "completed"
	PointsTxStatusReversed  PointsTransactionStatus = "reversed"
)

// PointsTransaction is one append-only ledger entry. Every balance mutation
// is recorded here; the account row is a derived running total, never the
// source of truth on its own.
type PointsTransaction struct {
	ID             string                  `json:"id"`
	AccountID      string                  `json:"account_id"`
	Type           PointsTransactionType   `json:"type"`
	Amount         int64                   `json:"amount"`
	Status         PointsTransactionStatus `json:"status"`
	ReservationID  string                  `json:"reservation_id,omitempty"`
	JobID          string                  `json:"job_id,omitempty"`
	Description    string                  `json:"description,omitempty"`
	IdempotencyKey string                  `json:"idempotency_key"`
	BalanceBefore  int64                   `json:"balance_before"`
	BalanceAfter   int64                   `json:"balance_after"`
	Metadata       map[string]any          `json:"metadata,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}

// Validate validates the points transaction structure.
func (t *PointsTransaction) Validate() error {
	if t.AccountID == "" {
		return &ValidationError{Field: "account_id", Message: "account ID is required"}
	}
	if t.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if t.IdempotencyKey == "" {
		return &ValidationError{Field: "idempotency_key", Message: "idempotency key is required"}
	}
	return nil
}

func (t *PointsTransaction) IsCompleted() bool { return t.Status == PointsTxStatusCompleted }
func (t *PointsTransaction) IsPending() bool   { return t.Status == PointsTxStatusPending }
func (t *PointsTransaction) IsReversed() bool  { return t.Status == PointsTxStatusReversed }

// Reservation represents points held against an in-flight job, pending
// commit (on success) or refund (on failure/cancellation).
type Reservation struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	JobID       string    `json:"job_id"`
	Amount      int64     `json:"amount"`
	Consumed    bool      `json:"consumed"`
	CreatedAt   time.Time `json:"created_at"`
	ConsumedAt  time.Time `json:"consumed_at,omitempty"`
}

// Plan describes a subscription tier: its monthly point grant and the
// per-resource quotas the entitlement resolver enforces against it.
type Plan struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	MonthlyPoints   int64          `json:"monthly_points"`
	PriceCents      int64          `json:"price_cents"`
	Quotas          map[string]int `json:"quotas"`
	Features        []string       `json:"features"`
	CreatedAt       time.Time      `json:"created_at"`
}

// HasFeature reports whether the plan entitles its holder to a named feature.
func (p *Plan) HasFeature(name string) bool {
	for _, f := range p.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Quota returns the configured quota for a resource key, and whether one is set.
func (p *Plan) Quota(resource string) (int, bool) {
	v, ok := p.Quotas[resource]
	return v, ok
}
