package models

import "time"

// AccessType enumerates how a purchase grant admits its buyer to content.
type AccessType string

const (
	AccessTypeOneTime AccessType = "one_time"
	AccessTypeForever AccessType = "forever"
	AccessTypeDownload AccessType = "download"
)

// RevenueSplitNumerator/Denominator is the system-wide owner/platform split:
// owner keeps 80%, the platform keeps 20%.
const (
	RevenueSplitNumerator   = 80
	RevenueSplitDenominator = 100
)

// SplitRevenue computes the owner reward and platform fee for a purchase of
// the given price, by floor division, and satisfies
// ownerReward + platformFee == price.
func SplitRevenue(priceCents int64) (ownerReward, platformFee int64) {
	ownerReward = (priceCents * RevenueSplitNumerator) / RevenueSplitDenominator
	platformFee = priceCents - ownerReward
	return ownerReward, platformFee
}

// PurchaseGrant is a paid access record.
type PurchaseGrant struct {
	ID           string     `json:"id"`
	ArtifactID   string     `json:"artifact_id"`
	BuyerID      string     `json:"buyer_id"`
	AccessType   AccessType `json:"access_type"`
	PointsPaid   int64      `json:"points_paid"`
	OwnerReward  int64      `json:"owner_reward"`
	PlatformFee  int64      `json:"platform_fee"`
	ViewCount    int        `json:"view_count"`
	MaxViews     int        `json:"max_views"` // 1 for one_time, 0 means unlimited
	IsActive     bool       `json:"is_active"`
	PurchasedAt  time.Time  `json:"purchased_at"`
}

// Validate validates the purchase grant's accounting invariant.
func (p *PurchaseGrant) Validate() error {
	if p.ArtifactID == "" {
		return &ValidationError{Field: "artifact_id", Message: "artifact ID is required"}
	}
	if p.BuyerID == "" {
		return &ValidationError{Field: "buyer_id", Message: "buyer ID is required"}
	}
	if p.OwnerReward+p.PlatformFee != p.PointsPaid {
		return &ValidationError{Field: "owner_reward", Message: "owner_reward + platform_fee must equal points_paid"}
	}
	return nil
}

// NewPurchaseGrant constructs a grant with max_views and the revenue split
// derived from access type and price.
func NewPurchaseGrant(artifactID, buyerID string, accessType AccessType, priceCents int64, now time.Time) *PurchaseGrant {
	ownerReward, platformFee := SplitRevenue(priceCents)
	maxViews := 0
	if accessType == AccessTypeOneTime {
		maxViews = 1
	}
	return &PurchaseGrant{
		ArtifactID:  artifactID,
		BuyerID:     buyerID,
		AccessType:  accessType,
		PointsPaid:  priceCents,
		OwnerReward: ownerReward,
		PlatformFee: platformFee,
		MaxViews:    maxViews,
		IsActive:    true,
		PurchasedAt: now,
	}
}

// HasViewsRemaining reports whether a one-time grant still admits a view.
// Forever/download grants (MaxViews == 0) always have views remaining.
func (p *PurchaseGrant) HasViewsRemaining() bool {
	if p.MaxViews == 0 {
		return true
	}
	return p.ViewCount < p.MaxViews
}

// WithdrawalStatus tracks an earnings withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusPaid     WithdrawalStatus = "paid"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Withdrawal is a request to cash out earnings points via the external
// merchant payout gateway.
type Withdrawal struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Amount      int64            `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	PayoutRef   string           `json:"payout_ref,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// Validate validates the withdrawal request.
func (w *Withdrawal) Validate() error {
	if w.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if w.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	return nil
}
