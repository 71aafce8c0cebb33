package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// ShareGrantModel is the bun row for an auto-accepted share invitation.
type ShareGrantModel struct {
	bun.BaseModel `bun:"table:share_grants,alias:shg"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ArtifactID  uuid.UUID  `bun:"artifact_id,notnull"`
	OwnerID     uuid.UUID  `bun:"owner_id,notnull"`
	ShareeEmail string     `bun:"sharee_email,notnull"`
	ShareeID    *uuid.UUID `bun:"sharee_id"`
	Status      string     `bun:"status,notnull"`
	Deadline    *time.Time `bun:"deadline"`
	Message     string     `bun:"message"`
	AcceptedAt  time.Time  `bun:"accepted_at,notnull,default:current_timestamp"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func (m *ShareGrantModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.CreatedAt = now
	m.AcceptedAt = now
	return nil
}

// ToShareGrantDomain converts a bun row to the domain ShareGrant.
func ToShareGrantDomain(m *ShareGrantModel) *pkgmodels.ShareGrant {
	s := &pkgmodels.ShareGrant{
		ID:          m.ID.String(),
		ArtifactID:  m.ArtifactID.String(),
		OwnerID:     m.OwnerID.String(),
		ShareeEmail: m.ShareeEmail,
		Status:      pkgmodels.ShareStatus(m.Status),
		Deadline:    m.Deadline,
		Message:     m.Message,
		AcceptedAt:  m.AcceptedAt,
		CreatedAt:   m.CreatedAt,
	}
	if m.ShareeID != nil {
		id := m.ShareeID.String()
		s.ShareeID = &id
	}
	return s
}

// FromShareGrantDomain converts a domain ShareGrant to its bun row.
func FromShareGrantDomain(s *pkgmodels.ShareGrant) (*ShareGrantModel, error) {
	artifactID, err := uuid.Parse(s.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("parse artifact id: %w", err)
	}
	ownerID, err := uuid.Parse(s.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}
	m := &ShareGrantModel{
		ArtifactID:  artifactID,
		OwnerID:     ownerID,
		ShareeEmail: s.ShareeEmail,
		Status:      string(s.Status),
		Deadline:    s.Deadline,
		Message:     s.Message,
		AcceptedAt:  s.AcceptedAt,
		CreatedAt:   s.CreatedAt,
	}
	if s.ID != "" {
		id, err := uuid.Parse(s.ID)
		if err != nil {
			return nil, fmt.Errorf("parse share id: %w", err)
		}
		m.ID = id
	}
	if s.ShareeID != nil && *s.ShareeID != "" {
		shareeID, err := uuid.Parse(*s.ShareeID)
		if err != nil {
			return nil, fmt.Errorf("parse sharee id: %w", err)
		}
		m.ShareeID = &shareeID
	}
	return m, nil
}

// PurchaseGrantModel is the bun row for a paid access record.
type PurchaseGrantModel struct {
	bun.BaseModel `bun:"table:purchase_grants,alias:pg"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ArtifactID  uuid.UUID `bun:"artifact_id,notnull"`
	BuyerID     uuid.UUID `bun:"buyer_id,notnull"`
	AccessType  string    `bun:"access_type,notnull"`
	PointsPaid  int64     `bun:"points_paid,notnull"`
	OwnerReward int64     `bun:"owner_reward,notnull"`
	PlatformFee int64     `bun:"platform_fee,notnull"`
	ViewCount   int       `bun:"view_count,notnull,default:0"`
	MaxViews    int       `bun:"max_views,notnull,default:0"`
	IsActive    bool      `bun:"is_active,notnull,default:true"`
	PurchasedAt time.Time `bun:"purchased_at,notnull,default:current_timestamp"`
}

func (m *PurchaseGrantModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.PurchasedAt = time.Now()
	return nil
}

// ToPurchaseGrantDomain converts a bun row to the domain PurchaseGrant.
func ToPurchaseGrantDomain(m *PurchaseGrantModel) *pkgmodels.PurchaseGrant {
	return &pkgmodels.PurchaseGrant{
		ID:          m.ID.String(),
		ArtifactID:  m.ArtifactID.String(),
		BuyerID:     m.BuyerID.String(),
		AccessType:  pkgmodels.AccessType(m.AccessType),
		PointsPaid:  m.PointsPaid,
		OwnerReward: m.OwnerReward,
		PlatformFee: m.PlatformFee,
		ViewCount:   m.ViewCount,
		MaxViews:    m.MaxViews,
		IsActive:    m.IsActive,
		PurchasedAt: m.PurchasedAt,
	}
}

// FromPurchaseGrantDomain converts a domain PurchaseGrant to its bun row.
func FromPurchaseGrantDomain(p *pkgmodels.PurchaseGrant) (*PurchaseGrantModel, error) {
	artifactID, err := uuid.Parse(p.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("parse artifact id: %w", err)
	}
	buyerID, err := uuid.Parse(p.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("parse buyer id: %w", err)
	}
	m := &PurchaseGrantModel{
		ArtifactID:  artifactID,
		BuyerID:     buyerID,
		AccessType:  string(p.AccessType),
		PointsPaid:  p.PointsPaid,
		OwnerReward: p.OwnerReward,
		PlatformFee: p.PlatformFee,
		ViewCount:   p.ViewCount,
		MaxViews:    p.MaxViews,
		IsActive:    p.IsActive,
		PurchasedAt: p.PurchasedAt,
	}
	if p.ID != "" {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("parse purchase id: %w", err)
		}
		m.ID = id
	}
	return m, nil
}

// WithdrawalModel is the bun row for an earnings withdrawal request.
type WithdrawalModel struct {
	bun.BaseModel `bun:"table:withdrawals,alias:wd"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID      uuid.UUID  `bun:"user_id,notnull"`
	Amount      int64      `bun:"amount,notnull"`
	Status      string     `bun:"status,notnull"`
	PayoutRef   string     `bun:"payout_ref"`
	RequestedAt time.Time  `bun:"requested_at,notnull,default:current_timestamp"`
	ResolvedAt  *time.Time `bun:"resolved_at"`
}

func (m *WithdrawalModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.RequestedAt = time.Now()
	return nil
}

// ToWithdrawalDomain converts a bun row to the domain Withdrawal.
func ToWithdrawalDomain(m *WithdrawalModel) *pkgmodels.Withdrawal {
	return &pkgmodels.Withdrawal{
		ID:          m.ID.String(),
		UserID:      m.UserID.String(),
		Amount:      m.Amount,
		Status:      pkgmodels.WithdrawalStatus(m.Status),
		PayoutRef:   m.PayoutRef,
		RequestedAt: m.RequestedAt,
		ResolvedAt:  m.ResolvedAt,
	}
}

// FromWithdrawalDomain converts a domain Withdrawal to its bun row.
func FromWithdrawalDomain(w *pkgmodels.Withdrawal) (*WithdrawalModel, error) {
	userID, err := uuid.Parse(w.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	m := &WithdrawalModel{
		UserID:      userID,
		Amount:      w.Amount,
		Status:      string(w.Status),
		PayoutRef:   w.PayoutRef,
		RequestedAt: w.RequestedAt,
		ResolvedAt:  w.ResolvedAt,
	}
	if w.ID != "" {
		id, err := uuid.Parse(w.ID)
		if err != nil {
			return nil, fmt.Errorf("parse withdrawal id: %w", err)
		}
		m.ID = id
	}
	return m, nil
}
