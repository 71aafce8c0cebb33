// Package access resolves can_access(user, artifact, intent) per spec.md
// §4.3: marketplace-free, then owner, then share grant, then purchase
// grant, first match wins.
package access

import (
	"context"
	"time"

	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// Intent names the kind of access being requested.
type Intent string

const (
	IntentView     Intent = "view"
	IntentEdit     Intent = "edit"
	IntentTakeTest Intent = "take_test"
	IntentDownload Intent = "download"
)

type artifactRepo interface {
	GetArtifactByID(ctx context.Context, id string) (*pkgmodels.Artifact, error)
}

type shareRepo interface {
	ListByArtifact(ctx context.Context, artifactID string) ([]*pkgmodels.ShareGrant, error)
	UpdateStatus(ctx context.Context, s *pkgmodels.ShareGrant) error
	ListExpirable(ctx context.Context, now time.Time) ([]*pkgmodels.ShareGrant, error)
}

type purchaseRepo interface {
	GetByBuyerAndArtifact(ctx context.Context, buyerID, artifactID string) (*pkgmodels.PurchaseGrant, error)
	IncrementViewCount(ctx context.Context, grantID string) error
}

// marketplacePricer resolves a marketplace artifact's current price, needed
// to decide whether it qualifies as a free listing viewable anonymously.
type marketplacePricer interface {
	PriceCents(ctx context.Context, artifactID string) (int64, error)
	GlobalDeadline(ctx context.Context, artifactID string) (*time.Time, error)
}

// Engine is the Access Engine.
type Engine struct {
	artifacts artifactRepo
	shares    shareRepo
	purchases purchaseRepo
	pricer    marketplacePricer
	log       *logger.Logger
}

// NewEngine constructs an access Engine.
func NewEngine(artifacts artifactRepo, shares shareRepo, purchases purchaseRepo, pricer marketplacePricer, log *logger.Logger) *Engine {
	return &Engine{artifacts: artifacts, shares: shares, purchases: purchases, pricer: pricer, log: log}
}

// CanAccess resolves access per spec.md §4.3's first-match-wins algorithm.
// userID may be empty for an anonymous caller, which can only ever match
// the free-marketplace rule.
func (e *Engine) CanAccess(ctx context.Context, userID, artifactID string, intent Intent) (bool, error) {
	artifact, err := e.artifacts.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return false, err
	}

	if intent == IntentView && artifact.Visibility == pkgmodels.VisibilityMarketplace {
		price, err := e.pricer.PriceCents(ctx, artifactID)
		if err != nil {
			return false, err
		}
		if artifact.IsFreeMarketplace(price) {
			return true, nil
		}
	}

	if userID == "" {
		return false, &pkgmodels.AccessDeniedError{ArtifactID: artifactID, AccountID: userID, Reason: "no_share"}
	}

	if artifact.OwnerUserID == userID {
		return true, nil
	}

	globalDeadline, err := e.pricer.GlobalDeadline(ctx, artifactID)
	if err != nil {
		return false, err
	}

	shares, err := e.shares.ListByArtifact(ctx, artifactID)
	if err != nil {
		return false, err
	}
	now := time.Now()
	for _, share := range shares {
		if share.ShareeID == nil || *share.ShareeID != userID {
			continue
		}
		if share.Status != pkgmodels.ShareStatusAccepted {
			continue
		}
		if share.IsExpired(now, globalDeadline) {
			share.Expire()
			_ = e.shares.UpdateStatus(ctx, share)
			return false, &pkgmodels.AccessDeniedError{ArtifactID: artifactID, AccountID: userID, Reason: "deadline_passed"}
		}
		if intent == IntentView || intent == IntentTakeTest {
			return true, nil
		}
	}

	grant, err := e.purchases.GetByBuyerAndArtifact(ctx, userID, artifactID)
	if err != nil && err != pkgmodels.ErrPurchaseNotFound {
		return false, err
	}
	if grant != nil && grant.IsActive {
		switch grant.AccessType {
		case pkgmodels.AccessTypeForever:
			if intent == IntentView || intent == IntentTakeTest {
				return true, nil
			}
		case pkgmodels.AccessTypeDownload:
			if intent == IntentDownload || intent == IntentView {
				return true, nil
			}
		case pkgmodels.AccessTypeOneTime:
			if intent == IntentView && grant.HasViewsRemaining() {
				return true, nil
			}
			if !grant.HasViewsRemaining() {
				return false, &pkgmodels.AccessDeniedError{ArtifactID: artifactID, AccountID: userID, Reason: "expired"}
			}
		}
	}

	return false, &pkgmodels.AccessDeniedError{ArtifactID: artifactID, AccountID: userID, Reason: "needs_purchase"}
}

// RecordView performs the one-time-view grant's CAS-protected side effect:
// it increments view_count on the first byte of content served. Callers
// invoke this only once CanAccess has already allowed the view; a failed
// downstream render does not refund the view, per spec.md §4.3.1.
func (e *Engine) RecordView(ctx context.Context, buyerID, artifactID string) error {
	grant, err := e.purchases.GetByBuyerAndArtifact(ctx, buyerID, artifactID)
	if err != nil {
		return err
	}
	if grant == nil || grant.AccessType != pkgmodels.AccessTypeOneTime {
		return nil
	}
	return e.purchases.IncrementViewCount(ctx, grant.ID)
}

// SweepExpiredShares marks accepted shares whose deadline has passed as
// expired. The access engine also evaluates deadlines on the read path
// (CanAccess above), so correctness does not depend on this sweep running
// on time; it only tidies up status for listing views.
func (e *Engine) SweepExpiredShares(ctx context.Context, now time.Time) (int, error) {
	expirable, err := e.shares.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, share := range expirable {
		share.Expire()
		if err := e.shares.UpdateStatus(ctx, share); err != nil {
			e.log.ErrorContext(ctx, "failed to expire share", "share_id", share.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}
