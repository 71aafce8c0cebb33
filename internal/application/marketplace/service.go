// Package marketplace implements spec.md §4.9: auto-accept sharing,
// marketplace publish with slug generation, the purchase flow, and
// earnings withdrawal.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

type artifactRepo interface {
	GetArtifactByID(ctx context.Context, id string) (*pkgmodels.Artifact, error)
	GetArtifactBySlug(ctx context.Context, slug string) (*pkgmodels.Artifact, error)
	UpdateArtifact(ctx context.Context, a *pkgmodels.Artifact) error
	GetTest(ctx context.Context, artifactID string) (*pkgmodels.Test, error)
	GetBook(ctx context.Context, artifactID string) (*pkgmodels.Book, error)
}

type shareRepo interface {
	Create(ctx context.Context, s *pkgmodels.ShareGrant) error
}

type purchaseRepo interface {
	GetByBuyerAndArtifact(ctx context.Context, buyerID, artifactID string) (*pkgmodels.PurchaseGrant, error)
	Create(ctx context.Context, p *pkgmodels.PurchaseGrant) error
	ListWithdrawalsByUser(ctx context.Context, userID string) ([]*pkgmodels.Withdrawal, error)
}

type ledgerService interface {
	CreditSale(ctx context.Context, ownerAccountID, purchaseID string, ownerReward int64) error
	ChargePurchase(ctx context.Context, buyerAccountID, purchaseID string, amount int64) (*pkgmodels.Reservation, error)
	Commit(ctx context.Context, reservationID, jobID string) error
	Withdraw(ctx context.Context, accountID string, amount int64, payoutRef string) (*pkgmodels.Withdrawal, error)
}

// payoutGateway requests a payout reference from the external merchant
// gateway, satisfied by payout.Gateway.
type payoutGateway interface {
	CreatePayout(ctx context.Context, accountID string, amount int64) (string, error)
	IsAvailable() bool
}

// Service implements the sharing and marketplace workflows.
type Service struct {
	artifacts artifactRepo
	shares    shareRepo
	purchases purchaseRepo
	ledger    ledgerService
	gateway   payoutGateway
	log       *logger.Logger
}

// New constructs a Service.
func New(artifacts artifactRepo, shares shareRepo, purchases purchaseRepo, ledgerSvc ledgerService, log *logger.Logger) *Service {
	return &Service{artifacts: artifacts, shares: shares, purchases: purchases, ledger: ledgerSvc, log: log}
}

// WithPayoutGateway attaches the merchant payout gateway client, returning
// the Service for chaining at construction time. Without one attached,
// RequestWithdrawal falls back to an empty payout reference, same as
// before this gateway existed.
func (s *Service) WithPayoutGateway(g payoutGateway) *Service {
	s.gateway = g
	return s
}

// ShareArtifact creates an auto-accepted share grant, per spec.md §4.9:
// there is no pending/accept step, the grant is live from creation.
func (s *Service) ShareArtifact(ctx context.Context, ownerID, artifactID, shareeEmail string, deadline *time.Time, message string) (*pkgmodels.ShareGrant, error) {
	artifact, err := s.artifacts.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact.OwnerUserID != ownerID {
		return nil, &pkgmodels.AccessDeniedError{ArtifactID: artifactID, AccountID: ownerID, Reason: "not_owner"}
	}
	grant := &pkgmodels.ShareGrant{
		ArtifactID:  artifactID,
		OwnerID:     ownerID,
		ShareeEmail: shareeEmail,
		Status:      pkgmodels.ShareStatusAccepted,
		Deadline:    deadline,
		Message:     message,
		AcceptedAt:  time.Now(),
	}
	if err := grant.Validate(); err != nil {
		return nil, err
	}
	if err := s.shares.Create(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// Publish assigns a unique slug and marks an artifact as a published
// marketplace listing, generating the slug from the title when the owner
// doesn't request a specific one.
func (s *Service) Publish(ctx context.Context, artifactID, requestedSlug string) (*pkgmodels.Artifact, error) {
	artifact, err := s.artifacts.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	base := requestedSlug
	if base == "" {
		base = artifact.Title
	}
	slug, err := s.uniqueSlug(ctx, base)
	if err != nil {
		return nil, err
	}

	artifact.Slug = slug
	artifact.Visibility = pkgmodels.VisibilityMarketplace
	artifact.Status = pkgmodels.ArtifactStatusPublished
	if err := s.artifacts.UpdateArtifact(ctx, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// uniqueSlug transliterates a title into a URL slug and appends a numeric
// suffix until it finds one not already taken.
func (s *Service) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slugify(title)
	if base == "" {
		base = "listing"
	}
	candidate := base
	for i := 1; ; i++ {
		_, err := s.artifacts.GetArtifactBySlug(ctx, candidate)
		if errors.Is(err, pkgmodels.ErrArtifactNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
		if i > 1000 {
			return "", pkgmodels.ErrSlugTaken
		}
	}
}

// slugify strips diacritics via Unicode NFD decomposition (so accented
// titles produce plain-ASCII slugs) and lowercases/hyphenates the result.
func slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, title)
	if err != nil {
		ascii = title
	}
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(ascii) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// priceForArtifact resolves a kind's marketplace viewing price, for the
// access engine's free-marketplace check and for Purchase's charge amount.
func (s *Service) priceForArtifact(ctx context.Context, artifact *pkgmodels.Artifact) (int64, error) {
	switch artifact.Kind {
	case pkgmodels.ArtifactKindTest:
		test, err := s.artifacts.GetTest(ctx, artifact.ID)
		if err != nil {
			return 0, err
		}
		if test.MarketplaceConfig == nil {
			return 0, nil
		}
		return test.MarketplaceConfig.PriceCents, nil
	case pkgmodels.ArtifactKindBook:
		book, err := s.artifacts.GetBook(ctx, artifact.ID)
		if err != nil {
			return 0, err
		}
		return book.AccessConfig.ForeverViewPoints, nil
	default:
		return 0, nil
	}
}

// PriceCents implements the access engine's marketplacePricer interface.
func (s *Service) PriceCents(ctx context.Context, artifactID string) (int64, error) {
	artifact, err := s.artifacts.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return 0, err
	}
	return s.priceForArtifact(ctx, artifact)
}

// GlobalDeadline implements the access engine's marketplacePricer
// interface: only tests carry an artifact-wide deadline.
func (s *Service) GlobalDeadline(ctx context.Context, artifactID string) (*time.Time, error) {
	artifact, err := s.artifacts.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact.Kind != pkgmodels.ArtifactKindTest {
		return nil, nil
	}
	test, err := s.artifacts.GetTest(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	return test.Deadline, nil
}

// Purchase charges the buyer the artifact's marketplace price, grants
// access, and credits the owner their revenue split, per spec.md §4.9's
// purchase flow steps 1-6.
func (s *Service) Purchase(ctx context.Context, buyerID, artifactID string, accessType pkgmodels.AccessType) (*pkgmodels.PurchaseGrant, error) {
	artifact, err := s.artifacts.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact.Visibility != pkgmodels.VisibilityMarketplace || artifact.Status != pkgmodels.ArtifactStatusPublished {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	existing, err := s.purchases.GetByBuyerAndArtifact(ctx, buyerID, artifactID)
	if err != nil && !errors.Is(err, pkgmodels.ErrPurchaseNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsActive {
		return existing, nil
	}

	price, err := s.priceForArtifact(ctx, artifact)
	if err != nil {
		return nil, err
	}

	grant := pkgmodels.NewPurchaseGrant(artifactID, buyerID, accessType, price, time.Now())
	if err := grant.Validate(); err != nil {
		return nil, err
	}

	if price > 0 {
		purchaseKey := "purchase:" + artifactID + ":" + buyerID
		reservation, err := s.ledger.ChargePurchase(ctx, buyerID, purchaseKey, price)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Commit(ctx, reservation.ID, purchaseKey); err != nil {
			return nil, err
		}
	}

	if err := s.purchases.Create(ctx, grant); err != nil {
		return nil, err
	}

	if grant.OwnerReward > 0 {
		if err := s.ledger.CreditSale(ctx, artifact.OwnerUserID, grant.ID, grant.OwnerReward); err != nil {
			s.log.ErrorContext(ctx, "revenue credit failed after purchase", "purchase_id", grant.ID, "error", err)
		}
	}

	return grant, nil
}

// RequestWithdrawal submits an earnings payout request, debiting the
// earnings balance immediately. If a payout gateway is configured, it
// requests a payout reference synchronously; otherwise the withdrawal is
// recorded with an empty reference for later out-of-band reconciliation.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount int64) (*pkgmodels.Withdrawal, error) {
	payoutRef := ""
	if s.gateway != nil && s.gateway.IsAvailable() {
		ref, err := s.gateway.CreatePayout(ctx, userID, amount)
		if err != nil {
			s.log.ErrorContext(ctx, "merchant gateway payout request failed, recording withdrawal without a reference", "account_id", userID, "error", err)
		} else {
			payoutRef = ref
		}
	}
	return s.ledger.Withdraw(ctx, userID, amount, payoutRef)
}

// ListWithdrawals lists a user's withdrawal history.
func (s *Service) ListWithdrawals(ctx context.Context, userID string) ([]*pkgmodels.Withdrawal, error) {
	return s.purchases.ListWithdrawalsByUser(ctx, userID)
}
