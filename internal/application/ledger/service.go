// Package ledger is the thin application service sitting in front of the
// points ledger repository: it owns the pricing map and translates named
// actions into reserve/commit/refund/revenue_credit/withdraw calls, so
// callers never hardcode a point amount.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aidocs/platform/internal/config"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	"github.com/aidocs/platform/internal/observability"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// Action identifies a priced unit of work.
type Action string

const (
	ActionChatDefaultLLM Action = "chat_default_llm"
	ActionChatOtherLLM   Action = "chat_other_llm"
	ActionDocEdit        Action = "doc_edit"
	ActionDocTranslate   Action = "doc_translate"
	ActionDocFormat      Action = "doc_format"
	ActionDocBilingual   Action = "doc_bilingual"
	ActionImageGenerate  Action = "image_generate"
	ActionSlideFormat    Action = "slide_format"
	ActionSlideEdit      Action = "slide_edit"
	ActionSlideChunk     Action = "slide_chunk" // priced per <=10-slide chunk
	ActionAudioNarration Action = "audio_narration" // priced per slide
	ActionTestEvaluate   Action = "test_evaluate"
	ActionPDFImport      Action = "pdf_import" // quota-only, zero points
	ActionRawUpload      Action = "raw_upload" // quota-only, zero points
)

// pricing is the points cost per unit for each action, per spec.md §4.1.
var pricing = map[Action]int64{
	ActionChatDefaultLLM: 1,
	ActionChatOtherLLM:   2,
	ActionDocEdit:        2,
	ActionDocTranslate:   2,
	ActionDocFormat:      2,
	ActionDocBilingual:   2,
	ActionImageGenerate:  2,
	ActionSlideFormat:    2,
	ActionSlideEdit:      2,
	ActionSlideChunk:     5,
	ActionAudioNarration: 2,
	ActionTestEvaluate:   1,
	ActionPDFImport:      0,
	ActionRawUpload:      0,
}

// PriceOf returns the per-unit points cost of an action.
func PriceOf(action Action) int64 {
	return pricing[action]
}

// repository is the storage-layer contract this service depends on, so it
// can be swapped for a test double without importing the storage package.
type repository interface {
	CreateAccount(ctx context.Context, account *pkgmodels.Account) error
	GetAccountByID(ctx context.Context, id string) (*pkgmodels.Account, error)
	GetAccountByUserID(ctx context.Context, userID string) (*pkgmodels.Account, error)
	Reserve(ctx context.Context, accountID, jobID string, amount int64, idempotencyKey, description string) (*pkgmodels.Reservation, error)
	Commit(ctx context.Context, reservationID, idempotencyKey string) error
	Refund(ctx context.Context, reservationID string, partialAmount int64, idempotencyKey string) error
	RevenueCredit(ctx context.Context, ownerAccountID string, amount int64, reference, idempotencyKey string) error
	Withdraw(ctx context.Context, accountID string, amount int64, payoutRef, idempotencyKey string) (*pkgmodels.Withdrawal, error)
	Grant(ctx context.Context, accountID string, amount int64, description, idempotencyKey string) error
}

// Service is the application-layer points ledger facade.
type Service struct {
	repo    repository
	log     *logger.Logger
	cfg     config.LedgerConfig
	metrics *observability.Metrics
}

// NewService constructs a ledger Service.
func NewService(repo repository, log *logger.Logger, cfg config.LedgerConfig) *Service {
	return &Service{repo: repo, log: log, cfg: cfg}
}

// WithMetrics attaches a Prometheus metrics sink, returning the Service for
// chaining at construction time.
func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordLedgerOp(operation, outcome, time.Since(start).Seconds())
}

// OpenAccount creates a new subscription account for a user, seeded with the
// configured welcome points grant.
func (s *Service) OpenAccount(ctx context.Context, userID, planID string) (*pkgmodels.Account, error) {
	account := &pkgmodels.Account{
		UserID:        userID,
		PlanID:        planID,
		Status:        pkgmodels.SubscriptionStatusActive,
		PointsBalance: 0,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}
	if s.cfg.WelcomePoints > 0 {
		key := "welcome:" + account.ID
		if err := s.repo.Grant(ctx, account.ID, s.cfg.WelcomePoints, "welcome grant", key); err != nil {
			return nil, fmt.Errorf("welcome grant: %w", err)
		}
		account.PointsBalance += s.cfg.WelcomePoints
	}
	s.log.InfoContext(ctx, "ledger account opened", "account_id", account.ID, "user_id", userID)
	return account, nil
}

// Price computes the total points cost for units of an action (chunks,
// slides, whatever the action's natural unit is).
func Price(action Action, units int) int64 {
	if units <= 0 {
		units = 1
	}
	return PriceOf(action) * int64(units)
}

// ReserveForJob reserves the points price of an action against an account
// ahead of enqueuing a job, returning the reservation to attach to the job
// record. Idempotent on jobID: re-reserving the same job is a no-op replay.
func (s *Service) ReserveForJob(ctx context.Context, accountID, jobID string, action Action, units int) (rsv *pkgmodels.Reservation, err error) {
	start := time.Now()
	defer func() { s.observe("reserve", start, err) }()

	amount := Price(action, units)
	if amount == 0 {
		return nil, nil
	}
	key := "reserve:" + jobID
	rsv, err = s.repo.Reserve(ctx, accountID, jobID, amount, key, string(action))
	if err != nil {
		s.log.WarnContext(ctx, "ledger reserve failed", "account_id", accountID, "job_id", jobID, "action", string(action), "error", err)
		return nil, err
	}
	return rsv, nil
}

// ChargePurchase reserves a marketplace purchase's price against the
// buyer's account. Unlike ReserveForJob this charges an arbitrary listing
// price rather than looking one up from the action pricing map, since
// marketplace prices are set by the artifact's owner, not this service.
func (s *Service) ChargePurchase(ctx context.Context, buyerAccountID, purchaseID string, amount int64) (*pkgmodels.Reservation, error) {
	if amount <= 0 {
		return nil, nil
	}
	key := "purchase_reserve:" + purchaseID
	rsv, err := s.repo.Reserve(ctx, buyerAccountID, purchaseID, amount, key, "marketplace_purchase")
	if err != nil {
		s.log.WarnContext(ctx, "ledger purchase charge failed", "account_id", buyerAccountID, "purchase_id", purchaseID, "error", err)
		return nil, err
	}
	return rsv, nil
}

// Commit makes a job's reservation permanent on successful completion.
func (s *Service) Commit(ctx context.Context, reservationID, jobID string) (err error) {
	start := time.Now()
	defer func() { s.observe("commit", start, err) }()
	if reservationID == "" {
		return nil
	}
	err = s.repo.Commit(ctx, reservationID, "commit:"+jobID)
	return err
}

// Refund releases a job's reservation, in full or for the unconsumed
// partial amount, on job failure, cancellation, or watchdog timeout.
func (s *Service) Refund(ctx context.Context, reservationID, jobID string, partialAmount int64) (err error) {
	start := time.Now()
	defer func() { s.observe("refund", start, err) }()
	if reservationID == "" {
		return nil
	}
	err = s.repo.Refund(ctx, reservationID, partialAmount, "refund:"+jobID)
	return err
}

// CreditSale credits the artifact owner's earnings balance with ownerReward,
// the owner's share of a marketplace sale as already split by the caller.
func (s *Service) CreditSale(ctx context.Context, ownerAccountID, purchaseID string, ownerReward int64) error {
	return s.repo.RevenueCredit(ctx, ownerAccountID, ownerReward, "purchase:"+purchaseID, "revenue_credit:"+purchaseID)
}

// Withdraw requests a payout of the account's earnings balance.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount int64, payoutRef string) (*pkgmodels.Withdrawal, error) {
	key := "withdraw:" + accountID + ":" + uuid.NewString()
	return s.repo.Withdraw(ctx, accountID, amount, payoutRef, key)
}

// Balance fetches an account's current balances.
func (s *Service) Balance(ctx context.Context, userID string) (*pkgmodels.Account, error) {
	return s.repo.GetAccountByUserID(ctx, userID)
}
