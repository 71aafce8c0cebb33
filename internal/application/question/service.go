// Package question orchestrates test submission and grading per
// spec.md §4.8: auto-graded question types score synchronously via
// pkg/models.Grade, essay/open-ended questions are routed to the
// provider facade for AI evaluation.
package question

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aidocs/platform/internal/application/ledger"
	"github.com/aidocs/platform/internal/application/provider"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// repository is the narrow artifact-store contract this service needs.
type repository interface {
	GetTest(ctx context.Context, artifactID string) (*pkgmodels.Test, error)
	CreateSubmission(ctx context.Context, s *pkgmodels.Submission) error
	ListSubmissionsByTaker(ctx context.Context, testID, takerID string) ([]*pkgmodels.Submission, error)
}

// ledgerService reserves and commits the points an essay's AI evaluation
// costs, per spec.md §4.1's test_ai_eval action.
type ledgerService interface {
	ReserveForJob(ctx context.Context, accountID, jobID string, action ledger.Action, units int) (*pkgmodels.Reservation, error)
	Commit(ctx context.Context, reservationID, jobID string) error
	Refund(ctx context.Context, reservationID, jobID string, partialAmount int64) error
}

// essayEvalSchema is the JSON shape an AI evaluator must return for an
// essay answer: a score in [0, max_points] and short feedback.
var essayEvalSchema = json.RawMessage(`{"required":[".score",".feedback"]}`)

// Service grades test submissions.
type Service struct {
	repo    repository
	ledger  ledgerService
	facade  *provider.Facade
	log     *logger.Logger
	graded  gradeCache
}

// gradeCache remembers the AI-graded score for a (test content hash,
// question ID, answer) triple so identical resubmissions of an unchanged
// test never re-run (and re-bill) AI evaluation, per spec.md §4.8's
// byte-identical content rule.
type gradeCache struct {
	scores map[string]float64
}

// New constructs a Service.
func New(repo repository, ledgerSvc ledgerService, facade *provider.Facade, log *logger.Logger) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, facade: facade, log: log, graded: gradeCache{scores: map[string]float64{}}}
}

// Submit records a taker's submission, auto-grades every non-essay
// question synchronously, and AI-grades essay questions, enforcing the
// test's MaxRetries limit.
func (s *Service) Submit(ctx context.Context, accountID string, sub *pkgmodels.Submission) (*pkgmodels.Submission, error) {
	test, err := s.repo.GetTest(ctx, sub.TestID)
	if err != nil {
		return nil, err
	}
	if test.MaxRetries > 0 {
		prior, err := s.repo.ListSubmissionsByTaker(ctx, sub.TestID, sub.TakerUserID)
		if err != nil {
			return nil, err
		}
		if len(prior) >= test.MaxRetries {
			return nil, fmt.Errorf("submission retry limit reached: %w", pkgmodels.ErrQuotaExceeded)
		}
	}

	contentHash := hashTestContent(test)

	var total, max float64
	for i := range test.Questions {
		q := &test.Questions[i]
		max += q.MaxPoints
		ans, ok := sub.Answers[q.ID]
		if !ok {
			continue
		}
		if q.Type == pkgmodels.QuestionEssay {
			score, err := s.gradeEssay(ctx, accountID, sub.ID, contentHash, q, &ans)
			if err != nil {
				return nil, err
			}
			total += score
			continue
		}
		total += pkgmodels.Grade(q, &ans)
	}

	sub.Score = total
	sub.MaxScore = max
	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// gradeEssay scores one essay answer via the provider facade, billing
// one test_ai_eval reservation per evaluation unless an identical
// (content hash, question, answer) was already graded this process.
func (s *Service) gradeEssay(ctx context.Context, accountID, submissionID, contentHash string, q *pkgmodels.Question, a *pkgmodels.Answer) (float64, error) {
	key := contentHash + ":" + q.ID + ":" + a.FreeText
	if score, ok := s.graded.scores[key]; ok {
		return score, nil
	}

	jobKey := submissionID + ":" + q.ID
	reservation, err := s.ledger.ReserveForJob(ctx, accountID, jobKey, ledger.ActionTestEvaluate, 1)
	if err != nil {
		return 0, err
	}

	prompt := fmt.Sprintf(
		"Grade this essay answer out of %.1f points.\n\nPrompt: %s\n\nAnswer: %s\n\nRespond as JSON with fields score and feedback.",
		q.MaxPoints, q.Prompt, a.FreeText,
	)
	out, err := s.facade.Call(ctx, "default", provider.TaskContentRewrite, prompt, provider.Options{JSONSchema: essayEvalSchema})
	if err != nil {
		_ = s.ledger.Refund(ctx, reservation.ID, jobKey, 0)
		return 0, err
	}

	var result struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal(out.JSON, &result); err != nil {
		_ = s.ledger.Refund(ctx, reservation.ID, jobKey, 0)
		return 0, fmt.Errorf("decode essay grading result: %w", err)
	}
	if result.Score > q.MaxPoints {
		result.Score = q.MaxPoints
	}
	if result.Score < 0 {
		result.Score = 0
	}

	if err := s.ledger.Commit(ctx, reservation.ID, jobKey); err != nil {
		s.log.ErrorContext(ctx, "commit after essay grading failed", "submission_id", submissionID, "error", err)
	}
	s.graded.scores[key] = result.Score
	return result.Score, nil
}

// hashTestContent computes a stable content hash over a test's graded
// structure, used to detect that a test hasn't changed between
// submissions so an identical resubmission's essay answers can reuse a
// prior AI grading instead of re-billing it.
func hashTestContent(t *pkgmodels.Test) string {
	raw, _ := json.Marshal(t.Questions)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
