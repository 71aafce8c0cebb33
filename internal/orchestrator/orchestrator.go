// Package orchestrator implements spec.md §6's uniform job-control surface:
// one thin pipeline per domain action (entitlement check, access check,
// ledger reservation, enqueue) composing the Entitlement Resolver, Access
// Engine, Ledger and Job Queue, so the HTTP layer and any other caller never
// touches those four packages directly. Every exported method returns the
// job it enqueued with status "queued", mirroring the teacher's
// `internal/application/execution` orchestration layer sitting in front of
// its own queue and billing packages.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aidocs/platform/internal/application/access"
	"github.com/aidocs/platform/internal/application/entitlement"
	"github.com/aidocs/platform/internal/application/ledger"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// accessChecker is the narrow contract this package depends on for
// edit-intent gating ahead of queuing a mutation job.
type accessChecker interface {
	CanAccess(ctx context.Context, userID, artifactID string, intent access.Intent) (bool, error)
}

// jobQueue is the narrow contract this package depends on for enqueuing
// jobs, satisfied by queue.Queue.
type jobQueue interface {
	Enqueue(ctx context.Context, job *pkgmodels.Job) error
}

// jobStore is the narrow durable-record contract this package depends on
// for the status-polling read path, satisfied by storage.JobRepository.
type jobStore interface {
	GetByID(ctx context.Context, id string) (*pkgmodels.Job, error)
	ListByAccount(ctx context.Context, accountID string) ([]*pkgmodels.Job, error)
}

// Orchestrator composes entitlement, access, ledger and queue into the
// uniform enqueue pipeline spec.md §6 names for every AI-backed domain
// action: POST /<domain>/<action> -> {job_id, status: "pending"}.
type Orchestrator struct {
	entitlement *entitlement.Resolver
	access      accessChecker
	ledgerSvc   *ledger.Service
	queue       jobQueue
	jobs        jobStore
	log         *logger.Logger
}

// New constructs an Orchestrator.
func New(entitlementResolver *entitlement.Resolver, accessEngine accessChecker, ledgerSvc *ledger.Service, q jobQueue, jobs jobStore, log *logger.Logger) *Orchestrator {
	return &Orchestrator{entitlement: entitlementResolver, access: accessEngine, ledgerSvc: ledgerSvc, queue: q, jobs: jobs, log: log}
}

// enqueue is the shared pipeline every domain method below funnels through:
// entitlement check, optional edit-access check, points reservation keyed to
// a pre-generated job ID, then the queue insert itself. The reservation is
// refunded if the queue insert fails, since nothing has been billed to the
// account's balance until a job record actually exists.
func (o *Orchestrator) enqueue(ctx context.Context, accountID, artifactID string, kind pkgmodels.JobKind, action ledger.Action, units int, input map[string]any) (*pkgmodels.Job, error) {
	decision, err := o.entitlement.Check(ctx, accountID, string(action), nil)
	if err != nil {
		return nil, err
	}
	if !decision.Allow {
		return nil, &pkgmodels.AccessDeniedError{AccountID: accountID, ArtifactID: artifactID, Reason: decision.Reason}
	}

	if artifactID != "" {
		allowed, err := o.access.CanAccess(ctx, accountID, artifactID, access.IntentEdit)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, pkgmodels.ErrAccessDenied
		}
	}

	jobID := uuid.NewString()
	rsv, err := o.ledgerSvc.ReserveForJob(ctx, accountID, jobID, action, units)
	if err != nil {
		return nil, err
	}
	var reservationID string
	if rsv != nil {
		reservationID = rsv.ID
	}

	job := &pkgmodels.Job{
		ID:            jobID,
		AccountID:     accountID,
		Kind:          kind,
		ArtifactID:    artifactID,
		Status:        pkgmodels.JobStatusQueued,
		Input:         input,
		ReservationID: reservationID,
	}
	if err := job.Validate(); err != nil {
		o.refundIfReserved(ctx, reservationID, jobID)
		return nil, err
	}
	if err := o.queue.Enqueue(ctx, job); err != nil {
		o.refundIfReserved(ctx, reservationID, jobID)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	if action == ledger.ActionChatDefaultLLM {
		if err := o.entitlement.RecordFreeChatUsage(ctx, accountID, time.Now()); err != nil {
			o.log.WarnContext(ctx, "failed to record free chat usage", "account_id", accountID, "error", err)
		}
	}

	o.log.InfoContext(ctx, "job enqueued", "job_id", jobID, "kind", string(kind), "action", string(action), "account_id", accountID)
	return job, nil
}

func (o *Orchestrator) refundIfReserved(ctx context.Context, reservationID, jobID string) {
	if reservationID == "" {
		return
	}
	if err := o.ledgerSvc.Refund(ctx, reservationID, jobID, 0); err != nil {
		o.log.ErrorContext(ctx, "failed to refund reservation after enqueue failure", "reservation_id", reservationID, "job_id", jobID, "error", err)
	}
}

// JobStatus fetches a job's current status for the polling endpoint,
// spec.md §6's GET .../status.
func (o *Orchestrator) JobStatus(ctx context.Context, jobID string) (*pkgmodels.Job, error) {
	return o.jobs.GetByID(ctx, jobID)
}

// ListJobs lists an account's job history for a jobs-feed view.
func (o *Orchestrator) ListJobs(ctx context.Context, accountID string) ([]*pkgmodels.Job, error) {
	return o.jobs.ListByAccount(ctx, accountID)
}
