// Package worker runs the per-kind worker loop of spec.md §4.5: blocking
// pop, claim, execute with heartbeat checkpoints, commit or refund.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/aidocs/platform/internal/infrastructure/logger"
	"github.com/aidocs/platform/internal/observability"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// RetryableProviderError marks an error the worker should requeue with
// backoff rather than fail outright, up to MaxAttempts.
type RetryableProviderError struct {
	Err error
}

func (e *RetryableProviderError) Error() string { return e.Err.Error() }
func (e *RetryableProviderError) Unwrap() error  { return e.Err }

// Executor runs one job to completion, reporting progress through
// checkpoint as it goes. It returns the job's output map on success.
type Executor interface {
	Execute(ctx context.Context, job *pkgmodels.Job, checkpoint func(ctx context.Context, progress float64, message string) error) (map[string]any, error)
}

// jobQueue is the narrow subset of queue.Queue the worker loop depends on.
type jobQueue interface {
	BlockingPop(ctx context.Context, kind pkgmodels.JobKind, timeout time.Duration) (string, error)
	ClaimPendingToRunning(ctx context.Context, jobID string, now time.Time) (*pkgmodels.Job, bool, error)
	Requeue(ctx context.Context, job *pkgmodels.Job) error
}

type jobStore interface {
	GetByID(ctx context.Context, id string) (*pkgmodels.Job, error)
	Update(ctx context.Context, j *pkgmodels.Job) error
}

// ledgerService is the narrow points-ledger contract the worker needs to
// settle a job's reservation on completion or failure.
type ledgerService interface {
	Commit(ctx context.Context, reservationID, jobID string) error
	Refund(ctx context.Context, reservationID, jobID string, partialAmount int64) error
}

// Broadcaster pushes a job lifecycle event to whoever is watching it, e.g.
// over a WebSocket feed. Nil-safe: a Worker with no broadcaster attached
// just skips the push.
type Broadcaster interface {
	Broadcast(accountID, jobID string, event *JobEvent)
}

// JobEvent is the broadcaster-agnostic shape of a job lifecycle update.
type JobEvent struct {
	Type      string  `json:"type"`
	JobID     string  `json:"job_id"`
	AccountID string  `json:"account_id"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Error     string  `json:"error,omitempty"`
}

const (
	EventJobStarted   = "job.started"
	EventJobProgress  = "job.progress"
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// Config holds the worker loop's runtime tunables.
type Config struct {
	Kind                pkgmodels.JobKind
	PopTimeout          time.Duration
	HeartbeatStaleMulti int
	HeartbeatInterval   time.Duration
	MaxAttempts         int
	JobWallClockTimeout time.Duration
}

// Worker runs one kind's loop.
type Worker struct {
	cfg         Config
	queue       jobQueue
	jobs        jobStore
	ledger      ledgerService
	executor    Executor
	log         *logger.Logger
	metrics     *observability.Metrics
	broadcaster Broadcaster
}

// New constructs a Worker for one job kind.
func New(cfg Config, q jobQueue, jobs jobStore, ledger ledgerService, executor Executor, log *logger.Logger) *Worker {
	return &Worker{cfg: cfg, queue: q, jobs: jobs, ledger: ledger, executor: executor, log: log}
}

// WithMetrics attaches a Prometheus metrics sink, returning the Worker for
// chaining at construction time.
func (w *Worker) WithMetrics(m *observability.Metrics) *Worker {
	w.metrics = m
	return w
}

// WithBroadcaster attaches a live job-event push sink, returning the Worker
// for chaining at construction time.
func (w *Worker) WithBroadcaster(b Broadcaster) *Worker {
	w.broadcaster = b
	return w
}

func (w *Worker) broadcast(job *pkgmodels.Job, eventType, message string, execErr error) {
	if w.broadcaster == nil {
		return
	}
	evt := &JobEvent{
		Type:      eventType,
		JobID:     job.ID,
		AccountID: job.AccountID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Message:   message,
	}
	if execErr != nil {
		evt.Error = execErr.Error()
	}
	w.broadcaster.Broadcast(job.AccountID, job.ID, evt)
}

// Run executes the worker loop until ctx is cancelled, per spec.md §4.5.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := w.queue.BlockingPop(ctx, w.cfg.Kind, w.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.ErrorContext(ctx, "blocking pop failed", "kind", string(w.cfg.Kind), "error", err)
			continue
		}
		if jobID == "" {
			continue
		}

		job, claimed, err := w.queue.ClaimPendingToRunning(ctx, jobID, time.Now())
		if err != nil {
			w.log.ErrorContext(ctx, "claim job failed", "job_id", jobID, "error", err)
			continue
		}
		if !claimed {
			continue // stale: already running, terminal, or cancelled
		}

		w.broadcast(job, EventJobStarted, "", nil)
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *pkgmodels.Job) {
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobWallClockTimeout)
	defer cancel()

	checkpoint := func(ctx context.Context, progress float64, message string) error {
		fresh, err := w.jobs.GetByID(ctx, job.ID)
		if err != nil {
			return err
		}
		if fresh.Status == pkgmodels.JobStatusCancelled {
			return context.Canceled
		}
		job.Progress = progress
		job.Heartbeat = time.Now()
		if job.Metadata == nil {
			job.Metadata = map[string]any{}
		}
		job.Metadata["message"] = message
		w.broadcast(job, EventJobProgress, message, nil)
		return w.jobs.Update(ctx, job)
	}

	start := time.Now()
	output, err := w.executor.Execute(jobCtx, job, checkpoint)
	if err != nil {
		w.recordOutcome("failed", start)
		w.handleFailure(ctx, job, err)
		return
	}

	if err := w.ledger.Commit(ctx, job.ReservationID, job.ID); err != nil {
		w.log.ErrorContext(ctx, "ledger commit failed after successful execution", "job_id", job.ID, "error", err)
	}
	job.MarkCompleted(time.Now(), output)
	if err := w.jobs.Update(ctx, job); err != nil {
		w.log.ErrorContext(ctx, "failed to persist completed job", "job_id", job.ID, "error", err)
	}
	w.recordOutcome("completed", start)
	w.broadcast(job, EventJobCompleted, "", nil)
}

func (w *Worker) recordOutcome(outcome string, start time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.RecordWorkerJob(string(w.cfg.Kind), outcome, time.Since(start).Seconds())
}

func (w *Worker) handleFailure(ctx context.Context, job *pkgmodels.Job, execErr error) {
	var retryable *RetryableProviderError
	if errors.As(execErr, &retryable) && job.RetryCount < w.cfg.MaxAttempts {
		job.RetryCount++
		if w.metrics != nil {
			w.metrics.RecordWorkerRetry(string(w.cfg.Kind))
		}
		backoff := time.Duration(job.RetryCount) * time.Second
		time.Sleep(backoff)
		if err := w.queue.Requeue(ctx, job); err != nil {
			w.log.ErrorContext(ctx, "requeue after retryable error failed", "job_id", job.ID, "error", err)
		}
		return
	}
	w.fail(ctx, job, execErr)
}

// fail refunds the job's reservation in full (partial chunk work is
// discarded, per spec.md §4.5's chunked-generation failure semantics) and
// marks the job failed.
func (w *Worker) fail(ctx context.Context, job *pkgmodels.Job, execErr error) {
	if err := w.ledger.Refund(ctx, job.ReservationID, job.ID, 0); err != nil {
		w.log.ErrorContext(ctx, "refund on job failure failed", "job_id", job.ID, "error", err)
	}
	job.MarkFailed(time.Now(), execErr)
	if err := w.jobs.Update(ctx, job); err != nil {
		w.log.ErrorContext(ctx, "failed to persist failed job", "job_id", job.ID, "error", err)
	}
	w.broadcast(job, EventJobFailed, "", execErr)
}

// Watchdog periodically scans running jobs whose heartbeat has gone stale
// (older than HeartbeatInterval * HeartbeatStaleMulti) and fails them with
// a full refund, per spec.md §4.5.
type Watchdog struct {
	cfg    Config
	jobs   interface {
		ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*pkgmodels.Job, error)
		Update(ctx context.Context, j *pkgmodels.Job) error
	}
	ledger ledgerService
	log    *logger.Logger
}

// NewWatchdog constructs a Watchdog.
func NewWatchdog(cfg Config, jobs interface {
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*pkgmodels.Job, error)
	Update(ctx context.Context, j *pkgmodels.Job) error
}, ledger ledgerService, log *logger.Logger) *Watchdog {
	return &Watchdog{cfg: cfg, jobs: jobs, ledger: ledger, log: log}
}

// Sweep fails and refunds every job whose heartbeat predates the stale
// threshold, returning the count of jobs it reaped.
func (wd *Watchdog) Sweep(ctx context.Context) (int, error) {
	staleAfter := wd.cfg.HeartbeatInterval * time.Duration(wd.cfg.HeartbeatStaleMulti)
	cutoff := time.Now().Add(-staleAfter)
	stale, err := wd.jobs.ListStaleRunning(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range stale {
		if err := wd.ledger.Refund(ctx, job.ReservationID, job.ID, 0); err != nil {
			wd.log.ErrorContext(ctx, "watchdog refund failed", "job_id", job.ID, "error", err)
			continue
		}
		job.MarkFailed(time.Now(), errHeartbeatStale)
		if err := wd.jobs.Update(ctx, job); err != nil {
			wd.log.ErrorContext(ctx, "watchdog failed to persist job", "job_id", job.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

var errHeartbeatStale = errors.New("worker heartbeat exceeded stale threshold")
