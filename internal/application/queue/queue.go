// Package queue implements the Job Queue's ephemeral backbone: a durable
// FIFO per job kind, backed by a Redis list, paired with the durable Job
// record in internal/infrastructure/storage as the authoritative status,
// per spec.md §4.4.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

const keyPrefix = "platform:queue:"

// jobRepo is the durable job-record contract the queue depends on.
type jobRepo interface {
	Create(ctx context.Context, j *pkgmodels.Job) error
	GetByID(ctx context.Context, id string) (*pkgmodels.Job, error)
	Update(ctx context.Context, j *pkgmodels.Job) error
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*pkgmodels.Job, error)
}

// Queue is the per-kind FIFO backbone plus its durable job record.
type Queue struct {
	redis *redis.Client
	jobs  jobRepo
	log   *logger.Logger
}

// New constructs a Queue.
func New(redisClient *redis.Client, jobs jobRepo, log *logger.Logger) *Queue {
	return &Queue{redis: redisClient, jobs: jobs, log: log}
}

func listKey(kind pkgmodels.JobKind) string {
	return keyPrefix + string(kind)
}

// Enqueue performs the two-step enqueue transaction: insert the job record
// with status=queued, then push its ID onto the kind's list. A crash
// between the two steps leaves an orphan pending job for the reaper to
// recover; Enqueue itself never rolls back step one if step two fails, by
// design, since the reaper closes that gap.
func (q *Queue) Enqueue(ctx context.Context, job *pkgmodels.Job) error {
	job.Status = pkgmodels.JobStatusQueued
	if err := q.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("create job record: %w", err)
	}
	if err := q.redis.LPush(ctx, listKey(job.Kind), job.ID).Err(); err != nil {
		q.log.ErrorContext(ctx, "job pushed to queue list failed, orphaned pending job awaits reaper",
			"job_id", job.ID, "kind", string(job.Kind), "error", err)
		return fmt.Errorf("push job to queue: %w", err)
	}
	return nil
}

// BlockingPop pops the next job ID for a kind, blocking up to timeout. It
// returns ("", nil) on timeout (an empty queue), not an error.
func (q *Queue) BlockingPop(ctx context.Context, kind pkgmodels.JobKind, timeout time.Duration) (string, error) {
	result, err := q.redis.BRPop(ctx, timeout, listKey(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("blocking pop: %w", err)
	}
	if len(result) < 2 {
		return "", nil
	}
	return result[1], nil
}

// ClaimPendingToRunning performs the worker's CAS status transition from
// queued to running, a single conditional UPDATE so two workers racing on a
// requeued job ID cannot both claim it.
func (q *Queue) ClaimPendingToRunning(ctx context.Context, jobID string, now time.Time) (*pkgmodels.Job, bool, error) {
	job, err := q.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if job.Status != pkgmodels.JobStatusQueued {
		return job, false, nil
	}
	job.MarkStarted(now)
	if err := q.jobs.Update(ctx, job); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// Requeue pushes a job ID back onto its kind's list for retry, e.g. after a
// retryable provider error with backoff already applied by the caller.
func (q *Queue) Requeue(ctx context.Context, job *pkgmodels.Job) error {
	job.Status = pkgmodels.JobStatusQueued
	if err := q.jobs.Update(ctx, job); err != nil {
		return err
	}
	return q.redis.LPush(ctx, listKey(job.Kind), job.ID).Err()
}

// Depth returns the current number of jobs waiting in a kind's queue list.
func (q *Queue) Depth(ctx context.Context, kind pkgmodels.JobKind) (int64, error) {
	n, err := q.redis.LLen(ctx, listKey(kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// ReapOrphans re-pushes pending jobs older than staleAfter with no queue
// presence — the recovery path for a crash between a job's two enqueue
// steps.
func (q *Queue) ReapOrphans(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	stale, err := q.jobs.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range stale {
		// A job whose ID is still on its kind's list is waiting, not orphaned.
		if _, err := q.redis.LPos(ctx, listKey(job.Kind), job.ID, redis.LPosArgs{}).Result(); err == nil {
			continue
		} else if !errors.Is(err, redis.Nil) {
			q.log.ErrorContext(ctx, "failed to check queue presence of pending job", "job_id", job.ID, "error", err)
			continue
		}
		if err := q.Requeue(ctx, job); err != nil {
			q.log.ErrorContext(ctx, "failed to requeue orphaned job", "job_id", job.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}
