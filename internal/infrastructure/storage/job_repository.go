package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/aidocs/platform/internal/infrastructure/storage/models"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// JobRepository persists the durable Job record backing the queue's
// ephemeral per-kind lists.
type JobRepository struct {
	db bun.IDB
}

// NewJobRepository constructs a JobRepository.
func NewJobRepository(db bun.IDB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, j *pkgmodels.Job) error {
	m, err := models.FromJobDomain(j)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	j.ID = m.ID.String()
	j.QueuedAt = m.QueuedAt
	j.Heartbeat = m.Heartbeat
	return nil
}

// GetByID fetches a job by ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*pkgmodels.Job, error) {
	jid, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	m := new(models.JobModel)
	err = r.db.NewSelect().Model(m).Where("id = ?", jid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return models.ToJobDomain(m)
}

// Update persists the full job state, used on every status/progress/chunk
// transition so the durable record stays authoritative.
func (r *JobRepository) Update(ctx context.Context, j *pkgmodels.Job) error {
	m, err := models.FromJobDomain(j)
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(m).
		Column("status", "output", "error", "chunks", "total_chunks", "progress",
			"heartbeat", "retry_count", "started_at", "completed_at", "metadata").
		Where("id = ?", m.ID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pkgmodels.ErrJobNotFound
	}
	return nil
}

// Heartbeat refreshes a running job's liveness timestamp without touching
// any other field, as a single-column write.
func (r *JobRepository) Heartbeat(ctx context.Context, jobID string, at time.Time) error {
	jid, err := parseUUID(jobID)
	if err != nil {
		return err
	}
	_, err = r.db.NewUpdate().Model((*models.JobModel)(nil)).
		Set("heartbeat = ?", at).
		Where("id = ? AND status = ?", jid, string(pkgmodels.JobStatusRunning)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("heartbeat job: %w", err)
	}
	return nil
}

// ListStaleRunning lists jobs still marked running whose heartbeat has not
// been refreshed since the cutoff, the input to the watchdog sweep.
func (r *JobRepository) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*pkgmodels.Job, error) {
	var rows []models.JobModel
	err := r.db.NewSelect().Model(&rows).
		Where("status = ? AND heartbeat < ?", string(pkgmodels.JobStatusRunning), cutoff).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	out := make([]*pkgmodels.Job, len(rows))
	for i := range rows {
		j, err := models.ToJobDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return out, nil
}

// ListStalePending lists jobs still marked queued whose queued_at predates
// the cutoff, the input to detecting an orphan left behind by a crash
// between the queue's insert-then-push enqueue steps.
func (r *JobRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*pkgmodels.Job, error) {
	var rows []models.JobModel
	err := r.db.NewSelect().Model(&rows).
		Where("status = ? AND queued_at < ?", string(pkgmodels.JobStatusQueued), cutoff).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stale pending jobs: %w", err)
	}
	out := make([]*pkgmodels.Job, len(rows))
	for i := range rows {
		j, err := models.ToJobDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return out, nil
}

// ListByAccount lists an account's jobs, newest first.
func (r *JobRepository) ListByAccount(ctx context.Context, accountID string) ([]*pkgmodels.Job, error) {
	aid, err := parseUUID(accountID)
	if err != nil {
		return nil, err
	}
	var rows []models.JobModel
	err = r.db.NewSelect().Model(&rows).Where("account_id = ?", aid).Order("queued_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs by account: %w", err)
	}
	out := make([]*pkgmodels.Job, len(rows))
	for i := range rows {
		j, err := models.ToJobDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return out, nil
}
