package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// JobModel is the durable bun row backing a queued unit of generation work.
// The Redis-backed queue only ever holds this row's ID; status, progress and
// the points reservation live here as the source of truth.
type JobModel struct {
	bun.BaseModel `bun:"table:jobs,alias:job"`

	ID            uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	AccountID     uuid.UUID  `bun:"account_id,notnull"`
	Kind          string     `bun:"kind,notnull"`
	ArtifactID    *uuid.UUID `bun:"artifact_id"`
	Status        string     `bun:"status,notnull"`
	Input         JSONBMap   `bun:"input,type:jsonb"`
	Output        JSONBMap   `bun:"output,type:jsonb"`
	Error         string     `bun:"error"`
	ReservationID string     `bun:"reservation_id"`
	Chunks        []byte     `bun:"chunks,type:jsonb"`
	TotalChunks   int        `bun:"total_chunks,notnull,default:0"`
	Progress      float64    `bun:"progress,notnull,default:0"`
	Heartbeat     time.Time  `bun:"heartbeat,notnull,default:current_timestamp"`
	RetryCount    int        `bun:"retry_count,notnull,default:0"`
	QueuedAt      time.Time  `bun:"queued_at,notnull,default:current_timestamp"`
	StartedAt     *time.Time `bun:"started_at"`
	CompletedAt   *time.Time `bun:"completed_at"`
	Metadata      JSONBMap   `bun:"metadata,type:jsonb"`
}

func (m *JobModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.QueuedAt = now
	m.Heartbeat = now
	return nil
}

// ToJobDomain decodes a bun row into the domain Job.
func ToJobDomain(m *JobModel) (*pkgmodels.Job, error) {
	j := &pkgmodels.Job{
		ID:            m.ID.String(),
		AccountID:     m.AccountID.String(),
		Kind:          pkgmodels.JobKind(m.Kind),
		Status:        pkgmodels.JobStatus(m.Status),
		Input:         map[string]any(m.Input),
		Output:        map[string]any(m.Output),
		Error:         m.Error,
		ReservationID: m.ReservationID,
		TotalChunks:   m.TotalChunks,
		Progress:      m.Progress,
		Heartbeat:     m.Heartbeat,
		RetryCount:    m.RetryCount,
		QueuedAt:      m.QueuedAt,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		Metadata:      map[string]any(m.Metadata),
	}
	if m.ArtifactID != nil {
		j.ArtifactID = m.ArtifactID.String()
	}
	if len(m.Chunks) > 0 {
		if err := json.Unmarshal(m.Chunks, &j.Chunks); err != nil {
			return nil, fmt.Errorf("decode chunks: %w", err)
		}
	}
	return j, nil
}

// FromJobDomain encodes a domain Job into its bun row.
func FromJobDomain(j *pkgmodels.Job) (*JobModel, error) {
	accountID, err := uuid.Parse(j.AccountID)
	if err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	m := &JobModel{
		AccountID:     accountID,
		Kind:          string(j.Kind),
		Status:        string(j.Status),
		Input:         JSONBMap(j.Input),
		Output:        JSONBMap(j.Output),
		Error:         j.Error,
		ReservationID: j.ReservationID,
		TotalChunks:   j.TotalChunks,
		Progress:      j.Progress,
		Heartbeat:     j.Heartbeat,
		RetryCount:    j.RetryCount,
		QueuedAt:      j.QueuedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		Metadata:      JSONBMap(j.Metadata),
	}
	if j.ID != "" {
		id, err := uuid.Parse(j.ID)
		if err != nil {
			return nil, fmt.Errorf("parse job id: %w", err)
		}
		m.ID = id
	}
	if j.ArtifactID != "" {
		artifactID, err := uuid.Parse(j.ArtifactID)
		if err != nil {
			return nil, fmt.Errorf("parse artifact id: %w", err)
		}
		m.ArtifactID = &artifactID
	}
	if len(j.Chunks) > 0 {
		chunks, err := json.Marshal(j.Chunks)
		if err != nil {
			return nil, fmt.Errorf("encode chunks: %w", err)
		}
		m.Chunks = chunks
	}
	return m, nil
}
