package models

import "time"

// JobKind identifies which worker loop a job belongs to.
type JobKind string

const (
	JobKindSlideDeck JobKind = "slide_deck"
	JobKindBook      JobKind = "book"
	JobKindChapter   JobKind = "chapter"
	JobKindTest      JobKind = "test"
)

// JobStatus represents the status of a generation job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ChunkCheckpoint records progress on one unit of chunked generation work
// (one slide, one chapter, one question) so a crashed worker can resume
// instead of restarting the whole job.
type ChunkCheckpoint struct {
	Index      int       `json:"index"`
	Status     JobStatus `json:"status"`
	RetryCount int       `json:"retry_count"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Job is a durable record of one unit of queued generation work. The queue's
// ephemeral backbone only ever holds a job ID; this record is the source of
// truth for status, progress and the points reservation backing it.
type Job struct {
	ID            string            `json:"id"`
	AccountID     string            `json:"account_id"`
	Kind          JobKind           `json:"kind"`
	ArtifactID    string            `json:"artifact_id,omitempty"`
	Status        JobStatus         `json:"status"`
	Input         map[string]any    `json:"input,omitempty"`
	Output        map[string]any    `json:"output,omitempty"`
	Error         string            `json:"error,omitempty"`
	ReservationID string            `json:"reservation_id,omitempty"`
	Chunks        []ChunkCheckpoint `json:"chunks,omitempty"`
	TotalChunks   int               `json:"total_chunks"`
	Progress      float64           `json:"progress"`
	Heartbeat     time.Time         `json:"heartbeat"`
	RetryCount    int               `json:"retry_count"`
	QueuedAt      time.Time         `json:"queued_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

// Validate validates the job structure.
func (j *Job) Validate() error {
	if j.AccountID == "" {
		return &ValidationError{Field: "account_id", Message: "account ID is required"}
	}
	if j.Kind == "" {
		return &ValidationError{Field: "kind", Message: "job kind is required"}
	}
	return nil
}

func (j *Job) IsPending() bool   { return j.Status == JobStatusQueued }
func (j *Job) IsRunning() bool   { return j.Status == JobStatusRunning }
func (j *Job) IsCompleted() bool { return j.Status == JobStatusCompleted }
func (j *Job) IsFailed() bool    { return j.Status == JobStatusFailed }
func (j *Job) IsCancelled() bool { return j.Status == JobStatusCancelled }
func (j *Job) IsTerminal() bool  { return j.Status.IsTerminal() }

// MarkStarted transitions the job into the running state.
func (j *Job) MarkStarted(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Heartbeat = now
}

// MarkCompleted transitions the job to completed with its output attached.
func (j *Job) MarkCompleted(now time.Time, output map[string]any) {
	j.Status = JobStatusCompleted
	j.Output = output
	j.Progress = 1.0
	j.CompletedAt = &now
}

// MarkFailed transitions the job to failed, recording the terminal error.
func (j *Job) MarkFailed(now time.Time, err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.Error = err.Error()
	}
	j.CompletedAt = &now
}

// MarkCancelled transitions the job to cancelled.
func (j *Job) MarkCancelled(now time.Time) {
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
}

// IsStale reports whether the job's heartbeat has not been refreshed within
// the given timeout, meaning its worker should be considered dead.
func (j *Job) IsStale(now time.Time, timeout time.Duration) bool {
	return j.Status == JobStatusRunning && now.Sub(j.Heartbeat) > timeout
}

// RecalculateProgress derives overall progress from completed chunk checkpoints.
func (j *Job) RecalculateProgress() {
	if j.TotalChunks == 0 {
		return
	}
	done := 0
	for _, c := range j.Chunks {
		if c.Status == JobStatusCompleted {
			done++
		}
	}
	j.Progress = float64(done) / float64(j.TotalChunks)
}
