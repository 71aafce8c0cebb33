package models

import "time"

// ShareStatus tracks a share grant's lifecycle. There is deliberately no
// "pending" state: shares are auto-accepted at creation.
type ShareStatus string

const (
	ShareStatusAccepted  ShareStatus = "accepted"
	ShareStatusCompleted ShareStatus = "completed"
	ShareStatusExpired   ShareStatus = "expired"
	ShareStatusDeclined  ShareStatus = "declined"
)

// IsTerminal reports whether the status is one a share cannot leave.
func (s ShareStatus) IsTerminal() bool {
	return s == ShareStatusExpired || s == ShareStatusDeclined
}

// ShareGrant attaches a sharee to an artifact, auto-accepted at creation.
type ShareGrant struct {
	ID          string     `json:"id"`
	ArtifactID  string     `json:"artifact_id"`
	OwnerID     string     `json:"owner_id"`
	ShareeEmail string     `json:"sharee_email"`
	ShareeID    *string    `json:"sharee_id,omitempty"` // resolved on sharee's next login
	Status      ShareStatus `json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Message     string     `json:"message,omitempty"`
	AcceptedAt  time.Time  `json:"accepted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Validate validates the share grant.
func (s *ShareGrant) Validate() error {
	if s.ArtifactID == "" {
		return &ValidationError{Field: "artifact_id", Message: "artifact ID is required"}
	}
	if s.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Message: "owner ID is required"}
	}
	if s.ShareeEmail == "" {
		return &ValidationError{Field: "sharee_email", Message: "sharee email is required"}
	}
	return nil
}

// EffectiveDeadline resolves the deadline that applies to this share:
// the share's own deadline if set, else the artifact's global deadline
// (e.g. a test's Deadline), else no deadline.
func (s *ShareGrant) EffectiveDeadline(artifactDeadline *time.Time) *time.Time {
	if s.Deadline != nil {
		return s.Deadline
	}
	return artifactDeadline
}

// IsExpired reports whether, as of now, the share's effective deadline has
// passed. The access engine evaluates this on the read path regardless of
// whether the background expiration sweep has run.
func (s *ShareGrant) IsExpired(now time.Time, artifactDeadline *time.Time) bool {
	deadline := s.EffectiveDeadline(artifactDeadline)
	return deadline != nil && now.After(*deadline)
}

// Decline transitions a share to declined, used both when the sharee
// deletes their own grant and when the owner revokes it.
func (s *ShareGrant) Decline() {
	s.Status = ShareStatusDeclined
}

// Expire transitions a share to expired; a monotone, one-way transition.
func (s *ShareGrant) Expire() {
	if !s.Status.IsTerminal() {
		s.Status = ShareStatusExpired
	}
}
