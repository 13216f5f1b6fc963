package models

import (
	"time"

	"github.com/google/uuid"
)

// Block hides every message of BlockedID from BlockerID's view. Unique per pair.
type Block struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BlockerID uuid.UUID `json:"blocker_id" db:"blocker_id"`
	BlockedID uuid.UUID `json:"blocked_id" db:"blocked_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusReviewed ReportStatus = "reviewed"
	ReportStatusActioned ReportStatus = "actioned"
)

// Report is an append-only audit record for moderator review.
type Report struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	TenantID   *uuid.UUID   `json:"tenant_id,omitempty" db:"tenant_id"`
	ReporterID uuid.UUID    `json:"reporter_id" db:"reporter_id"`
	ReportedID uuid.UUID    `json:"reported_id" db:"reported_id"`
	MessageID  *uuid.UUID   `json:"message_id,omitempty" db:"message_id"`
	Reason     string       `json:"reason" db:"reason"`
	Status     ReportStatus `json:"status" db:"status"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// PendingReportCount is a per-tenant tally used by the moderation digest job.
type PendingReportCount struct {
	TenantID uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Count    int       `json:"count" db:"count"`
}
