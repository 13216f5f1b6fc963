package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two identities of the same tenant.
// Only IsRead ever changes after creation.
type Message struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	SenderID   uuid.UUID `json:"sender_id" db:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	IsRead     bool      `json:"is_read" db:"is_read"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	// Denormalized from profiles; empty on realtime insert events until a refetch backfills it.
	SenderName string `json:"sender_name,omitempty" db:"sender_name"`
}

// Involves reports whether userID is the sender or the receiver.
func (m *Message) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}
