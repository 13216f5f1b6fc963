package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TableMessages = "messages"
	TableBlocks   = "blocks"
)

// InsertEvent is a row-inserted notification delivered by the change feed.
// Message events carry Message, block events carry Block.
type InsertEvent struct {
	Table      string    `json:"table"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Message    *Message  `json:"record,omitempty"`
	Block      *Block    `json:"block,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FilterColumn is the column subscriptions on table are scoped by.
func FilterColumn(table string) string {
	if table == TableBlocks {
		return "blocker_id"
	}
	return "tenant_id"
}

// ScopeID is the event's value for its table's filter column.
func (e *InsertEvent) ScopeID() uuid.UUID {
	if e.Table == TableBlocks && e.Block != nil {
		return e.Block.BlockerID
	}
	return e.TenantID
}
