package session

import (
	"encoding/json"

	"coachhub/internal/models"

	"github.com/google/uuid"
)

// Server → client event types.
const (
	EventBranding  = "branding"
	EventFeed      = "feed"
	EventAck       = "ack"
	EventError     = "error"
	EventSignedOut = "signed_out"
)

// Client → server command types.
const (
	CommandSend       = "send"
	CommandBlock      = "block"
	CommandReport     = "report"
	CommandForeground = "foreground"
	CommandMarkRead   = "mark_read"
	CommandSignOut    = "sign_out"
)

// SignedOutPath is where a signed-out client is sent.
const SignedOutPath = "/sign-in"

// Event is one server → client frame.
type Event struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Command is one client → server frame.
type Command struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type FeedPayload struct {
	State    string            `json:"state"`
	TenantID string            `json:"tenant_id"`
	Messages []*models.Message `json:"messages"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// RestoreContent is the composed text of a send that failed, for the client to put back in its input.
	RestoreContent string `json:"restore_content,omitempty"`
	Retryable      bool   `json:"retryable"`
}

type SignedOutPayload struct {
	Navigate string `json:"navigate"`
}

type sendCommand struct {
	Content    string     `json:"content"`
	ReceiverID *uuid.UUID `json:"receiver_id,omitempty"`
}

type blockCommand struct {
	UserID uuid.UUID `json:"user_id"`
}

type reportCommand struct {
	UserID    uuid.UUID  `json:"user_id"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	Reason    string     `json:"reason"`
}

type markReadCommand struct {
	MessageID uuid.UUID `json:"message_id"`
}
