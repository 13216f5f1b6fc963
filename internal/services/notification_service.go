package services

import (
	"context"
	"fmt"
	"time"

	"coachhub/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NotificationService hands new-message notifications to the external push gateway.
// Delivery itself is the gateway's job.
type NotificationService interface {
	NotifyNewMessage(ctx context.Context, msg *models.Message) error
}

// PushPayload is the body posted to the gateway's /v1/push endpoint.
type PushPayload struct {
	TenantID    string `json:"tenant_id"`
	RecipientID string `json:"recipient_id"`
	SenderID    string `json:"sender_id"`
	MessageID   string `json:"message_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	SentAt      string `json:"sent_at"`
}

const pushPreviewLength = 120

type notificationService struct {
	httpClient *resty.Client
	log        *zap.Logger
}

type noopNotificationService struct{}

func (noopNotificationService) NotifyNewMessage(context.Context, *models.Message) error { return nil }

// NewNotificationService returns a gateway client, or a no-op notifier when baseURL is empty.
func NewNotificationService(baseURL string, log *zap.Logger) NotificationService {
	if baseURL == "" {
		log.Info("push gateway not configured, notifications disabled")
		return noopNotificationService{}
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &notificationService{httpClient: client, log: log}
}

func (s *notificationService) NotifyNewMessage(ctx context.Context, msg *models.Message) error {
	title := "New message"
	if msg.SenderName != "" {
		title = "New message from " + msg.SenderName
	}
	payload := PushPayload{
		TenantID:    msg.TenantID.String(),
		RecipientID: msg.ReceiverID.String(),
		SenderID:    msg.SenderID.String(),
		MessageID:   msg.ID.String(),
		Title:       title,
		Body:        preview(msg.Content, pushPreviewLength),
		SentAt:      msg.CreatedAt.UTC().Format(time.RFC3339),
	}

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/v1/push")
	if err != nil {
		return fmt.Errorf("call push gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode())
	}

	s.log.Debug("push notification queued",
		zap.String("message_id", payload.MessageID),
		zap.String("recipient_id", payload.RecipientID),
	)
	return nil
}

func preview(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max-1]) + "…"
}
