package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"coachhub/internal/chat"
	"coachhub/internal/metrics"
	"coachhub/internal/models"
	"coachhub/internal/realtime"
	"coachhub/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxMessageLength = 4000

type ChatService interface {
	// Send persists a message and publishes its insert event. Clients are always routed;
	// staff must name a receiver in the same tenant.
	Send(ctx context.Context, sender *models.Profile, tenantID uuid.UUID, req *SendMessageRequest) (*models.Message, error)
	// History returns the viewer's visible conversation, oldest first.
	History(ctx context.Context, viewer *models.Profile, tenantID uuid.UUID) ([]*models.Message, error)
	MarkRead(ctx context.Context, viewer *models.Profile, tenantID, messageID uuid.UUID) error
	UnreadCount(ctx context.Context, viewer *models.Profile, tenantID uuid.UUID) (int, error)
}

type SendMessageRequest struct {
	Content    string     `json:"content" validate:"required"`
	ReceiverID *uuid.UUID `json:"receiver_id,omitempty"`
}

type chatService struct {
	messageRepo repositories.MessageRepository
	profileRepo repositories.ProfileRepository
	router      MessageRouter
	moderation  ModerationService
	changes     realtime.ChangeFeed
	notifier    NotificationService
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewChatService(messageRepo repositories.MessageRepository, profileRepo repositories.ProfileRepository,
	router MessageRouter, moderation ModerationService, changes realtime.ChangeFeed, notifier NotificationService,
	m *metrics.Metrics, log *zap.Logger) ChatService {
	return &chatService{
		messageRepo: messageRepo,
		profileRepo: profileRepo,
		router:      router,
		moderation:  moderation,
		changes:     changes,
		notifier:    notifier,
		metrics:     m,
		log:         log,
	}
}

func (s *chatService) Send(ctx context.Context, sender *models.Profile, tenantID uuid.UUID, req *SendMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if bound, ok := sender.BoundTenant(); !ok || bound != tenantID {
		return nil, ErrTenantMismatch
	}

	receiverID, err := s.receiverFor(ctx, sender, tenantID, req.ReceiverID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:         uuid.New(),
		TenantID:   tenantID,
		SenderID:   sender.ID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	s.metrics.MessagesSent.Inc()

	// The insert event carries only the row; subscribers backfill the sender name by refetching.
	event := &models.InsertEvent{
		Table:      models.TableMessages,
		TenantID:   tenantID,
		Message:    msg,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.changes.PublishInsert(ctx, event); err != nil {
		s.log.Warn("publishing message insert failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
	}

	if s.receiverAccepts(ctx, receiverID, sender.ID) {
		s.notifyAsync(ctx, msg, sender.DisplayName)
	}

	withName := *msg
	withName.SenderName = sender.DisplayName
	return &withName, nil
}

func (s *chatService) receiverFor(ctx context.Context, sender *models.Profile, tenantID uuid.UUID, requested *uuid.UUID) (uuid.UUID, error) {
	if sender.IsClient() {
		receiverID, err := s.router.RouteOutbound(ctx, sender, tenantID)
		if errors.Is(err, ErrNoCoachAvailable) {
			s.metrics.RoutingFailures.Inc()
		}
		return receiverID, err
	}

	if requested == nil || *requested == uuid.Nil || *requested == sender.ID {
		return uuid.Nil, ErrInvalidReceiver
	}
	receiver, err := s.profileRepo.GetByID(ctx, *requested)
	if errors.Is(err, repositories.ErrNotFound) {
		return uuid.Nil, ErrInvalidReceiver
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load receiver %s: %w", *requested, err)
	}
	if bound, ok := receiver.BoundTenant(); !ok || bound != tenantID {
		return uuid.Nil, ErrInvalidReceiver
	}
	return receiver.ID, nil
}

// receiverAccepts reports whether receiverID should be pushed a message from senderID. A receiver
// who blocked the sender still gets the row but no push; an unreadable block list skips the push.
func (s *chatService) receiverAccepts(ctx context.Context, receiverID, senderID uuid.UUID) bool {
	blocked, err := s.moderation.BlockedIDs(ctx, receiverID)
	if err != nil {
		s.log.Warn("skipping push, receiver block list unavailable", zap.String("receiver_id", receiverID.String()), zap.Error(err))
		return false
	}
	for _, id := range blocked {
		if id == senderID {
			return false
		}
	}
	return true
}

func (s *chatService) notifyAsync(ctx context.Context, msg *models.Message, senderName string) {
	push := *msg
	push.SenderName = senderName
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := s.notifier.NotifyNewMessage(ctx, &push); err != nil {
			s.log.Warn("push notification failed", zap.String("message_id", push.ID.String()), zap.Error(err))
		}
	}()
}

func (s *chatService) History(ctx context.Context, viewer *models.Profile, tenantID uuid.UUID) ([]*models.Message, error) {
	if bound, ok := viewer.BoundTenant(); !ok || bound != tenantID {
		return nil, ErrTenantMismatch
	}
	messages, err := s.messageRepo.ListConversation(ctx, tenantID, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	blockedIDs, err := s.moderation.BlockedIDs(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	blocks := chat.NewBlockSet()
	blocks.Replace(blockedIDs)
	return chat.FilterVisible(messages, viewer.ID, blocks.Contains), nil
}

func (s *chatService) MarkRead(ctx context.Context, viewer *models.Profile, tenantID, messageID uuid.UUID) error {
	if bound, ok := viewer.BoundTenant(); !ok || bound != tenantID {
		return ErrTenantMismatch
	}
	return s.messageRepo.MarkRead(ctx, tenantID, messageID, viewer.ID)
}

func (s *chatService) UnreadCount(ctx context.Context, viewer *models.Profile, tenantID uuid.UUID) (int, error) {
	if bound, ok := viewer.BoundTenant(); !ok || bound != tenantID {
		return 0, ErrTenantMismatch
	}
	return s.messageRepo.CountUnread(ctx, tenantID, viewer.ID)
}
