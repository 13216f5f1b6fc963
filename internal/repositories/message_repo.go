package repositories

import (
	"context"

	"coachhub/internal/models"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Message, error)
	// ListConversation returns every message of the tenant sent or received by userID, oldest first.
	ListConversation(ctx context.Context, tenantID, userID uuid.UUID) ([]*models.Message, error)
	MarkRead(ctx context.Context, tenantID, id, receiverID uuid.UUID) error
	CountUnread(ctx context.Context, tenantID, receiverID uuid.UUID) (int, error)
}

type messageRepo struct {
	db DBTX
}

func NewMessageRepo(db DBTX) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, tenant_id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, msg.ID, msg.TenantID, msg.SenderID, msg.ReceiverID, msg.Content).Scan(&msg.CreatedAt)
	return mapError(err)
}

func (r *messageRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Message, error) {
	m := &models.Message{}
	query := `
		SELECT m.id, m.tenant_id, m.sender_id, m.receiver_id, m.content, m.is_read, m.created_at, COALESCE(p.display_name, '')
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.sender_id
		WHERE m.tenant_id = $1 AND m.id = $2`
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(&m.ID, &m.TenantID, &m.SenderID, &m.ReceiverID,
		&m.Content, &m.IsRead, &m.CreatedAt, &m.SenderName)
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (r *messageRepo) ListConversation(ctx context.Context, tenantID, userID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.tenant_id, m.sender_id, m.receiver_id, m.content, m.is_read, m.created_at, COALESCE(p.display_name, '')
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.sender_id
		WHERE m.tenant_id = $1 AND (m.sender_id = $2 OR m.receiver_id = $2)
		ORDER BY m.created_at ASC, m.id ASC`
	rows, err := r.db.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.TenantID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt, &m.SenderName); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *messageRepo) MarkRead(ctx context.Context, tenantID, id, receiverID uuid.UUID) error {
	query := `UPDATE messages SET is_read = TRUE WHERE tenant_id = $1 AND id = $2 AND receiver_id = $3`
	tag, err := r.db.Exec(ctx, query, tenantID, id, receiverID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *messageRepo) CountUnread(ctx context.Context, tenantID, receiverID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE tenant_id = $1 AND receiver_id = $2 AND is_read = FALSE`
	if err := r.db.QueryRow(ctx, query, tenantID, receiverID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
