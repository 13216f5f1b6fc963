package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"coachhub/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageCols = []string{"id", "tenant_id", "sender_id", "receiver_id", "content", "is_read", "created_at", "display_name"}

func TestMessageRepo_Create_ReturnsTimestamp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	msg := &models.Message{ID: uuid.New(), TenantID: uuid.New(), SenderID: uuid.New(), ReceiverID: uuid.New(), Content: "hi coach"}
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs(msg.ID, msg.TenantID, msg.SenderID, msg.ReceiverID, msg.Content).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	repo := NewMessageRepo(mock)
	require.NoError(t, repo.Create(context.Background(), msg))
	assert.Equal(t, created, msg.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_ListConversation_ScopedAndOrdered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	me := uuid.New()
	coach := uuid.New()
	t0 := time.Now().Add(-time.Hour)
	rows := pgxmock.NewRows(messageCols).
		AddRow(uuid.New(), tenantID, me, coach, "first", true, t0, "Me").
		AddRow(uuid.New(), tenantID, coach, me, "second", false, t0.Add(time.Minute), "Coach")
	mock.ExpectQuery(`WHERE m.tenant_id = \$1 AND \(m.sender_id = \$2 OR m.receiver_id = \$2\)\s+ORDER BY m.created_at ASC`).
		WithArgs(tenantID, me).
		WillReturnRows(rows)

	repo := NewMessageRepo(mock)
	msgs, err := repo.ListConversation(context.Background(), tenantID, me)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "Coach", msgs[1].SenderName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_MarkRead_NotReceiver(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID, id, receiver := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectExec(`UPDATE messages SET is_read = TRUE`).
		WithArgs(tenantID, id, receiver).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewMessageRepo(mock)
	err = repo.MarkRead(context.Background(), tenantID, id, receiver)
	assert.True(t, errors.Is(err, ErrNotFound))
}
