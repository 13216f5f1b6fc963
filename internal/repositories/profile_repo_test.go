package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"coachhub/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileCols = []string{"id", "tenant_id", "role", "assigned_coach_id", "display_name", "email", "created_at", "updated_at"}

func TestProfileRepo_FirstCoachOrdersByCreation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	coachID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`WHERE tenant_id = \$1 AND role = 'coach'\s+ORDER BY created_at ASC, id ASC\s+LIMIT 1`).
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows(profileCols).
			AddRow(coachID, &tenantID, models.RoleCoach, (*uuid.UUID)(nil), "Coach Carter", "carter@example.com", now, now))

	repo := NewProfileRepo(mock)
	coach, err := repo.FirstCoach(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, coachID, coach.ID)
	assert.Equal(t, models.RoleCoach, coach.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_FirstStaffExcludesSender(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	senderID := uuid.New()
	mock.ExpectQuery(`role <> 'client' AND id <> \$2`).
		WithArgs(tenantID, senderID).
		WillReturnError(pgx.ErrNoRows)

	repo := NewProfileRepo(mock)
	_, err = repo.FirstStaff(context.Background(), tenantID, senderID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_CountByRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles`).
		WithArgs(tenantID, "client").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	repo := NewProfileRepo(mock)
	count, err := repo.CountByRole(context.Background(), tenantID, models.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
