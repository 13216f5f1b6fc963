package repositories

import (
	"context"

	"coachhub/internal/models"

	"github.com/google/uuid"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	// FirstCoach returns the earliest-created coach of the tenant.
	FirstCoach(ctx context.Context, tenantID uuid.UUID) (*models.Profile, error)
	// FirstStaff returns the earliest-created non-client identity of the tenant other than excludeID.
	FirstStaff(ctx context.Context, tenantID, excludeID uuid.UUID) (*models.Profile, error)
	CountByRole(ctx context.Context, tenantID uuid.UUID, role models.Role) (int, error)
}

type profileRepo struct {
	db DBTX
}

func NewProfileRepo(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

const profileColumns = `id, tenant_id, role, assigned_coach_id, display_name, email, created_at, updated_at`

func scanProfile(row rowScanner) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(&p.ID, &p.TenantID, &p.Role, &p.AssignedCoachID, &p.DisplayName, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (r *profileRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles
		WHERE id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, id))
}

func (r *profileRepo) FirstCoach(ctx context.Context, tenantID uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles
		WHERE tenant_id = $1 AND role = 'coach'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`
	return scanProfile(r.db.QueryRow(ctx, query, tenantID))
}

func (r *profileRepo) FirstStaff(ctx context.Context, tenantID, excludeID uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles
		WHERE tenant_id = $1 AND role <> 'client' AND id <> $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1`
	return scanProfile(r.db.QueryRow(ctx, query, tenantID, excludeID))
}

func (r *profileRepo) CountByRole(ctx context.Context, tenantID uuid.UUID, role models.Role) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM profiles WHERE tenant_id = $1 AND role = $2`
	if err := r.db.QueryRow(ctx, query, tenantID, string(role)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
