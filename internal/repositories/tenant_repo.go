package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"coachhub/internal/models"

	"github.com/google/uuid"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	GetByCustomDomain(ctx context.Context, domain string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
}

type tenantRepo struct {
	db DBTX
}

func NewTenantRepo(db DBTX) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, subdomain, custom_domain, business_name, primary_color, secondary_color,
		logo_url, favicon_url, plan_tier, terminology, status, created_at, updated_at`

func scanTenant(row rowScanner) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	var terminology []byte
	err := row.Scan(&tenant.ID, &tenant.Subdomain, &tenant.CustomDomain, &tenant.BusinessName,
		&tenant.PrimaryColor, &tenant.SecondaryColor, &tenant.LogoURL, &tenant.FaviconURL,
		&tenant.PlanTier, &terminology, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	tenant.Terminology = map[string]string{}
	if len(terminology) > 0 {
		if err := json.Unmarshal(terminology, &tenant.Terminology); err != nil {
			return nil, fmt.Errorf("decode terminology for tenant %s: %w", tenant.ID, err)
		}
	}
	return tenant, nil
}

func encodeTerminology(terms map[string]string) ([]byte, error) {
	if terms == nil {
		terms = map[string]string{}
	}
	return json.Marshal(terms)
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	terminology, err := encodeTerminology(tenant.Terminology)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tenants (id, subdomain, custom_domain, business_name, primary_color, secondary_color,
			logo_url, favicon_url, plan_tier, terminology, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, tenant.ID, tenant.Subdomain, tenant.CustomDomain, tenant.BusinessName,
		tenant.PrimaryColor, tenant.SecondaryColor, tenant.LogoURL, tenant.FaviconURL,
		tenant.PlanTier, terminology, tenant.Status)
	return mapError(err)
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *tenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE subdomain = $1`
	return scanTenant(r.db.QueryRow(ctx, query, subdomain))
}

func (r *tenantRepo) GetByCustomDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE custom_domain = $1`
	return scanTenant(r.db.QueryRow(ctx, query, domain))
}

func (r *tenantRepo) Update(ctx context.Context, tenant *models.Tenant) error {
	terminology, err := encodeTerminology(tenant.Terminology)
	if err != nil {
		return err
	}
	query := `
		UPDATE tenants
		SET subdomain = $1, custom_domain = $2, business_name = $3, primary_color = $4, secondary_color = $5,
			logo_url = $6, favicon_url = $7, plan_tier = $8, terminology = $9, status = $10, updated_at = NOW()
		WHERE id = $11
	`
	tag, err := r.db.Exec(ctx, query, tenant.Subdomain, tenant.CustomDomain, tenant.BusinessName,
		tenant.PrimaryColor, tenant.SecondaryColor, tenant.LogoURL, tenant.FaviconURL,
		tenant.PlanTier, terminology, tenant.Status, tenant.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM tenants WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}
