package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"coachhub/internal/caching"
	"coachhub/internal/models"
	"coachhub/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
	hostnamePattern  = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
)

type TenantService interface {
	Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateTenantRequest) (*models.Tenant, error)
	// Delete refuses while the tenant still has clients.
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
}

type tenantService struct {
	tenantRepo  repositories.TenantRepository
	profileRepo repositories.ProfileRepository
	cache       caching.CacheService
	log         *zap.Logger
}

func NewTenantService(tenantRepo repositories.TenantRepository, profileRepo repositories.ProfileRepository,
	cache caching.CacheService, log *zap.Logger) TenantService {
	return &tenantService{tenantRepo: tenantRepo, profileRepo: profileRepo, cache: cache, log: log}
}

type CreateTenantRequest struct {
	Subdomain      string            `json:"subdomain" validate:"required"`
	CustomDomain   *string           `json:"custom_domain,omitempty"`
	BusinessName   string            `json:"business_name" validate:"required"`
	PrimaryColor   string            `json:"primary_color"`
	SecondaryColor string            `json:"secondary_color"`
	PlanTier       models.PlanTier   `json:"plan_tier"`
	Terminology    map[string]string `json:"terminology,omitempty"`
}

// UpdateTenantRequest changes only the fields that are set. An empty CustomDomain clears it.
type UpdateTenantRequest struct {
	Subdomain      *string           `json:"subdomain,omitempty"`
	CustomDomain   *string           `json:"custom_domain,omitempty"`
	BusinessName   *string           `json:"business_name,omitempty"`
	PrimaryColor   *string           `json:"primary_color,omitempty"`
	SecondaryColor *string           `json:"secondary_color,omitempty"`
	LogoURL        *string           `json:"logo_url,omitempty"`
	FaviconURL     *string           `json:"favicon_url,omitempty"`
	PlanTier       *models.PlanTier  `json:"plan_tier,omitempty"`
	Terminology    map[string]string `json:"terminology,omitempty"`
	Status         *string           `json:"status,omitempty"`
}

func (s *tenantService) Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, error) {
	name := strings.TrimSpace(req.BusinessName)
	if name == "" {
		return nil, ErrBusinessNameRequired
	}
	subdomain, err := normalizeSubdomain(req.Subdomain)
	if err != nil {
		return nil, err
	}
	customDomain, err := normalizeCustomDomain(req.CustomDomain)
	if err != nil {
		return nil, err
	}
	primary, err := normalizeColor(req.PrimaryColor, DefaultPrimaryColor)
	if err != nil {
		return nil, err
	}
	secondary, err := normalizeColor(req.SecondaryColor, "")
	if err != nil {
		return nil, err
	}
	tier := req.PlanTier
	if tier == "" {
		tier = models.PlanStarter
	}
	if !validPlanTier(tier) {
		return nil, ErrInvalidPlanTier
	}

	now := time.Now().UTC()
	tenant := &models.Tenant{
		ID:             uuid.New(),
		Subdomain:      subdomain,
		CustomDomain:   customDomain,
		BusinessName:   name,
		PrimaryColor:   primary,
		SecondaryColor: secondary,
		PlanTier:       tier,
		Terminology:    req.Terminology,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if tenant.Terminology == nil {
		tenant.Terminology = map[string]string{}
	}

	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	s.log.Info("tenant created", zap.String("tenant_id", tenant.ID.String()), zap.String("subdomain", subdomain))
	return tenant, nil
}

func (s *tenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *tenantService) Update(ctx context.Context, id uuid.UUID, req *UpdateTenantRequest) (*models.Tenant, error) {
	existing, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := *existing

	if req.Subdomain != nil {
		if existing.Subdomain, err = normalizeSubdomain(*req.Subdomain); err != nil {
			return nil, err
		}
	}
	if req.CustomDomain != nil {
		if existing.CustomDomain, err = normalizeCustomDomain(req.CustomDomain); err != nil {
			return nil, err
		}
	}
	if req.BusinessName != nil {
		name := strings.TrimSpace(*req.BusinessName)
		if name == "" {
			return nil, ErrBusinessNameRequired
		}
		existing.BusinessName = name
	}
	if req.PrimaryColor != nil {
		if existing.PrimaryColor, err = normalizeColor(*req.PrimaryColor, DefaultPrimaryColor); err != nil {
			return nil, err
		}
	}
	if req.SecondaryColor != nil {
		if existing.SecondaryColor, err = normalizeColor(*req.SecondaryColor, ""); err != nil {
			return nil, err
		}
	}
	if req.LogoURL != nil {
		existing.LogoURL = optionalString(*req.LogoURL)
	}
	if req.FaviconURL != nil {
		existing.FaviconURL = optionalString(*req.FaviconURL)
	}
	if req.PlanTier != nil {
		if !validPlanTier(*req.PlanTier) {
			return nil, ErrInvalidPlanTier
		}
		existing.PlanTier = *req.PlanTier
	}
	if req.Terminology != nil {
		existing.Terminology = req.Terminology
	}
	if req.Status != nil && *req.Status != "" {
		existing.Status = *req.Status
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.tenantRepo.Update(ctx, existing); err != nil {
		return nil, err
	}

	// Old lookup keys must go too, or a renamed subdomain keeps resolving from cache.
	s.invalidate(ctx, &previous)
	s.invalidate(ctx, existing)
	return existing, nil
}

func (s *tenantService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	clients, err := s.profileRepo.CountByRole(ctx, id, models.RoleClient)
	if err != nil {
		return fmt.Errorf("count tenant clients: %w", err)
	}
	if clients > 0 {
		return ErrTenantHasClients
	}
	if err := s.tenantRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, existing)
	s.log.Info("tenant deleted", zap.String("tenant_id", id.String()))
	return nil
}

func (s *tenantService) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.tenantRepo.List(ctx, limit, offset)
}

func (s *tenantService) invalidate(ctx context.Context, tenant *models.Tenant) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, tenant); err != nil {
		s.log.Warn("tenant cache invalidation failed", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
	}
}

func normalizeSubdomain(raw string) (string, error) {
	sub := strings.ToLower(strings.TrimSpace(raw))
	if !subdomainPattern.MatchString(sub) {
		return "", ErrInvalidSubdomain
	}
	return sub, nil
}

func normalizeCustomDomain(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	host := NormalizeHostname(*raw)
	if host == "" {
		return nil, nil
	}
	if !hostnamePattern.MatchString(host) {
		return nil, ErrInvalidDomain
	}
	return &host, nil
}

func normalizeColor(raw, fallback string) (string, error) {
	color := strings.ToLower(strings.TrimSpace(raw))
	if color == "" {
		return fallback, nil
	}
	if _, err := HexToHSL(color); err != nil {
		return "", ErrInvalidColor
	}
	return color, nil
}

func validPlanTier(tier models.PlanTier) bool {
	switch tier {
	case models.PlanStarter, models.PlanPro, models.PlanElite:
		return true
	}
	return false
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
