package handlers

import (
	"net/http"

	"coachhub/internal/common"
	"coachhub/internal/models"
	"coachhub/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantScope resolves the tenant a request acts in from its Host header and the
// authenticated profile, if any.
type TenantScope struct {
	resolver services.TenantResolver
	// devOverride honours ?tenant= and must only be set in development.
	devOverride bool
}

func NewTenantScope(resolver services.TenantResolver, devOverride bool) *TenantScope {
	return &TenantScope{resolver: resolver, devOverride: devOverride}
}

// Resolve returns the request's profile (nil when anonymous) and its tenant (nil when none matched).
func (s *TenantScope) Resolve(c echo.Context) (*models.Profile, *models.Tenant, error) {
	profile, _ := common.GetProfileFromContext(c.Request().Context())
	req := services.ResolveRequest{
		Hostname: c.Request().Host,
		Identity: profile,
	}
	if s.devOverride {
		req.DevOverride = c.QueryParam("tenant")
	}
	res, err := s.resolver.Resolve(c.Request().Context(), req)
	if err != nil {
		return profile, nil, err
	}
	return profile, res.Tenant, nil
}

// requireTenant resolves the scope for an authenticated request. The returned error is an
// *echo.HTTPError ready to hand back to echo.
func (s *TenantScope) requireTenant(c echo.Context) (*models.Profile, *models.Tenant, error) {
	profile, tenant, err := s.Resolve(c)
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve tenant").SetInternal(err)
	}
	if profile == nil {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	if tenant == nil {
		return nil, nil, echo.NewHTTPError(http.StatusNotFound, "No tenant matches this request")
	}
	return profile, tenant, nil
}
