package handlers

import (
	"net/http"

	"coachhub/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type BrandingHandlers struct {
	scope *TenantScope
	log   *zap.Logger
}

func NewBrandingHandlers(scope *TenantScope, log *zap.Logger) *BrandingHandlers {
	return &BrandingHandlers{scope: scope, log: log}
}

// GetBranding returns the branding for the request's tenant. Resolution failures fall back
// to the default branding; they are never surfaced to the caller.
func (h *BrandingHandlers) GetBranding(c echo.Context) error {
	_, tenant, err := h.scope.Resolve(c)
	if err != nil {
		h.log.Warn("tenant resolution failed, serving default branding",
			zap.String("host", c.Request().Host), zap.Error(err))
		return c.JSON(http.StatusOK, services.DefaultBranding())
	}

	branding, err := services.BrandingFor(tenant)
	if err != nil {
		h.log.Warn("tenant primary color invalid, using default color",
			zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
	}
	return c.JSON(http.StatusOK, branding)
}
