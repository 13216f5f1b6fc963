package handlers

import (
	"net/http"

	"coachhub/internal/common"
	"coachhub/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantHandlers handles tenant administration and brand asset uploads.
type TenantHandlers struct {
	tenantService services.TenantService
	assets        services.BrandAssetService
	log           *zap.Logger
}

func NewTenantHandlers(tenantService services.TenantService, assets services.BrandAssetService, log *zap.Logger) *TenantHandlers {
	return &TenantHandlers{
		tenantService: tenantService,
		assets:        assets,
		log:           log,
	}
}

// ListTenantsRequest represents query parameters for listing tenants
type ListTenantsRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// ListTenants handles getting a list of tenants (admin only)
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	var req ListTenantsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	req.Limit, req.Offset = common.ValidatePaginationParams(req.Limit, req.Offset)

	tenants, err := h.tenantService.List(c.Request().Context(), req.Limit, req.Offset)
	if err != nil {
		return respondError(c, h.log, err, "Failed to list tenants")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"limit":   req.Limit,
		"offset":  req.Offset,
	})
}

// CreateTenant onboards a coach's brand (admin only).
func (h *TenantHandlers) CreateTenant(c echo.Context) error {
	var req services.CreateTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	tenant, err := h.tenantService.Create(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.log, err, "Failed to create tenant")
	}

	return c.JSON(http.StatusCreated, tenant)
}

// GetTenant handles getting tenant details by ID
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	tenantID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	tenant, err := h.tenantService.GetByID(c.Request().Context(), tenantID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to load tenant")
	}

	return c.JSON(http.StatusOK, tenant)
}

// UpdateTenant applies the fields present in the body.
func (h *TenantHandlers) UpdateTenant(c echo.Context) error {
	tenantID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req services.UpdateTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	tenant, err := h.tenantService.Update(c.Request().Context(), tenantID, &req)
	if err != nil {
		return respondError(c, h.log, err, "Failed to update tenant")
	}

	return c.JSON(http.StatusOK, tenant)
}

// DeleteTenant handles deleting a tenant (admin only). Refused while clients remain.
func (h *TenantHandlers) DeleteTenant(c echo.Context) error {
	tenantID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.tenantService.Delete(c.Request().Context(), tenantID); err != nil {
		return respondError(c, h.log, err, "Failed to delete tenant")
	}

	return c.NoContent(http.StatusNoContent)
}

// UploadLogo stores the multipart "file" as the tenant's logo.
func (h *TenantHandlers) UploadLogo(c echo.Context) error {
	return h.uploadAsset(c, services.AssetLogo)
}

// UploadFavicon stores the multipart "file" as the tenant's favicon.
func (h *TenantHandlers) UploadFavicon(c echo.Context) error {
	return h.uploadAsset(c, services.AssetFavicon)
}

func (h *TenantHandlers) uploadAsset(c echo.Context, kind services.AssetKind) error {
	tenantID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return common.SendValidationError(c, "file", "file is required")
	}
	if file.Size > services.MaxBrandAssetSize {
		return common.SendValidationError(c, "file", "file exceeds the 2 MiB limit")
	}

	src, err := file.Open()
	if err != nil {
		return common.SendServerError(c, "Failed to read upload")
	}
	defer src.Close()

	tenant, err := h.assets.Upload(c.Request().Context(), tenantID, kind, file.Header.Get("Content-Type"), src, file.Size)
	if err != nil {
		return respondError(c, h.log, err, "Failed to upload brand asset")
	}

	return c.JSON(http.StatusOK, tenant)
}
