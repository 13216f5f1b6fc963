package handlers

import (
	"net/http"

	"coachhub/internal/common"
	"coachhub/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ModerationHandlers struct {
	moderation services.ModerationService
	scope      *TenantScope
	log        *zap.Logger
}

func NewModerationHandlers(moderation services.ModerationService, scope *TenantScope, log *zap.Logger) *ModerationHandlers {
	return &ModerationHandlers{moderation: moderation, scope: scope, log: log}
}

type BlockUserRequest struct {
	BlockedID string `json:"blocked_id" validate:"required"`
}

// BlockUser hides every message of blocked_id from the caller. Repeating it is a no-op.
func (h *ModerationHandlers) BlockUser(c echo.Context) error {
	profile, ok := common.GetProfileFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req BlockUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	blockedID, err := common.ValidateUUID(req.BlockedID, "blocked_id")
	if err != nil {
		return common.SendValidationError(c, "blocked_id", err.Error())
	}

	if err := h.moderation.Block(c.Request().Context(), profile.ID, blockedID); err != nil {
		return respondError(c, h.log, err, "Failed to block user")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ModerationHandlers) ListBlocks(c echo.Context) error {
	profile, ok := common.GetProfileFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	ids, err := h.moderation.BlockedIDs(c.Request().Context(), profile.ID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to load block list")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"blocked_ids": ids})
}

// ReportUser files a report for moderator review. Failures are always returned to the caller.
func (h *ModerationHandlers) ReportUser(c echo.Context) error {
	var req services.ReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.ReportedID == uuid.Nil {
		return common.SendValidationError(c, "reported_id", "reported_id is required")
	}

	profile, tenant, err := h.scope.Resolve(c)
	if profile == nil {
		return common.SendUnauthorizedError(c)
	}
	if err != nil {
		h.log.Warn("tenant resolution failed for report", zap.String("user_id", profile.ID.String()), zap.Error(err))
	}
	req.ReporterID = profile.ID
	if tenant != nil {
		req.TenantID = &tenant.ID
	}

	report, err := h.moderation.Report(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.log, err, "Failed to submit report")
	}
	return c.JSON(http.StatusCreated, report)
}
