package handlers

import (
	"errors"
	"net/http"

	"coachhub/internal/common"
	"coachhub/internal/repositories"
	"coachhub/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError maps service and repository sentinels onto the JSON error envelope.
// Anything unrecognised is logged and reported as a server error with fallback as message.
func respondError(c echo.Context, log *zap.Logger, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrInvalidReceiver),
		errors.Is(err, services.ErrSelfModeration),
		errors.Is(err, services.ErrReasonRequired),
		errors.Is(err, services.ErrBusinessNameRequired),
		errors.Is(err, services.ErrInvalidSubdomain),
		errors.Is(err, services.ErrInvalidDomain),
		errors.Is(err, services.ErrInvalidColor),
		errors.Is(err, services.ErrInvalidPlanTier),
		errors.Is(err, services.ErrUnsupportedAsset),
		errors.Is(err, repositories.ErrInvalidReference):
		return c.JSON(http.StatusBadRequest, common.CreateErrorResponse("VALIDATION_ERROR", err.Error(), nil))
	case errors.Is(err, services.ErrNoCoachAvailable):
		return c.JSON(http.StatusUnprocessableEntity, common.CreateErrorResponse("NO_COACH_AVAILABLE", err.Error(), nil))
	case errors.Is(err, services.ErrTenantMismatch):
		return common.SendForbiddenError(c)
	case errors.Is(err, services.ErrTenantNotFound), errors.Is(err, repositories.ErrNotFound):
		return common.SendNotFoundError(c, "Resource")
	case errors.Is(err, services.ErrTenantHasClients):
		return common.SendConflictError(c, "TENANT_HAS_CLIENTS", err.Error())
	case errors.Is(err, repositories.ErrDuplicate):
		return common.SendConflictError(c, "ALREADY_EXISTS", "Subdomain or custom domain is already taken")
	}
	log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
	return common.SendServerError(c, fallback)
}
