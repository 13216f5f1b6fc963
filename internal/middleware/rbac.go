package middleware

import (
	"net/http"

	"coachhub/internal/common"
	"coachhub/internal/models"

	"github.com/labstack/echo/v4"
)

// RequireRole admits only profiles holding one of roles. It must run after ProfileMiddleware.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			profile, ok := common.GetProfileFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			if _, ok := allowed[profile.Role]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireTenantAccess admits admins, and coaches only for the tenant named by the :id path param.
func RequireTenantAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			profile, ok := common.GetProfileFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			if profile.Role == models.RoleAdmin {
				return next(c)
			}
			tenantID, bound := profile.BoundTenant()
			if profile.Role != models.RoleCoach || !bound || tenantID.String() != c.Param("id") {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
