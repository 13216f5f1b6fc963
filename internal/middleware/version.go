package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one mounted API generation.
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active" or "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
}

// VersionMiddleware mounts versioned route groups and stamps version headers on responses.
type VersionMiddleware struct {
	versions map[string]APIVersion
	current  string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		versions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active"},
		},
		current: "v1",
	}
}

// Deprecate marks version as deprecated with an optional sunset date.
func (vm *VersionMiddleware) Deprecate(version string, sunset *time.Time) {
	vm.versions[version] = APIVersion{Version: version, Status: "deprecated", SunsetDate: sunset}
}

func (vm *VersionMiddleware) header(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)
			if v, ok := vm.versions[version]; ok && v.Status == "deprecated" {
				h.Set("X-API-Deprecated", "true")
				if v.SunsetDate != nil {
					h.Set("Sunset", v.SunsetDate.UTC().Format(http.TimeFormat))
				}
			}
			return next(c)
		}
	}
}

// Group returns the route group for version with the header middleware applied.
func (vm *VersionMiddleware) Group(e *echo.Echo, version string, m ...echo.MiddlewareFunc) *echo.Group {
	return e.Group("/"+version, append([]echo.MiddlewareFunc{vm.header(version)}, m...)...)
}

// Versions lists the mounted versions for the /version endpoint.
func (vm *VersionMiddleware) Versions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"current":  vm.current,
		"versions": vm.versions,
	})
}
