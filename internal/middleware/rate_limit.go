package middleware

import (
	"context"
	"net/http"
	"time"

	"coachhub/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RateLimiter counts hits per key over a fixed window. caching.CacheService satisfies it.
type RateLimiter interface {
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit allows limit requests per window for each caller of the named route, keyed by
// profile id or, for anonymous callers, by client IP. A limiter outage lets requests through.
func RateLimit(limiter RateLimiter, name string, limit int, window time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}
			caller := "ip:" + c.RealIP()
			if userID, ok := common.GetUserIDFromContext(c.Request().Context()); ok {
				caller = "user:" + userID.String()
			}

			limited, err := limiter.IsRateLimited(c.Request().Context(), name+":"+caller, limit, window)
			if err != nil {
				log.Warn("rate limiter unavailable", zap.String("route", name), zap.Error(err))
				return next(c)
			}
			if limited {
				return c.JSON(http.StatusTooManyRequests, common.CreateErrorResponse("RATE_LIMITED", "Too many requests, slow down", nil))
			}
			return next(c)
		}
	}
}
