package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coachhub/internal/common"
	"coachhub/internal/repositories"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// tokenContextKey is where echo-jwt stores the parsed *jwt.Token.
const tokenContextKey = "user"

// AuthConfig selects how access tokens are verified: a JWKS key function when the identity
// provider publishes one, otherwise a shared HMAC secret.
type AuthConfig struct {
	Secret  string
	KeyFunc jwt.Keyfunc
}

// NewJWKSKeyfunc fetches the provider's key set and keeps it refreshed in the background
// until ctx is cancelled.
func NewJWKSKeyfunc(ctx context.Context, jwksURL string, log *zap.Logger) (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn("jwks refresh failed", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load jwks from %s: %w", jwksURL, err)
	}
	return jwks, nil
}

// JWTMiddleware verifies the bearer token. Browsers cannot set headers on websocket
// upgrades, so the access_token query parameter is accepted too.
func JWTMiddleware(cfg AuthConfig) echo.MiddlewareFunc {
	config := echojwt.Config{
		ContextKey:  tokenContextKey,
		TokenLookup: "header:Authorization:Bearer ,query:access_token",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(jwt.RegisteredClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
	if cfg.KeyFunc != nil {
		config.KeyFunc = cfg.KeyFunc
	} else {
		config.SigningKey = []byte(cfg.Secret)
	}
	return echojwt.WithConfig(config)
}

// ProfileMiddleware loads the profile named by the token subject into the request context.
// It must run after JWTMiddleware.
func ProfileMiddleware(profiles repositories.ProfileRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(tokenContextKey).(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}
			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user_id format")
			}

			profile, err := profiles.GetByID(c.Request().Context(), userID)
			if errors.Is(err, repositories.ErrNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load profile")
			}

			ctx := common.WithProfile(c.Request().Context(), profile)
			if claims.ID != "" {
				ctx = context.WithValue(ctx, common.SessionIDKey, claims.ID)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// OptionalAuth authenticates the request only when it carries a token. Anonymous requests
// pass through without a profile; a bad token is still rejected.
func OptionalAuth(cfg AuthConfig, profiles repositories.ProfileRepository) echo.MiddlewareFunc {
	jwtMW := JWTMiddleware(cfg)
	profileMW := ProfileMiddleware(profiles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		authed := jwtMW(profileMW(next))
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" && c.QueryParam("access_token") == "" {
				return next(c)
			}
			return authed(c)
		}
	}
}
