package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coachhub/internal/common"
	"coachhub/internal/models"
	"coachhub/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

type stubProfiles struct {
	repositories.ProfileRepository
	profiles map[uuid.UUID]*models.Profile
}

func (s *stubProfiles) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, repositories.ErrNotFound
}

func signToken(t *testing.T, sub, jti string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		ID:        jti,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newAuthedEcho(profiles repositories.ProfileRepository, extra ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	chain := append([]echo.MiddlewareFunc{JWTMiddleware(AuthConfig{Secret: testSecret}), ProfileMiddleware(profiles)}, extra...)
	e.GET("/me", func(c echo.Context) error {
		p, _ := common.GetProfileFromContext(c.Request().Context())
		sid, _ := common.GetSessionIDFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, map[string]string{"id": p.ID.String(), "session": sid})
	}, chain...)
	return e
}

func TestJWTMiddleware_ValidTokenLoadsProfile(t *testing.T) {
	userID := uuid.New()
	profiles := &stubProfiles{profiles: map[uuid.UUID]*models.Profile{userID: {ID: userID, Role: models.RoleClient}}}
	e := newAuthedEcho(profiles)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, userID.String(), "sess-1"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), userID.String())
	assert.Contains(t, rec.Body.String(), "sess-1")
}

func TestJWTMiddleware_QueryTokenAccepted(t *testing.T) {
	userID := uuid.New()
	profiles := &stubProfiles{profiles: map[uuid.UUID]*models.Profile{userID: {ID: userID, Role: models.RoleClient}}}
	e := newAuthedEcho(profiles)

	req := httptest.NewRequest(http.MethodGet, "/me?access_token="+signToken(t, userID.String(), ""), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	known := uuid.New()
	profiles := &stubProfiles{profiles: map[uuid.UUID]*models.Profile{known: {ID: known}}}
	e := newAuthedEcho(profiles)

	tests := []struct {
		name   string
		header string
	}{
		{"missing token", ""},
		{"garbage token", "Bearer not-a-jwt"},
		{"subject not a uuid", "Bearer " + signToken(t, "alice", "")},
		{"unknown user", "Bearer " + signToken(t, uuid.NewString(), "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	coachID, clientID := uuid.New(), uuid.New()
	profiles := &stubProfiles{profiles: map[uuid.UUID]*models.Profile{
		coachID:  {ID: coachID, Role: models.RoleCoach},
		clientID: {ID: clientID, Role: models.RoleClient},
	}}
	e := newAuthedEcho(profiles, RequireRole(models.RoleCoach, models.RoleAdmin))

	for id, want := range map[uuid.UUID]int{coachID: http.StatusOK, clientID: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, id.String(), ""))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}

func TestRequireTenantAccess(t *testing.T) {
	tenantID := uuid.New()
	coach := &models.Profile{ID: uuid.New(), Role: models.RoleCoach, TenantID: &tenantID}
	admin := &models.Profile{ID: uuid.New(), Role: models.RoleAdmin}

	tests := []struct {
		name    string
		profile *models.Profile
		param   string
		want    int
	}{
		{"coach of tenant", coach, tenantID.String(), http.StatusOK},
		{"coach of other tenant", coach, uuid.NewString(), http.StatusForbidden},
		{"admin", admin, uuid.NewString(), http.StatusOK},
		{"anonymous", nil, tenantID.String(), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPut, "/", nil)
			if tt.profile != nil {
				req = req.WithContext(common.WithProfile(req.Context(), tt.profile))
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.param)

			err := RequireTenantAccess()(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})(c)
			if tt.want == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.want, he.Code)
		})
	}
}

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError) })
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/ok", "/boom", "/health"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[1].ContextMap()["status"])
}

func TestVersionMiddleware_Headers(t *testing.T) {
	vm := NewVersionMiddleware()
	e := echo.New()
	v1 := vm.Group(e, "v1")
	v1.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
	assert.Empty(t, rec.Header().Get("X-API-Deprecated"))

	sunset := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	vm.Deprecate("v1", &sunset)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
	assert.Equal(t, "Fri, 01 Jan 2027 00:00:00 GMT", rec.Header().Get("Sunset"))
}

func TestOptionalAuth(t *testing.T) {
	userID := uuid.New()
	profiles := &stubProfiles{profiles: map[uuid.UUID]*models.Profile{userID: {ID: userID}}}
	e := echo.New()
	e.GET("/branding", func(c echo.Context) error {
		if p, ok := common.GetProfileFromContext(c.Request().Context()); ok {
			return c.String(http.StatusOK, p.ID.String())
		}
		return c.String(http.StatusOK, "anonymous")
	}, OptionalAuth(AuthConfig{Secret: testSecret}, profiles))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/branding", nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/branding", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, userID.String(), ""))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, userID.String(), rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/branding", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer broken")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type countingLimiter struct {
	hits map[string]int
	err  error
}

func (l *countingLimiter) IsRateLimited(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return true, l.err
	}
	l.hits[key]++
	return l.hits[key] > limit, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}}
	e := echo.New()
	e.POST("/send", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		RateLimit(limiter, "send", 2, time.Minute, zap.NewNop()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Len(t, limiter.hits, 1)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: assert.AnError}
	e := echo.New()
	e.POST("/send", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		RateLimit(limiter, "send", 1, time.Minute, zap.NewNop()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}
