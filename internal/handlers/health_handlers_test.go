package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandlers(up, down, "test")
	c, rec := newRequestContext(echo.New(), http.MethodGet, "/health", nil, nil)

	require.NoError(t, h.HealthCheck(c))

	var status HealthStatus
	require.NoError(t, decodeBody(rec, &status))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "healthy", status.Services["database"])
	assert.Equal(t, "unhealthy", status.Services["redis"])
	assert.Equal(t, "test", status.Version)
}

func TestReadinessCheck(t *testing.T) {
	c, rec := newRequestContext(echo.New(), http.MethodGet, "/health/ready", nil, nil)
	require.NoError(t, NewHealthHandlers(up, up, "test").ReadinessCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newRequestContext(echo.New(), http.MethodGet, "/health/ready", nil, nil)
	require.NoError(t, NewHealthHandlers(down, up, "test").ReadinessCheck(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
