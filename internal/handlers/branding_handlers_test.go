package handlers

import (
	"errors"
	"net/http"
	"testing"

	"coachhub/internal/models"
	"coachhub/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetBranding(t *testing.T) {
	logo := "https://cdn.example.com/acme.png"
	acme := &models.Tenant{
		ID:           uuid.New(),
		Subdomain:    "acme",
		BusinessName: "Acme Fitness",
		PrimaryColor: "#ff0000",
		LogoURL:      &logo,
		Terminology:  map[string]string{"client": "athlete"},
	}

	tests := []struct {
		name      string
		res       *services.Resolution
		err       error
		wantTitle string
		wantHSL   string
		isDefault bool
	}{
		{"tenant resolved", &services.Resolution{Tenant: acme, Source: services.SourceSubdomain}, nil, "Acme Fitness | Coaching", "0 100% 50%", false},
		{"no tenant", &services.Resolution{Source: services.SourceNone}, nil, services.DefaultTitle, "", true},
		{"resolver error", nil, errors.New("redis down"), services.DefaultTitle, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockTenantResolver)
			resolver.On("Resolve", mock.Anything, mock.Anything).Return(tt.res, tt.err)
			h := NewBrandingHandlers(NewTenantScope(resolver, false), zap.NewNop())

			c, rec := newRequestContext(echo.New(), http.MethodGet, "/v1/branding", nil, nil)
			require.NoError(t, h.GetBranding(c))
			assert.Equal(t, http.StatusOK, rec.Code)

			var got models.Branding
			require.NoError(t, decodeBody(rec, &got))
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.isDefault, got.IsDefault)
			if tt.wantHSL != "" {
				assert.Equal(t, tt.wantHSL, got.PrimaryHSL)
				assert.Equal(t, logo, got.FaviconURL)
				assert.Equal(t, "athlete", got.Terminology["client"])
			}
		})
	}
}

func TestGetBranding_DevOverride(t *testing.T) {
	for _, dev := range []bool{true, false} {
		resolver := new(MockTenantResolver)
		want := ""
		if dev {
			want = "zen"
		}
		resolver.On("Resolve", mock.Anything, mock.MatchedBy(func(req services.ResolveRequest) bool {
			return req.DevOverride == want
		})).Return(&services.Resolution{Source: services.SourceNone}, nil).Once()
		h := NewBrandingHandlers(NewTenantScope(resolver, dev), zap.NewNop())

		c, _ := newRequestContext(echo.New(), http.MethodGet, "/v1/branding?tenant=zen", nil, nil)
		require.NoError(t, h.GetBranding(c))
		resolver.AssertExpectations(t)
	}
}
