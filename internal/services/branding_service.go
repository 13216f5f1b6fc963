package services

import (
	"fmt"
	"math"
	"sync"

	"coachhub/internal/models"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
)

const (
	DefaultPrimaryColor = "#2563eb"
	DefaultTitle        = "Coaching Platform"
	DefaultFaviconURL   = "/favicon.ico"
)

// HexToHSL converts "#rrggbb" (or "#rgb") to the "H S% L%" triple used by theme variables.
func HexToHSL(hex string) (string, error) {
	c, err := colorful.Hex(expandShortHex(hex))
	if err != nil {
		return "", fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	h, s, l := c.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return fmt.Sprintf("%d %d%% %d%%", int(math.Round(h)), int(math.Round(s*100)), int(math.Round(l*100))), nil
}

func expandShortHex(hex string) string {
	if len(hex) == 4 && hex[0] == '#' {
		return string([]byte{'#', hex[1], hex[1], hex[2], hex[2], hex[3], hex[3]})
	}
	return hex
}

// DefaultBranding is the hardcoded brand shown when no tenant is resolved.
func DefaultBranding() models.Branding {
	hsl, _ := HexToHSL(DefaultPrimaryColor)
	return models.Branding{
		PrimaryHex: DefaultPrimaryColor,
		PrimaryHSL: hsl,
		Title:      DefaultTitle,
		FaviconURL: DefaultFaviconURL,
		IsDefault:  true,
	}
}

// BrandingFor computes the branding for tenant without touching any published state.
// A nil tenant yields DefaultBranding. An unparseable primary color falls back to the default color.
func BrandingFor(tenant *models.Tenant) (models.Branding, error) {
	if tenant == nil {
		return DefaultBranding(), nil
	}

	b := models.Branding{
		TenantID:     tenant.ID.String(),
		PrimaryHex:   tenant.PrimaryColor,
		SecondaryHex: tenant.SecondaryColor,
		Title:        tenant.BusinessName,
		FaviconURL:   DefaultFaviconURL,
		Terminology:  tenant.Terminology,
	}
	if tenant.BusinessName != "" {
		b.Title = fmt.Sprintf("%s | Coaching", tenant.BusinessName)
	} else {
		b.Title = DefaultTitle
	}
	if tenant.LogoURL != nil {
		b.LogoURL = *tenant.LogoURL
	}
	if tenant.FaviconURL != nil && *tenant.FaviconURL != "" {
		b.FaviconURL = *tenant.FaviconURL
	} else if b.LogoURL != "" {
		b.FaviconURL = b.LogoURL
	}

	hsl, err := HexToHSL(tenant.PrimaryColor)
	if err != nil {
		b.PrimaryHex = DefaultPrimaryColor
		b.PrimaryHSL, _ = HexToHSL(DefaultPrimaryColor)
		return b, err
	}
	b.PrimaryHSL = hsl
	return b, nil
}

// BrandingInjector owns one client's published branding. Apply and Reset are the only writers.
type BrandingInjector struct {
	mu    sync.RWMutex
	state models.Branding
	log   *zap.Logger
}

func NewBrandingInjector(log *zap.Logger) *BrandingInjector {
	return &BrandingInjector{state: DefaultBranding(), log: log}
}

// Apply publishes tenant's branding. A nil tenant is the same as Reset.
func (b *BrandingInjector) Apply(tenant *models.Tenant) models.Branding {
	if tenant == nil {
		return b.Reset()
	}
	next, err := BrandingFor(tenant)
	if err != nil {
		b.log.Warn("tenant primary color rejected, using default",
			zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
	}

	b.mu.Lock()
	b.state = next
	b.mu.Unlock()
	return cloneBranding(next)
}

// Reset restores the default brand. Safe to call repeatedly or before any Apply.
func (b *BrandingInjector) Reset() models.Branding {
	def := DefaultBranding()
	b.mu.Lock()
	b.state = def
	b.mu.Unlock()
	return def
}

func (b *BrandingInjector) Current() models.Branding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneBranding(b.state)
}

func cloneBranding(src models.Branding) models.Branding {
	if src.Terminology != nil {
		terms := make(map[string]string, len(src.Terminology))
		for k, v := range src.Terminology {
			terms[k] = v
		}
		src.Terminology = terms
	}
	return src
}
