package models

// Branding is the presentation state published to a client for its resolved tenant.
type Branding struct {
	TenantID     string            `json:"tenant_id,omitempty"`
	PrimaryHex   string            `json:"primary_hex"`
	PrimaryHSL   string            `json:"primary_hsl"`
	SecondaryHex string            `json:"secondary_hex,omitempty"`
	Title        string            `json:"title"`
	LogoURL      string            `json:"logo_url,omitempty"`
	FaviconURL   string            `json:"favicon_url"`
	Terminology  map[string]string `json:"terminology,omitempty"`
	IsDefault    bool              `json:"is_default"`
}
