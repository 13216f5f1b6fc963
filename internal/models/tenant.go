package models

import (
	"time"

	"github.com/google/uuid"
)

type PlanTier string

const (
	PlanStarter PlanTier = "starter"
	PlanPro     PlanTier = "pro"
	PlanElite   PlanTier = "elite"
)

// Tenant is a coach's brand. Subdomain and CustomDomain are each unique across tenants.
type Tenant struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	Subdomain      string            `json:"subdomain" db:"subdomain"`
	CustomDomain   *string           `json:"custom_domain,omitempty" db:"custom_domain"`
	BusinessName   string            `json:"business_name" db:"business_name"`
	PrimaryColor   string            `json:"primary_color" db:"primary_color"`
	SecondaryColor string            `json:"secondary_color" db:"secondary_color"`
	LogoURL        *string           `json:"logo_url,omitempty" db:"logo_url"`
	FaviconURL     *string           `json:"favicon_url,omitempty" db:"favicon_url"`
	PlanTier       PlanTier          `json:"plan_tier" db:"plan_tier"`
	Terminology    map[string]string `json:"terminology" db:"terminology"`
	Status         string            `json:"status" db:"status"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// Term returns the tenant's override for a UI word, or fallback when none is configured.
func (t *Tenant) Term(key, fallback string) string {
	if t == nil || t.Terminology == nil {
		return fallback
	}
	if v, ok := t.Terminology[key]; ok && v != "" {
		return v
	}
	return fallback
}
