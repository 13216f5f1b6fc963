package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Profile is an authenticated identity. A nil TenantID means the identity is not yet bound to a tenant.
type Profile struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TenantID        *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	Role            Role       `json:"role" db:"role"`
	AssignedCoachID *uuid.UUID `json:"assigned_coach_id,omitempty" db:"assigned_coach_id"`
	DisplayName     string     `json:"display_name" db:"display_name"`
	Email           string     `json:"email" db:"email"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

func (p *Profile) IsClient() bool {
	return p != nil && p.Role == RoleClient
}

// BoundTenant returns the tenant the identity is bound to, if any.
func (p *Profile) BoundTenant() (uuid.UUID, bool) {
	if p == nil || p.TenantID == nil || *p.TenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return *p.TenantID, true
}
