package testhelpers

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"coachhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL and applies the schema. The test is skipped
// when no database is configured or -short is set.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile(migrationPath("001_init.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() {
			_, _ = pool.Exec(context.Background(), `TRUNCATE reports, blocks, messages, profiles, tenants CASCADE`)
			pool.Close()
		},
	}
}

func migrationPath(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "migrations", name)
}

// SetupTestTenant creates a tenant with a unique subdomain.
func SetupTestTenant(t *testing.T, db *TestDB) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		ID:           uuid.New(),
		Subdomain:    "t-" + uuid.NewString()[:8],
		BusinessName: "Test Coaching",
		PrimaryColor: "#2563eb",
		PlanTier:     models.PlanStarter,
		Terminology:  map[string]string{},
		Status:       "active",
	}
	query := `
		INSERT INTO tenants (id, subdomain, business_name, primary_color, plan_tier, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Pool.Exec(context.Background(), query, tenant.ID, tenant.Subdomain, tenant.BusinessName,
		tenant.PrimaryColor, string(tenant.PlanTier), tenant.Status)
	if err != nil {
		t.Fatalf("Failed to create test tenant: %v", err)
	}

	return tenant
}

// SetupTestProfile creates an identity bound to tenantID (nil leaves it unbound).
func SetupTestProfile(t *testing.T, db *TestDB, tenantID *uuid.UUID, role models.Role, name string, coachID *uuid.UUID) *models.Profile {
	t.Helper()

	profile := &models.Profile{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Role:            role,
		AssignedCoachID: coachID,
		DisplayName:     name,
	}
	query := `
		INSERT INTO profiles (id, tenant_id, role, assigned_coach_id, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, clock_timestamp(), clock_timestamp())
	`
	_, err := db.Pool.Exec(context.Background(), query, profile.ID, profile.TenantID, string(profile.Role),
		profile.AssignedCoachID, profile.DisplayName)
	if err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	return profile
}
