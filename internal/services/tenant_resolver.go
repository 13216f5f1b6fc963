package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"coachhub/internal/caching"
	"coachhub/internal/metrics"
	"coachhub/internal/models"
	"coachhub/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolution sources, also used as metric labels.
const (
	SourceIdentity     = "identity"
	SourceCustomDomain = "custom_domain"
	SourceSubdomain    = "subdomain"
	SourceDevOverride  = "dev_override"
	SourceNone         = "none"
	SourceError        = "error"
)

// ResolveRequest carries the ambient signals a tenant is resolved from.
type ResolveRequest struct {
	Hostname string
	Identity *models.Profile
	// DevOverride is a subdomain supplied out of band (e.g. ?tenant=). It is ignored
	// unless the resolver was built with development overrides enabled.
	DevOverride string
}

// Resolution is the outcome of a resolve call. Tenant is nil when no tenant matched.
type Resolution struct {
	Tenant *models.Tenant
	Source string
}

type TenantResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error)
}

type tenantResolver struct {
	tenantRepo       repositories.TenantRepository
	cache            caching.CacheService
	cacheTTL         time.Duration
	allowDevOverride bool
	metrics          *metrics.Metrics
	log              *zap.Logger
}

type TenantResolverConfig struct {
	CacheTTL         time.Duration
	AllowDevOverride bool
}

func NewTenantResolver(tenantRepo repositories.TenantRepository, cache caching.CacheService, cfg TenantResolverConfig,
	m *metrics.Metrics, log *zap.Logger) TenantResolver {
	return &tenantResolver{
		tenantRepo:       tenantRepo,
		cache:            cache,
		cacheTTL:         cfg.CacheTTL,
		allowDevOverride: cfg.AllowDevOverride,
		metrics:          m,
		log:              log,
	}
}

// NormalizeHostname lowercases host and strips any port and trailing dot.
func NormalizeHostname(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// SubdomainLabel returns the first label of host when it has at least three labels.
func SubdomainLabel(host string) (string, bool) {
	labels := strings.Split(host, ".")
	if len(labels) < 3 || labels[0] == "" {
		return "", false
	}
	return labels[0], true
}

// Resolve applies, in order: the identity's bound tenant, custom domain, subdomain,
// and finally the development override for bare hosts. The first match wins.
func (r *tenantResolver) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	res, err := r.resolve(ctx, req)
	if err != nil {
		r.metrics.TenantResolutions.WithLabelValues(SourceError).Inc()
		return nil, err
	}
	r.metrics.TenantResolutions.WithLabelValues(res.Source).Inc()
	return res, nil
}

func (r *tenantResolver) resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	if tenantID, ok := req.Identity.BoundTenant(); ok {
		tenant, err := r.lookup(ctx, "id:"+tenantID.String(), func() (*models.Tenant, error) {
			return r.tenantRepo.GetByID(ctx, tenantID)
		})
		if err != nil {
			return nil, fmt.Errorf("resolve tenant %s for identity %s: %w", tenantID, req.Identity.ID, err)
		}
		if tenant != nil {
			return &Resolution{Tenant: tenant, Source: SourceIdentity}, nil
		}
		r.log.Warn("identity bound to missing tenant, falling back to hostname",
			zap.String("user_id", req.Identity.ID.String()), zap.String("tenant_id", tenantID.String()))
	}

	host := NormalizeHostname(req.Hostname)
	if host == "" {
		return r.devOverride(ctx, req.DevOverride)
	}

	tenant, err := r.lookup(ctx, "domain:"+host, func() (*models.Tenant, error) {
		return r.tenantRepo.GetByCustomDomain(ctx, host)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve custom domain %s: %w", host, err)
	}
	if tenant != nil {
		return &Resolution{Tenant: tenant, Source: SourceCustomDomain}, nil
	}

	if sub, ok := SubdomainLabel(host); ok {
		tenant, err := r.lookup(ctx, "sub:"+sub, func() (*models.Tenant, error) {
			return r.tenantRepo.GetBySubdomain(ctx, sub)
		})
		if err != nil {
			return nil, fmt.Errorf("resolve subdomain %s: %w", sub, err)
		}
		if tenant != nil {
			return &Resolution{Tenant: tenant, Source: SourceSubdomain}, nil
		}
		return &Resolution{Source: SourceNone}, nil
	}

	return r.devOverride(ctx, req.DevOverride)
}

func (r *tenantResolver) devOverride(ctx context.Context, override string) (*Resolution, error) {
	override = strings.TrimSpace(strings.ToLower(override))
	if !r.allowDevOverride || override == "" {
		return &Resolution{Source: SourceNone}, nil
	}
	tenant, err := r.lookup(ctx, "sub:"+override, func() (*models.Tenant, error) {
		return r.tenantRepo.GetBySubdomain(ctx, override)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve dev override %s: %w", override, err)
	}
	if tenant == nil {
		return &Resolution{Source: SourceNone}, nil
	}
	return &Resolution{Tenant: tenant, Source: SourceDevOverride}, nil
}

// lookup reads through the tenant cache. A missing row is (nil, nil).
func (r *tenantResolver) lookup(ctx context.Context, key string, load func() (*models.Tenant, error)) (*models.Tenant, error) {
	if r.cache != nil {
		cached, err := r.cache.GetTenant(ctx, key)
		if err != nil {
			r.log.Warn("tenant cache read failed", zap.String("key", key), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	tenant, err := load()
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetTenant(ctx, key, tenant, r.cacheTTL); err != nil {
			r.log.Warn("tenant cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return tenant, nil
}

// TenantTracker holds one client's resolved tenant. Each Refresh is tagged with a sequence
// number and its result is published only if no later Refresh was issued in the meantime:
// last issued wins, not last completed.
type TenantTracker struct {
	resolver TenantResolver
	metrics  *metrics.Metrics
	log      *zap.Logger

	mu        sync.Mutex
	issued    uint64
	current   *models.Tenant
	suspended bool
	publish   func(*models.Tenant)
}

// NewTenantTracker builds a tracker. publish runs under the tracker lock for every accepted outcome,
// including "no tenant".
func NewTenantTracker(resolver TenantResolver, publish func(*models.Tenant), m *metrics.Metrics, log *zap.Logger) *TenantTracker {
	if publish == nil {
		publish = func(*models.Tenant) {}
	}
	return &TenantTracker{resolver: resolver, publish: publish, metrics: m, log: log}
}

// Refresh resolves req and publishes the result unless it went stale. It reports whether it published.
// Resolution errors publish "no tenant".
func (t *TenantTracker) Refresh(ctx context.Context, req ResolveRequest) bool {
	t.mu.Lock()
	t.issued++
	seq := t.issued
	t.mu.Unlock()

	res, err := t.resolver.Resolve(ctx, req)

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq != t.issued {
		t.metrics.StaleResolutions.Inc()
		t.log.Debug("discarding stale tenant resolution", zap.Uint64("seq", seq), zap.Uint64("latest", t.issued))
		return false
	}
	if t.suspended {
		return false
	}

	var tenant *models.Tenant
	if err != nil {
		t.log.Warn("tenant resolution failed, using default branding", zap.String("host", req.Hostname), zap.Error(err))
	} else {
		tenant = res.Tenant
	}
	t.current = tenant
	t.publish(tenant)
	return true
}

// Suspend invalidates every in-flight Refresh and blocks publication until Resume.
func (t *TenantTracker) Suspend() {
	t.mu.Lock()
	t.issued++
	t.suspended = true
	t.mu.Unlock()
}

func (t *TenantTracker) Resume() {
	t.mu.Lock()
	t.suspended = false
	t.mu.Unlock()
}

// Clear drops the current tenant without publishing.
func (t *TenantTracker) Clear() {
	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()
}

func (t *TenantTracker) Current() *models.Tenant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// CurrentID returns the current tenant id, or false when there is none.
func (t *TenantTracker) CurrentID() (uuid.UUID, bool) {
	tenant := t.Current()
	if tenant == nil {
		return uuid.Nil, false
	}
	return tenant.ID, true
}
