package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coachhub/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "coachhub:"

type CacheService interface {
	// Tenant lookups keyed by how they were resolved ("id:<uuid>", "domain:<host>", "sub:<label>")
	GetTenant(ctx context.Context, lookup string) (*models.Tenant, error)
	SetTenant(ctx context.Context, lookup string, tenant *models.Tenant, ttl time.Duration) error
	InvalidateTenant(ctx context.Context, tenant *models.Tenant) error
	InvalidateAllTenants(ctx context.Context) error

	// Block list caching. A list loaded at generation g is stored only while the
	// generation is still g, so a load racing a block never caches the pre-block list.
	GetBlockList(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, bool, error)
	BlockListGeneration(ctx context.Context, blockerID uuid.UUID) (int64, error)
	SetBlockList(ctx context.Context, blockerID uuid.UUID, ids []uuid.UUID, generation int64, ttl time.Duration) (bool, error)
	InvalidateBlockList(ctx context.Context, blockerID uuid.UUID) error

	// Session tokens
	SetSession(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (uuid.UUID, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisClient builds a client, accepting either host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if opts, err := redis.ParseURL(addr); err == nil {
			if password != "" {
				opts.Password = password
			}
			return redis.NewClient(opts)
		}
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	return redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})
}

func NewRedisCacheService(client *redis.Client, log *zap.Logger) CacheService {
	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Warn("redis ping failed on initialization", zap.Error(pingErr))
	}
	return &redisCacheService{client: client, log: log}
}

func tenantKey(lookup string) string {
	return keyPrefix + "tenant:" + lookup
}

// TenantLookupKeys lists every lookup a tenant can be cached under.
func TenantLookupKeys(tenant *models.Tenant) []string {
	keys := []string{"id:" + tenant.ID.String(), "sub:" + tenant.Subdomain}
	if tenant.CustomDomain != nil && *tenant.CustomDomain != "" {
		keys = append(keys, "domain:"+*tenant.CustomDomain)
	}
	return keys
}

func (r *redisCacheService) GetTenant(ctx context.Context, lookup string) (*models.Tenant, error) {
	data, err := r.client.Get(ctx, tenantKey(lookup)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var tenant models.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *redisCacheService) SetTenant(ctx context.Context, lookup string, tenant *models.Tenant, ttl time.Duration) error {
	data, err := json.Marshal(tenant)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, tenantKey(lookup), data, ttl).Err()
}

func (r *redisCacheService) InvalidateTenant(ctx context.Context, tenant *models.Tenant) error {
	lookups := TenantLookupKeys(tenant)
	keys := make([]string, 0, len(lookups))
	for _, l := range lookups {
		keys = append(keys, tenantKey(l))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) InvalidateAllTenants(ctx context.Context) error {
	var cursor uint64
	pattern := keyPrefix + "tenant:*"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func blockListKey(blockerID uuid.UUID) string {
	return fmt.Sprintf("%sblocks:%s", keyPrefix, blockerID)
}

func (r *redisCacheService) GetBlockList(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, bool, error) {
	data, err := r.client.Get(ctx, blockListKey(blockerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func blockListGenerationKey(blockerID uuid.UUID) string {
	return fmt.Sprintf("%sblocks-gen:%s", keyPrefix, blockerID)
}

// blockListGenerationTTL only has to outlive one in-flight load.
const blockListGenerationTTL = 24 * time.Hour

func (r *redisCacheService) BlockListGeneration(ctx context.Context, blockerID uuid.UUID) (int64, error) {
	gen, err := r.client.Get(ctx, blockListGenerationKey(blockerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *redisCacheService) SetBlockList(ctx context.Context, blockerID uuid.UUID, ids []uuid.UUID, generation int64, ttl time.Duration) (bool, error) {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return false, err
	}

	genKey := blockListGenerationKey(blockerID)
	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, blockListKey(blockerID), data, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// InvalidateBlockList bumps the generation and drops the cached list.
func (r *redisCacheService) InvalidateBlockList(ctx context.Context, blockerID uuid.UUID) error {
	genKey := blockListGenerationKey(blockerID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, blockListGenerationTTL)
		pipe.Del(ctx, blockListKey(blockerID))
		return nil
	})
	return err
}

func sessionKey(sessionID string) string {
	return keyPrefix + "session:" + sessionID
}

func (r *redisCacheService) SetSession(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKey(sessionID), userID.String(), ttl).Err()
}

func (r *redisCacheService) GetSession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	val, err := r.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, nil // not found
		}
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}

func (r *redisCacheService) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKey(sessionID)).Err()
}

// IsRateLimited counts key in a fixed window. The key is created with its expiry in the same
// transaction as the increment, so a counter can never outlive its window.
func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := keyPrefix + "ratelimit:" + key
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, cacheKey, 0, window)
		incr = pipe.Incr(ctx, cacheKey)
		return nil
	})
	if err != nil {
		return true, err
	}

	return incr.Val() > int64(limit), nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
