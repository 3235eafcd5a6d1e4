package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	logx "walletwatch/pkg/logx"
)

const (
	redisTenantsKey = "walletwatch:tenants"
	redisDedupPfx   = "walletwatch:dedup:"
	redisAuditKey   = "walletwatch:audit"
	redisAuditCap   = 10000
)

// redisStore keeps tenant docs in a hash and dedup keys as TTL'd strings,
// so retention is enforced by the server rather than by a prune pass.
type redisStore struct {
	client *redis.Client
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Redis.URL) == "" {
		return nil, errors.New("storage.redis.url is required for redis driver")
	}
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if cfg.Redis.PoolSize > 0 {
		opt.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.MinIdleConns > 0 {
		opt.MinIdleConns = cfg.Redis.MinIdleConns
	}
	if cfg.Redis.DialTimeout > 0 {
		opt.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.Redis.WriteTimeout
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisStore{client: client, log: log}, nil
}

func (r *redisStore) Close() error { return r.client.Close() }

func (r *redisStore) LoadTenants(ctx context.Context) ([]TenantRecord, error) {
	docs, err := r.client.HGetAll(ctx, redisTenantsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]TenantRecord, 0, len(docs))
	for field, doc := range docs {
		var t TenantRecord
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			r.log.Warn("skipping malformed tenant doc", logx.String("field", field), logx.Err(err))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *redisStore) SaveTenant(ctx context.Context, t TenantRecord) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, redisTenantsKey, strconv.FormatInt(t.ID, 10), doc).Err()
}

func (r *redisStore) DeleteTenant(ctx context.Context, id int64) error {
	return r.client.HDel(ctx, redisTenantsKey, strconv.FormatInt(id, 10)).Err()
}

func (r *redisStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, redisDedupPfx+key, until.UnixMilli(), ttl).Err()
}

func (r *redisStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	v, err := r.client.Get(ctx, redisDedupPfx+key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (r *redisStore) LoadDedup(ctx context.Context) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	iter := r.client.Scan(ctx, 0, redisDedupPfx+"*", 1000).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		v, err := r.client.Get(ctx, full).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(full, redisDedupPfx)] = time.UnixMilli(ms)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *redisStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, redisAuditKey, b)
	pipe.LTrim(ctx, redisAuditKey, -redisAuditCap, -1)
	_, err = pipe.Exec(ctx)
	return err
}
