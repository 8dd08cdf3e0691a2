package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"genix/config"
	"genix/models"
	"genix/util"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const quotaKeyPrefix = "genix:quota:"

func quotaCacheKey(uid string) string {
	return quotaKeyPrefix + uid
}

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, conf config.RedisConfig, connectTimeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Password:     conf.Password,
		DB:           conf.DB,
		PoolSize:     conf.PoolSize,
		MinIdleConns: conf.MinIdleConns,
		ReadTimeout:  connectTimeout,
		WriteTimeout: connectTimeout,
		DialTimeout:  connectTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logrus.Infof("Quota Redis cache initialized at %s:%d", conf.Host, conf.Port)
	return client, nil
}

// CachedQuotaStore is a read-through redis cache in front of another QuotaStore.
// Cache failures are logged and never surface to callers.
type CachedQuotaStore struct {
	next   QuotaStore
	client *redis.Client
	ttl    time.Duration
}

var _ QuotaStore = (*CachedQuotaStore)(nil)

// NewCachedQuotaStore wraps next. A nil client disables caching.
func NewCachedQuotaStore(next QuotaStore, client *redis.Client, ttl time.Duration) *CachedQuotaStore {
	return &CachedQuotaStore{next: next, client: client, ttl: ttl}
}

func (c *CachedQuotaStore) GetQuota(ctx context.Context, uid string) (*models.UserQuota, error) {
	if q, ok := c.fromCache(ctx, uid); ok {
		return q, nil
	}

	q, err := c.next.GetQuota(ctx, uid)
	if err != nil {
		return nil, err
	}
	c.cache(ctx, q)
	return q, nil
}

func (c *CachedQuotaStore) SetQuota(ctx context.Context, q *models.UserQuota) error {
	if err := c.next.SetQuota(ctx, q); err != nil {
		c.invalidate(ctx, q.UID)
		return err
	}
	c.cache(ctx, q)
	return nil
}

func (c *CachedQuotaStore) ConsumeGeneration(ctx context.Context, uid string, now time.Time) (*models.UserQuota, error) {
	q, err := c.next.ConsumeGeneration(ctx, uid, now)
	if err != nil {
		c.invalidate(ctx, uid)
		return nil, err
	}
	c.cache(ctx, q)
	return q, nil
}

// Close closes the wrapped store and the redis client
func (c *CachedQuotaStore) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := c.next.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (c *CachedQuotaStore) fromCache(ctx context.Context, uid string) (*models.UserQuota, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, quotaCacheKey(uid)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			util.LogWarning("Redis error retrieving quota", logrus.Fields{"uid": uid, "error": err})
		}
		return nil, false
	}

	var q models.UserQuota
	if err := json.Unmarshal(data, &q); err != nil {
		util.LogWarning("Error deserializing quota from Redis", logrus.Fields{"uid": uid, "error": err})
		return nil, false
	}
	return &q, true
}

func (c *CachedQuotaStore) cache(ctx context.Context, q *models.UserQuota) {
	if c.client == nil || q == nil {
		return
	}

	data, err := json.Marshal(q)
	if err != nil {
		util.HandleError(fmt.Errorf("failed to marshal quota: %w", err))
		return
	}
	if err := c.client.Set(ctx, quotaCacheKey(q.UID), data, c.ttl).Err(); err != nil {
		util.LogWarning("Failed to cache quota", logrus.Fields{"uid": q.UID, "error": err})
	}
}

func (c *CachedQuotaStore) invalidate(ctx context.Context, uid string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, quotaCacheKey(uid)).Err(); err != nil {
		util.LogWarning("Failed to invalidate cached quota", logrus.Fields{"uid": uid, "error": err})
	}
}
