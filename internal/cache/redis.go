package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"example.com/supplierportal/services/deliverynote/config"
	"example.com/supplierportal/services/deliverynote/internal/model"
)

// SnapshotCache caches assembled delivery note snapshots between
// mutations. A disabled cache behaves like an always-empty one.
type SnapshotCache interface {
	GetNote(ctx context.Context, noDN string) (*model.DeliveryNote, error)
	SetNote(ctx context.Context, note *model.DeliveryNote) error
	DeleteNote(ctx context.Context, noDN string) error
	FlushAll(ctx context.Context) error
}

// RedisCache implements SnapshotCache using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis-backed snapshot cache
func NewRedisCache(cfg *config.RedisConfig) (SnapshotCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisCache{
		client:  client,
		enabled: true,
		ttl:     ttl,
	}, nil
}

func noteKey(noDN string) string {
	return fmt.Sprintf("dn:%s", noDN)
}

// GetNote retrieves a cached delivery note
func (c *RedisCache) GetNote(ctx context.Context, noDN string) (*model.DeliveryNote, error) {
	if !c.enabled {
		return nil, redis.Nil
	}

	data, err := c.client.Get(ctx, noteKey(noDN)).Bytes()
	if err != nil {
		return nil, err
	}

	var note model.DeliveryNote
	if err := json.Unmarshal(data, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// SetNote caches a delivery note
func (c *RedisCache) SetNote(ctx context.Context, note *model.DeliveryNote) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, noteKey(note.NoDN), data, c.ttl).Err()
}

// DeleteNote invalidates a cached delivery note after a mutation
func (c *RedisCache) DeleteNote(ctx context.Context, noDN string) error {
	if !c.enabled {
		return nil
	}
	return c.client.Del(ctx, noteKey(noDN)).Err()
}

// FlushAll clears the whole cache
func (c *RedisCache) FlushAll(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.FlushAll(ctx).Err()
}

// IsMiss reports whether a cache error is a plain miss.
func IsMiss(err error) bool {
	return err == redis.Nil
}
