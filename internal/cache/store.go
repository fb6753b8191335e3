package cache

import (
	"context"
	"fmt"

	"VisionFlow/internal/config"
)

// Store is the key-value backend for cache entries. Keys use the
// "{tag}:{id}" namespace; values are opaque serialized payloads. Put is
// expected to be idempotent per key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}

func NewStore(cfg config.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "leveldb":
		return NewLevelDBStore(cfg.LevelDB)
	case "redis":
		return NewRedisStore(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Type)
	}
}
