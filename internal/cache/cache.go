package cache

import (
	"context"

	"VisionFlow/internal/data"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	resultTag     = "result"
	invocationTag = "invoke"
)

// ResultCache persists serialized plugin results keyed by result id, and an
// invocation index mapping descriptor hashes to the entity ids they produced.
// All operations are best-effort: failures are logged, never escalated to the
// run that produced the result.
type ResultCache struct {
	store  Store
	logger *zap.Logger
}

func NewResultCache(store Store, logger *zap.Logger) *ResultCache {
	return &ResultCache{store: store, logger: logger}
}

// Put serializes the entity's materialized form under the result id. The
// write is skipped if an entry already exists, so re-delivered work cannot
// overwrite a published entry.
func (c *ResultCache) Put(ctx context.Context, resultID string, d *data.Data) {
	key := resultTag + ":" + resultID

	exists, err := c.store.Has(ctx, key)
	if err != nil {
		c.logger.Warn("Cache lookup failed, skipping write", zap.String("result_id", resultID), zap.Error(err))
		return
	}
	if exists {
		return
	}

	payload, err := msgpack.Marshal(d.ToMap())
	if err != nil {
		c.logger.Warn("Failed to serialize result for caching", zap.String("result_id", resultID), zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, key, payload); err != nil {
		c.logger.Warn("Failed to write cache entry", zap.String("result_id", resultID), zap.Error(err))
		return
	}

	c.logger.Debug("Cache entry written", zap.String("result_id", resultID), zap.Int("bytes", len(payload)))
}

// Get returns the cached serialized payload, or nil if absent or unreadable.
func (c *ResultCache) Get(ctx context.Context, resultID string) []byte {
	payload, err := c.store.Get(ctx, resultTag+":"+resultID)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("result_id", resultID), zap.Error(err))
		return nil
	}
	return payload
}

// RecordInvocation indexes a descriptor hash to the entity id it produced so
// an identical future invocation can be satisfied without recomputation.
func (c *ResultCache) RecordInvocation(ctx context.Context, descriptorKey, entityID string) {
	if err := c.store.Put(ctx, invocationTag+":"+descriptorKey, []byte(entityID)); err != nil {
		c.logger.Warn("Failed to index invocation", zap.String("key", descriptorKey), zap.Error(err))
	}
}

// LookupInvocation returns the entity id previously produced for a descriptor
// hash, if any.
func (c *ResultCache) LookupInvocation(ctx context.Context, descriptorKey string) (string, bool) {
	value, err := c.store.Get(ctx, invocationTag+":"+descriptorKey)
	if err != nil {
		c.logger.Warn("Invocation lookup failed", zap.String("key", descriptorKey), zap.Error(err))
		return "", false
	}
	if len(value) == 0 {
		return "", false
	}
	return string(value), true
}
