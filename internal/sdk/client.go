package sdk

import (
	"context"

	"VisionFlow/internal/cache"
	"VisionFlow/internal/data"
	"VisionFlow/internal/run"

	"github.com/google/uuid"
)

// Client is a thin facade over the orchestration core for embedding callers.
type Client struct {
	manager *run.Manager
	dataMgr *data.Manager
	cache   *cache.ResultCache
}

func NewClient(manager *run.Manager, dataMgr *data.Manager, resultCache *cache.ResultCache) *Client {
	return &Client{
		manager: manager,
		dataMgr: dataMgr,
		cache:   resultCache,
	}
}

// RunPlugin dispatches a plugin invocation.
func (c *Client) RunPlugin(ctx context.Context, req run.RunRequest) (*run.RunResponse, error) {
	return c.manager.Run(ctx, req)
}

// RunStatus polls a run's persisted state. Asynchronous completion is only
// observable this way; there is no push notification.
func (c *Client) RunStatus(ctx context.Context, id uuid.UUID) (*run.PluginRun, error) {
	return c.manager.GetRun(ctx, id)
}

// Results lists the output slots a run produced.
func (c *Client) Results(ctx context.Context, runID uuid.UUID) ([]run.PluginRunResult, error) {
	return c.manager.ListResults(ctx, runID)
}

// CachedResult returns a result's cached serialized payload, or nil.
func (c *Client) CachedResult(ctx context.Context, resultID string) []byte {
	return c.cache.Get(ctx, resultID)
}

// LoadEntity opens a read scope on a produced entity.
func (c *Client) LoadEntity(ctx context.Context, id string) (*data.Data, error) {
	return c.dataMgr.Load(ctx, id)
}

// ReleaseEntity closes an entity scope.
func (c *Client) ReleaseEntity(ctx context.Context, d *data.Data) error {
	return c.dataMgr.Release(ctx, d)
}
