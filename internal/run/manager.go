package run

import (
	"context"
	"fmt"
	"sort"
	"time"

	"VisionFlow/internal/cache"
	"VisionFlow/internal/data"
	"VisionFlow/pkg/plugin"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Submitter hands one opaque unit of work to the distributed task queue.
type Submitter interface {
	Submit(ctx context.Context, payload RunPayload) error
}

// RemoteInvoker forwards an invocation by reference to a remote plugin
// deployment.
type RemoteInvoker interface {
	Invoke(ctx context.Context, pluginName string, inputs map[string]string, parameters map[string]interface{}) (map[string]string, error)
}

// Manager drives the plugin-run state machine across the three dispatch
// strategies: synchronous in-process, queued, and remote-routed. Plugin
// failures are contained here; nothing below the dispatch boundary crashes
// the orchestration process.
type Manager struct {
	registry      *plugin.Registry
	store         Store
	dataMgr       *data.Manager
	cache         *cache.ResultCache
	submitter     Submitter
	remote        RemoteInvoker
	remotePlugins map[string]bool
	configs       map[string]map[string]interface{}
	logger        *zap.Logger
}

// NewManager creates a run lifecycle manager. submitter may be nil when the
// process does not dispatch asynchronously; remote may be nil when no plugins
// route to a remote deployment.
func NewManager(
	registry *plugin.Registry,
	store Store,
	dataMgr *data.Manager,
	resultCache *cache.ResultCache,
	submitter Submitter,
	remote RemoteInvoker,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		registry:      registry,
		store:         store,
		dataMgr:       dataMgr,
		cache:         resultCache,
		submitter:     submitter,
		remote:        remote,
		remotePlugins: make(map[string]bool),
		configs:       make(map[string]map[string]interface{}),
		logger:        logger,
	}
}

// SetRemotePlugin marks a plugin as remote-routed, with its static config.
func (m *Manager) SetRemotePlugin(name string) {
	m.remotePlugins[name] = true
}

// SetPluginConfig attaches deployment-level config for a plugin; it is part
// of the invocation descriptor, so config changes invalidate cached results.
func (m *Manager) SetPluginConfig(name string, cfg map[string]interface{}) {
	m.configs[name] = cfg
}

// Run accepts an invocation request. Parameter-parse failures are returned
// synchronously before any run record exists. Unless dry-run, a queued
// PluginRun is created and then dispatched per the request's mode.
func (m *Manager) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	p, ok := m.registry.Get(req.Plugin)
	if !ok {
		return nil, fmt.Errorf("plugin %s not found in registry", req.Plugin)
	}

	params, perr := plugin.ParseParameters(p.Parameters(), req.Parameters)
	if perr != nil {
		return nil, perr
	}

	var runID uuid.UUID
	if !req.DryRun {
		runID = uuid.New()
		now := time.Now()
		pr := &PluginRun{
			ID:        runID,
			Plugin:    req.Plugin,
			VideoID:   req.VideoID,
			UserID:    req.UserID,
			Status:    StatusQueued,
			Progress:  0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.CreateRun(ctx, pr); err != nil {
			return nil, err
		}
		m.logger.Info("Plugin run created",
			zap.String("plugin", req.Plugin),
			zap.String("run_id", runID.String()),
			zap.Bool("async", req.Async),
		)
	}

	if req.Async {
		if m.submitter == nil {
			return nil, fmt.Errorf("async execution not configured")
		}
		payload := RunPayload{
			Plugin:      req.Plugin,
			Parameters:  params,
			Inputs:      req.Inputs,
			VideoID:     req.VideoID,
			UserID:      req.UserID,
			PluginRunID: runID,
			DryRun:      req.DryRun,
		}
		if err := m.submitter.Submit(ctx, payload); err != nil {
			m.logger.Error("Failed to submit run to task queue",
				zap.String("plugin", req.Plugin),
				zap.String("run_id", runID.String()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to submit run: %w", err)
		}
		return &RunResponse{Status: true, RunID: runID}, nil
	}

	return m.Execute(ctx, p, runID, req.DryRun, req.VideoID, req.UserID, req.Inputs, params), nil
}

// ExecutePayload resolves a queued unit of work back to its plugin and runs
// it. Called by the queue worker after the duplicate-delivery guard.
func (m *Manager) ExecutePayload(ctx context.Context, payload RunPayload) (*RunResponse, error) {
	p, ok := m.registry.Get(payload.Plugin)
	if !ok {
		if !payload.DryRun {
			if err := m.store.SetStatus(ctx, payload.PluginRunID, StatusError, 0); err != nil {
				m.logger.Error("Failed to mark run failed", zap.String("run_id", payload.PluginRunID.String()), zap.Error(err))
			}
		}
		return nil, fmt.Errorf("plugin %s not found in registry", payload.Plugin)
	}
	return m.Execute(ctx, p, payload.PluginRunID, payload.DryRun, payload.VideoID, payload.UserID, payload.Inputs, payload.Parameters), nil
}

// Execute performs one invocation: cache lookup, plugin (or remote) call,
// result persistence and caching, and the terminal status transition. It
// never returns an error; plugin failures come back as Status false.
func (m *Manager) Execute(
	ctx context.Context,
	p plugin.Plugin,
	runID uuid.UUID,
	dryRun bool,
	videoID, userID string,
	inputs map[string]string,
	params map[string]interface{},
) *RunResponse {
	if inputs == nil {
		inputs = make(map[string]string)
	}
	inputIDs := orderedInputIDs(videoID, inputs)
	keys := m.descriptorKeys(p, params, inputIDs)

	if !dryRun {
		if outputs, hit := m.lookupCached(ctx, keys); hit {
			m.logger.Info("Invocation satisfied from cache",
				zap.String("plugin", p.Name()),
				zap.String("run_id", runID.String()),
			)
			if !m.recordSuccess(ctx, runID, outputs, nil) {
				return &RunResponse{Status: false, RunID: runID}
			}
			return &RunResponse{Status: true, RunID: runID, Outputs: outputs}
		}
	}

	out, err := m.invoke(ctx, p, plugin.Input{
		RunID:      runID,
		VideoID:    videoID,
		UserID:     userID,
		Inputs:     inputs,
		Parameters: params,
	})
	if err != nil {
		m.logger.Error("Plugin execution failed",
			zap.String("plugin", p.Name()),
			zap.String("run_id", runID.String()),
			zap.Error(err),
		)
		if !dryRun {
			if serr := m.store.SetStatus(ctx, runID, StatusError, 0); serr != nil {
				m.logger.Error("Failed to mark run failed", zap.String("run_id", runID.String()), zap.Error(serr))
			}
		}
		return &RunResponse{Status: false, RunID: runID}
	}

	if dryRun {
		return &RunResponse{Status: true, Outputs: out.Outputs}
	}

	if !m.recordSuccess(ctx, runID, out.Outputs, keys) {
		return &RunResponse{Status: false, RunID: runID}
	}

	m.logger.Info("Plugin run completed",
		zap.String("plugin", p.Name()),
		zap.String("run_id", runID.String()),
		zap.Int("outputs", len(out.Outputs)),
	)
	return &RunResponse{Status: true, RunID: runID, Outputs: out.Outputs}
}

// invoke calls the plugin through its configured substrate. The recover
// keeps a panicking plugin inside the dispatch boundary.
func (m *Manager) invoke(ctx context.Context, p plugin.Plugin, input plugin.Input) (out plugin.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = plugin.Output{}
			err = fmt.Errorf("plugin %s panicked: %v", p.Name(), r)
		}
	}()

	if m.remotePlugins[p.Name()] && m.remote != nil {
		outputs, rerr := m.remote.Invoke(ctx, p.Name(), input.Inputs, input.Parameters)
		if rerr != nil {
			return plugin.Output{}, fmt.Errorf("remote invocation failed: %w", rerr)
		}
		return plugin.Output{Outputs: outputs}, nil
	}
	return p.Execute(ctx, input)
}

// recordSuccess persists one result row per produced slot, writes best-effort
// cache entries, and moves the run to done. keys may be nil when outputs were
// reused from the invocation index.
func (m *Manager) recordSuccess(ctx context.Context, runID uuid.UUID, outputs map[string]string, keys map[string]string) bool {
	for slot, entityID := range outputs {
		result := &PluginRunResult{
			ID:         uuid.New(),
			RunID:      runID,
			OutputSlot: slot,
			EntityID:   entityID,
			CreatedAt:  time.Now(),
		}
		if err := m.store.AddResult(ctx, result); err != nil {
			m.logger.Error("Failed to persist run result",
				zap.String("run_id", runID.String()),
				zap.String("slot", slot),
				zap.Error(err),
			)
			if serr := m.store.SetStatus(ctx, runID, StatusError, 0); serr != nil {
				m.logger.Error("Failed to mark run failed", zap.String("run_id", runID.String()), zap.Error(serr))
			}
			return false
		}

		m.cacheResult(ctx, result.ID.String(), entityID)
		if key, ok := keys[slot]; ok {
			m.cache.RecordInvocation(ctx, key, entityID)
		}
	}

	if err := m.store.SetStatus(ctx, runID, StatusDone, 1.0); err != nil {
		m.logger.Error("Failed to mark run done", zap.String("run_id", runID.String()), zap.Error(err))
		return false
	}
	return true
}

// cacheResult loads the published entity and hands it to the result cache.
// Failures here are logged and swallowed; caching never fails the run.
func (m *Manager) cacheResult(ctx context.Context, resultID, entityID string) {
	d, err := m.dataMgr.Load(ctx, entityID)
	if err != nil {
		m.logger.Warn("Failed to load entity for caching",
			zap.String("result_id", resultID),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return
	}
	defer func() {
		if rerr := m.dataMgr.Release(ctx, d); rerr != nil {
			m.logger.Warn("Failed to release entity after caching", zap.String("entity_id", entityID), zap.Error(rerr))
		}
	}()

	m.cache.Put(ctx, resultID, d)
}

// descriptorKeys computes the invocation descriptor hash per provided slot.
func (m *Manager) descriptorKeys(p plugin.Plugin, params map[string]interface{}, inputIDs []string) map[string]string {
	keys := make(map[string]string, len(p.Provides()))
	for slot := range p.Provides() {
		keys[slot] = cache.KeyFor(p.Name(), slot, p.Version(), params, inputIDs, m.configs[p.Name()])
	}
	return keys
}

// lookupCached reports the prior outputs for a descriptor if every provided
// slot has an indexed result.
func (m *Manager) lookupCached(ctx context.Context, keys map[string]string) (map[string]string, bool) {
	if len(keys) == 0 {
		return nil, false
	}
	outputs := make(map[string]string, len(keys))
	for slot, key := range keys {
		entityID, ok := m.cache.LookupInvocation(ctx, key)
		if !ok {
			return nil, false
		}
		outputs[slot] = entityID
	}
	return outputs, true
}

// GetRun retrieves a run for status polling.
func (m *Manager) GetRun(ctx context.Context, id uuid.UUID) (*PluginRun, error) {
	return m.store.GetRun(ctx, id)
}

// ListResults retrieves a run's produced results.
func (m *Manager) ListResults(ctx context.Context, runID uuid.UUID) ([]PluginRunResult, error) {
	return m.store.ListResults(ctx, runID)
}

// orderedInputIDs flattens the input mapping into a stable ordering: the
// target artifact first, then entity ids sorted by slot name.
func orderedInputIDs(videoID string, inputs map[string]string) []string {
	ids := []string{videoID}
	slots := make([]string, 0, len(inputs))
	for slot := range inputs {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	for _, slot := range slots {
		ids = append(ids, inputs[slot])
	}
	return ids
}
