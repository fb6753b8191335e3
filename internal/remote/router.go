package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"VisionFlow/internal/config"
	"VisionFlow/pkg/plugin"

	"go.uber.org/zap"
)

// ErrRemoteUnavailable is returned when the serving layer cannot be reached
// or its response cannot be interpreted. Callers treat it as "plugin not
// found" for that invocation; it never propagates as a crash.
var ErrRemoteUnavailable = errors.New("remote plugin unavailable")

// Application is one deployed plugin as reported by the control endpoint.
type Application struct {
	Plugin    string `json:"plugin"`
	Route     string `json:"route"`
	IsRunning bool   `json:"is_running"`
}

// PluginStatus pairs a registered plugin with its deployment state.
type PluginStatus struct {
	Plugin    string `json:"plugin"`
	Route     string `json:"route"`
	IsRunning bool   `json:"is_running"`
}

// Router discovers live remote plugin deployments and forwards invocations
// by reference: request bodies carry entity ids and parameters, never raw
// payloads. The remote side resolves ids against the shared backing store
// through its own data manager.
type Router struct {
	controlURL string
	invokeURL  string
	httpClient *http.Client
	registry   *plugin.Registry
	logger     *zap.Logger

	mu        sync.Mutex
	routes    map[string]string
	fetchedAt time.Time
	routeTTL  time.Duration
}

func NewRouter(cfg config.RemoteConfig, registry *plugin.Registry, logger *zap.Logger) *Router {
	return &Router{
		controlURL: cfg.ControlURL,
		invokeURL:  cfg.InvokeURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec * float64(time.Second)),
		},
		registry: registry,
		logger:   logger,
		routes:   make(map[string]string),
		routeTTL: time.Duration(cfg.RouteTTLSec * float64(time.Second)),
	}
}

// Status queries the control endpoint for deployed applications and matches
// them to registered plugins. Plugins registered locally but not deployed are
// reported as unavailable with a warning, not an error.
func (r *Router) Status(ctx context.Context) ([]PluginStatus, error) {
	apps, err := r.fetchApplications(ctx)
	if err != nil {
		return nil, err
	}

	deployed := make(map[string]Application, len(apps))
	routes := make(map[string]string)
	for _, app := range apps {
		deployed[app.Plugin] = app
		if app.IsRunning {
			routes[app.Plugin] = app.Route
		}
	}

	var statuses []PluginStatus
	for _, name := range r.registry.List() {
		app, ok := deployed[name]
		if !ok {
			r.logger.Warn("Registered plugin has no live deployment", zap.String("plugin", name))
			statuses = append(statuses, PluginStatus{Plugin: name})
			continue
		}
		statuses = append(statuses, PluginStatus{
			Plugin:    name,
			Route:     app.Route,
			IsRunning: app.IsRunning,
		})
	}

	r.mu.Lock()
	r.routes = routes
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	return statuses, nil
}

// Invoke POSTs the invocation to the plugin's route and interprets the
// response as a slot-to-entity-id mapping.
func (r *Router) Invoke(ctx context.Context, pluginName string, inputs map[string]string, parameters map[string]interface{}) (map[string]string, error) {
	route, err := r.routeFor(ctx, pluginName)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"inputs":     inputs,
		"parameters": parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.invokeURL+route, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("Remote invocation failed",
			zap.String("plugin", pluginName),
			zap.String("route", route),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, pluginName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn("Remote invocation returned non-2xx",
			zap.String("plugin", pluginName),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: %s: status %d", ErrRemoteUnavailable, pluginName, resp.StatusCode)
	}

	var outputs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&outputs); err != nil {
		r.logger.Warn("Failed to decode remote invocation response",
			zap.String("plugin", pluginName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, pluginName, err)
	}
	return outputs, nil
}

// routeFor resolves a plugin's route, refreshing the route table when it is
// stale. The refresh is a synchronous round-trip inside the dispatch path,
// amortized by the TTL.
func (r *Router) routeFor(ctx context.Context, pluginName string) (string, error) {
	r.mu.Lock()
	stale := time.Since(r.fetchedAt) > r.routeTTL
	route, known := r.routes[pluginName]
	r.mu.Unlock()

	if stale || !known {
		if _, err := r.Status(ctx); err != nil {
			r.logger.Warn("Failed to refresh remote routes", zap.Error(err))
		}
		r.mu.Lock()
		route, known = r.routes[pluginName]
		r.mu.Unlock()
	}
	if !known {
		return "", fmt.Errorf("%w: no live deployment for %s", ErrRemoteUnavailable, pluginName)
	}
	return route, nil
}

func (r *Router) fetchApplications(ctx context.Context) ([]Application, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.controlURL+"/applications", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: control endpoint: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: control endpoint returned %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var apps []Application
	if err := json.NewDecoder(resp.Body).Decode(&apps); err != nil {
		return nil, fmt.Errorf("%w: control endpoint: %v", ErrRemoteUnavailable, err)
	}
	return apps, nil
}
