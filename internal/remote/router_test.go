package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"VisionFlow/internal/config"
	"VisionFlow/internal/data"
	"VisionFlow/internal/remote"
	"VisionFlow/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hostedPlugin returns fixed entity references, standing in for a plugin
// whose results already live in the shared backing store.
type hostedPlugin struct {
	name    string
	outputs map[string]string
	execs   int
}

func (p *hostedPlugin) Name() string    { return p.name }
func (p *hostedPlugin) Version() string { return "1.0" }

func (p *hostedPlugin) Parameters() []plugin.ParamSpec {
	return []plugin.ParamSpec{{Name: "threshold", Default: 0.5}}
}

func (p *hostedPlugin) Requires() map[string]data.Kind {
	return map[string]data.Kind{"video": data.KindVideo}
}

func (p *hostedPlugin) Provides() map[string]data.Kind {
	return map[string]data.Kind{"series": data.KindScalarSeries}
}

func (p *hostedPlugin) Execute(ctx context.Context, input plugin.Input) (plugin.Output, error) {
	p.execs++
	return plugin.Output{Outputs: p.outputs}, nil
}

func newRegistry(t *testing.T, plugins ...plugin.Plugin) *plugin.Registry {
	t.Helper()
	registry := plugin.NewRegistry()
	for _, p := range plugins {
		require.NoError(t, registry.Register(p))
	}
	return registry
}

func routerConfig(controlURL, invokeURL string) config.RemoteConfig {
	return config.RemoteConfig{
		Enabled:     true,
		ControlURL:  controlURL,
		InvokeURL:   invokeURL,
		TimeoutSec:  5,
		RouteTTLSec: 30,
	}
}

func TestRouterStatus(t *testing.T) {
	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/applications", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"plugin":"face_detect","route":"/plugins/face_detect","is_running":true},
			{"plugin":"shot_detect","route":"/plugins/shot_detect","is_running":false}
		]`))
	}))
	defer control.Close()

	registry := newRegistry(t,
		&hostedPlugin{name: "face_detect"},
		&hostedPlugin{name: "shot_detect"},
		&hostedPlugin{name: "local_only"},
	)
	router := remote.NewRouter(routerConfig(control.URL, control.URL), registry, zap.NewNop())

	statuses, err := router.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	byName := make(map[string]remote.PluginStatus, len(statuses))
	for _, st := range statuses {
		byName[st.Plugin] = st
	}
	assert.True(t, byName["face_detect"].IsRunning)
	assert.Equal(t, "/plugins/face_detect", byName["face_detect"].Route)
	assert.False(t, byName["shot_detect"].IsRunning)
	assert.False(t, byName["local_only"].IsRunning, "undeployed plugin reported unavailable")
	assert.Empty(t, byName["local_only"].Route)
}

func TestRouterStatusControlUnreachable(t *testing.T) {
	registry := newRegistry(t, &hostedPlugin{name: "face_detect"})
	router := remote.NewRouter(routerConfig("http://127.0.0.1:1", "http://127.0.0.1:1"), registry, zap.NewNop())

	_, err := router.Status(context.Background())
	require.ErrorIs(t, err, remote.ErrRemoteUnavailable)
}

func TestRouterInvokeRoundTrip(t *testing.T) {
	hosted := &hostedPlugin{name: "face_detect", outputs: map[string]string{"series": "entity-42"}}
	backend := httptest.NewServer(remote.NewServer(newRegistry(t, hosted), zap.NewNop()).Handler())
	defer backend.Close()

	registry := newRegistry(t, &hostedPlugin{name: "face_detect"})
	router := remote.NewRouter(routerConfig(backend.URL, backend.URL), registry, zap.NewNop())

	outputs, err := router.Invoke(context.Background(), "face_detect",
		map[string]string{"video": "video-entity-1"},
		map[string]interface{}{"threshold": 0.9},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"series": "entity-42"}, outputs)
	assert.Equal(t, 1, hosted.execs)
}

func TestRouterInvokeNon2xx(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/applications" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"plugin":"face_detect","route":"/plugins/face_detect","is_running":true}]`))
			return
		}
		http.Error(w, "plugin execution failed", http.StatusInternalServerError)
	}))
	defer backend.Close()

	registry := newRegistry(t, &hostedPlugin{name: "face_detect"})
	router := remote.NewRouter(routerConfig(backend.URL, backend.URL), registry, zap.NewNop())

	_, err := router.Invoke(context.Background(), "face_detect", nil, nil)
	require.ErrorIs(t, err, remote.ErrRemoteUnavailable)
}

func TestRouterInvokeBadResponseBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/applications" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"plugin":"face_detect","route":"/plugins/face_detect","is_running":true}]`))
			return
		}
		w.Write([]byte("not json"))
	}))
	defer backend.Close()

	registry := newRegistry(t, &hostedPlugin{name: "face_detect"})
	router := remote.NewRouter(routerConfig(backend.URL, backend.URL), registry, zap.NewNop())

	_, err := router.Invoke(context.Background(), "face_detect", nil, nil)
	require.ErrorIs(t, err, remote.ErrRemoteUnavailable)
}

func TestRouterInvokeNoDeployment(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer backend.Close()

	registry := newRegistry(t, &hostedPlugin{name: "face_detect"})
	router := remote.NewRouter(routerConfig(backend.URL, backend.URL), registry, zap.NewNop())

	_, err := router.Invoke(context.Background(), "face_detect", nil, nil)
	require.ErrorIs(t, err, remote.ErrRemoteUnavailable)
}

func TestServerApplicationsEndpoint(t *testing.T) {
	hosted := &hostedPlugin{name: "face_detect"}
	backend := httptest.NewServer(remote.NewServer(newRegistry(t, hosted), zap.NewNop()).Handler())
	defer backend.Close()

	registry := newRegistry(t, hosted)
	router := remote.NewRouter(routerConfig(backend.URL, backend.URL), registry, zap.NewNop())

	statuses, err := router.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "face_detect", statuses[0].Plugin)
	assert.Equal(t, remote.RouteFor("face_detect"), statuses[0].Route)
	assert.True(t, statuses[0].IsRunning)
}

func TestServerInvokeUnknownPlugin(t *testing.T) {
	backend := httptest.NewServer(remote.NewServer(newRegistry(t), zap.NewNop()).Handler())
	defer backend.Close()

	resp, err := http.Post(backend.URL+"/plugins/missing", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
