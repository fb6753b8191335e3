package plugin_test

import (
	"context"
	"testing"

	"VisionFlow/internal/data"
	"VisionFlow/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct {
	name string
}

func (s *stubPlugin) Name() string                    { return s.name }
func (s *stubPlugin) Version() string                 { return "1.0" }
func (s *stubPlugin) Parameters() []plugin.ParamSpec  { return nil }
func (s *stubPlugin) Requires() map[string]data.Kind  { return nil }
func (s *stubPlugin) Provides() map[string]data.Kind  { return nil }
func (s *stubPlugin) Execute(ctx context.Context, input plugin.Input) (plugin.Output, error) {
	return plugin.Output{}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&stubPlugin{name: "embedder"}))

	p, ok := r.Get("embedder")
	assert.True(t, ok)
	assert.Equal(t, "embedder", p.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&stubPlugin{name: "embedder"}))
	assert.Error(t, r.Register(&stubPlugin{name: "embedder"}))
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := plugin.NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&stubPlugin{name: ""}))
}
