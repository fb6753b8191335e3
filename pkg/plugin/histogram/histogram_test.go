package histogram_test

import (
	"context"
	"testing"

	"VisionFlow/internal/config"
	"VisionFlow/internal/data"
	"VisionFlow/internal/data/storage"
	"VisionFlow/pkg/plugin"
	"VisionFlow/pkg/plugin/histogram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *data.Manager {
	t.Helper()
	backing, err := storage.NewLocalStorage(config.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return data.NewManager(backing, "", zap.NewNop())
}

func publishSeries(t *testing.T, mgr *data.Manager, y, timeAxis []float64) string {
	t.Helper()
	ctx := context.Background()

	d, err := mgr.Create(ctx, data.KindScalarSeries, "")
	require.NoError(t, err)
	require.NoError(t, d.Set("y", y))
	require.NoError(t, d.Set("time", timeAxis))
	require.NoError(t, mgr.Release(ctx, d))
	return d.ID()
}

func histField(t *testing.T, mgr *data.Manager, id string) []float64 {
	t.Helper()
	ctx := context.Background()

	d, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	defer mgr.Release(ctx, d)

	raw, err := d.Get("hist")
	require.NoError(t, err)
	items, ok := raw.([]interface{})
	require.True(t, ok)

	out := make([]float64, len(items))
	for i, v := range items {
		f, ok := v.(float64)
		require.True(t, ok)
		out[i] = f
	}
	return out
}

func parse(t *testing.T, p *histogram.HistogramPlugin, raw []plugin.RawParam) map[string]interface{} {
	t.Helper()
	params, perr := plugin.ParseParameters(p.Parameters(), raw)
	require.Nil(t, perr)
	return params
}

func TestHistogramCountMode(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	p := histogram.New(mgr, zap.NewNop())

	seriesID := publishSeries(t, mgr,
		[]float64{0, 1, 1, 2, 3, 4},
		[]float64{0, 10, 20, 30, 40, 50},
	)

	out, err := p.Execute(ctx, plugin.Input{
		Inputs: map[string]string{"series": seriesID},
		Parameters: parse(t, p, []plugin.RawParam{
			{Name: "bins", Value: 4},
			{Name: "mode", Value: "count"},
		}),
	})
	require.NoError(t, err)

	// range [0,4], width 1: {0} {1,1} {2} {3,4 in last bin}
	assert.Equal(t, []float64{1, 2, 1, 2}, histField(t, mgr, out.Outputs["hist"]))
}

func TestHistogramDensityMode(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	p := histogram.New(mgr, zap.NewNop())

	seriesID := publishSeries(t, mgr, []float64{0, 0, 1, 1}, []float64{0, 1, 2, 3})

	out, err := p.Execute(ctx, plugin.Input{
		Inputs: map[string]string{"series": seriesID},
		Parameters: parse(t, p, []plugin.RawParam{
			{Name: "bins", Value: 2},
			{Name: "mode", Value: "density"},
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, histField(t, mgr, out.Outputs["hist"]))
}

func TestHistogramConstantSeries(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	p := histogram.New(mgr, zap.NewNop())

	seriesID := publishSeries(t, mgr, []float64{5, 5, 5}, []float64{0, 1, 2})

	out, err := p.Execute(ctx, plugin.Input{
		Inputs: map[string]string{"series": seriesID},
		Parameters: parse(t, p, []plugin.RawParam{
			{Name: "bins", Value: 4},
			{Name: "mode", Value: "count"},
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 0, 0}, histField(t, mgr, out.Outputs["hist"]))
}

func TestHistogramParameterValidation(t *testing.T) {
	p := histogram.New(newTestManager(t), zap.NewNop())

	_, perr := plugin.ParseParameters(p.Parameters(), []plugin.RawParam{
		{Name: "bins", Value: 4},
	})
	require.NotNil(t, perr)
	assert.Equal(t, "mode", perr.Parameter, "mode is required")

	_, perr = plugin.ParseParameters(p.Parameters(), []plugin.RawParam{
		{Name: "bins", Value: 0},
		{Name: "mode", Value: "count"},
	})
	require.NotNil(t, perr)
	assert.Equal(t, "bins", perr.Parameter)

	_, perr = plugin.ParseParameters(p.Parameters(), []plugin.RawParam{
		{Name: "mode", Value: "median"},
	})
	require.NotNil(t, perr)
	assert.Equal(t, "mode", perr.Parameter)
}

func TestHistogramWrongInputKind(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	p := histogram.New(mgr, zap.NewNop())

	d, err := mgr.Create(ctx, data.KindShotList, "")
	require.NoError(t, err)
	require.NoError(t, d.Set("shots", []interface{}{}))
	require.NoError(t, mgr.Release(ctx, d))

	_, err = p.Execute(ctx, plugin.Input{
		Inputs: map[string]string{"series": d.ID()},
		Parameters: parse(t, p, []plugin.RawParam{
			{Name: "mode", Value: "count"},
		}),
	})
	require.ErrorIs(t, err, data.ErrTypeMismatch)
}
