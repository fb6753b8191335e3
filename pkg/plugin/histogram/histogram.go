package histogram

import (
	"context"
	"fmt"

	"VisionFlow/internal/data"
	"VisionFlow/pkg/plugin"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// HistogramPlugin bins a scalar series into a histogram series.
type HistogramPlugin struct {
	dataMgr *data.Manager
	logger  *zap.Logger
}

func New(dataMgr *data.Manager, logger *zap.Logger) *HistogramPlugin {
	return &HistogramPlugin{
		dataMgr: dataMgr,
		logger:  logger,
	}
}

func (p *HistogramPlugin) Name() string {
	return "histogram"
}

func (p *HistogramPlugin) Version() string {
	return "1.0"
}

func (p *HistogramPlugin) Parameters() []plugin.ParamSpec {
	return []plugin.ParamSpec{
		{
			Name:    "bins",
			Default: 16,
			Convert: func(v interface{}) (interface{}, error) {
				f, err := toFloat(v)
				if err != nil {
					return nil, err
				}
				bins := int(f)
				if bins < 1 {
					return nil, fmt.Errorf("bins must be at least 1, got %d", bins)
				}
				return bins, nil
			},
		},
		{
			Name:     "mode",
			Required: true,
			Convert: func(v interface{}) (interface{}, error) {
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("expected a string, got %T", v)
				}
				if s != "count" && s != "density" {
					return nil, fmt.Errorf("mode must be count or density, got %q", s)
				}
				return s, nil
			},
		},
	}
}

func (p *HistogramPlugin) Requires() map[string]data.Kind {
	return map[string]data.Kind{"series": data.KindScalarSeries}
}

func (p *HistogramPlugin) Provides() map[string]data.Kind {
	return map[string]data.Kind{"hist": data.KindHistSeries}
}

type histogramConfig struct {
	Bins int    `mapstructure:"bins"`
	Mode string `mapstructure:"mode"`
}

func (p *HistogramPlugin) Execute(ctx context.Context, input plugin.Input) (plugin.Output, error) {
	var cfg histogramConfig
	if err := mapstructure.Decode(input.Parameters, &cfg); err != nil {
		return plugin.Output{}, fmt.Errorf("failed to decode histogram parameters: %w", err)
	}

	seriesID, ok := input.Inputs["series"]
	if !ok {
		return plugin.Output{}, fmt.Errorf("missing input slot %q", "series")
	}

	series, err := p.dataMgr.Load(ctx, seriesID)
	if err != nil {
		return plugin.Output{}, fmt.Errorf("failed to load scalar series %s: %w", seriesID, err)
	}
	defer p.dataMgr.Release(ctx, series)

	if series.Kind() != data.KindScalarSeries {
		return plugin.Output{}, fmt.Errorf("%w: slot series expects %s, got %s", data.ErrTypeMismatch, data.KindScalarSeries, series.Kind())
	}

	values, err := floatField(series, "y")
	if err != nil {
		return plugin.Output{}, err
	}
	timeAxis, err := floatField(series, "time")
	if err != nil {
		return plugin.Output{}, err
	}

	hist := bin(values, cfg.Bins)
	if cfg.Mode == "density" && len(values) > 0 {
		for i := range hist {
			hist[i] /= float64(len(values))
		}
	}

	var duration float64
	if len(timeAxis) > 0 {
		duration = timeAxis[len(timeAxis)-1]
	}

	out, err := p.dataMgr.Create(ctx, data.KindHistSeries, "")
	if err != nil {
		return plugin.Output{}, fmt.Errorf("failed to create histogram series: %w", err)
	}
	if err := out.Set("hist", hist); err != nil {
		p.dataMgr.Release(ctx, out)
		return plugin.Output{}, err
	}
	if err := out.Set("time", []float64{0}); err != nil {
		p.dataMgr.Release(ctx, out)
		return plugin.Output{}, err
	}
	if err := out.Set("delta_time", duration); err != nil {
		p.dataMgr.Release(ctx, out)
		return plugin.Output{}, err
	}
	if err := p.dataMgr.Release(ctx, out); err != nil {
		return plugin.Output{}, fmt.Errorf("failed to publish histogram series: %w", err)
	}

	p.logger.Info("Histogram computed",
		zap.String("series_id", seriesID),
		zap.String("hist_id", out.ID()),
		zap.Int("bins", cfg.Bins),
		zap.String("mode", cfg.Mode),
	)

	return plugin.Output{Outputs: map[string]string{"hist": out.ID()}}, nil
}

func bin(values []float64, bins int) []float64 {
	hist := make([]float64, bins)
	if len(values) == 0 {
		return hist
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	width := (max - min) / float64(bins)
	if width == 0 {
		hist[0] = float64(len(values))
		return hist
	}

	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		hist[idx]++
	}
	return hist
}

func floatField(d *data.Data, field string) ([]float64, error) {
	raw, err := d.Get(field)
	if err != nil {
		return nil, err
	}
	switch vs := raw.(type) {
	case []float64:
		return vs, nil
	case []interface{}:
		out := make([]float64, len(vs))
		for i, v := range vs {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("field %s[%d]: %w", field, i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: field %s is not a series", data.ErrCorruptData, field)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
