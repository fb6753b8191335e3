package shotdensity

import (
	"context"
	"fmt"

	"VisionFlow/internal/data"
	"VisionFlow/pkg/plugin"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// ShotDensityPlugin turns a shot list into a scalar series of shots per time
// window.
type ShotDensityPlugin struct {
	dataMgr *data.Manager
	logger  *zap.Logger
}

func New(dataMgr *data.Manager, logger *zap.Logger) *ShotDensityPlugin {
	return &ShotDensityPlugin{
		dataMgr: dataMgr,
		logger:  logger,
	}
}

func (p *ShotDensityPlugin) Name() string {
	return "shot_density"
}

func (p *ShotDensityPlugin) Version() string {
	return "1.1"
}

func (p *ShotDensityPlugin) Parameters() []plugin.ParamSpec {
	return []plugin.ParamSpec{
		{
			Name:    "window_sec",
			Default: 10.0,
			Convert: func(v interface{}) (interface{}, error) {
				f, err := toFloat(v)
				if err != nil {
					return nil, err
				}
				if f <= 0 {
					return nil, fmt.Errorf("window_sec must be positive, got %v", f)
				}
				return f, nil
			},
		},
	}
}

func (p *ShotDensityPlugin) Requires() map[string]data.Kind {
	return map[string]data.Kind{"shots": data.KindShotList}
}

func (p *ShotDensityPlugin) Provides() map[string]data.Kind {
	return map[string]data.Kind{"density": data.KindScalarSeries}
}

type shotDensityConfig struct {
	WindowSec float64 `mapstructure:"window_sec"`
}

func (p *ShotDensityPlugin) Execute(ctx context.Context, input plugin.Input) (plugin.Output, error) {
	var cfg shotDensityConfig
	if err := mapstructure.Decode(input.Parameters, &cfg); err != nil {
		return plugin.Output{}, fmt.Errorf("failed to decode shot_density parameters: %w", err)
	}

	shotsID, ok := input.Inputs["shots"]
	if !ok {
		return plugin.Output{}, fmt.Errorf("missing input slot %q", "shots")
	}

	shots, err := p.dataMgr.Load(ctx, shotsID)
	if err != nil {
		return plugin.Output{}, fmt.Errorf("failed to load shot list %s: %w", shotsID, err)
	}
	defer p.dataMgr.Release(ctx, shots)

	if shots.Kind() != data.KindShotList {
		return plugin.Output{}, fmt.Errorf("%w: slot shots expects %s, got %s", data.ErrTypeMismatch, data.KindShotList, shots.Kind())
	}

	starts, maxEnd, err := shotStarts(shots)
	if err != nil {
		return plugin.Output{}, err
	}

	windows := int(maxEnd/cfg.WindowSec) + 1
	y := make([]float64, windows)
	timeAxis := make([]float64, windows)
	for i := range timeAxis {
		timeAxis[i] = float64(i) * cfg.WindowSec
	}
	for _, start := range starts {
		idx := int(start / cfg.WindowSec)
		if idx >= 0 && idx < windows {
			y[idx]++
		}
	}

	out, err := p.dataMgr.Create(ctx, data.KindScalarSeries, "")
	if err != nil {
		return plugin.Output{}, fmt.Errorf("failed to create density series: %w", err)
	}
	if err := out.Set("y", y); err != nil {
		p.dataMgr.Release(ctx, out)
		return plugin.Output{}, err
	}
	if err := out.Set("time", timeAxis); err != nil {
		p.dataMgr.Release(ctx, out)
		return plugin.Output{}, err
	}
	if err := out.Set("delta_time", cfg.WindowSec); err != nil {
		p.dataMgr.Release(ctx, out)
		return plugin.Output{}, err
	}
	if err := p.dataMgr.Release(ctx, out); err != nil {
		return plugin.Output{}, fmt.Errorf("failed to publish density series: %w", err)
	}

	p.logger.Info("Shot density computed",
		zap.String("shots_id", shotsID),
		zap.String("density_id", out.ID()),
		zap.Int("windows", windows),
	)

	return plugin.Output{Outputs: map[string]string{"density": out.ID()}}, nil
}

// shotStarts extracts shot start times and the latest end time.
func shotStarts(shots *data.Data) ([]float64, float64, error) {
	raw, err := shots.Get("shots")
	if err != nil {
		return nil, 0, err
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, 0, fmt.Errorf("%w: field shots is not a list", data.ErrCorruptData)
	}

	starts := make([]float64, 0, len(items))
	var maxEnd float64
	for i, item := range items {
		shot, ok := asStringMap(item)
		if !ok {
			return nil, 0, fmt.Errorf("%w: shot %d is not a mapping", data.ErrCorruptData, i)
		}
		start, err := toFloat(shot["start"])
		if err != nil {
			return nil, 0, fmt.Errorf("shot %d: %w", i, err)
		}
		end, err := toFloat(shot["end"])
		if err != nil {
			return nil, 0, fmt.Errorf("shot %d: %w", i, err)
		}
		starts = append(starts, start)
		if end > maxEnd {
			maxEnd = end
		}
	}
	return starts, maxEnd, nil
}

// asStringMap normalizes decoded mappings, which msgpack may deliver with
// interface{} keys.
func asStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
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
