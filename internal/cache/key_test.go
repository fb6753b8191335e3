package cache_test

import (
	"testing"

	"VisionFlow/internal/cache"

	"github.com/stretchr/testify/assert"
)

func TestKeyForDeterministic(t *testing.T) {
	params := map[string]interface{}{"threshold": 0.5, "mode": "max"}
	inputs := []string{"video-1", "entity-a"}
	config := map[string]interface{}{"device": "gpu"}

	first := cache.KeyFor("shot_density", "density", "1.1", params, inputs, config)
	second := cache.KeyFor("shot_density", "density", "1.1", params, inputs, config)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestKeyForMapOrderInsensitive(t *testing.T) {
	left := map[string]interface{}{}
	left["alpha"] = 1
	left["beta"] = map[string]interface{}{"x": 1, "y": 2}
	left["gamma"] = "g"

	right := map[string]interface{}{}
	right["gamma"] = "g"
	right["beta"] = map[string]interface{}{"y": 2, "x": 1}
	right["alpha"] = 1

	assert.Equal(t,
		cache.KeyFor("p", "out", "1", left, []string{"v"}, nil),
		cache.KeyFor("p", "out", "1", right, []string{"v"}, nil),
	)
}

func TestKeyForFieldSensitivity(t *testing.T) {
	params := map[string]interface{}{"threshold": 0.5}
	inputs := []string{"video-1"}

	base := cache.KeyFor("p", "out", "1", params, inputs, nil)

	assert.NotEqual(t, base, cache.KeyFor("q", "out", "1", params, inputs, nil))
	assert.NotEqual(t, base, cache.KeyFor("p", "other", "1", params, inputs, nil))
	assert.NotEqual(t, base, cache.KeyFor("p", "out", "2", params, inputs, nil))
	assert.NotEqual(t, base, cache.KeyFor("p", "out", "1", map[string]interface{}{"threshold": 0.6}, inputs, nil))
	assert.NotEqual(t, base, cache.KeyFor("p", "out", "1", params, []string{"video-2"}, nil))
	assert.NotEqual(t, base, cache.KeyFor("p", "out", "1", params, inputs, map[string]interface{}{"device": "gpu"}))
}

func TestKeyForInputOrderSignificant(t *testing.T) {
	params := map[string]interface{}{}

	assert.NotEqual(t,
		cache.KeyFor("p", "out", "1", params, []string{"a", "b"}, nil),
		cache.KeyFor("p", "out", "1", params, []string{"b", "a"}, nil),
	)
}

func TestKeyForNestedListOfMappings(t *testing.T) {
	left := map[string]interface{}{
		"stages": []interface{}{
			map[string]interface{}{"name": "detect", "weight": 1},
			map[string]interface{}{"name": "embed", "weight": 2},
		},
	}
	right := map[string]interface{}{
		"stages": []interface{}{
			map[string]interface{}{"weight": 1, "name": "detect"},
			map[string]interface{}{"weight": 2, "name": "embed"},
		},
	}

	assert.Equal(t,
		cache.KeyFor("p", "out", "1", left, nil, nil),
		cache.KeyFor("p", "out", "1", right, nil, nil),
	)
}
