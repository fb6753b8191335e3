package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// KeyFor canonicalizes an invocation descriptor and returns a deterministic
// 256-bit hex digest. Nested maps are flattened into dotted-path keys and
// stable-sorted, so structurally equal descriptors hash identically regardless
// of map insertion order. Order inside the input list is significant.
func KeyFor(plugin, outputSlot, version string, parameters map[string]interface{}, inputs []string, config map[string]interface{}) string {
	parts := []string{
		"plugin=" + plugin,
		"output=" + outputSlot,
		"version=" + version,
	}
	for i, id := range inputs {
		parts = append(parts, fmt.Sprintf("inputs.%d=%s", i, id))
	}
	parts = append(parts, flatten("parameters", parameters)...)
	parts = append(parts, flatten("config", config)...)

	h := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(h[:])
}

// flatten turns a nested mapping into sorted "prefix.a.b=value" entries.
func flatten(prefix string, m map[string]interface{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		path := prefix + "." + k
		switch v := m[k].(type) {
		case map[string]interface{}:
			out = append(out, flatten(path, v)...)
		case []interface{}:
			for i, item := range v {
				if sub, ok := item.(map[string]interface{}); ok {
					out = append(out, flatten(fmt.Sprintf("%s.%d", path, i), sub)...)
				} else {
					out = append(out, fmt.Sprintf("%s.%d=%v", path, i, item))
				}
			}
		default:
			out = append(out, fmt.Sprintf("%s=%v", path, v))
		}
	}
	return out
}
