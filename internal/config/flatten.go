package config

import (
	"strings"
)

// secretKeys are the flat keys whose values never appear in full in CLI
// output. Only the bot token qualifies today.
var secretKeys = map[string]bool{
	"telegram.token": true,
}

// IsSecretKey reports whether values under the flat key must be masked.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns the nested config map into "telegram.token"-style flat keys,
// the shape the config get/set commands address values by.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := prefix + k
			if child, ok := v.(map[string]any); ok {
				walk(key+".", child)
				continue
			}
			out[key] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten rebuilds the nested map a flat key set describes, so the config
// file keeps its original JSON shape after a set.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets copies the flat map, replacing each secret value with "***"
// plus its last four characters. Empty values pass through untouched.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		if secretKeys[k] {
			out[k] = maskValue(v)
			continue
		}
		out[k] = v
	}
	return out
}

func maskValue(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	if len(s) <= 4 {
		return "***" + s
	}
	return "***" + s[len(s)-4:]
}
