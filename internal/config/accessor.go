package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// toTree converts the config into its generic JSON form so dot paths can
// address any field by its json tag.
func toTree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// GetByPath retrieves a config value by dot-notation path (e.g. "server.port").
// Numeric segments index into lists ("search.entries.0.keyword").
func GetByPath(cfg *Config, path string) (any, error) {
	tree, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	var cur any = tree
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("key not found: %s", path)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("invalid list index %q in %s", key, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at %s", cur, key)
		}
	}
	return cur, nil
}

// SetByPath sets a config value by dot path. String values for bool or
// number fields are coerced; string fields keep the raw value. Unknown keys
// are rejected.
func SetByPath(cfg *Config, path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	tree, err := toTree(cfg)
	if err != nil {
		return err
	}

	parts := strings.Split(path, ".")
	node := tree
	for _, key := range parts[:len(parts)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			return fmt.Errorf("not a section: %s", key)
		}
		node = child
	}
	last := parts[len(parts)-1]
	current, ok := node[last]
	if !ok && !isOmittable(path) {
		return fmt.Errorf("key not found: %s", path)
	}
	if _, isString := current.(string); isString || !ok {
		node[last] = value
	} else {
		node[last] = coerce(value)
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// isOmittable lists fields tagged omitempty, which are absent from the tree
// while empty but still settable.
func isOmittable(path string) bool {
	switch path {
	case "server.secret", "aws.endpoint", "store.lock.password",
		"ticketing.function", "ticketing.url", "ticketing.token", "search.indexId":
		return true
	}
	return false
}

func coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Sanitize returns a copy of the config with sensitive values masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Search.Entries = append([]SearchEntry(nil), cfg.Search.Entries...)
	out.Server.Secret = maskString(cfg.Server.Secret)
	out.Ticketing.Token = maskString(cfg.Ticketing.Token)
	if cfg.Store.Lock.Password != "" {
		out.Store.Lock.Password = "***"
	}
	return &out
}

// maskString keeps the first and last four characters of long secrets.
func maskString(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// ListPaths returns every leaf path with its current value.
func ListPaths(cfg *Config) map[string]any {
	tree, err := toTree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	flatten("", tree, out)
	return out
}

func flatten(prefix string, node map[string]any, out map[string]any) {
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(path, child, out)
			continue
		}
		out[path] = v
	}
}
