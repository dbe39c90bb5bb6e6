package config

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/getmockd/qiufen/pkg/mockgen"
)

// CompileOverrides turns the overrides section into a generator override
// table. Expressions are compiled here so a bad one fails at startup.
func (c *Config) CompileOverrides() (mockgen.Overrides, error) {
	if len(c.Overrides) == 0 {
		return nil, nil
	}
	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
	}

	keys := make([]string, 0, len(c.Overrides))
	for k := range c.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(mockgen.Overrides, len(keys))
	var errs []error
	for _, key := range keys {
		raw := c.Overrides[key]
		m, isMap := raw.(map[string]any)
		if !isMap || len(m) != 1 {
			out[key] = mockgen.Literal(plain(raw))
			continue
		}
		if src, ok := m["expr"]; ok {
			s, _ := src.(string)
			if strings.TrimSpace(s) == "" {
				errs = append(errs, &Error{Field: "overrides." + key, Err: ErrInvalidOverride, Message: "expr must be a non-empty string"})
				continue
			}
			e, err := mockgen.CompileExpr(s, seed)
			if err != nil {
				errs = append(errs, &Error{Field: "overrides." + key, Err: ErrInvalidOverride, Message: err.Error()})
				continue
			}
			out[key] = e
			continue
		}
		if v, ok := m["value"]; ok {
			out[key] = mockgen.Literal(plain(v))
			continue
		}
		out[key] = mockgen.Literal(plain(raw))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// GeneratorOptions returns the mockgen options the configuration
// describes.
func (c *Config) GeneratorOptions() ([]mockgen.Option, error) {
	overrides, err := c.CompileOverrides()
	if err != nil {
		return nil, err
	}
	opts := []mockgen.Option{
		mockgen.WithOverrides(overrides),
		mockgen.WithPossibleTypes(c.PossibleTypes),
	}
	if c.ListSize != nil {
		opts = append(opts, mockgen.WithListSize(*c.ListSize))
	}
	if c.MaxDepth > 0 {
		opts = append(opts, mockgen.WithMaxDepth(c.MaxDepth))
	}
	if c.Seed != nil {
		opts = append(opts, mockgen.WithSeed(*c.Seed))
	}
	return opts, nil
}

// plain replaces json.Number with int64 or float64.
func plain(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = plain(e)
		}
		return out
	}
	return v
}
