package apitool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Schema declares a tool's inputs. It drives argument validation and the
// JSON schema handed to the model.
type Schema map[string]Param

// Param describes a single input.
type Param struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"-"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Enum        []any  `yaml:"enum,omitempty" json:"enum,omitempty"`
	MinLength   int    `yaml:"min_length,omitempty" json:"minLength,omitempty"`
	MaxLength   int    `yaml:"max_length,omitempty" json:"maxLength,omitempty"`
}

// Validate checks params against the schema. Required strings that are
// empty after trimming count as missing.
func (s Schema) Validate(params map[string]any) error {
	for _, name := range s.names() {
		p := s[name]
		val, exists := params[name]
		if exists && val == nil {
			exists = false
		}

		if !exists {
			if p.Required && p.Default == nil {
				return fmt.Errorf("missing required parameter: %s", name)
			}
			continue
		}

		if err := p.check(name, val); err != nil {
			return err
		}
	}
	return nil
}

// WithDefaults returns a copy of params with declared defaults filled in.
func (s Schema) WithDefaults(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(s))
	for k, v := range params {
		out[k] = v
	}
	for name, p := range s {
		if _, ok := out[name]; !ok && p.Default != nil {
			out[name] = p.Default
		}
	}
	return out
}

// JSONSchema renders the schema as a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s))
	required := []string{}
	for _, name := range s.names() {
		p := s[name]
		props[name] = p
		if p.Required {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (s Schema) names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Param) check(name string, val any) error {
	switch p.Type {
	case "string", "":
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("parameter %s: expected string, got %T", name, val)
		}
		if p.Required && strings.TrimSpace(str) == "" {
			return fmt.Errorf("parameter %s must not be empty", name)
		}
		if p.MinLength > 0 && len(str) < p.MinLength {
			return fmt.Errorf("parameter %s: too short (min %d)", name, p.MinLength)
		}
		if p.MaxLength > 0 && len(str) > p.MaxLength {
			return fmt.Errorf("parameter %s: too long (max %d)", name, p.MaxLength)
		}

	case "number", "integer":
		f, ok := toFloat(val)
		if !ok {
			return fmt.Errorf("parameter %s: expected number, got %T", name, val)
		}
		if p.Type == "integer" && f != float64(int64(f)) {
			return fmt.Errorf("parameter %s: expected integer, got %v", name, f)
		}

	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("parameter %s: expected boolean, got %T", name, val)
		}

	case "array":
		switch val.(type) {
		case []any, []string:
		default:
			return fmt.Errorf("parameter %s: expected array, got %T", name, val)
		}
	}

	if len(p.Enum) > 0 {
		s := queryValue(val)
		for _, allowed := range p.Enum {
			if queryValue(allowed) == s {
				return nil
			}
		}
		return fmt.Errorf("parameter %s: value %q not in allowed list", name, s)
	}
	return nil
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// queryValue renders a parameter value for a URL.
func queryValue(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = queryValue(item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(val)
}
