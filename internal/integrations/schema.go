package integrations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type FieldKind string

const (
	FieldString  FieldKind = "string"
	FieldInteger FieldKind = "integer"
	FieldEnum    FieldKind = "enum"
	FieldObject  FieldKind = "object"
)

// Field is one property of an integration config. Kind selects which of the
// remaining attributes apply: Minimum, Maximum and Clamp for integers, Enum
// for enums. A Clamp field pulls out-of-range values to the nearest bound
// instead of rejecting them.
type Field struct {
	Name        string
	Kind        FieldKind
	Title       string
	Description string
	Required    bool
	Default     any
	Minimum     *int64
	Maximum     *int64
	Clamp       bool
	Enum        []string
}

// Schema is the ordered set of config fields of an integration.
type Schema struct {
	Fields []Field
}

// FieldError reports a config value that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Reason
}

var validate = validator.New()

// Validate checks config against the schema and returns a normalized copy
// with defaults applied and integers converted to int64. Keys unknown to the
// schema are carried over untouched.
func (s Schema) Validate(config map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(config)+len(s.Fields))
	for k, v := range config {
		out[k] = v
	}

	for _, f := range s.Fields {
		value, present := config[f.Name]
		if !present || value == nil {
			if f.Required {
				return nil, f.errorf("%s is required", f.Name)
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			} else {
				delete(out, f.Name)
			}
			continue
		}

		normalized, err := f.check(value)
		if err != nil {
			return nil, err
		}
		out[f.Name] = normalized
	}

	return out, nil
}

func (f Field) check(value any) (any, error) {
	switch f.Kind {
	case FieldString, FieldEnum:
		s, ok := value.(string)
		if !ok {
			return nil, f.errorf("%s must be a string", f.Name)
		}
		if f.Required && validate.Var(s, "required") != nil {
			return nil, f.errorf("%s is required", f.Name)
		}
		if f.Kind == FieldEnum && !lo.Contains(f.Enum, s) {
			return nil, f.errorf("%s must be one of: %s", f.Name, strings.Join(f.Enum, ", "))
		}
		return s, nil

	case FieldInteger:
		n, ok := toInt64(value)
		if !ok {
			return nil, f.errorf("%s must be an integer", f.Name)
		}
		if f.Clamp {
			return f.clamp(n), nil
		}
		if tag := f.rangeTag(); tag != "" && validate.Var(n, tag) != nil {
			return nil, f.rangeError()
		}
		return n, nil

	case FieldObject:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, f.errorf("%s must be an object", f.Name)
		}
		return m, nil
	}

	return nil, f.errorf("%s has an unsupported type", f.Name)
}

func (f Field) clamp(n int64) int64 {
	if f.Minimum != nil && n < *f.Minimum {
		return *f.Minimum
	}
	if f.Maximum != nil && n > *f.Maximum {
		return *f.Maximum
	}
	return n
}

func (f Field) rangeTag() string {
	var rules []string
	if f.Minimum != nil {
		rules = append(rules, fmt.Sprintf("min=%d", *f.Minimum))
	}
	if f.Maximum != nil {
		rules = append(rules, fmt.Sprintf("max=%d", *f.Maximum))
	}
	return strings.Join(rules, ",")
}

func (f Field) rangeError() error {
	switch {
	case f.Minimum != nil && f.Maximum != nil:
		return f.errorf("%s must be between %d and %d", f.Name, *f.Minimum, *f.Maximum)
	case f.Minimum != nil:
		return f.errorf("%s must be greater than or equal to %d", f.Name, *f.Minimum)
	default:
		return f.errorf("%s must be less than or equal to %d", f.Name, *f.Maximum)
	}
}

func (f Field) errorf(format string, args ...any) error {
	return &FieldError{Field: f.Name, Reason: fmt.Sprintf(format, args...)}
}

func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) || n != math.Trunc(n) {
			return 0, false
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

type propertyJSON struct {
	Type        string   `json:"type"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *int64   `json:"minimum,omitempty"`
	Maximum     *int64   `json:"maximum,omitempty"`
}

// MarshalJSON renders the schema as a JSON schema object, keeping the field
// order of the declaration.
func (s Schema) MarshalJSON() ([]byte, error) {
	required := lo.FilterMap(s.Fields, func(f Field, _ int) (string, bool) {
		return f.Name, f.Required
	})
	requiredJSON, err := json.Marshal(required)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":"object","required":`)
	buf.Write(requiredJSON)
	buf.WriteString(`,"properties":{`)
	for i, f := range s.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		kind := string(f.Kind)
		if f.Kind == FieldEnum {
			kind = string(FieldString)
		}
		prop, err := json.Marshal(propertyJSON{
			Type:        kind,
			Title:       f.Title,
			Description: f.Description,
			Enum:        f.Enum,
			Default:     f.Default,
			Minimum:     f.Minimum,
			Maximum:     f.Maximum,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(prop)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// Field returns the declared field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	return lo.Find(s.Fields, func(f Field) bool { return f.Name == name })
}
