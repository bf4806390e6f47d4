package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

// Kind identifies the JSON shape a Schema describes.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindInteger
	KindBoolean
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FormatDateTime marks a string as an RFC 3339 timestamp.
const FormatDateTime = "date-time"

// Field is a named property of an object schema.
type Field struct {
	Name     string
	Schema   *Schema
	Optional bool
}

// Schema describes a JSON value. The same descriptor validates values at
// runtime and renders into interface descriptions (JSON Schema, OpenAPI).
// Schemas are immutable once built; modifier methods return copies.
type Schema struct {
	Kind        Kind
	Fields      []Field // KindObject
	Items       *Schema // KindArray
	Nullable    bool
	Format      string
	Rules       string // go-playground/validator tags applied to scalar values
	Description string
}

func String() *Schema  { return &Schema{Kind: KindString} }
func Number() *Schema  { return &Schema{Kind: KindNumber} }
func Integer() *Schema { return &Schema{Kind: KindInteger} }
func Boolean() *Schema { return &Schema{Kind: KindBoolean} }

// Object builds an object schema. Properties not listed are rejected.
func Object(fields ...Field) *Schema {
	return &Schema{Kind: KindObject, Fields: fields}
}

// Array builds an array schema whose elements match item.
func Array(item *Schema) *Schema {
	return &Schema{Kind: KindArray, Items: item}
}

// Prop declares a required object property.
func Prop(name string, s *Schema) Field {
	return Field{Name: name, Schema: s}
}

// OptionalProp declares a property that may be absent.
func OptionalProp(name string, s *Schema) Field {
	return Field{Name: name, Schema: s, Optional: true}
}

// OrNull returns a copy of s that also accepts null.
func (s *Schema) OrNull() *Schema {
	c := *s
	c.Nullable = true
	return &c
}

// DateTime returns a copy of a string schema that must hold an RFC 3339 timestamp.
func (s *Schema) DateTime() *Schema {
	c := *s
	c.Format = FormatDateTime
	return &c
}

// Rule returns a copy of s with an additional validator tag, e.g. "min=1".
func (s *Schema) Rule(tag string) *Schema {
	c := *s
	if c.Rules == "" {
		c.Rules = tag
	} else {
		c.Rules += "," + tag
	}
	return &c
}

// Describe returns a copy of s carrying a human-readable description.
func (s *Schema) Describe(text string) *Schema {
	c := *s
	c.Description = text
	return &c
}

// HasFields reports whether s is an object with at least one property.
func (s *Schema) HasFields() bool {
	return s != nil && s.Kind == KindObject && len(s.Fields) > 0
}

// Violation is a single schema mismatch at a dotted field path.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

var validate = validator.New()

// Validate checks a decoded JSON value (as produced by decodeValue) against
// the schema and returns every violation found.
func (s *Schema) Validate(value any) []Violation {
	var out []Violation
	s.validate("", value, &out)
	return out
}

func (s *Schema) validate(path string, value any, out *[]Violation) {
	if value == nil {
		if !s.Nullable {
			*out = append(*out, Violation{Path: path, Message: fmt.Sprintf("expected %s, got null", s.Kind)})
		}
		return
	}

	switch s.Kind {
	case KindString:
		str, ok := value.(string)
		if !ok {
			*out = append(*out, mismatch(path, s.Kind, value))
			return
		}
		if s.Format == FormatDateTime {
			if _, err := time.Parse(time.RFC3339Nano, str); err != nil {
				*out = append(*out, Violation{Path: path, Message: "must be an RFC 3339 date-time"})
				return
			}
		}
		s.checkRules(path, str, out)

	case KindNumber:
		f, ok := toFloat(value)
		if !ok {
			*out = append(*out, mismatch(path, s.Kind, value))
			return
		}
		s.checkRules(path, f, out)

	case KindInteger:
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			*out = append(*out, mismatch(path, s.Kind, value))
			return
		}
		s.checkRules(path, int64(f), out)

	case KindBoolean:
		if _, ok := value.(bool); !ok {
			*out = append(*out, mismatch(path, s.Kind, value))
		}

	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			*out = append(*out, mismatch(path, s.Kind, value))
			return
		}
		known := make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			known[f.Name] = true
			v, present := obj[f.Name]
			if !present {
				if !f.Optional {
					*out = append(*out, Violation{Path: joinPath(path, f.Name), Message: "is required"})
				}
				continue
			}
			f.Schema.validate(joinPath(path, f.Name), v, out)
		}
		var unknown []string
		for k := range obj {
			if !known[k] {
				unknown = append(unknown, k)
			}
		}
		sort.Strings(unknown)
		for _, k := range unknown {
			*out = append(*out, Violation{Path: joinPath(path, k), Message: "unknown field"})
		}

	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			*out = append(*out, mismatch(path, s.Kind, value))
			return
		}
		for i, v := range arr {
			s.Items.validate(fmt.Sprintf("%s[%d]", path, i), v, out)
		}
	}
}

func (s *Schema) checkRules(path string, value any, out *[]Violation) {
	if s.Rules == "" {
		return
	}
	err := validate.Var(value, s.Rules)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			*out = append(*out, Violation{Path: path, Message: ruleMessage(fe)})
		}
		return
	}
	*out = append(*out, Violation{Path: path, Message: err.Error()})
}

// ruleMessage formats a failed validator tag into readable text.
func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "datauri":
		return "must be a data URI"
	case "url":
		return "must be a URL"
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}

// JSONSchema renders the descriptor as a JSON Schema document fragment.
func (s *Schema) JSONSchema() map[string]any {
	m := map[string]any{}
	if s.Nullable {
		m["type"] = []string{s.Kind.String(), "null"}
	} else {
		m["type"] = s.Kind.String()
	}
	if s.Format != "" {
		m["format"] = s.Format
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	switch s.Kind {
	case KindObject:
		props := make(map[string]any, len(s.Fields))
		required := []string{}
		for _, f := range s.Fields {
			props[f.Name] = f.Schema.JSONSchema()
			if !f.Optional {
				required = append(required, f.Name)
			}
		}
		m["properties"] = props
		if len(required) > 0 {
			m["required"] = required
		}
		m["additionalProperties"] = false
	case KindArray:
		m["items"] = s.Items.JSONSchema()
	}
	return m
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func mismatch(path string, want Kind, got any) Violation {
	return Violation{Path: path, Message: fmt.Sprintf("expected %s, got %s", want, jsonTypeName(got))}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// decodeValue decodes raw JSON into generic values, keeping numbers exact.
func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}
