// Package schema normalizes backend-supplied tool parameter descriptions.
//
// The backend serves tool parameters in two shapes: an ordered list of
// descriptors, or a bare name->type object. Both are folded into one
// canonical ordered []ParameterSpec here so nothing deeper in the call
// stack ever branches on the wire shape.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Parameter types understood by the form layer. Unknown type strings are
// passed through untouched; the form treats them like plain strings.
const (
	TypeString = "string"
	TypeEmail  = "email"
	TypeNumber = "number"
)

// ParameterSpec is one canonical tool parameter.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

type descriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    *bool  `json:"required"`
	Description string `json:"description"`
}

// Normalize converts a raw parameters value into an ordered spec list.
//
// A descriptor array keeps its order and explicit required flags (absent
// flags default to true). A name->type map keeps the document order of its
// keys and marks every field required, since a bare map carries no
// optionality signal. Empty, null, or absent parameters yield an empty
// list: a schema-less tool renders an empty, always-submittable form.
func Normalize(raw json.RawMessage) ([]ParameterSpec, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []ParameterSpec{}, nil
	}

	switch trimmed[0] {
	case '[':
		return normalizeList(trimmed)
	case '{':
		return normalizeMap(trimmed)
	default:
		return nil, fmt.Errorf("parameters must be an array or an object, got %q", previewOf(trimmed))
	}
}

func normalizeList(raw []byte) ([]ParameterSpec, error) {
	var descriptors []descriptor
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		return nil, fmt.Errorf("decode parameter list: %w", err)
	}

	specs := make([]ParameterSpec, 0, len(descriptors))
	seen := make(map[string]struct{}, len(descriptors))
	for i, d := range descriptors {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("parameter %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate parameter %q", name)
		}
		seen[name] = struct{}{}

		required := true
		if d.Required != nil {
			required = *d.Required
		}
		specs = append(specs, ParameterSpec{
			Name:        name,
			Type:        normalizeType(d.Type),
			Required:    required,
			Description: d.Description,
		})
	}
	return specs, nil
}

// normalizeMap walks the object token by token so key order matches the
// document; json.Unmarshal into a Go map would randomize it.
func normalizeMap(raw []byte) ([]ParameterSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	if _, err := dec.Token(); err != nil { // consume '{'
		return nil, fmt.Errorf("decode parameter map: %w", err)
	}

	specs := make([]ParameterSpec, 0)
	seen := make(map[string]struct{})
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode parameter map: %w", err)
		}
		name := strings.TrimSpace(keyToken.(string))

		var typeName string
		if err := dec.Decode(&typeName); err != nil {
			return nil, fmt.Errorf("parameter %q: type must be a string: %w", name, err)
		}

		if name == "" {
			return nil, fmt.Errorf("parameter map contains an empty name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate parameter %q", name)
		}
		seen[name] = struct{}{}

		specs = append(specs, ParameterSpec{
			Name:     name,
			Type:     normalizeType(typeName),
			Required: true,
		})
	}
	return specs, nil
}

func normalizeType(typeName string) string {
	normalized := strings.ToLower(strings.TrimSpace(typeName))
	if normalized == "" {
		return TypeString
	}
	return normalized
}

func previewOf(raw []byte) string {
	const max = 24
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
