// Package schema generates JSON Schema from Go struct types via reflection
// and struct tags. It is the Go-native equivalent of the TypeScript-AST-based
// Type->Schema Converter described in SPEC_FULL.md §0/§4.1: a struct tag pair
// plays the role a type literal + JSDoc comment would play in TypeScript.
package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// unionRegistry maps a oneOf member name (as it appears in an
// `mcp:"field,oneOf=Name,..."` tag) to the concrete struct type it
// represents. Go has no structural union type to reflect on directly, so a
// tagged interface field is resolved through this small name registry
// instead — the Go-native analogue of a TypeScript union of object shapes
// (SPEC_FULL.md §4.1).
var unionRegistry = struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}{types: make(map[string]reflect.Type)}

// RegisterUnionMember records name as a possible shape for any interface
// field tagged `oneOf=name` in a struct later passed to FromStruct.
func RegisterUnionMember[T any](name string) {
	var zero T
	unionRegistry.mu.Lock()
	unionRegistry.types[name] = reflect.TypeOf(zero)
	unionRegistry.mu.Unlock()
}

func lookupUnionMember(name string) (reflect.Type, bool) {
	unionRegistry.mu.RLock()
	defer unionRegistry.mu.RUnlock()
	t, ok := unionRegistry.types[name]
	return t, ok
}

// parseMCPTag splits an `mcp:"name,oneOf=A,B"` struct tag into the field's
// wire name and, if present, the ordered list of registered oneOf member
// names that follow an `oneOf=` token.
func parseMCPTag(tag string) (name string, oneOf []string) {
	if tag == "" {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	name = parts[0]

	inOneOf := false
	for _, p := range parts[1:] {
		switch {
		case strings.HasPrefix(p, "oneOf="):
			inOneOf = true
			oneOf = append(oneOf, strings.TrimPrefix(p, "oneOf="))
		case inOneOf && !strings.Contains(p, "="):
			oneOf = append(oneOf, p)
		default:
			inOneOf = false
		}
	}
	return name, oneOf
}

// FromStruct converts a struct type into a JSON Schema object. It never
// returns an error: unrepresentable fields (channels, functions, unsafe
// pointers) degrade to an empty schema node plus a warning string, matching
// the spec's requirement that the converter "never throws."
func FromStruct(t reflect.Type) (map[string]interface{}, []string) {
	var warnings []string
	schemaObj := convertStruct(t, &warnings)
	return schemaObj, warnings
}

func convertStruct(t reflect.Type, warnings *[]string) map[string]interface{} {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	properties := make(map[string]interface{})
	var required []string

	if t.Kind() != reflect.Struct {
		*warnings = append(*warnings, "FromStruct requires a struct type, got "+t.Kind().String())
		return map[string]interface{}{"type": "object", "additionalProperties": true}
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" { // unexported
			continue
		}

		name, oneOf := parseMCPTag(field.Tag.Get("mcp"))
		if name == "" {
			name = lowerCamel(field.Name)
		}

		prop, required_ := convertField(field, oneOf, warnings)
		properties[name] = prop
		if required_ {
			required = append(required, name)
		}
	}

	out := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func convertField(field reflect.StructField, oneOf []string, warnings *[]string) (map[string]interface{}, bool) {
	var prop map[string]interface{}
	if field.Type.Kind() == reflect.Interface && len(oneOf) > 0 {
		prop = convertOneOf(oneOf, warnings)
	} else {
		prop = convertType(field.Type, warnings)
	}

	if desc := field.Tag.Get("description"); desc != "" {
		prop["description"] = desc
	}
	if enum := field.Tag.Get("enum"); enum != "" {
		values := strings.Split(enum, ",")
		enumVals := make([]interface{}, len(values))
		for i, v := range values {
			enumVals[i] = strings.TrimSpace(v)
		}
		prop["enum"] = enumVals
	}
	if min := field.Tag.Get("min"); min != "" {
		if f, err := strconv.ParseFloat(min, 64); err == nil {
			prop["minimum"] = f
		}
	}
	if max := field.Tag.Get("max"); max != "" {
		if f, err := strconv.ParseFloat(max, 64); err == nil {
			prop["maximum"] = f
		}
	}
	if minLen := field.Tag.Get("minLength"); minLen != "" {
		if n, err := strconv.Atoi(minLen); err == nil {
			prop["minLength"] = n
		}
	}
	if maxLen := field.Tag.Get("maxLength"); maxLen != "" {
		if n, err := strconv.Atoi(maxLen); err == nil {
			prop["maxLength"] = n
		}
	}

	required := strings.EqualFold(field.Tag.Get("required"), "true")
	// A pointer field is optional by default unless explicitly required.
	if field.Type.Kind() == reflect.Ptr && field.Tag.Get("required") == "" {
		required = false
	}

	return prop, required
}

// convertOneOf resolves each named union member through unionRegistry and
// builds a `{"oneOf": [...]}` schema node. An unregistered name degrades to
// an empty schema alternative plus a warning, never a panic.
func convertOneOf(names []string, warnings *[]string) map[string]interface{} {
	alternatives := make([]interface{}, 0, len(names))
	for _, name := range names {
		t, ok := lookupUnionMember(name)
		if !ok {
			*warnings = append(*warnings, "oneOf member "+name+" is not registered with schema.RegisterUnionMember")
			alternatives = append(alternatives, map[string]interface{}{})
			continue
		}
		alternatives = append(alternatives, convertStruct(t, warnings))
	}
	return map[string]interface{}{"oneOf": alternatives}
}

func convertType(t reflect.Type, warnings *[]string) map[string]interface{} {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]interface{}{"type": "string"}
	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]interface{}{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]interface{}{
			"type":  "array",
			"items": convertType(t.Elem(), warnings),
		}
	case reflect.Struct:
		return convertStruct(t, warnings)
	case reflect.Map:
		return map[string]interface{}{"type": "object", "additionalProperties": true}
	case reflect.Interface:
		return map[string]interface{}{}
	default:
		*warnings = append(*warnings, "unrepresentable type "+t.Kind().String()+" converted to empty schema")
		return map[string]interface{}{}
	}
}

func lowerCamel(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// Validate checks args against a JSON-Schema object built by FromStruct (or
// by ToolBuilder.BuildSchema) with github.com/google/jsonschema-go (types,
// enums, min/max, minLength/maxLength). On failure it returns the
// validator's error text as a single-element slice; violations are not split
// into separate entries. The mcp package's tools/call path does not call
// Validate: it checks required parameters only.
func Validate(schemaObj map[string]interface{}, args map[string]interface{}) ([]string, error) {
	raw, err := json.Marshal(schemaObj)
	if err != nil {
		return nil, err
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := resolved.Validate(args); err != nil {
		return []string{err.Error()}, nil
	}
	return nil, nil
}
