package mcpservice

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/invopop/jsonschema"
)

// reflectSchema reflects A with the settings used for both tools and prompts:
// definitions inlined and the struct itself at the root. Fields without
// omitempty are reported as required.
func reflectSchema[A any](allowAdditional bool) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: allowAdditional,
	}
	return r.Reflect(new(A))
}

// reflectToMCPInputSchema converts the reflected schema of A to the simplified
// mcp.ToolInputSchema. Non-object types produce an empty object schema.
func reflectToMCPInputSchema[A any](allowAdditional bool) mcp.ToolInputSchema {
	s := reflectSchema[A](allowAdditional)
	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toMCPProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}
	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// reflectPromptArguments lists the top-level fields of A as prompt arguments
// in declaration order.
func reflectPromptArguments[A any]() []mcp.PromptArgument {
	s := reflectSchema[A](false)
	if s == nil || s.Properties == nil {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	var args []mcp.PromptArgument
	for el := s.Properties.Oldest(); el != nil; el = el.Next() {
		args = append(args, mcp.PromptArgument{
			Name:        el.Key,
			Description: el.Value.Description,
			Required:    required[el.Key],
		})
	}
	return args
}

// validateArguments checks a tools/call arguments payload against the tool's
// declared input schema. Missing required fields are reported together;
// unknown and mistyped fields are reported one at a time in key order.
func validateArguments(schema mcp.ToolInputSchema, raw json.RawMessage) error {
	args := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !isJSONNull(trimmed) {
		if trimmed[0] != '{' {
			return mcperr.TypeMismatch("arguments", "object")
		}
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return &mcperr.InvalidParamsError{Field: "arguments", Reason: "malformed JSON", Err: err}
		}
	}

	var missing []string
	for _, name := range schema.Required {
		if v, ok := args[name]; !ok || isJSONNull(v) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &mcperr.MissingFieldError{Fields: missing}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prop, ok := schema.Properties[k]
		if !ok {
			if !schema.AdditionalProperties {
				return mcperr.UnknownField(k)
			}
			continue
		}
		if !matchesType(prop.Type, args[k]) {
			return mcperr.TypeMismatch(k, prop.Type)
		}
	}
	return nil
}

// validatePromptArguments checks prompts/get arguments against the declared
// prompt arguments.
func validatePromptArguments(p mcp.Prompt, args map[string]string) error {
	declared := make(map[string]bool, len(p.Arguments))
	var missing []string
	for _, a := range p.Arguments {
		declared[a.Name] = true
		if _, ok := args[a.Name]; a.Required && !ok {
			missing = append(missing, a.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &mcperr.MissingFieldError{Fields: missing}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !declared[k] {
			return mcperr.UnknownField(k)
		}
	}
	return nil
}

// matchesType reports whether the JSON value v has the schema type want. An
// empty want or a null value always matches.
func matchesType(want string, v json.RawMessage) bool {
	if want == "" || len(v) == 0 || isJSONNull(v) {
		return true
	}
	c := v[0]
	isNumber := c == '-' || (c >= '0' && c <= '9')
	switch want {
	case "string":
		return c == '"'
	case "boolean":
		return c == 't' || c == 'f'
	case "object":
		return c == '{'
	case "array":
		return c == '['
	case "number":
		return isNumber
	case "integer":
		return isNumber && !bytes.ContainsAny(v, ".eE")
	default:
		return true
	}
}

func isJSONNull(v []byte) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
