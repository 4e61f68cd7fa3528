package llms

import "github.com/invopop/jsonschema"

// SchemaFor reflects a Go value's type into the JSON Schema map expected by
// Options.Schema when ResponseFormat == FormatJSONSchema. Used by the
// planner and diagnostics packages to request structured reflection,
// alignment, and diagnosis output instead of hand-parsing free text.
func SchemaFor(v any) map[string]any {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(v)
	out := make(map[string]any)
	if schema.Properties != nil {
		props := make(map[string]any)
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			props[pair.Key] = pair.Value
		}
		out["properties"] = props
	}
	out["type"] = "object"
	out["required"] = schema.Required
	return out
}
