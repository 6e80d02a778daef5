package schema

import "encoding/json"

// MarshalJSON renders the schema as a JSON-Schema-like document. Wire
// adapters and tool specs use this form; it does not claim conformance with
// any one provider's dialect.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.asMap())
}

func (s *Schema) asMap() map[string]any {
	if s == nil {
		return nil
	}
	m := map[string]any{}
	switch s.Kind {
	case KindAnyOf:
		alts := make([]any, 0, len(s.Alternatives))
		for _, alt := range s.Alternatives {
			alts = append(alts, alt.asMap())
		}
		m["anyOf"] = alts
	case KindObject:
		m["type"] = "object"
		props := map[string]any{}
		var required []string
		for _, p := range s.Properties {
			pm := p.Schema.asMap()
			if p.Description != "" {
				pm["description"] = p.Description
			}
			props[p.Name] = pm
			if !p.Optional {
				required = append(required, p.Name)
			}
		}
		m["properties"] = props
		if len(required) > 0 {
			m["required"] = required
		}
		m["additionalProperties"] = false
	case KindArray:
		m["type"] = "array"
		if s.Items != nil {
			m["items"] = s.Items.asMap()
		}
	default:
		m["type"] = string(s.Kind)
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	for _, c := range s.Constraints {
		applyConstraintJSON(m, c)
	}
	return m
}

func applyConstraintJSON(m map[string]any, c Constraint) {
	if c.Pattern != "" {
		m["pattern"] = c.Pattern
	}
	if len(c.Enum) > 0 {
		m["enum"] = append([]string(nil), c.Enum...)
	}
	if c.MinLength != nil {
		m["minLength"] = *c.MinLength
	}
	if c.MaxLength != nil {
		m["maxLength"] = *c.MaxLength
	}
	if c.MinInt != nil {
		m["minimum"] = *c.MinInt
	}
	if c.MaxInt != nil {
		m["maximum"] = *c.MaxInt
	}
	if c.MinNumber != nil {
		m["minimum"] = *c.MinNumber
	}
	if c.MaxNumber != nil {
		m["maximum"] = *c.MaxNumber
	}
	if c.Const != nil {
		m["const"] = *c.Const
	}
	if c.MinItems != nil {
		m["minItems"] = *c.MinItems
	}
	if c.MaxItems != nil {
		m["maxItems"] = *c.MaxItems
	}
}
