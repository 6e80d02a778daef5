package schema

import (
	"fmt"
	"sort"
)

// FromJSON maps a decoded JSON Schema node onto the closed local kinds.
// Unsupported keywords are dropped rather than rejected so that richer
// schemas still yield usable trees; an unsupported "type" is an error.
func FromJSON(node map[string]any, name string) (*Schema, error) {
	if alts, ok := node["anyOf"].([]any); ok {
		return anyOfFromJSON(node, alts, name)
	}

	typ, _ := node["type"].(string)
	description, _ := node["description"].(string)

	switch typ {
	case "object", "":
		return objectFromJSON(node, name, description)
	case "array":
		items := String()
		if itemNode, ok := node["items"].(map[string]any); ok {
			inner, err := FromJSON(itemNode, name+" items")
			if err != nil {
				return nil, err
			}
			items = inner
		}
		return constrainArray(Array(items), node)
	case "string":
		return constrainString(String(), node)
	case "integer":
		return constrainInteger(Integer(), node)
	case "number":
		return constrainNumber(Number(), node)
	case "boolean":
		return Boolean(), nil
	default:
		return nil, fmt.Errorf("schema: unsupported type %q", typ)
	}
}

func anyOfFromJSON(node map[string]any, alts []any, name string) (*Schema, error) {
	description, _ := node["description"].(string)
	schemas := make([]*Schema, 0, len(alts))
	for _, alt := range alts {
		altNode, ok := alt.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("schema: anyOf alternative is not an object")
		}
		s, err := FromJSON(altNode, name)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return AnyOf(name, description, schemas...), nil
}

func objectFromJSON(node map[string]any, name, description string) (*Schema, error) {
	required := map[string]bool{}
	if reqs, ok := node["required"].([]any); ok {
		for _, r := range reqs {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	var props []Property
	if propsNode, ok := node["properties"].(map[string]any); ok {
		keys := make([]string, 0, len(propsNode))
		for k := range propsNode {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			propNode, ok := propsNode[key].(map[string]any)
			if !ok {
				continue
			}
			propSchema, err := FromJSON(propNode, key)
			if err != nil {
				return nil, err
			}
			propDescription, _ := propNode["description"].(string)
			props = append(props, Property{
				Name:        key,
				Schema:      propSchema,
				Description: propDescription,
				Optional:    !required[key],
			})
		}
	}
	return Object(name, description, props...)
}

func constrainString(s *Schema, node map[string]any) (*Schema, error) {
	if pattern, ok := node["pattern"].(string); ok {
		out, err := WithConstraint(s, PatternConstraint(pattern))
		if err != nil {
			return nil, err
		}
		s = out
	}
	if values, ok := node["enum"].([]any); ok {
		strs := make([]string, 0, len(values))
		for _, v := range values {
			if str, ok := v.(string); ok {
				strs = append(strs, str)
			}
		}
		if len(strs) == len(values) {
			out, err := WithConstraint(s, EnumConstraint(strs...))
			if err != nil {
				return nil, err
			}
			s = out
		}
	}
	min := intKeyword(node, "minLength")
	max := intKeyword(node, "maxLength")
	if min != nil || max != nil {
		out, err := WithConstraint(s, LengthConstraint(min, max))
		if err != nil {
			return nil, err
		}
		s = out
	}
	return s, nil
}

func constrainInteger(s *Schema, node map[string]any) (*Schema, error) {
	var min, max *int64
	if v, ok := floatKeyword(node, "minimum"); ok {
		n := int64(v)
		min = &n
	}
	if v, ok := floatKeyword(node, "maximum"); ok {
		n := int64(v)
		max = &n
	}
	if min == nil && max == nil {
		return s, nil
	}
	return WithConstraint(s, IntRangeConstraint(min, max))
}

func constrainNumber(s *Schema, node map[string]any) (*Schema, error) {
	var min, max *float64
	if v, ok := floatKeyword(node, "minimum"); ok {
		min = &v
	}
	if v, ok := floatKeyword(node, "maximum"); ok {
		max = &v
	}
	if min == nil && max == nil {
		return s, nil
	}
	return WithConstraint(s, NumberRangeConstraint(min, max))
}

func constrainArray(s *Schema, node map[string]any) (*Schema, error) {
	min := intKeyword(node, "minItems")
	max := intKeyword(node, "maxItems")
	if min == nil && max == nil {
		return s, nil
	}
	return WithConstraint(s, CountConstraint(min, max))
}

func intKeyword(node map[string]any, key string) *int {
	v, ok := floatKeyword(node, key)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}

func floatKeyword(node map[string]any, key string) (float64, bool) {
	v, ok := node[key].(float64)
	return v, ok
}
