package descriptor

import (
	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/schema"
)

// Dynamic is a schema-backed descriptor for callers that work with structured
// content directly instead of a Go type. Decode validates and returns the
// content unchanged; DecodePartial prunes it to the parts that fit the schema.
type Dynamic struct {
	schema *schema.Schema
}

// NewDynamic wraps a schema as a descriptor.
func NewDynamic(s *schema.Schema) *Dynamic { return &Dynamic{schema: s} }

func (d *Dynamic) Schema() *schema.Schema { return d.schema }

func (d *Dynamic) Encode(v any) (content.Content, error) {
	c, ok := v.(content.Content)
	if !ok {
		var err error
		c, err = content.FromAny(v)
		if err != nil {
			return content.Null(), err
		}
	}
	if err := Validate(c, d.schema); err != nil {
		return content.Null(), err
	}
	return c, nil
}

func (d *Dynamic) Decode(c content.Content) (any, error) {
	if err := Validate(c, d.schema); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *Dynamic) DecodePartial(c content.Content) any {
	return Prune(c, d.schema)
}

// Prune trims content down to the largest subset that fits the schema's
// shape. Repaired mid-stream fragments routinely carry truncated leaves;
// pruning turns them into content a consumer can render without guarding
// every access. Constraints are deliberately not enforced here because a
// still-growing value may satisfy them once complete.
func Prune(c content.Content, s *schema.Schema) content.Content {
	out, ok := prune(c, s)
	if !ok {
		return content.Null()
	}
	return out
}

func prune(c content.Content, s *schema.Schema) (content.Content, bool) {
	switch s.Kind {
	case schema.KindAnyOf:
		// Pick the alternative that keeps the most of the fragment.
		var best content.Content
		found := false
		bestSize := -1
		for _, alt := range s.Alternatives {
			if out, ok := prune(c, alt); ok {
				if size := weight(out); size > bestSize {
					best, bestSize, found = out, size, true
				}
			}
		}
		return best, found
	case schema.KindString:
		if c.Kind() != content.KindString {
			return content.Null(), false
		}
		return c, true
	case schema.KindInteger:
		if _, err := c.AsInt(); err != nil {
			return content.Null(), false
		}
		return c, true
	case schema.KindNumber:
		if c.Kind() != content.KindNumber {
			return content.Null(), false
		}
		return c, true
	case schema.KindBoolean:
		if c.Kind() != content.KindBool {
			return content.Null(), false
		}
		return c, true
	case schema.KindArray:
		items, err := c.AsArray()
		if err != nil {
			return content.Null(), false
		}
		kept := make([]content.Content, 0, len(items))
		for _, item := range items {
			out, ok := prune(item, s.Items)
			if !ok {
				// A malformed element means the stream broke inside it, so
				// everything after is noise.
				break
			}
			kept = append(kept, out)
		}
		return content.Array(kept...), true
	case schema.KindObject:
		obj, err := c.AsObject()
		if err != nil {
			return content.Null(), false
		}
		kept := make(map[string]content.Content, len(obj))
		for _, prop := range s.Properties {
			fc, ok := obj[prop.Name]
			if !ok {
				continue
			}
			if out, ok := prune(fc, prop.Schema); ok {
				kept[prop.Name] = out
			}
		}
		return content.Object(kept), true
	default:
		return content.Null(), false
	}
}

// weight counts the leaves of a content tree, used to rank anyOf candidates.
func weight(c content.Content) int {
	switch c.Kind() {
	case content.KindArray:
		arr, _ := c.AsArray()
		total := 1
		for _, item := range arr {
			total += weight(item)
		}
		return total
	case content.KindObject:
		obj, _ := c.AsObject()
		total := 1
		for _, item := range obj {
			total += weight(item)
		}
		return total
	default:
		return 1
	}
}
