// Package descriptor implements the per-type contract that connects Go types
// to the schema and structured-value models: schema derivation, encoding,
// strict decoding, and the tolerant partial decoding used while streaming.
package descriptor

import (
	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/schema"
)

// Descriptor describes one generable type: its schema, and the conversions
// between application values and structured content. Implementations are
// usually produced by For, but hand-written descriptors satisfy the same
// contract.
type Descriptor interface {
	// Schema returns the shape and declared constraints of the type.
	Schema() *schema.Schema

	// Encode converts an application value to structured content.
	Encode(v any) (content.Content, error)

	// Decode converts structured content to an application value. It fails
	// with MissingPropertyError or TypeMismatchError from pkg/content.
	Decode(c content.Content) (any, error)

	// DecodePartial converts structured content tolerantly: every field is
	// treated as optional and undecodable sub-trees are omitted. It never
	// fails.
	DecodePartial(c content.Content) any
}
