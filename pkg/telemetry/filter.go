package telemetry

import (
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
)

const defaultMask = "***"

// Secret-shaped tokens are always masked regardless of configuration.
var builtinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{4,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{8,}`),
	regexp.MustCompile(`(?i)api[-_]?key\s*[=:]\s*\S+`),
}

// FilterConfig declares redaction behavior for attributes and recorded text.
type FilterConfig struct {
	// Mask replaces matched spans of text. Empty selects "***".
	Mask string
	// Patterns are extra regular expressions to redact.
	Patterns []string
}

// Filter rewrites sensitive substrings before they reach an exporter.
type Filter struct {
	mask     string
	patterns []*regexp.Regexp
}

// NewFilter compiles the configured patterns on top of the builtin set.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	mask := cfg.Mask
	if mask == "" {
		mask = defaultMask
	}
	patterns := append([]*regexp.Regexp(nil), builtinPatterns...)
	for _, raw := range cfg.Patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}
	return &Filter{mask: mask, patterns: patterns}, nil
}

// MaskText redacts every configured pattern in s.
func (f *Filter) MaskText(s string) string {
	if f == nil {
		return s
	}
	for _, re := range f.patterns {
		s = re.ReplaceAllString(s, f.mask)
	}
	return s
}

// MaskText redacts text through the manager's filter.
func (m *Manager) MaskText(s string) string {
	if m == nil {
		return s
	}
	return m.filter.MaskText(s)
}

// SanitizeAttributes masks string attribute values in place of dropping
// them, so span shape stays stable while secrets do not leak.
func (m *Manager) SanitizeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	if m == nil || len(attrs) == 0 {
		return attrs
	}
	out := make([]attribute.KeyValue, len(attrs))
	for i, kv := range attrs {
		if kv.Value.Type() == attribute.STRING {
			out[i] = attribute.String(string(kv.Key), m.filter.MaskText(kv.Value.AsString()))
			continue
		}
		out[i] = kv
	}
	return out
}

// MaskText redacts text through the default manager.
func MaskText(s string) string { return Default().MaskText(s) }

// SanitizeAttributes sanitizes through the default manager.
func SanitizeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	return Default().SanitizeAttributes(attrs...)
}
