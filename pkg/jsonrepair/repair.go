// Package jsonrepair recovers the longest syntactically valid JSON document
// from a truncated prefix, such as the accumulated output of a streaming
// model call. Repair assumes its input is a prefix of an eventually valid
// document; it makes no attempt to fix arbitrarily malformed text.
package jsonrepair

import (
	"encoding/json"
	"strings"
)

// container tracks one open object or array during the scan. lastComma is
// initialized to the opening index so "no comma yet" and "opened here"
// compare uniformly.
type container struct {
	kind      byte // '{' or '['
	open      int
	lastComma int
	lastColon int
}

// Repair reduces a truncated JSON prefix to the longest valid closed
// document derivable from it. A complete document is returned unchanged
// apart from surrounding whitespace. The result is always either valid JSON
// or the empty string; Repair never panics and is idempotent.
func Repair(input string) string {
	text := strings.TrimSpace(input)
	if text == "" {
		return ""
	}
	if json.Valid([]byte(text)) {
		return text
	}

	inString := false
	escaped := false
	var stack []container

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, container{kind: c, open: i, lastComma: i, lastColon: -1})
		case '}', ']':
			// Unmatched closers at the tail are not expected under the
			// prefix assumption; ignore them on an empty stack.
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if len(stack) > 0 {
				stack[len(stack)-1].lastComma = i
			}
		case ':':
			if len(stack) > 0 {
				stack[len(stack)-1].lastColon = i
			}
		}
	}

	// Terminate an unfinished string literal. A trailing unconsumed escape
	// means the final backslash run has odd parity; drop it before closing.
	if inString {
		if escaped {
			text = text[:len(text)-1]
		}
		text += `"`
	}

	var outerKind byte
	if len(stack) > 0 {
		outerKind = stack[0].kind
	}

	// Trim back to the last point known to end in a complete value.
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if closable(text, top) {
			break
		}
		if top.lastComma > top.open {
			// Everything before the comma is a known-valid prefix.
			text = text[:top.lastComma]
			break
		}
		text = text[:top.open]
		stack = stack[:len(stack)-1]
	}

	var b strings.Builder
	b.WriteString(text)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].kind == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	result := strings.TrimSpace(b.String())

	if result == "" || !json.Valid([]byte(result)) {
		switch outerKind {
		case '{':
			return "{}"
		case '[':
			return "[]"
		default:
			return ""
		}
	}
	return result
}

// closable reports whether the container can be closed where the text
// currently ends without producing invalid JSON.
func closable(text string, c container) bool {
	expecting := c.kind == '[' || c.lastColon > c.lastComma
	if expecting {
		anchor := c.lastComma
		if c.lastColon > anchor {
			anchor = c.lastColon
		}
		return valueComplete(text[anchor+1:])
	}
	// Object in key position: closable only when nothing follows the
	// opening brace. A dangling key or trailing comma cannot be closed.
	return c.lastComma == c.open && strings.TrimSpace(text[c.open+1:]) == ""
}

// valueComplete judges whether the trailing content is a finished value: a
// closed string, a closed container, or a true/false/null literal. Numeric
// literals are never judged complete, since a partial number cannot be
// extended without guessing digits.
func valueComplete(tail string) bool {
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return false
	}
	switch tail[len(tail)-1] {
	case '"', '}', ']':
		return true
	}
	return strings.HasSuffix(tail, "true") ||
		strings.HasSuffix(tail, "false") ||
		strings.HasSuffix(tail, "null")
}
