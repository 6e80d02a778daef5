package content

import "fmt"

// TypeMismatchError reports an accessor applied to a value of a different
// kind, or a decoded value whose kind does not match its schema.
type TypeMismatchError struct {
	Expected Kind
	Actual   Kind
	// Path optionally locates the mismatch inside a larger value, e.g.
	// "items[2].name". Empty for direct accessor failures.
	Path string
}

func (e *TypeMismatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("content: type mismatch at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
	}
	return fmt.Sprintf("content: type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// MissingPropertyError reports a required object property absent from a
// decoded value.
type MissingPropertyError struct {
	Name string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("content: missing required property %q", e.Name)
}

// InvalidIntegerError reports a numeric value read as an integer while
// carrying a nonzero fractional part.
type InvalidIntegerError struct {
	Value float64
}

func (e *InvalidIntegerError) Error() string {
	return fmt.Sprintf("content: %v is not a representable integer", e.Value)
}
