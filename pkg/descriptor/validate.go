package descriptor

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/schema"
)

// ConstraintError reports a value that matched its schema kind but violated
// one of the declared constraints.
type ConstraintError struct {
	Path   string
	Detail string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("descriptor: constraint violated at %s: %s", e.Path, e.Detail)
}

// Validate checks structured content against a schema, constraints included.
// The first violation is returned with the path that produced it.
func Validate(c content.Content, s *schema.Schema) error {
	return validate(c, s, "$")
}

func validate(c content.Content, s *schema.Schema, path string) error {
	switch s.Kind {
	case schema.KindAnyOf:
		var firstErr error
		for _, alt := range s.Alternatives {
			if err := validate(c, alt, path); err == nil {
				return nil
			} else if firstErr == nil {
				firstErr = err
			}
		}
		if firstErr == nil {
			firstErr = &ConstraintError{Path: path, Detail: "no alternatives declared"}
		}
		return firstErr
	case schema.KindString:
		v, err := c.AsString()
		if err != nil {
			return pathed(err, path)
		}
		return checkConstraints(s, path, func(con schema.Constraint) error {
			return checkString(v, con, path)
		})
	case schema.KindInteger:
		v, err := c.AsInt()
		if err != nil {
			return pathed(err, path)
		}
		return checkConstraints(s, path, func(con schema.Constraint) error {
			if con.MinInt != nil && v < *con.MinInt {
				return &ConstraintError{Path: path, Detail: fmt.Sprintf("%d below minimum %d", v, *con.MinInt)}
			}
			if con.MaxInt != nil && v > *con.MaxInt {
				return &ConstraintError{Path: path, Detail: fmt.Sprintf("%d above maximum %d", v, *con.MaxInt)}
			}
			return nil
		})
	case schema.KindNumber:
		v, err := c.AsFloat()
		if err != nil {
			return pathed(err, path)
		}
		return checkConstraints(s, path, func(con schema.Constraint) error {
			if con.MinNumber != nil && v < *con.MinNumber {
				return &ConstraintError{Path: path, Detail: fmt.Sprintf("%g below minimum %g", v, *con.MinNumber)}
			}
			if con.MaxNumber != nil && v > *con.MaxNumber {
				return &ConstraintError{Path: path, Detail: fmt.Sprintf("%g above maximum %g", v, *con.MaxNumber)}
			}
			return nil
		})
	case schema.KindBoolean:
		v, err := c.AsBool()
		if err != nil {
			return pathed(err, path)
		}
		return checkConstraints(s, path, func(con schema.Constraint) error {
			if con.Const != nil && v != *con.Const {
				return &ConstraintError{Path: path, Detail: fmt.Sprintf("must be %t", *con.Const)}
			}
			return nil
		})
	case schema.KindArray:
		items, err := c.AsArray()
		if err != nil {
			return pathed(err, path)
		}
		for i, item := range items {
			if err := validate(item, s.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return checkConstraints(s, path, func(con schema.Constraint) error {
			if con.MinItems != nil && len(items) < *con.MinItems {
				return &ConstraintError{Path: path, Detail: fmt.Sprintf("%d items, need at least %d", len(items), *con.MinItems)}
			}
			if con.MaxItems != nil && len(items) > *con.MaxItems {
				return &ConstraintError{Path: path, Detail: fmt.Sprintf("%d items, allow at most %d", len(items), *con.MaxItems)}
			}
			return nil
		})
	case schema.KindObject:
		obj, err := c.AsObject()
		if err != nil {
			return pathed(err, path)
		}
		for _, prop := range s.Properties {
			fc, ok := obj[prop.Name]
			if !ok {
				if prop.Optional {
					continue
				}
				return &content.MissingPropertyError{Name: path + "." + prop.Name}
			}
			if err := validate(fc, prop.Schema, path+"."+prop.Name); err != nil {
				return err
			}
		}
		for name := range obj {
			if !hasProperty(s, name) {
				return &ConstraintError{Path: path + "." + name, Detail: "property not declared"}
			}
		}
		return nil
	default:
		return &ConstraintError{Path: path, Detail: fmt.Sprintf("unknown schema kind %q", s.Kind)}
	}
}

func checkString(v string, con schema.Constraint, path string) error {
	if con.Pattern != "" {
		re, err := compilePattern(con.Pattern)
		if err != nil {
			return &ConstraintError{Path: path, Detail: fmt.Sprintf("bad pattern %q: %v", con.Pattern, err)}
		}
		if !re.MatchString(v) {
			return &ConstraintError{Path: path, Detail: fmt.Sprintf("%q does not match %q", v, con.Pattern)}
		}
	}
	if len(con.Enum) > 0 {
		found := false
		for _, e := range con.Enum {
			if e == v {
				found = true
				break
			}
		}
		if !found {
			return &ConstraintError{Path: path, Detail: fmt.Sprintf("%q not in enum %v", v, con.Enum)}
		}
	}
	if con.MinLength != nil && len([]rune(v)) < *con.MinLength {
		return &ConstraintError{Path: path, Detail: fmt.Sprintf("length %d below minimum %d", len([]rune(v)), *con.MinLength)}
	}
	if con.MaxLength != nil && len([]rune(v)) > *con.MaxLength {
		return &ConstraintError{Path: path, Detail: fmt.Sprintf("length %d above maximum %d", len([]rune(v)), *con.MaxLength)}
	}
	return nil
}

func checkConstraints(s *schema.Schema, path string, check func(schema.Constraint) error) error {
	for _, con := range s.Constraints {
		if err := check(con); err != nil {
			return err
		}
	}
	return nil
}

func hasProperty(s *schema.Schema, name string) bool {
	for _, prop := range s.Properties {
		if prop.Name == name {
			return true
		}
	}
	return false
}

func pathed(err error, path string) error {
	if tm, ok := err.(*content.TypeMismatchError); ok {
		return &content.TypeMismatchError{Expected: tm.Expected, Actual: tm.Actual, Path: path}
	}
	return fmt.Errorf("descriptor: at %s: %w", path, err)
}

var (
	patternMu    sync.RWMutex
	patternCache = map[string]*regexp.Regexp{}
)

// compilePattern caches compiled patterns; validation runs per streamed
// fragment so recompilation would dominate the hot path.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	patternMu.RLock()
	re, ok := patternCache[pattern]
	patternMu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternMu.Lock()
	patternCache[pattern] = re
	patternMu.Unlock()
	return re, nil
}
