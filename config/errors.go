package config

import (
	"errors"
	"fmt"
	"strings"
)

// Schema error kinds. Every *SchemaError unwraps to exactly one of these.
var (
	ErrUnknownSection   = errors.New("unknown section")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrInvalidEnumValue = errors.New("invalid enum value")
	ErrMissingAttribute = errors.New("missing attribute")
	ErrDuplicateQuery   = errors.New("duplicate query")
	ErrSectionShape     = errors.New("section shape")
)

// SchemaError reports the first place where a configuration document
// deviates from the schema.
type SchemaError struct {
	Kind error

	Section   string
	Index     int // position within a list section, -1 otherwise
	Attribute string

	Expected string
	Got      string
	Value    string
	Allowed  []string
}

// Path returns the location of the error, e.g. "queries[2].region".
func (e *SchemaError) Path() string {
	var b strings.Builder
	b.WriteString(e.Section)
	if e.Index >= 0 {
		fmt.Fprintf(&b, "[%d]", e.Index)
	}
	if e.Attribute != "" {
		b.WriteString(".")
		b.WriteString(e.Attribute)
	}
	return b.String()
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case ErrUnknownSection:
		return fmt.Sprintf("%v %q (allowed: %s)", e.Kind, e.Section, strings.Join(e.Allowed, ", "))
	case ErrUnknownAttribute:
		return fmt.Sprintf("%v at %s (allowed: %s)", e.Kind, e.Path(), strings.Join(e.Allowed, ", "))
	case ErrTypeMismatch, ErrSectionShape:
		return fmt.Sprintf("%v at %s: expected %s, got %s", e.Kind, e.Path(), e.Expected, e.Got)
	case ErrInvalidEnumValue:
		allowed := "none"
		if len(e.Allowed) > 0 {
			allowed = strings.Join(e.Allowed, ", ")
		}
		return fmt.Sprintf("%v at %s: %q (allowed: %s)", e.Kind, e.Path(), e.Value, allowed)
	case ErrDuplicateQuery:
		return fmt.Sprintf("%v at %s: %q", e.Kind, e.Path(), e.Value)
	}
	return fmt.Sprintf("%v at %s", e.Kind, e.Path())
}

func (e *SchemaError) Unwrap() error {
	return e.Kind
}

// QueryError wraps a URL compilation failure with the name of the query that
// caused it.
type QueryError struct {
	Name string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Name, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
