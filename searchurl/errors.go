package searchurl

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrInvalidValue         = errors.New("invalid value")
	ErrInvalidRange         = errors.New("invalid range")
	ErrNegativeBound        = errors.New("negative bound")
	ErrConflictingPriceMode = errors.New("conflicting price mode")
)

// Error describes why a query could not be compiled.
type Error struct {
	Kind error

	// Field is the offending field. For range and price-mode errors it is the
	// lower (or absolute) field and Other names its counterpart.
	Field string
	Other string

	Value   string
	Allowed []string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidValue:
		allowed := "none"
		if len(e.Allowed) > 0 {
			allowed = strings.Join(e.Allowed, ", ")
		}
		return fmt.Sprintf("%v for %s: %q (allowed: %s)", e.Kind, e.Field, e.Value, allowed)
	case ErrInvalidRange:
		return fmt.Sprintf("%v: %s must be less than or equal to %s (%s)", e.Kind, e.Field, e.Other, e.Value)
	case ErrNegativeBound:
		return fmt.Sprintf("%v: %s must not be negative (got %s)", e.Kind, e.Field, e.Value)
	case ErrConflictingPriceMode:
		return fmt.Sprintf("%v: %s and %s cannot be used at the same time", e.Kind, e.Field, e.Other)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Field)
}

func (e *Error) Unwrap() error {
	return e.Kind
}
