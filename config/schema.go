package config

import (
	"fmt"
	"math"

	"github.com/pevans/propwatch/taxonomy"
)

// Section names.
const (
	SectionSettings = "settings"
	SectionQueries  = "queries"
)

type kind int

const (
	kindString kind = iota
	kindInt
	kindStringList
	kindEnum
)

func (k kind) String() string {
	switch k {
	case kindString, kindEnum:
		return "string"
	case kindInt:
		return "int"
	case kindStringList:
		return "list of strings"
	}
	return "unknown"
}

type attribute struct {
	kind     kind
	required bool
	allowed  map[string]struct{} // kindEnum only
}

var settingsSchema = map[string]attribute{
	"mail_from":   {kind: kindString, required: true},
	"smtp_server": {kind: kindString, required: true},
	"smtp_port":   {kind: kindInt, required: true},
	"mail_to":     {kind: kindStringList, required: true},
}

// sub_region is declared as a plain string here; its membership depends on
// the sibling region and is checked separately, null included.
var querySchema = map[string]attribute{
	"name":          {kind: kindString, required: true},
	"offer":         {kind: kindEnum, required: true, allowed: taxonomy.OfferTypes},
	"region":        {kind: kindEnum, required: true, allowed: taxonomy.Regions},
	"property_type": {kind: kindEnum, allowed: taxonomy.PropertyTypes},
	"sub_region":    {kind: kindString},
	"size_from":     {kind: kindInt},
	"size_to":       {kind: kindInt},
	"year_from":     {kind: kindInt},
	"year_to":       {kind: kindInt},
	"price_from":    {kind: kindInt},
	"price_to":      {kind: kindInt},
	"price_m2_from": {kind: kindInt},
	"price_m2_to":   {kind: kindInt},
}

var sections = map[string]struct{}{
	SectionSettings: {},
	SectionQueries:  {},
}

func keys[V any](m map[string]V) []string {
	set := make(map[string]struct{}, len(m))
	for k := range m {
		set[k] = struct{}{}
	}
	return taxonomy.Sorted(set)
}

// typeName names the runtime type of a decoded YAML value.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case int, int64:
		return "int"
	case uint64:
		return "uint64"
	case float64:
		return "float"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	}
	return fmt.Sprintf("%T", v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n <= math.MaxInt {
			return int(n), true
		}
	}
	return 0, false
}

func asStringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// check validates a single value against its declared attribute. A null
// optional attribute counts as absent.
func (a attribute) check(v any) (errKind error, value string) {
	if v == nil && !a.required {
		return nil, ""
	}
	switch a.kind {
	case kindString:
		if _, ok := v.(string); !ok {
			return ErrTypeMismatch, ""
		}
	case kindInt:
		if _, ok := asInt(v); !ok {
			return ErrTypeMismatch, ""
		}
	case kindStringList:
		if _, ok := asStringList(v); !ok {
			return ErrTypeMismatch, ""
		}
	case kindEnum:
		s, ok := v.(string)
		if !ok {
			return ErrTypeMismatch, ""
		}
		if _, ok := a.allowed[s]; !ok {
			return ErrInvalidEnumValue, s
		}
	}
	return nil, ""
}

// checkSection validates the keys of one map against schema. Keys are visited
// in sorted order so the reported error is deterministic.
func checkSection(section string, index int, m map[string]any, schema map[string]attribute) error {
	for _, key := range keys(m) {
		attr, ok := schema[key]
		if !ok {
			return &SchemaError{
				Kind:      ErrUnknownAttribute,
				Section:   section,
				Index:     index,
				Attribute: key,
				Allowed:   keys(schema),
			}
		}

		v := m[key]
		errKind, value := attr.check(v)
		switch errKind {
		case nil:
		case ErrInvalidEnumValue:
			return &SchemaError{
				Kind:      errKind,
				Section:   section,
				Index:     index,
				Attribute: key,
				Value:     value,
				Allowed:   taxonomy.Sorted(attr.allowed),
			}
		default:
			return &SchemaError{
				Kind:      errKind,
				Section:   section,
				Index:     index,
				Attribute: key,
				Expected:  attr.kind.String(),
				Got:       typeName(v),
			}
		}
	}

	for _, key := range keys(schema) {
		if !schema[key].required {
			continue
		}
		if _, ok := m[key]; !ok {
			return &SchemaError{
				Kind:      ErrMissingAttribute,
				Section:   section,
				Index:     index,
				Attribute: key,
			}
		}
	}

	return nil
}
