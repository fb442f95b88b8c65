// Package searchurl compiles a validated search query into the canonical
// nepremicnine.net search URL.
package searchurl

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pevans/propwatch/taxonomy"
)

// BaseURL is the site root every compiled URL starts with.
const BaseURL = "https://www.nepremicnine.net"

// Field names used in errors.
const (
	FieldOffer        = "type_of_offer"
	FieldRegion       = "region"
	FieldPropertyType = "type_of_property"
	FieldSubRegions   = "sub_regions"
)

// Query holds the search parameters. Nil bounds are unset.
type Query struct {
	Offer        string
	Region       string
	PropertyType string
	SubRegions   []string

	SizeFrom, SizeTo       *int
	YearFrom, YearTo       *int
	PriceFrom, PriceTo     *int
	PriceFromM2, PriceToM2 *int
}

// URL is a compiled search query. A *URL is only ever produced by New, so it
// always satisfies the taxonomy and range rules.
type URL struct {
	q Query
}

// Int returns a pointer to v, for filling optional Query bounds.
func Int(v int) *int {
	return &v
}

// New validates q and returns the compiled URL.
func New(q Query) (*URL, error) {
	if !taxonomy.IsOfferType(q.Offer) {
		return nil, invalidValue(FieldOffer, q.Offer, taxonomy.Sorted(taxonomy.OfferTypes))
	}
	if !taxonomy.IsRegion(q.Region) {
		return nil, invalidValue(FieldRegion, q.Region, taxonomy.Sorted(taxonomy.Regions))
	}
	if !taxonomy.IsPropertyType(q.PropertyType) {
		return nil, invalidValue(FieldPropertyType, q.PropertyType, taxonomy.Sorted(taxonomy.PropertyTypes))
	}
	for _, sub := range q.SubRegions {
		if !taxonomy.IsSubRegion(q.Region, sub) {
			return nil, invalidValue(FieldSubRegions, sub, taxonomy.SubRegions(q.Region))
		}
	}

	ranges := []struct {
		loField, hiField string
		lo, hi           *int
	}{
		{"size_from", "size_to", q.SizeFrom, q.SizeTo},
		{"price_from", "price_to", q.PriceFrom, q.PriceTo},
		{"price_from_m2", "price_to_m2", q.PriceFromM2, q.PriceToM2},
		{"year_from", "year_to", q.YearFrom, q.YearTo},
	}
	for _, r := range ranges {
		if err := checkRange(r.loField, r.hiField, r.lo, r.hi); err != nil {
			return nil, err
		}
	}

	if q.PriceFrom != nil && q.PriceFromM2 != nil {
		return nil, &Error{Kind: ErrConflictingPriceMode, Field: "price_from", Other: "price_from_m2"}
	}
	if q.PriceTo != nil && q.PriceToM2 != nil {
		return nil, &Error{Kind: ErrConflictingPriceMode, Field: "price_to", Other: "price_to_m2"}
	}

	return &URL{q: q.clone()}, nil
}

// Query returns a copy of the parameters the URL was compiled from.
func (u *URL) Query() Query {
	return u.q.clone()
}

// clone deep-copies q so callers cannot change a compiled URL through shared
// slices or bound pointers.
func (q Query) clone() Query {
	c := q
	c.SubRegions = slices.Clone(q.SubRegions)
	for _, p := range []**int{
		&c.SizeFrom, &c.SizeTo, &c.YearFrom, &c.YearTo,
		&c.PriceFrom, &c.PriceTo, &c.PriceFromM2, &c.PriceToM2,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return c
}

// String renders the canonical URL: base path, then the price, size and year
// segments. The first segment is introduced by "/" and the rest by ",".
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString(BaseURL)
	b.WriteString("/oglasi-")
	b.WriteString(u.q.Offer)
	b.WriteString("/")
	b.WriteString(u.q.Region)
	if len(u.q.SubRegions) > 0 {
		b.WriteString("/")
		b.WriteString(strings.Join(u.q.SubRegions, ","))
	}
	b.WriteString("/")
	b.WriteString(u.q.PropertyType)

	sep := "/"
	for _, seg := range []string{u.priceSegment(), u.sizeSegment(), u.yearSegment()} {
		if seg == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(seg)
		sep = ","
	}

	b.WriteString("/")
	return b.String()
}

// priceSegment renders the absolute price bounds if any are set, otherwise
// the per-area bounds.
func (u *URL) priceSegment() string {
	if seg := rangeSegment("cena", u.q.PriceFrom, u.q.PriceTo, "-eur"); seg != "" {
		return seg
	}
	return rangeSegment("cena", u.q.PriceFromM2, u.q.PriceToM2, "-eur-na-m2")
}

func (u *URL) sizeSegment() string {
	return rangeSegment("velikost", u.q.SizeFrom, u.q.SizeTo, "-m2")
}

func (u *URL) yearSegment() string {
	return rangeSegment("letnik", u.q.YearFrom, u.q.YearTo, "")
}

func rangeSegment(prefix string, lo, hi *int, suffix string) string {
	switch {
	case lo != nil && hi != nil:
		return prefix + "-od-" + strconv.Itoa(*lo) + "-do-" + strconv.Itoa(*hi) + suffix
	case lo != nil:
		return prefix + "-od-" + strconv.Itoa(*lo) + suffix
	case hi != nil:
		return prefix + "-do-" + strconv.Itoa(*hi) + suffix
	}
	return ""
}

func checkRange(loField, hiField string, lo, hi *int) error {
	if lo != nil && hi != nil && *lo > *hi {
		return &Error{
			Kind:  ErrInvalidRange,
			Field: loField,
			Other: hiField,
			Value: fmt.Sprintf("%d > %d", *lo, *hi),
		}
	}
	if lo != nil && *lo < 0 {
		return &Error{Kind: ErrNegativeBound, Field: loField, Value: strconv.Itoa(*lo)}
	}
	return nil
}

func invalidValue(field, value string, allowed []string) error {
	return &Error{
		Kind:    ErrInvalidValue,
		Field:   field,
		Value:   value,
		Allowed: allowed,
	}
}
