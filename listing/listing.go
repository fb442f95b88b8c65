// Package listing defines the record produced for each scraped property, its
// identity for deduplication, and the set difference between run batches.
package listing

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// UsableAreaFactor approximates usable floor area from the advertised gross
// area.
const UsableAreaFactor = 0.95

// UnknownLocation is used when a listing page does not name a location.
const UnknownLocation = "N/A"

// ErrInvalidField is returned when a raw field cannot be normalized.
var ErrInvalidField = errors.New("invalid listing field")

var (
	areaInText      = regexp.MustCompile(`([0-9]+,[0-9]+) m2`)
	builtYearInText = regexp.MustCompile(`zgrajeno l\. (\d{4})`)
)

// Listing is one property found by a search.
type Listing struct {
	Location     string  `json:"location"`
	Area         float64 `json:"square_footage"`
	Price        float64 `json:"price"`
	Link         string  `json:"link"`
	BuiltYear    *int    `json:"built_year"`
	OriginURL    string  `json:"origin_url"`
	PricePerArea int     `json:"price_per_m2"`
}

// Key is the identity of a listing. Two listings with the same key are the
// same listing; PricePerArea is derived and takes no part in it.
type Key struct {
	Link         string
	Location     string
	Area         float64
	Price        float64
	BuiltYear    int
	HasBuiltYear bool // false when the year is unknown
	OriginURL    string
}

// RawFields are the untyped strings extracted from a listing page.
type RawFields struct {
	Link      string
	OriginURL string
	Location  string
	Price     string
	Area      string
	BuiltYear string

	// Description is the short description text, used as a fallback source
	// for the area and the built year.
	Description string

	// PricePerArea is normally empty and derived from price and area.
	PricePerArea string
}

// New builds a listing from typed values and derives its price per area.
func New(link, originURL, location string, area, price float64, builtYear *int) Listing {
	return Listing{
		Location:     location,
		Area:         area,
		Price:        price,
		Link:         link,
		BuiltYear:    builtYear,
		OriginURL:    originURL,
		PricePerArea: PricePerArea(price, area),
	}
}

// PricePerArea returns price / (area * UsableAreaFactor) rounded half away
// from zero.
func PricePerArea(price, area float64) int {
	return int(math.Round(price / (area * UsableAreaFactor)))
}

// Key returns the identity of l.
func (l Listing) Key() Key {
	k := Key{
		Link:      l.Link,
		Location:  l.Location,
		Area:      l.Area,
		Price:     l.Price,
		OriginURL: l.OriginURL,
	}
	if l.BuiltYear != nil {
		k.BuiltYear = *l.BuiltYear
		k.HasBuiltYear = true
	}
	return k
}

// Equal reports whether l and other are the same listing.
func (l Listing) Equal(other Listing) bool {
	return l.Key() == other.Key()
}

// Normalize parses raw page fields into a Listing.
func Normalize(raw RawFields) (Listing, error) {
	link := strings.TrimSpace(raw.Link)
	if link == "" {
		return Listing{}, fmt.Errorf("%w: empty link", ErrInvalidField)
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return Listing{}, err
	}

	area, err := parseArea(raw.Area, raw.Description)
	if err != nil {
		return Listing{}, err
	}

	year, err := parseBuiltYear(raw.BuiltYear, raw.Description)
	if err != nil {
		return Listing{}, err
	}

	location := strings.TrimSpace(raw.Location)
	if location == "" {
		location = UnknownLocation
	}

	l := New(link, raw.OriginURL, location, area, price, year)

	if s := strings.TrimSpace(raw.PricePerArea); s != "" {
		ppa, err := strconv.Atoi(s)
		if err != nil {
			return Listing{}, fmt.Errorf("%w: price per area %q", ErrInvalidField, raw.PricePerArea)
		}
		l.PricePerArea = ppa
	}

	return l, nil
}

// parsePrice reads a price such as "185.000,00 €" and rounds it to whole
// euros.
func parsePrice(s string) (float64, error) {
	clean := strings.NewReplacer("€", "", "â‚¬", "", "\u00a0", "", " ", "").Replace(s)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return 0, fmt.Errorf("%w: missing price", ErrInvalidField)
	}

	price, err := parseDecimal(clean)
	if err != nil || price < 0 {
		return 0, fmt.Errorf("%w: price %q", ErrInvalidField, s)
	}
	return math.Round(price), nil
}

// parseArea reads an area such as "61,20 m2" or "Velikost: 61,20 m2". When
// the attribute is missing it falls back to the first "NN,NN m2" in the
// description.
func parseArea(s, description string) (float64, error) {
	if _, after, ok := strings.Cut(s, ":"); ok {
		s = after
	}
	clean := strings.NewReplacer("m\n2", "", "m2", "", "m²", "").Replace(s)
	clean = strings.TrimSpace(clean)

	if clean == "" {
		if m := areaInText.FindStringSubmatch(description); m != nil {
			clean = m[1]
		}
	}
	if clean == "" {
		return 0, fmt.Errorf("%w: missing area", ErrInvalidField)
	}

	area, err := parseDecimal(clean)
	if err != nil || area <= 0 {
		return 0, fmt.Errorf("%w: area %q", ErrInvalidField, s)
	}
	return area, nil
}

// parseBuiltYear reads an explicit year, falling back to the
// "zgrajeno l. YYYY" phrase of the description. No year is not an error.
func parseBuiltYear(s, description string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		m := builtYearInText.FindStringSubmatch(description)
		if m == nil {
			return nil, nil
		}
		s = m[1]
	}

	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return nil, fmt.Errorf("%w: built year %q", ErrInvalidField, s)
	}
	return &year, nil
}

// parseDecimal parses a number written with "." as the thousands separator
// and "," as the decimal mark.
func parseDecimal(s string) (float64, error) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}
