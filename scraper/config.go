package scraper

import (
	"errors"
	"fmt"
	"regexp"
)

// Selectors defines how listings are found on a search result page and how
// their fields are read from a detail page.
type Selectors struct {
	// LinkPattern matches detail-page links in the raw result page. The first
	// capture group is the link.
	LinkPattern string `json:"link_pattern"`

	PriceSelector       string `json:"price_selector"`
	LocationSelector    string `json:"location_selector"`
	AttributesSelector  string `json:"attributes_selector"`
	AreaLabel           string `json:"area_label"` // attribute item holding the area
	DescriptionSelector string `json:"description_selector"`
}

// DefaultSelectors returns the selectors matching nepremicnine.net.
func DefaultSelectors() Selectors {
	return Selectors{
		LinkPattern:         `href="(https://www\.nepremicnine\.net/oglasi-[^/]+/[^/]+-[^/]+_[0-9]+/?)"`,
		PriceSelector:       ".cena span",
		LocationSelector:    "#opis .kratek strong",
		AttributesSelector:  "#atributi li",
		AreaLabel:           "Velikost",
		DescriptionSelector: "#opis .kratek",
	}
}

// Compile validates the selectors and returns the compiled link pattern.
func (s Selectors) Compile() (*regexp.Regexp, error) {
	if s.LinkPattern == "" {
		return nil, errors.New("link_pattern is required")
	}
	if s.PriceSelector == "" {
		return nil, errors.New("price_selector is required")
	}

	re, err := regexp.Compile(s.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid link_pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, errors.New("link_pattern must have a capture group")
	}
	return re, nil
}
