// Package taxonomy holds the closed sets of search tokens understood by
// nepremicnine.net: offer types, regions, sub-regions per region and property
// types.
package taxonomy

import (
	"slices"
	"sort"
)

// Offer types.
const (
	OfferSale     = "prodaja"
	OfferRent     = "oddaja"
	OfferPurchase = "nakup"
	OfferLease    = "najem"
)

// DefaultPropertyType is used when a query does not name a property type.
const DefaultPropertyType = "stanovanje"

// OfferTypes is the set of valid offer-type tokens.
var OfferTypes = map[string]struct{}{
	OfferSale:     {},
	OfferRent:     {},
	OfferPurchase: {},
	OfferLease:    {},
}

// Regions is the set of valid region tokens.
var Regions = map[string]struct{}{
	"ljubljana-mesto":   {},
	"ljubljana-okolica": {},
	"juzna-primorska":   {},
	"severna-primorska": {},
	"notranjska":        {},
	"savinska":          {},
	"gorenjska":         {},
	"koroska":           {},
	"podravska":         {},
	"posavska":          {},
	"pomurska":          {},
}

// SubRegionsByRegion maps a region to its ordered sub-region tokens. A region
// missing from this map accepts no sub-region filter at all.
//
// The keys are kept exactly as the site data lists them, so "savinjska" and
// "dolenjska" have entries even though neither is in Regions.
var SubRegionsByRegion = map[string][]string{
	"ljubljana-mesto": {
		"ljubljana-bezigrad",
		"ljubljana-center",
		"ljubljana-moste-polje",
		"ljubljana-siska",
		"ljubljana-vic-rudnik",
	},
	"ljubljana-okolica": {
		"domzale",
		"grosuplje",
		"kamnik",
		"litija",
		"ljubljana-jugozahodni-del-vic-rudnik",
		"ljubljana-severovzhodni-del-bezigrad",
		"ljubljana-severozahodni-del-siska",
		"ljubljana-vzhodni-del-moste-polje",
		"logatec",
		"vrhnika",
	},
	"notranjska":        {"cerknica", "ilirska-bistrica", "postojna"},
	"dolenjska":         {"crnomelj", "kocevje", "metlika", "novo-mesto", "ribnica", "trebnje"},
	"gorenjska":         {"jesenice", "kranj", "radovljica", "skofja-loka", "trzic"},
	"severna-primorska": {"ajdovscina", "idrija", "nova-gorica", "tolmin"},
	"juzna-primorska":   {"izola", "koper", "piran", "sezana"},
	"savinjska": {
		"celje",
		"lasko",
		"mozirje",
		"slovenske-konjice",
		"sentjur",
		"smarje-pri-jelsah",
		"velenje",
		"zalec",
	},
	"podravska": {
		"lenart",
		"maribor",
		"ormoz",
		"pesnica",
		"ptuj",
		"ruse",
		"slovenska-bistrica",
	},
}

// PropertyTypes is the set of valid property-type tokens.
var PropertyTypes = map[string]struct{}{
	"stanovanje":        {},
	"hisa":              {},
	"vikend":            {},
	"posest":            {},
	"poslovni-prostor":  {},
	"garaza":            {},
	"pocitniski-objekt": {},
}

// IsOfferType reports whether s is a valid offer type.
func IsOfferType(s string) bool {
	_, ok := OfferTypes[s]
	return ok
}

// IsRegion reports whether s is a valid region.
func IsRegion(s string) bool {
	_, ok := Regions[s]
	return ok
}

// IsPropertyType reports whether s is a valid property type.
func IsPropertyType(s string) bool {
	_, ok := PropertyTypes[s]
	return ok
}

// SubRegions returns the sub-regions allowed for region. The result is nil
// for regions without any.
func SubRegions(region string) []string {
	return SubRegionsByRegion[region]
}

// IsSubRegion reports whether sub is an allowed sub-region of region.
func IsSubRegion(region, sub string) bool {
	return slices.Contains(SubRegionsByRegion[region], sub)
}

// Sorted returns the members of a closed set in lexical order. Used to build
// stable error messages.
func Sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
