package listing

import (
	"cmp"
	"slices"
)

// Batch is a set of listings keyed by identity.
type Batch map[Key]Listing

// NewBatch builds a batch from listings. Later duplicates replace earlier
// ones.
func NewBatch(listings ...Listing) Batch {
	b := make(Batch, len(listings))
	for _, l := range listings {
		b.Add(l)
	}
	return b
}

// Add inserts l, replacing any listing with the same identity.
func (b Batch) Add(l Listing) {
	b[l.Key()] = l
}

// Contains reports whether a listing with the identity of l is present.
func (b Batch) Contains(l Listing) bool {
	_, ok := b[l.Key()]
	return ok
}

// Diff returns the listings of fresh that are not in prior.
func Diff(fresh, prior Batch) Batch {
	out := make(Batch)
	for k, l := range fresh {
		if _, seen := prior[k]; !seen {
			out[k] = l
		}
	}
	return out
}

// Sorted returns the listings ordered by link, then origin URL, then the
// remaining identity fields.
func (b Batch) Sorted() []Listing {
	out := make([]Listing, 0, len(b))
	for _, l := range b {
		out = append(out, l)
	}
	slices.SortFunc(out, func(x, y Listing) int {
		kx, ky := x.Key(), y.Key()
		return cmp.Or(
			cmp.Compare(kx.Link, ky.Link),
			cmp.Compare(kx.OriginURL, ky.OriginURL),
			cmp.Compare(kx.Location, ky.Location),
			cmp.Compare(kx.Price, ky.Price),
			cmp.Compare(kx.Area, ky.Area),
			compareBool(kx.HasBuiltYear, ky.HasBuiltYear),
			cmp.Compare(kx.BuiltYear, ky.BuiltYear),
		)
	})
	return out
}

// compareBool orders false before true.
func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
