package txsim

import (
	"slices"
	"strings"
)

// SortLexicographically returns the identifiers in plain byte-wise string
// order. Output indexes are compared as text, so "#10" sorts before "#2".
func SortLexicographically(ids ...string) []string {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	return ordered
}

// IndexInOrder returns the position of id in ordered, or -1 if absent.
func IndexInOrder(ordered []string, id string) int {
	return slices.Index(ordered, id)
}

// SortUtxoRefs orders references by their "hash#index" text.
func SortUtxoRefs(refs []UtxoRef) []UtxoRef {
	sorted := slices.Clone(refs)
	slices.SortStableFunc(sorted, func(a, b UtxoRef) int {
		return strings.Compare(a.String(), b.String())
	})
	return sorted
}
