// Package merge implements non-destructive folding of fresh translations
// into an existing flattened target catalog.
package merge

import (
	"sort"

	"github.com/catsync/catsync/catalog"
)

// Apply writes every key of updates into target and returns target.
// The union is right-biased: updates win. The caller decides eligibility;
// a key that must not be overwritten never reaches Apply. Applying the
// same updates twice yields the same target.
func Apply(target, updates catalog.Flat) catalog.Flat {
	for k, v := range updates {
		target[k] = v
	}
	return target
}

// Missing returns the source paths whose target value is absent or empty,
// in lexicographic order. These are the keys a full (non-incremental)
// sync would translate.
func Missing(target, source catalog.Flat) []string {
	var missing []string
	for k := range source {
		if target[k] == "" {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}
