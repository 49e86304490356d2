// Package diff computes the translation workload between two versions of a
// flattened source catalog.
package diff

import (
	"sort"

	"github.com/catsync/catsync/catalog"
)

// Set is an unordered set of flat catalog paths.
type Set map[string]bool

// Has reports whether the set contains path.
func (s Set) Has(path string) bool {
	return s[path]
}

// Paths returns the members in lexicographic order.
func (s Set) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Detect returns the set of paths that need translation: a path is
// included if it is absent from previous or present in both with a
// different value. Comparison is exact string inequality. Every member is
// present in current; unchanged paths are never included.
func Detect(current, previous catalog.Flat) Set {
	changed := make(Set)
	for path, value := range current {
		prev, ok := previous[path]
		if !ok || prev != value {
			changed[path] = true
		}
	}
	return changed
}
