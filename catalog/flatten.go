package catalog

import "strings"

// Separator joins nested key segments into flat paths. Key names must not
// contain it; catalogs that do are outside this package's contract.
const Separator = "|"

// Flat is a single-level view of a catalog: delimiter-joined path -> leaf
// value.
type Flat map[string]string

// Flatten converts a subtree into its flat form via depth-first traversal.
func (n *Node) Flatten() Flat {
	flat := make(Flat)
	n.flattenInto(flat, "")
	return flat
}

func (n *Node) flattenInto(flat Flat, prefix string) {
	if n.IsLeaf() {
		flat[prefix] = n.Leaf
		return
	}
	for k, child := range n.Children {
		path := k
		if prefix != "" {
			path = prefix + Separator + k
		}
		child.flattenInto(flat, path)
	}
}

// Flatten returns the rooted flat form, with every path prefixed by the
// language code (e.g. "en|homepage|title").
func (f *File) Flatten() Flat {
	flat := make(Flat)
	f.Root.flattenInto(flat, f.Lang)
	return flat
}

// Unflatten reconstructs a nested subtree from a flat catalog. For each
// path the segments before the last are walked or created as nested nodes
// and the final segment is assigned the leaf value. A path that names both
// an intermediate node and a leaf is a caller contract violation; the
// intermediate node wins, and writes are last-write-wins at the leaf level
// only.
func Unflatten(flat Flat) *Node {
	root := NewNode()
	for path, value := range flat {
		segments := strings.Split(path, Separator)
		current := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := current.Children[seg]
			if !ok || child.IsLeaf() {
				child = NewNode()
				current.Children[seg] = child
			}
			current = child
		}
		last := segments[len(segments)-1]
		if existing, ok := current.Children[last]; !ok || existing.IsLeaf() {
			current.Children[last] = NewLeaf(value)
		}
	}
	return root
}

// StripPrefix returns the subset of flat whose paths start with
// prefix+Separator, with the prefix removed. Used to restrict a rooted
// flat catalog to the sub-tree under its language code.
func StripPrefix(flat Flat, prefix string) Flat {
	out := make(Flat)
	p := prefix + Separator
	for k, v := range flat {
		if strings.HasPrefix(k, p) {
			out[k[len(p):]] = v
		}
	}
	return out
}
