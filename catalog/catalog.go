// Package catalog implements reading and writing of nested JSON UI string
// catalogs.
//
// A catalog file is rooted at a single language code and contains
// arbitrarily nested string-keyed mappings terminating in string leaves:
//
//	{
//	    "en": {
//	        "homepage": {
//	            "title": "Welcome",
//	            "subtitle": ""
//	        }
//	    }
//	}
//
// Empty leaf values mean untranslated. Output is deterministic: keys are
// sorted lexicographically at every level, indentation is two spaces, and
// non-ASCII characters are written literally.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Node is one subtree of a catalog: either a leaf string value or a
// mapping from key to child subtree. Children == nil marks a leaf.
type Node struct {
	Leaf     string
	Children map[string]*Node
}

// NewLeaf returns a leaf node holding value.
func NewLeaf(value string) *Node {
	return &Node{Leaf: value}
}

// NewNode returns an empty non-leaf node.
func NewNode() *Node {
	return &Node{Children: make(map[string]*Node)}
}

// IsLeaf reports whether the node is a leaf string value.
func (n *Node) IsLeaf() bool {
	return n.Children == nil
}

// UnmarshalJSON decodes either a string leaf or a nested object.
// Any other JSON value (number, array, bool, null) is rejected.
func (n *Node) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("empty catalog value")
	}

	switch trimmed[0] {
	case '"':
		n.Children = nil
		return json.Unmarshal(data, &n.Leaf)
	case '{':
		n.Leaf = ""
		n.Children = make(map[string]*Node)
		return json.Unmarshal(data, &n.Children)
	default:
		return fmt.Errorf("catalog values must be strings or objects, got %s", truncateJSON(data))
	}
}

// MarshalJSON encodes a leaf as a JSON string and a node as an object.
// encoding/json writes map keys in sorted order, which gives the
// deterministic output this package guarantees.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsLeaf() {
		return json.Marshal(n.Leaf)
	}
	return json.Marshal(n.Children)
}

// Equal reports whether two subtrees hold the same structure and values.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.IsLeaf() != other.IsLeaf() {
		return false
	}
	if n.IsLeaf() {
		return n.Leaf == other.Leaf
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for k, c := range n.Children {
		oc, ok := other.Children[k]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// File represents a parsed catalog file: one language tree rooted at a
// language code.
type File struct {
	Lang string
	Root *Node
}

// NewFile returns an empty catalog for the given language code.
func NewFile(lang string) *File {
	return &File{Lang: lang, Root: NewNode()}
}

// ParseFile reads and parses a catalog file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// Parse parses catalog JSON. The document must be an object with exactly
// one top-level key: the language code.
func Parse(data []byte) (*File, error) {
	var root map[string]*Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root) != 1 {
		return nil, fmt.Errorf("expected a single language root, got %d top-level keys", len(root))
	}
	f := &File{}
	for lang, node := range root {
		f.Lang = lang
		f.Root = node
	}
	if f.Root == nil {
		return nil, fmt.Errorf("language %q has no content", f.Lang)
	}
	if f.Root.IsLeaf() {
		return nil, fmt.Errorf("language root %q must be an object", f.Lang)
	}
	return f, nil
}

// Stats returns (total, translated, untranslated) leaf counts.
func (f *File) Stats() (total, translated, untranslated int) {
	for _, v := range f.Root.Flatten() {
		total++
		if v != "" {
			translated++
		} else {
			untranslated++
		}
	}
	return
}

// Marshal produces the canonical serialized form: sorted keys at every
// level, two-space indentation, literal non-ASCII, trailing newline.
// Serializing the same logical catalog twice yields identical bytes.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]*Node{f.Lang: f.Root}); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the catalog in canonical form, creating parent
// directories as needed.
func (f *File) WriteFile(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// SortedKeys returns the child keys of a node in lexicographic order.
func (n *Node) SortedKeys() []string {
	keys := make([]string, 0, len(n.Children))
	for k := range n.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncateJSON(data []byte) string {
	const max = 40
	s := string(data)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
