// Package toc models e-book table of contents as a tree of named references
// and knows how to turn it into ordered lists of content references.
package toc

import (
	"path"
	"strings"
)

// Ref points to a content document and optionally to a fragment inside it.
type Ref struct {
	Href   string // path of the content document, without fragment
	Anchor string // fragment identifier, may be empty
}

// ParseRef splits "file#anchor" reference. Everything after the first '#'
// is anchor.
func ParseRef(href string) Ref {
	file, anchor, _ := strings.Cut(strings.TrimSpace(href), "#")
	return Ref{Href: file, Anchor: anchor}
}

// IsZero reports whether reference points nowhere.
func (r Ref) IsZero() bool {
	return r.Href == "" && r.Anchor == ""
}

// Base returns base name of referenced document.
func (r Ref) Base() string {
	if r.Href == "" {
		return ""
	}
	return path.Base(r.Href)
}

func (r Ref) String() string {
	if r.Anchor == "" {
		return r.Href
	}
	return r.Href + "#" + r.Anchor
}

// Node is a table of contents entry: either Leaf or Section. Children are
// always in reading order.
type Node interface {
	Heading() string
	Target() Ref
	Children() []Node
}

// Leaf is a TOC entry without children.
type Leaf struct {
	Title string
	Ref   Ref
}

func (l Leaf) Heading() string  { return l.Title }
func (l Leaf) Target() Ref      { return l.Ref }
func (l Leaf) Children() []Node { return nil }

// Section is a TOC entry grouping other entries. Its own reference is
// optional.
type Section struct {
	Title string
	Ref   Ref
	Nodes []Node
}

func (s Section) Heading() string  { return s.Title }
func (s Section) Target() Ref      { return s.Ref }
func (s Section) Children() []Node { return s.Nodes }

// Flatten returns all references of the subtree in pre-order: node own
// reference first, then references of its children. Nodes without reference
// contribute nothing.
func Flatten(node Node) []Ref {
	var refs []Ref
	Walk([]Node{node}, func(_ int, n Node) {
		if r := n.Target(); !r.IsZero() {
			refs = append(refs, r)
		}
	})
	return refs
}

// FlattenAll flattens every node in order.
func FlattenAll(nodes []Node) []Ref {
	var refs []Ref
	for _, n := range nodes {
		refs = append(refs, Flatten(n)...)
	}
	return refs
}

// Dedupe drops repeated references to the same document (by base name).
// References with anchor are kept even when document was already seen.
func Dedupe(refs []Ref) []Ref {
	seen := make(map[string]struct{}, len(refs))
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		base := r.Base()
		if _, ok := seen[base]; ok && r.Anchor == "" {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Walk visits nodes in pre-order calling fn with node depth (top level is 0).
// Nil nodes are ignored.
func Walk(nodes []Node, fn func(depth int, n Node)) {
	var walk func(nodes []Node, depth int)
	walk = func(nodes []Node, depth int) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			fn(depth, n)
			walk(n.Children(), depth+1)
		}
	}
	walk(nodes, 0)
}

// Count returns total number of nodes in the forest.
func Count(nodes []Node) int {
	count := 0
	Walk(nodes, func(int, Node) { count++ })
	return count
}

// PhysicalFiles returns number of distinct documents referenced by
// top level nodes themselves.
func PhysicalFiles(nodes []Node) int {
	files := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if r := n.Target(); r.Href != "" {
			files[r.Href] = struct{}{}
		}
	}
	return len(files)
}
