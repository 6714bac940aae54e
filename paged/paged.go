// Package paged abstracts paginated document library: reading page count,
// page text and outline, copying page ranges and assembling documents with
// new bookmark tree.
package paged

import "fmt"

// Bookmark is a node of document outline. Page is zero based, negative when
// destination could not be resolved.
type Bookmark struct {
	Title    string
	Page     int
	Children []Bookmark
}

// Entry is a flattened outline node.
type Entry struct {
	Title string
	Page  int
	Depth int
}

// Document is an open paginated document.
type Document interface {
	Path() string
	PageCount() int
	// PageText returns plain text of zero based page.
	PageText(page int) (string, error)
	Outline() ([]Bookmark, error)
	Close() error
}

// Builder assembles new document from pages of existing ones.
type Builder interface {
	// Append adds all pages of doc to the end of the document being built.
	Append(doc Document) error
	PageCount() int
	// AddBookmark adds bookmark pointing to zero based page under parent
	// (Root for top level) and returns handle usable as future parent.
	AddBookmark(title string, page int, parent Handle) Handle
	Save(path string) error
}

// Library opens and produces documents.
type Library interface {
	Open(path string) (Document, error)
	NewBuilder() Builder
	// ExtractRange writes pages [from, to) of src to out without outline.
	ExtractRange(src Document, from, to int, out string) error
}

// Flatten returns outline in pre-order.
func Flatten(bms []Bookmark) []Entry {
	var out []Entry
	var walk func(bms []Bookmark, depth int)
	walk = func(bms []Bookmark, depth int) {
		for _, bm := range bms {
			out = append(out, Entry{Title: bm.Title, Page: bm.Page, Depth: depth})
			walk(bm.Children, depth+1)
		}
	}
	walk(bms, 0)
	return out
}

// Handle addresses node of a Forest.
type Handle int

// Root is a parent of top level bookmarks.
const Root Handle = -1

type forestNode struct {
	title string
	page  int
	kids  []Handle
}

// Forest is an arena of bookmark nodes, children are kept as
// indexes.
type Forest struct {
	nodes []forestNode
	roots []Handle
}

// Add appends node under parent and returns its handle. Unknown parent is
// an error of the caller.
func (f *Forest) Add(title string, page int, parent Handle) Handle {
	h := Handle(len(f.nodes))
	switch {
	case parent == Root:
		f.roots = append(f.roots, h)
	case f.valid(parent):
		f.nodes[parent].kids = append(f.nodes[parent].kids, h)
	default:
		panic(fmt.Sprintf("bookmark parent %d does not exist", parent))
	}
	f.nodes = append(f.nodes, forestNode{title: title, page: page})
	return h
}

func (f *Forest) valid(h Handle) bool {
	return h >= 0 && int(h) < len(f.nodes)
}

// Len returns total number of nodes.
func (f *Forest) Len() int { return len(f.nodes) }

// Tree converts arena into nested bookmarks.
func (f *Forest) Tree() []Bookmark {
	var build func(hs []Handle) []Bookmark
	build = func(hs []Handle) []Bookmark {
		if len(hs) == 0 {
			return nil
		}
		out := make([]Bookmark, 0, len(hs))
		for _, h := range hs {
			n := f.nodes[h]
			out = append(out, Bookmark{Title: n.title, Page: n.page, Children: build(n.kids)})
		}
		return out
	}
	return build(f.roots)
}
