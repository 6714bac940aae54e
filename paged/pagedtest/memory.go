// Package pagedtest provides in-memory paged.Library for tests of packages
// producing or consuming paginated documents.
package pagedtest

import (
	"fmt"
	"os"
	"sync"

	"epdf/paged"
)

// Memory is a paged.Library keeping documents in memory. Every saved document
// also leaves a small placeholder file at its path so file system level
// logic (directories, cleanup, listing, renames) behaves the same as with
// real documents. Documents are looked up by the id recorded in placeholder.
type Memory struct {
	mu   sync.Mutex
	next int
	docs map[int]*Document
}

// Document is a document held by Memory library.
type Document struct {
	path  string
	Pages []string
	Marks []paged.Bookmark
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[int]*Document)}
}

// Put stores document with given page texts and outline at path.
func (m *Memory) Put(path string, pages []string, outline []paged.Bookmark) error {
	return m.store(&Document{path: path, Pages: pages, Marks: outline})
}

func (m *Memory) store(d *Document) error {
	m.mu.Lock()
	m.next++
	id := m.next
	m.docs[id] = d
	m.mu.Unlock()
	return os.WriteFile(d.path, fmt.Appendf(nil, "%%MEMPDF id=%d pages=%d\n", id, len(d.Pages)), 0644)
}

// Doc returns document currently stored at path.
func (m *Memory) Doc(path string) (*Document, bool) {
	d, err := m.lookup(path)
	return d, err == nil
}

func (m *Memory) lookup(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var id, pages int
	if _, err := fmt.Sscanf(string(data), "%%MEMPDF id=%d pages=%d", &id, &pages); err != nil {
		return nil, fmt.Errorf("%s is not a paginated document", path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s is not a paginated document", path)
	}
	c := *d
	c.path = path
	return &c, nil
}

func (m *Memory) Open(path string) (paged.Document, error) {
	return m.lookup(path)
}

func (m *Memory) NewBuilder() paged.Builder {
	return &memBuilder{lib: m}
}

func (m *Memory) ExtractRange(src paged.Document, from, to int, out string) error {
	if from < 0 || to > src.PageCount() || from >= to {
		return fmt.Errorf("invalid page range [%d, %d) for %d pages", from, to, src.PageCount())
	}
	pages := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		text, err := src.PageText(i)
		if err != nil {
			return err
		}
		pages = append(pages, text)
	}
	return m.Put(out, pages, nil)
}

func (d *Document) Path() string   { return d.path }
func (d *Document) PageCount() int { return len(d.Pages) }

func (d *Document) PageText(page int) (string, error) {
	if page < 0 || page >= len(d.Pages) {
		return "", fmt.Errorf("page %d is out of range", page)
	}
	return d.Pages[page], nil
}

func (d *Document) Outline() ([]paged.Bookmark, error) { return d.Marks, nil }
func (d *Document) Close() error                 { return nil }

type memBuilder struct {
	lib    *Memory
	pages  []string
	forest paged.Forest
}

func (b *memBuilder) Append(doc paged.Document) error {
	for i := 0; i < doc.PageCount(); i++ {
		text, err := doc.PageText(i)
		if err != nil {
			return err
		}
		b.pages = append(b.pages, text)
	}
	return nil
}

func (b *memBuilder) PageCount() int { return len(b.pages) }

func (b *memBuilder) AddBookmark(title string, page int, parent paged.Handle) paged.Handle {
	return b.forest.Add(title, page, parent)
}

func (b *memBuilder) Save(path string) error {
	return b.lib.Put(path, b.pages, b.forest.Tree())
}
