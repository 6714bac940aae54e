// Package container reads ePub books: package document, spine, table of
// contents and embedded resources.
package container

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"epdf/archive"
	"epdf/misc"
	"epdf/toc"
)

// ErrNotFound is returned when requested file is absent from the container.
var ErrNotFound = errors.New("file not found in container")

// maxEntrySize limits decompressed size of a single entry.
const maxEntrySize int64 = 256 * 1024 * 1024

// Item is a manifest item of the book. Href is a path inside the archive.
type Item struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// IsImage reports whether item looks like an image either by declared media
// type or by file extension.
func (it Item) IsImage() bool {
	if strings.HasPrefix(strings.ToLower(it.MediaType), "image/") {
		return true
	}
	switch strings.ToLower(path.Ext(it.Href)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".bmp":
		return true
	}
	return false
}

func (it Item) hasProperty(p string) bool {
	for _, v := range it.Properties {
		if v == p {
			return true
		}
	}
	return false
}

// Book is an opened ePub container.
type Book struct {
	path string
	log  *zap.Logger

	zr       *zip.ReadCloser
	files    map[string]*zip.File
	filesLow map[string]*zip.File
	// repaired copy of the source, owned by the book
	repaired string

	opfPath  string
	version  string
	title    string
	authors  []string
	language string
	metaCov  string

	manifest []Item
	byID     map[string]int
	spine    []Item
	ncxID    string
	toc      []toc.Node
}

type options struct {
	cp     encoding.Encoding
	fixZip bool
	log    *zap.Logger
}

// Option configures Open.
type Option func(*options)

// WithCodePage forces code page for archive entry names not marked as UTF-8.
func WithCodePage(cp encoding.Encoding) Option {
	return func(o *options) { o.cp = cp }
}

// WithFixZip rewrites archive before reading clearing data descriptors.
func WithFixZip(fix bool) Option {
	return func(o *options) { o.fixZip = fix }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// Open opens and parses ePub book. Book without table of contents is not an
// error, TOC would be empty.
func Open(src string, opts ...Option) (_ *Book, err error) {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	b := &Book{path: src, log: o.log}
	defer func() {
		if err != nil {
			err = multierr.Append(err, b.Close())
		}
	}()

	name := src
	if o.fixZip {
		tmp, err := os.CreateTemp("", misc.GetAppName()+"-fixed.*.epub")
		if err != nil {
			return nil, fmt.Errorf("unable to create temporary file: %w", err)
		}
		tmp.Close()
		b.repaired = tmp.Name()
		if err := archive.Repair(src, b.repaired); err != nil {
			return nil, fmt.Errorf("unable to repair archive: %w", err)
		}
		name = b.repaired
	}

	if b.zr, err = zip.OpenReader(name); err != nil {
		return nil, fmt.Errorf("unable to open container %s: %w", src, err)
	}
	if err := b.index(o.cp); err != nil {
		return nil, err
	}
	if err := b.parse(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Book) index(cp encoding.Encoding) error {
	b.files = make(map[string]*zip.File, len(b.zr.File))
	b.filesLow = make(map[string]*zip.File, len(b.zr.File))
	return archive.Walk(&b.zr.Reader, "", cp, func(name string, f *zip.File) error {
		if _, exists := b.files[name]; !exists {
			b.files[name] = f
		}
		low := strings.ToLower(name)
		if _, exists := b.filesLow[low]; !exists {
			b.filesLow[low] = f
		}
		return nil
	})
}

func (b *Book) parse() error {
	if data, err := b.ReadFile("mimetype"); err != nil {
		b.log.Debug("Container has no mimetype entry")
	} else if strings.TrimSpace(string(data)) != "application/epub+zip" {
		b.log.Warn("Unexpected container mimetype", zap.ByteString("mimetype", data))
	}

	opfPath, err := b.locatePackage()
	if err != nil {
		return err
	}
	b.opfPath = opfPath

	data, err := b.ReadFile(opfPath)
	if err != nil {
		return fmt.Errorf("unable to read package document: %w", err)
	}
	if err := b.parsePackage(data); err != nil {
		return fmt.Errorf("unable to parse package document (%s): %w", opfPath, err)
	}
	b.parseTOC()
	return nil
}

// Close releases underlying archive and removes repaired copy if any.
func (b *Book) Close() error {
	var err error
	if b.zr != nil {
		err = b.zr.Close()
		b.zr = nil
	}
	if b.repaired != "" {
		err = multierr.Append(err, os.Remove(b.repaired))
		b.repaired = ""
	}
	return err
}

// Path returns path of the source book.
func (b *Book) Path() string { return b.path }

// Version returns package document version.
func (b *Book) Version() string { return b.version }

func (b *Book) Title() string { return b.title }

func (b *Book) Authors() []string { return b.authors }

func (b *Book) Language() string { return b.language }

// Spine returns content documents in reading order.
func (b *Book) Spine() []Item { return b.spine }

// TOC returns table of contents tree. References are archive paths.
func (b *Book) TOC() []toc.Node { return b.toc }

// Items returns all manifest items in document order.
func (b *Book) Items() []Item { return b.manifest }

// ReadFile reads archive entry by its path inside archive. Lookup falls back
// to case insensitive comparison.
func (b *Book) ReadFile(name string) ([]byte, error) {
	f := b.find(name)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return readEntry(f)
}

// Exists reports if the archive has entry with given name.
func (b *Book) Exists(name string) bool {
	return b.find(name) != nil
}

// Resources calls fn for every image declared in the manifest with the path
// of the item inside archive and its content. Items declared but absent from
// the archive are skipped.
func (b *Book) Resources(fn func(name string, r io.Reader) error) error {
	for _, it := range b.manifest {
		if !it.IsImage() {
			continue
		}
		f := b.find(it.Href)
		if f == nil {
			b.log.Warn("Manifest item is missing from archive", zap.String("href", it.Href))
			continue
		}
		if err := b.withEntry(f, func(r io.Reader) error { return fn(it.Href, r) }); err != nil {
			return err
		}
	}
	return nil
}

func (b *Book) withEntry(f *zip.File, fn func(io.Reader) error) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("unable to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	return fn(io.LimitReader(rc, maxEntrySize))
}

func (b *Book) find(name string) *zip.File {
	name = strings.TrimPrefix(name, "/")
	if f, ok := b.files[name]; ok {
		return f
	}
	if f, ok := b.filesLow[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("entry %s is too large: %d bytes", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("entry %s decompressed size exceeds limit", f.Name)
	}
	return data, nil
}

// resolvePath resolves href relative to the directory of base, both are
// archive paths. Empty string is returned for references escaping archive
// root and for external links.
func resolvePath(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "/") || strings.Contains(href, "://") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	cleaned := path.Clean(path.Join(path.Dir(base), href))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, "/") {
		return ""
	}
	return cleaned
}

// resolveRef resolves "file#anchor" reference relative to base. Reference
// containing only anchor points into base itself.
func resolveRef(base, href string) toc.Ref {
	ref := toc.ParseRef(href)
	if ref.Href == "" {
		if ref.Anchor == "" {
			return toc.Ref{}
		}
		return toc.Ref{Href: base, Anchor: ref.Anchor}
	}
	file := resolvePath(base, ref.Href)
	if file == "" {
		return toc.Ref{}
	}
	return toc.Ref{Href: file, Anchor: ref.Anchor}
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
