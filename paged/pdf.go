package paged

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pdftext "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func init() {
	// never create or read pdfcpu configuration directory
	model.ConfigPath = "disable"
}

// PDF is a Library working with PDF files: structure operations are done by
// pdfcpu, text is extracted by ledongthuc/pdf.
type PDF struct {
	log *zap.Logger
}

func NewPDF(log *zap.Logger) *PDF {
	if log == nil {
		log = zap.NewNop()
	}
	return &PDF{log: log.Named("pdf")}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (l *PDF) Open(path string) (Document, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	return &pdfDocument{path: path, pages: pages, log: l.log}, nil
}

func (l *PDF) NewBuilder() Builder {
	return &pdfBuilder{log: l.log}
}

// ExtractRange copies pages [from, to) into out dropping outline.
func (l *PDF) ExtractRange(src Document, from, to int, out string) error {
	if from < 0 || to > src.PageCount() || from >= to {
		return fmt.Errorf("invalid page range [%d, %d) for %d pages", from, to, src.PageCount())
	}
	tmp := out + ".trim"
	defer os.Remove(tmp)

	if err := api.TrimFile(src.Path(), tmp, []string{fmt.Sprintf("%d-%d", from+1, to)}, newConfiguration()); err != nil {
		return fmt.Errorf("unable to extract pages %d-%d: %w", from+1, to, err)
	}
	if err := api.RemoveBookmarksFile(tmp, out, newConfiguration()); err != nil {
		// document without outline
		l.log.Debug("Outline is not removed", zap.String("file", out), zap.Error(err))
		return os.Rename(tmp, out)
	}
	return nil
}

type pdfDocument struct {
	path  string
	pages int
	log   *zap.Logger
	// text reader is opened lazily
	f    *os.File
	text *pdftext.Reader
}

func (d *pdfDocument) Path() string   { return d.path }
func (d *pdfDocument) PageCount() int { return d.pages }

func (d *pdfDocument) PageText(page int) (_ string, err error) {
	defer func() {
		// text extraction panics on some malformed content streams
		if r := recover(); r != nil {
			err = fmt.Errorf("unable to extract text of page %d: %v", page+1, r)
		}
	}()

	if page < 0 || page >= d.pages {
		return "", fmt.Errorf("page %d is out of range", page)
	}
	if d.text == nil {
		f, r, err := pdftext.Open(d.path)
		if err != nil {
			return "", fmt.Errorf("unable to open %s for text extraction: %w", d.path, err)
		}
		d.f, d.text = f, r
	}
	p := d.text.Page(page + 1)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("unable to extract text of page %d: %w", page+1, err)
	}
	return text, nil
}

func (d *pdfDocument) Outline() ([]Bookmark, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bms, err := api.Bookmarks(f, newConfiguration())
	if err != nil {
		if noOutline(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read outline of %s: %w", d.path, err)
	}
	return fromPDF(bms), nil
}

func (d *pdfDocument) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f, d.text = nil, nil
	return err
}

func noOutline(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no bookmarks") || strings.Contains(msg, "no outline")
}

func fromPDF(bms []pdfcpu.Bookmark) []Bookmark {
	if len(bms) == 0 {
		return nil
	}
	out := make([]Bookmark, 0, len(bms))
	for _, bm := range bms {
		page := bm.PageFrom - 1
		if bm.PageFrom < 1 {
			page = -1
		}
		out = append(out, Bookmark{Title: bm.Title, Page: page, Children: fromPDF(bm.Kids)})
	}
	return out
}

type pdfBuilder struct {
	log    *zap.Logger
	files  []string
	pages  int
	forest Forest
}

func (b *pdfBuilder) Append(doc Document) error {
	if doc.PageCount() == 0 {
		return fmt.Errorf("%s has no pages", doc.Path())
	}
	b.files = append(b.files, doc.Path())
	b.pages += doc.PageCount()
	return nil
}

func (b *pdfBuilder) PageCount() int { return b.pages }

func (b *pdfBuilder) AddBookmark(title string, page int, parent Handle) Handle {
	return b.forest.Add(title, page, parent)
}

// Save merges appended documents and replaces their outlines with the built
// bookmark tree.
func (b *pdfBuilder) Save(path string) (err error) {
	if len(b.files) == 0 {
		return fmt.Errorf("nothing to save")
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".merge")
	defer func() {
		if rerr := os.Remove(tmp); rerr != nil && !os.IsNotExist(rerr) {
			err = multierr.Append(err, rerr)
		}
	}()

	if len(b.files) == 1 {
		err = copyFile(b.files[0], tmp)
	} else {
		err = api.MergeCreateFile(b.files, tmp, false, newConfiguration())
	}
	if err != nil {
		return fmt.Errorf("unable to merge documents: %w", err)
	}

	if b.forest.Len() == 0 {
		return os.Rename(tmp, path)
	}
	if err := writeOutline(tmp, path, b.forest.Tree()); err != nil {
		return fmt.Errorf("unable to write outline: %w", err)
	}
	return nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
