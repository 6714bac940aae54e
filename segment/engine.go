package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"epdf/common"
	"epdf/config"
	"epdf/paged"
	"epdf/progress"
)

// scanReport is how often page scanning is reported.
const scanReport = 50

// Engine writes segmented documents.
type Engine struct {
	lib         paged.Library
	log         *zap.Logger
	sink        progress.Sink
	frontMatter string
}

// Option configures Engine.
type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithProgress(sink progress.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithFrontMatter sets label of the span preceding the first cut point.
func WithFrontMatter(title string) Option {
	return func(e *Engine) {
		if title != "" {
			e.frontMatter = title
		}
	}
}

func NewEngine(lib paged.Library, opts ...Option) *Engine {
	e := &Engine{lib: lib, log: zap.NewNop(), sink: progress.Discard, frontMatter: DefaultFrontMatter}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SplitByCuts cuts src at destinations of selected entries of its flattened
// outline and writes every span to outDir as "NN_<title>.pdf". Paths of
// written documents are returned in order.
func (e *Engine) SplitByCuts(ctx context.Context, src string, selected []int, outDir string) ([]string, error) {
	doc, err := e.lib.Open(src)
	if err != nil {
		return nil, common.IOError(err, "unable to open %s", src)
	}
	defer doc.Close()

	outline, err := doc.Outline()
	if err != nil {
		return nil, common.IOError(err, "unable to read outline")
	}
	entries := paged.Flatten(outline)
	if len(entries) == 0 {
		return nil, common.ErrMissingOutline
	}

	spans := cutSpans(entries, selected, doc.PageCount(), e.frontMatter)
	e.log.Debug("Cut points resolved", zap.Int("selected", len(selected)), zap.Int("spans", len(spans)))

	return e.write(ctx, doc, spans, outDir, func(i int, s Span) string {
		name := config.SanitizeFileName(s.Title)
		if name == "" {
			name = fmt.Sprintf("Section_P%d", s.Start+1)
		}
		return fmt.Sprintf("%02d_%s.pdf", i+1, name)
	})
}

// SplitBySize groups pages of src by whitespace stripped character count
// and writes every group to outDir as "NN_<base>_partN.pdf".
func (e *Engine) SplitBySize(ctx context.Context, src string, threshold int, outDir string) ([]string, error) {
	if threshold <= 0 {
		return nil, ErrThreshold
	}
	doc, err := e.lib.Open(src)
	if err != nil {
		return nil, common.IOError(err, "unable to open %s", src)
	}
	defer doc.Close()

	sizes, err := e.scan(ctx, doc, progress.Range(e.sink, 0, 50))
	if err != nil {
		return nil, err
	}
	spans, err := BySize(sizes, threshold)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return e.write(ctx, doc, spans, outDir, func(i int, _ Span) string {
		return fmt.Sprintf("%02d_%s_part%d.pdf", i+1, base, i+1)
	})
}

// Stats returns number of pages and whitespace stripped character count.
func (e *Engine) Stats(ctx context.Context, src string) (pages, chars int, err error) {
	doc, err := e.lib.Open(src)
	if err != nil {
		return 0, 0, common.IOError(err, "unable to open %s", src)
	}
	defer doc.Close()

	sizes, err := e.scan(ctx, doc, e.sink)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range sizes {
		chars += s
	}
	return doc.PageCount(), chars, nil
}

func (e *Engine) scan(ctx context.Context, doc paged.Document, sink progress.Sink) ([]int, error) {
	total := doc.PageCount()
	sizes := make([]int, total)
	for i := range total {
		if i%scanReport == 0 {
			if err := common.CheckCancelled(ctx); err != nil {
				return nil, err
			}
			sink.Log(fmt.Sprintf("Scanning page %d/%d", i, total))
			sink.Progress(progress.Step(i, total), "Scanning pages")
		}
		text, err := doc.PageText(i)
		if err != nil {
			e.log.Warn("Unable to extract page text, counted as empty", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		sizes[i] = ContentSize(text)
	}
	return sizes, nil
}

func (e *Engine) write(ctx context.Context, doc paged.Document, spans []Span, outDir string, name func(int, Span) string) (written []string, err error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, common.IOError(err, "unable to create output directory")
	}
	defer func() {
		if err == nil {
			return
		}
		for _, p := range written {
			err = multierr.Append(err, os.Remove(p))
		}
		written = nil
	}()

	sink := progress.Range(e.sink, 50, 100)
	for i, s := range spans {
		if err := common.CheckCancelled(ctx); err != nil {
			return written, err
		}
		out := filepath.Join(outDir, name(i, s))
		sink.Progress(progress.Step(i, len(spans)), filepath.Base(out))
		if err := e.lib.ExtractRange(doc, s.Start, s.End, out); err != nil {
			err = common.IOError(err, "unable to write %s", filepath.Base(out))
			// extraction may leave partial file behind
			if er := os.Remove(out); er != nil && !errors.Is(er, os.ErrNotExist) {
				err = multierr.Append(err, er)
			}
			return written, err
		}
		written = append(written, out)
		e.log.Info("Span written", zap.String("file", filepath.Base(out)), zap.Int("from", s.Start+1), zap.Int("to", s.End))
	}
	sink.Progress(100, "Done")
	return written, nil
}
