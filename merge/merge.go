// Package merge concatenates paginated documents into one, giving every
// input a top level bookmark and carrying native outlines of the inputs
// over with destinations shifted to their new pages.
package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"epdf/common"
	"epdf/paged"
	"epdf/progress"
)

var ordinalPrefix = regexp.MustCompile(`^\d+_+`)

// TitleFromPath returns bookmark title for merged file: base name without
// extension and leading "NN_" ordinal written by split and convert. Other
// leading numbers are kept since they are usually part of the title.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if title := strings.TrimSpace(ordinalPrefix.ReplaceAllString(base, "")); title != "" {
		return title
	}
	return base
}

// Engine merges documents.
type Engine struct {
	lib  paged.Library
	log  *zap.Logger
	sink progress.Sink
}

// Option configures Engine.
type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithProgress sets sink receiving 0..100 progress of the merge. Callers
// running merge as a step of a larger job pass progress.Range.
func WithProgress(sink progress.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

func NewEngine(lib paged.Library, opts ...Option) *Engine {
	e := &Engine{lib: lib, log: zap.NewNop(), sink: progress.Discard}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge concatenates sources in order and saves result to out. Returned
// path is out on success.
func (e *Engine) Merge(ctx context.Context, sources []string, out string) (string, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("nothing to merge: %w", common.ErrIO)
	}

	b := e.lib.NewBuilder()
	for i, src := range sources {
		if err := common.CheckCancelled(ctx); err != nil {
			return "", err
		}
		e.sink.Progress(progress.Step(i, len(sources)), filepath.Base(src))

		if err := e.appendSource(b, src); err != nil {
			return "", err
		}
	}

	if err := common.CheckCancelled(ctx); err != nil {
		return "", err
	}
	if err := b.Save(out); err != nil {
		return "", common.IOError(err, "unable to save %s", out)
	}
	e.sink.Progress(100, "Merged")
	e.log.Info("Documents merged", zap.Int("sources", len(sources)), zap.Int("pages", b.PageCount()), zap.String("to", out))
	return out, nil
}

func (e *Engine) appendSource(b paged.Builder, src string) error {
	doc, err := e.lib.Open(src)
	if err != nil {
		return common.IOError(err, "unable to open %s", src)
	}
	defer doc.Close()

	offset, pages := b.PageCount(), doc.PageCount()
	if err := b.Append(doc); err != nil {
		return common.IOError(err, "unable to append %s", src)
	}

	top := b.AddBookmark(TitleFromPath(src), offset, paged.Root)

	outline, err := doc.Outline()
	if err != nil {
		e.log.Warn("Unable to read outline, only top level bookmark is kept", zap.String("file", src), zap.Error(err))
		return nil
	}
	skipped := copyOutline(b, outline, top, offset, pages)
	if skipped > 0 {
		e.log.Warn("Outline entries with unresolved destination skipped", zap.String("file", src), zap.Int("count", skipped))
	}
	return nil
}

// copyOutline re-creates bms under parent shifting pages by offset. Entries
// pointing outside of source document are dropped with their children
// attached to the dropped entry parent. Returns number of dropped entries.
func copyOutline(b paged.Builder, bms []paged.Bookmark, parent paged.Handle, offset, pages int) int {
	skipped := 0
	for _, bm := range bms {
		next := parent
		if bm.Page >= 0 && bm.Page < pages {
			next = b.AddBookmark(bm.Title, bm.Page+offset, parent)
		} else {
			skipped++
		}
		skipped += copyOutline(b, bm.Children, next, offset, pages)
	}
	return skipped
}
