package convert

import (
	"context"
	"errors"
	"path"

	"go.uber.org/zap"

	"epdf/common"
	"epdf/container"
	"epdf/markup"
	"epdf/toc"
)

// source is what a job reads from the opened container.
type source interface {
	Book
	Spine() []container.Item
	TOC() []toc.Node
	ReadFile(name string) ([]byte, error)
	Cover() (container.Item, bool)
}

// chapterRefs returns references used to build a volume from TOC node:
// flattened and deduplicated, only the first reference of every document is
// kept since content is taken from its anchor to the end of the document.
// Subtree returning to a document after visiting another one does not get
// that document again, its later anchors are covered by the first
// occurrence.
func chapterRefs(node toc.Node) []toc.Ref {
	refs := toc.Dedupe(toc.Flatten(node))
	seen := make(map[string]struct{}, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if r.Href == "" {
			continue
		}
		if _, ok := seen[r.Href]; ok {
			continue
		}
		seen[r.Href] = struct{}{}
		out = append(out, r)
	}
	return out
}

// assemble cleans referenced documents and joins their markup with page
// breaks. Documents which cannot be read or have no content are skipped.
func assemble(ctx context.Context, src source, cleaner *markup.Cleaner, refs []toc.Ref, log *zap.Logger) ([]string, error) {
	var parts []string
	for _, r := range refs {
		if err := common.CheckCancelled(ctx); err != nil {
			return nil, err
		}
		data, err := src.ReadFile(r.Href)
		if err != nil {
			if errors.Is(err, container.ErrNotFound) {
				log.Warn("Referenced document is missing, skipped", zap.String("href", r.Href))
				continue
			}
			return nil, common.IOError(err, "unable to read %s", r.Href)
		}
		body, ok := cleaner.Clean(data, r.Href, r.Anchor)
		if !ok {
			log.Debug("Document has no content", zap.String("href", r.Href))
			continue
		}
		if len(parts) > 0 {
			parts = append(parts, markup.ChapterBreak)
		}
		parts = append(parts, body)
	}
	return parts, nil
}

// spineRefs returns references to every content document in reading order.
func spineRefs(src source) []toc.Ref {
	spine := src.Spine()
	refs := make([]toc.Ref, 0, len(spine))
	for _, it := range spine {
		switch path.Ext(it.Href) {
		case ".css", ".ncx":
			continue
		}
		refs = append(refs, toc.Ref{Href: it.Href})
	}
	return refs
}
