// Package debug renders book and document structures as indented text
// trees for inspection commands.
package debug

import (
	"fmt"
	"strconv"
	"strings"

	"epdf/paged"
	"epdf/toc"
)

// TreeWriter accumulates indented lines, two spaces per level.
type TreeWriter struct {
	w     *strings.Builder
	lines int
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

// Lines returns number of lines written so far.
func (tw *TreeWriter) Lines() int {
	return tw.lines
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes "label: value" with value quoted.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

func (tw *TreeWriter) indent(depth int) {
	tw.lines++
	for range depth {
		tw.w.WriteString("  ")
	}
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}

// DumpTOC renders table of contents, one entry per line with its reference.
func DumpTOC(nodes []toc.Node) string {
	tw := NewTreeWriter()
	toc.Walk(nodes, func(depth int, n toc.Node) {
		if ref := n.Target(); !ref.IsZero() {
			tw.Line(depth, "%s -> %s", encodeText(n.Heading()), ref)
			return
		}
		tw.Line(depth, "%s", encodeText(n.Heading()))
	})
	return tw.String()
}

// DumpOutline renders document outline numbering entries in pre-order
// (the numbers select cut points for splitting) with one based pages.
func DumpOutline(bms []paged.Bookmark) string {
	tw := NewTreeWriter()
	for i, e := range paged.Flatten(bms) {
		if e.Page < 0 {
			tw.Line(e.Depth, "%d. %s [unresolved]", i+1, encodeText(e.Title))
			continue
		}
		tw.Line(e.Depth, "%d. %s [p. %d]", i+1, encodeText(e.Title), e.Page+1)
	}
	return tw.String()
}
