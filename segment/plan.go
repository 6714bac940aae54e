// Package segment splits paginated documents into page spans, either at
// chapter cut points or by accumulated content size, and writes every span
// as a separate document.
package segment

import (
	"errors"
	"slices"
	"unicode"

	"epdf/paged"
)

// DefaultFrontMatter labels span starting at the first page when no
// selected chapter starts there.
const DefaultFrontMatter = "Front matter"

// ErrThreshold is returned for non positive size threshold.
var ErrThreshold = errors.New("size threshold must be positive")

// Span is a page range [Start, End).
type Span struct {
	Title string
	Start int
	End   int
}

// Len returns number of pages in the span.
func (s Span) Len() int { return s.End - s.Start }

// ByCutPoints partitions document of total pages at destinations of
// selected outline entries. Selections out of range or pointing outside
// the document are ignored. When several selections resolve to the same
// page the first one names the span.
func ByCutPoints(entries []paged.Entry, selected []int, total int) []Span {
	return cutSpans(entries, selected, total, DefaultFrontMatter)
}

func cutSpans(entries []paged.Entry, selected []int, total int, frontMatter string) []Span {
	if total <= 0 {
		return nil
	}
	titles := make(map[int]string, len(selected))
	bounds := []int{0, total}
	for _, idx := range selected {
		if idx < 0 || idx >= len(entries) {
			continue
		}
		page := entries[idx].Page
		if page < 0 || page >= total {
			continue
		}
		if _, exists := titles[page]; exists {
			continue
		}
		titles[page] = entries[idx].Title
		bounds = append(bounds, page)
	}
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)

	spans := make([]Span, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		title, ok := titles[start]
		if !ok && start == 0 {
			title = frontMatter
		}
		spans = append(spans, Span{Title: title, Start: start, End: end})
	}
	return spans
}

// BySize groups consecutive pages until accumulated size reaches threshold.
// The last span ends at the last page whatever its size is.
func BySize(sizes []int, threshold int) ([]Span, error) {
	if threshold <= 0 {
		return nil, ErrThreshold
	}
	var (
		spans []Span
		start int
		acc   int
	)
	for i, size := range sizes {
		acc += size
		if acc >= threshold || i == len(sizes)-1 {
			spans = append(spans, Span{Start: start, End: i + 1})
			start, acc = i+1, 0
		}
	}
	return spans, nil
}

// ContentSize returns number of non whitespace characters.
func ContentSize(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
