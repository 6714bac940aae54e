// Package css produces stylesheets used for rendering paginated output.
package css

import (
	"fmt"
	"strconv"
	"strings"
)

// Page describes paper and text settings of generated document. Margins are
// in millimeters, font size in points.
type Page struct {
	Paper            string
	FontSize         float64
	MarginHorizontal float64
	MarginVertical   float64
}

// NoteIconClass marks images inside footnote links.
const NoteIconClass = "note-icon"

// Generate returns stylesheet for page settings: page size and margins,
// page number in the bottom margin, body text, headings and images. Extra
// user rules (already sanitized) are appended last so they could override
// generated ones.
func Generate(p Page, extra string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `@page {
  size: %s;
  margin: %smm %smm;
  @bottom-center { content: counter(page); font-family: serif; font-size: 10pt; }
}
`, p.Paper, num(p.MarginVertical), num(p.MarginHorizontal))

	fmt.Fprintf(&sb, `body {
  font-family: serif;
  font-size: %spt;
  line-height: 1.6;
  text-align: justify;
}
h1, h2, h3 { font-family: sans-serif; font-weight: bold; page-break-after: avoid; }
h1 { font-size: 1.6em; text-align: center; margin: 1.5em 0 1em 0; }
img { max-width: 100%%; height: auto; display: block; margin: 1em auto; }
img.%s {
  max-width: 1em; max-height: 1em; display: inline;
  vertical-align: super; margin: 0 1px; border: none;
}
a { text-decoration: none; color: inherit; }
.cover { text-align: center; page-break-after: always; }
.cover img { max-height: 100%%; max-width: 100%%; }
.chapter-break { page-break-before: always; }
`, num(p.FontSize), NoteIconClass)

	if extra = strings.TrimSpace(extra); extra != "" {
		sb.WriteString(extra)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
