// Package markup cleans content documents before rendering: intra-book
// links become local anchors, images are pointed to extracted resources and
// scripts are removed.
package markup

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"epdf/common"
	"epdf/css"
)

// Resolver finds extracted file for resource reference.
type Resolver interface {
	Resolve(original string) (string, bool)
}

// ChapterBreak separates documents rendered into the same volume.
const ChapterBreak = `<div class="chapter-break"></div>`

// XHTML allows empty elements to be self closed, HTML parser treats them as
// start tags and would swallow everything after them.
var selfClosingPattern = regexp.MustCompile(`(?is)<(script|style|title|a|div|span|p)\b([^>]*?)/>`)

var xmlEncodingPattern = regexp.MustCompile(`^\x{FEFF}?\s*<\?xml[^>]*?encoding=["']([A-Za-z0-9._:-]+)["']`)

// Cleaner prepares content documents for rendering.
type Cleaner struct {
	res Resolver
	log *zap.Logger
	// number of unresolved image references since creation
	unresolved int
}

func NewCleaner(res Resolver, log *zap.Logger) *Cleaner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleaner{res: res, log: log}
}

// Unresolved returns number of image references which could not be
// repaired.
func (c *Cleaner) Unresolved() int { return c.unresolved }

// Clean processes content document and returns inner markup of its body.
// When anchor is not empty only content starting at the element with that
// id is returned (whole body if there is no such element). False is
// returned when nothing usable is left.
func (c *Cleaner) Clean(data []byte, docPath, anchor string) (string, bool) {
	log := c.log.With(zap.String("document", docPath))

	contentType := "text/html"
	if m := xmlEncodingPattern.FindSubmatch(data); m != nil {
		contentType += "; charset=" + string(m[1])
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		log.Warn("Unable to detect document encoding, assuming UTF-8", zap.Error(err))
		r = bytes.NewReader(data)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		log.Warn("Unable to decode document", zap.Error(err))
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(selfClosingPattern.ReplaceAll(buf.Bytes(), []byte(`<$1$2></$1>`))))
	if err != nil {
		log.Warn("Unable to parse document", zap.Error(err))
		return "", false
	}

	c.fixLinks(doc)
	c.fixImages(doc, log)
	doc.Find("script, style").Remove()

	body := doc.Find("body").First()
	if body.Length() == 0 {
		log.Debug("Document has no body")
		return "", false
	}

	var out string
	if anchor != "" {
		if s, ok := fromAnchor(body, anchor); ok {
			out = s
		} else {
			log.Debug("Anchor not found, using whole document", zap.String("anchor", anchor))
		}
	}
	if out == "" {
		if out, err = body.Html(); err != nil {
			log.Warn("Unable to serialize document", zap.Error(err))
			return "", false
		}
	}
	out = strings.TrimSpace(out)
	return out, out != ""
}

// fixLinks turns links into other documents of the book into local anchors
// and marks images inside them as note icons.
func (c *Cleaner) fixLinks(doc *goquery.Document) {
	doc.Find("a[href*='#']").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		a.SetAttr("href", "#"+href[strings.LastIndex(href, "#")+1:])
		a.Find("img").AddClass(css.NoteIconClass)
	})
}

func (c *Cleaner) fixImages(doc *goquery.Document, log *zap.Logger) {
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if alt, ok := img.Attr("alt"); ok && strings.EqualFold(strings.TrimSpace(alt), "alt") {
			img.SetAttr("alt", "")
		}
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || isExternal(src) {
			return
		}
		if c.res != nil {
			if p, ok := c.res.Resolve(src); ok {
				img.SetAttr("src", FileURL(p))
				return
			}
		}
		c.unresolved++
		log.Warn("Image reference left as is", zap.String("src", src), zap.Error(common.ErrUnresolvedResource))
	})
}

func isExternal(src string) bool {
	low := strings.ToLower(src)
	return strings.HasPrefix(low, "data:") || strings.HasPrefix(low, "file:") || strings.Contains(low, "://")
}

// fromAnchor renders element with given id and everything following it in
// document order.
func fromAnchor(body *goquery.Selection, anchor string) (string, bool) {
	target := body.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == anchor
	}).First()
	if target.Length() == 0 {
		return "", false
	}

	stop := body.Get(0)
	var buf bytes.Buffer
	n := target.Get(0)
	if err := xhtml.Render(&buf, n); err != nil {
		return "", false
	}
	for ; n != nil && n != stop; n = n.Parent {
		for s := n.NextSibling; s != nil; s = s.NextSibling {
			if err := xhtml.Render(&buf, s); err != nil {
				return "", false
			}
		}
	}
	return buf.String(), true
}

// FileURL returns file URL for local path.
func FileURL(p string) string {
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// CoverHTML returns markup of a cover page for image at local path.
func CoverHTML(imagePath string) string {
	return fmt.Sprintf(`<div class="cover"><img src="%s" alt=""/></div>`, html.EscapeString(FileURL(imagePath)))
}

// Document wraps body fragments into complete HTML document.
func Document(title string, parts ...string) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"/>`)
	if title != "" {
		fmt.Fprintf(&sb, "<title>%s</title>", html.EscapeString(title))
	}
	sb.WriteString("</head><body>")
	for _, p := range parts {
		sb.WriteString(p)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}
