// Package containertest writes ePub books for tests.
package containertest

import (
	"archive/zip"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// containerPath mirrors the container package location of container.xml.
const containerPath = "META-INF/container.xml"

// Chapter is a content document of a generated test book, File is
// relative to package directory.
type Chapter struct {
	File  string
	Title string
	Body  string
}

// TOCEntry is a table of contents entry of a generated test book, Href
// is relative to package directory and could contain anchor.
type TOCEntry struct {
	Title    string
	Href     string
	Children []TOCEntry
}

// Book describes ePub to be generated by Write.
type Book struct {
	Title    string
	Author   string
	Chapters []Chapter
	// Images maps path relative to package directory to content, manifest
	// lists them sorted by path.
	Images map[string][]byte
	// CoverImage is path of Images entry declared as cover.
	CoverImage string
	// TOC defaults to one entry per chapter, NoTOC suppresses it.
	TOC   []TOCEntry
	NoTOC bool
	// Nav writes ePub 3 navigation document instead of NCX.
	Nav bool
	// NoContainer omits META-INF/container.xml.
	NoContainer bool
}

// Write writes ePub book described by tb into dir and returns path
// to it.
func Write(t testing.TB, dir, name string, tb Book) string {
	t.Helper()

	if tb.Title == "" {
		tb.Title = "Test Book"
	}
	entries := tb.TOC
	if entries == nil && !tb.NoTOC {
		for _, ch := range tb.Chapters {
			entries = append(entries, TOCEntry{Title: ch.Title, Href: ch.File})
		}
	}

	target := filepath.Join(dir, name)
	f, err := os.Create(target)
	if err != nil {
		t.Fatalf("create test book: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	write := func(name, content string, method uint16) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}

	write("mimetype", "application/epub+zip", zip.Store)
	if !tb.NoContainer {
		write(containerPath, `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`, zip.Deflate)
	}

	var manifest, spine strings.Builder
	for i, ch := range tb.Chapters {
		id := fmt.Sprintf("ch%d", i+1)
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, ch.File)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
		write("OEBPS/"+ch.File, fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>%s</title></head>
<body>%s</body></html>`, html.EscapeString(ch.Title), ch.Body), zip.Deflate)
	}
	img := 0
	var coverMeta string
	images := make([]string, 0, len(tb.Images))
	for p := range tb.Images {
		images = append(images, p)
	}
	sort.Strings(images)
	for _, p := range images {
		data := tb.Images[p]
		img++
		id := fmt.Sprintf("img%d", img)
		if p == tb.CoverImage {
			coverMeta = fmt.Sprintf(`<meta name="cover" content="%s"/>`, id)
		}
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="%s"/>`+"\n", id, p, mediaTypeByExt(p))
		write("OEBPS/"+p, string(data), zip.Deflate)
	}

	version, spineAttr := "2.0", ` toc="ncx"`
	if tb.Nav {
		version, spineAttr = "3.0", ""
		manifest.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
		write("OEBPS/nav.xhtml", navDocument(entries), zip.Deflate)
	} else if !tb.NoTOC {
		manifest.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
		write("OEBPS/toc.ncx", ncxDocument(entries), zip.Deflate)
	} else {
		spineAttr = ""
	}

	write("OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="%s" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
    <dc:language>en</dc:language>
    %s
  </metadata>
  <manifest>
%s  </manifest>
  <spine%s>
%s  </spine>
</package>`, version, html.EscapeString(tb.Title), html.EscapeString(tb.Author), coverMeta, manifest.String(), spineAttr, spine.String()), zip.Deflate)

	if err := zw.Close(); err != nil {
		t.Fatalf("finalize test book: %v", err)
	}
	return target
}

func mediaTypeByExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

func ncxDocument(entries []TOCEntry) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1"><navMap>`)
	var points func([]TOCEntry)
	n := 0
	points = func(entries []TOCEntry) {
		for _, e := range entries {
			n++
			fmt.Fprintf(&sb, `<navPoint id="np%d" playOrder="%d"><navLabel><text>%s</text></navLabel>`, n, n, html.EscapeString(e.Title))
			if e.Href != "" {
				fmt.Fprintf(&sb, `<content src="%s"/>`, e.Href)
			}
			points(e.Children)
			sb.WriteString(`</navPoint>`)
		}
	}
	points(entries)
	sb.WriteString(`</navMap></ncx>`)
	return sb.String()
}

func navDocument(entries []TOCEntry) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops"><head><title>nav</title></head><body>
<nav epub:type="landmarks"><ol><li><a href="bogus.xhtml">Landmark</a></li></ol></nav>
<nav epub:type="toc">`)
	var list func([]TOCEntry)
	list = func(entries []TOCEntry) {
		sb.WriteString("<ol>")
		for _, e := range entries {
			sb.WriteString("<li>")
			if e.Href != "" {
				fmt.Fprintf(&sb, `<a href="%s">%s</a>`, e.Href, html.EscapeString(e.Title))
			} else {
				fmt.Fprintf(&sb, `<span>%s</span>`, html.EscapeString(e.Title))
			}
			if len(e.Children) > 0 {
				list(e.Children)
			}
			sb.WriteString("</li>")
		}
		sb.WriteString("</ol>")
	}
	list(entries)
	sb.WriteString(`</nav></body></html>`)
	return sb.String()
}
