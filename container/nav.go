package container

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/beevik/etree"
	"go.uber.org/zap"

	"epdf/toc"
)

// parseTOC builds table of contents. ePub 3 navigation document is preferred,
// NCX is used otherwise. Problems are logged, book without TOC is still
// usable in single file mode.
func (b *Book) parseTOC() {
	if strings.HasPrefix(b.version, "3") {
		if nodes, ok := b.parseNav(); ok {
			b.toc = nodes
			return
		}
	}
	if nodes, ok := b.parseNCX(); ok {
		b.toc = nodes
		return
	}
	b.log.Debug("Book has no table of contents", zap.String("book", b.path))
}

func (b *Book) ncxItem() (Item, bool) {
	if idx, ok := b.byID[b.ncxID]; ok && b.ncxID != "" {
		return b.manifest[idx], true
	}
	for _, it := range b.manifest {
		if strings.EqualFold(it.MediaType, "application/x-dtbncx+xml") {
			return it, true
		}
	}
	return Item{}, false
}

func (b *Book) parseNCX() ([]toc.Node, bool) {
	it, ok := b.ncxItem()
	if !ok {
		return nil, false
	}
	data, err := b.ReadFile(it.Href)
	if err != nil {
		b.log.Warn("Unable to read NCX", zap.String("href", it.Href), zap.Error(err))
		return nil, false
	}
	root, err := readXML(data)
	if err != nil {
		b.log.Warn("Unable to parse NCX", zap.String("href", it.Href), zap.Error(err))
		return nil, false
	}
	navMap := child(root, "navMap")
	if navMap == nil {
		return nil, false
	}
	nodes := convertNavPoints(navMap, it.Href)
	return nodes, len(nodes) > 0
}

func convertNavPoints(parent *etree.Element, base string) []toc.Node {
	var nodes []toc.Node
	for _, np := range parent.ChildElements() {
		if np.Tag != "navPoint" {
			continue
		}
		var title string
		if label := child(np, "navLabel"); label != nil {
			if text := child(label, "text"); text != nil {
				title = strings.TrimSpace(xmlText(text))
			}
		}
		var ref toc.Ref
		if content := child(np, "content"); content != nil {
			ref = resolveRef(base, attr(content, "src"))
		}
		nodes = append(nodes, makeNode(title, ref, convertNavPoints(np, base)))
	}
	return nodes
}

func makeNode(title string, ref toc.Ref, children []toc.Node) toc.Node {
	if len(children) == 0 {
		return toc.Leaf{Title: title, Ref: ref}
	}
	return toc.Section{Title: title, Ref: ref, Nodes: children}
}

func (b *Book) parseNav() ([]toc.Node, bool) {
	var nav Item
	found := false
	for _, it := range b.manifest {
		if it.hasProperty("nav") {
			nav, found = it, true
			break
		}
	}
	if !found {
		return nil, false
	}
	data, err := b.ReadFile(nav.Href)
	if err != nil {
		b.log.Warn("Unable to read navigation document", zap.String("href", nav.Href), zap.Error(err))
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(stripBOM(data)))
	if err != nil {
		b.log.Warn("Unable to parse navigation document", zap.String("href", nav.Href), zap.Error(err))
		return nil, false
	}

	var nodes []toc.Node
	doc.Find("nav").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hasToken(s.AttrOr("epub:type", ""), "toc") {
			return true
		}
		nodes = parseNavList(s.ChildrenFiltered("ol").First(), nav.Href)
		return false
	})
	return nodes, len(nodes) > 0
}

func parseNavList(ol *goquery.Selection, base string) []toc.Node {
	var nodes []toc.Node
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		var (
			title string
			ref   toc.Ref
		)
		if a := li.ChildrenFiltered("a").First(); a.Length() > 0 {
			title = a.Text()
			ref = resolveRef(base, a.AttrOr("href", ""))
		} else if span := li.ChildrenFiltered("span").First(); span.Length() > 0 {
			title = span.Text()
		}
		children := parseNavList(li.ChildrenFiltered("ol").First(), base)
		nodes = append(nodes, makeNode(strings.Join(strings.Fields(title), " "), ref, children))
	})
	return nodes
}

func hasToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if t == token {
			return true
		}
	}
	return false
}
