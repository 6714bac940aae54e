package container

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const containerPath = "META-INF/container.xml"

// a few named references which are often found in package documents
// produced by careless tools
var htmlEntities = map[string]string{
	"nbsp":   " ",
	"ndash":  "–",
	"mdash":  "—",
	"hellip": "…",
	"laquo":  "«",
	"raquo":  "»",
	"lsquo":  "‘",
	"rsquo":  "’",
	"ldquo":  "“",
	"rdquo":  "”",
	"copy":   "©",
	"reg":    "®",
	"trade":  "™",
}

func readXML(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        htmlEntities,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}

// attr returns attribute value ignoring namespace prefix.
func attr(el *etree.Element, key string) string {
	for _, a := range el.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func child(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// locatePackage finds package document using container.xml, falling back to
// the first .opf file in the archive.
func (b *Book) locatePackage() (string, error) {
	if data, err := b.ReadFile(containerPath); err == nil {
		root, err := readXML(data)
		if err != nil {
			return "", fmt.Errorf("unable to parse %s: %w", containerPath, err)
		}
		var fallback string
		if rootfiles := child(root, "rootfiles"); rootfiles != nil {
			for _, rf := range rootfiles.ChildElements() {
				if rf.Tag != "rootfile" {
					continue
				}
				full := attr(rf, "full-path")
				if full == "" {
					continue
				}
				if strings.EqualFold(attr(rf, "media-type"), "application/oebps-package+xml") {
					return full, nil
				}
				if fallback == "" {
					fallback = full
				}
			}
		}
		if fallback != "" {
			return fallback, nil
		}
		b.log.Warn("Container description has no usable rootfile entries")
	}

	for _, f := range b.zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			b.log.Debug("Package document located without container description", zap.String("opf", f.Name))
			return f.Name, nil
		}
	}
	return "", errors.New("no package document found in container")
}

func (b *Book) parsePackage(data []byte) error {
	root, err := readXML(data)
	if err != nil {
		return err
	}
	if root.Tag != "package" {
		return fmt.Errorf("unexpected root element %q", root.Tag)
	}
	b.version = attr(root, "version")
	if b.version == "" {
		b.version = "2.0"
	}

	for _, el := range root.ChildElements() {
		switch el.Tag {
		case "metadata":
			b.parseMetadata(el)
		case "manifest":
			b.parseManifest(el)
		case "spine":
			b.parseSpine(el)
		}
	}
	if len(b.spine) == 0 {
		return errors.New("package document has empty spine")
	}
	return nil
}

func (b *Book) parseMetadata(el *etree.Element) {
	for _, c := range el.ChildElements() {
		// ePub 2 may wrap DC elements into dc-metadata
		if c.Tag == "dc-metadata" || c.Tag == "x-metadata" {
			b.parseMetadata(c)
			continue
		}
		value := strings.TrimSpace(xmlText(c))
		switch c.Tag {
		case "title":
			if b.title == "" {
				b.title = value
			}
		case "creator":
			if value != "" {
				b.authors = append(b.authors, value)
			}
		case "language":
			if b.language == "" {
				b.language = value
			}
		case "meta":
			if strings.EqualFold(attr(c, "name"), "cover") {
				b.metaCov = attr(c, "content")
			}
		}
	}
}

func (b *Book) parseManifest(el *etree.Element) {
	b.byID = make(map[string]int)
	for _, c := range el.ChildElements() {
		if c.Tag != "item" {
			continue
		}
		href := resolvePath(b.opfPath, attr(c, "href"))
		if href == "" {
			b.log.Debug("Skipping manifest item with unusable reference", zap.String("href", attr(c, "href")))
			continue
		}
		it := Item{
			ID:         attr(c, "id"),
			Href:       href,
			MediaType:  attr(c, "media-type"),
			Properties: strings.Fields(attr(c, "properties")),
		}
		if it.ID != "" {
			b.byID[it.ID] = len(b.manifest)
		}
		b.manifest = append(b.manifest, it)
	}
}

func (b *Book) parseSpine(el *etree.Element) {
	b.ncxID = attr(el, "toc")
	for _, c := range el.ChildElements() {
		if c.Tag != "itemref" {
			continue
		}
		idx, ok := b.byID[attr(c, "idref")]
		if !ok {
			b.log.Warn("Spine references unknown manifest item", zap.String("idref", attr(c, "idref")))
			continue
		}
		b.spine = append(b.spine, b.manifest[idx])
	}
}

// xmlText returns concatenated character data of the element and all its
// descendants.
func xmlText(el *etree.Element) string {
	var buf bytes.Buffer
	for _, tok := range el.Child {
		switch v := tok.(type) {
		case *etree.CharData:
			buf.WriteString(v.Data)
		case *etree.Element:
			buf.WriteString(xmlText(v))
		}
	}
	return buf.String()
}
