package markup

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/encoding/charmap"

	"epdf/common"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(original string) (string, bool) {
	p, ok := m[original]
	return p, ok
}

func page(body string) []byte {
	return []byte(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>t</title>
<style>p { color: red }</style></head><body>` + body + `</body></html>`)
}

func TestClean_Links(t *testing.T) {
	c := NewCleaner(nil, zaptest.NewLogger(t))
	out, ok := c.Clean(page(`<p>text<a href="notes.xhtml#n1"><img src="data:image/png;base64,AAAA"/></a> <a href="http://example.com/">ext</a></p>`), "ch1.xhtml", "")
	if !ok {
		t.Fatal("Clean() returned nothing")
	}
	if !strings.Contains(out, `href="#n1"`) {
		t.Errorf("link is not rewritten: %s", out)
	}
	if !strings.Contains(out, `class="note-icon"`) {
		t.Errorf("note icon is not marked: %s", out)
	}
	if !strings.Contains(out, `href="http://example.com/"`) {
		t.Errorf("external link must be kept: %s", out)
	}
}

func TestClean_Images(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewCleaner(mapResolver{"../images/pic.png": "/job/OEBPS/images/pic.png"}, zap.New(core))

	out, ok := c.Clean(page(`<img src="../images/pic.png" alt="alt"/><img src="../images/missing.png" alt="Map"/>`), "text/ch1.xhtml", "")
	if !ok {
		t.Fatal("Clean() returned nothing")
	}
	if !strings.Contains(out, `src="file:///job/OEBPS/images/pic.png"`) {
		t.Errorf("image is not repaired: %s", out)
	}
	if !strings.Contains(out, `alt=""`) || !strings.Contains(out, `alt="Map"`) {
		t.Errorf("alt placeholders handled incorrectly: %s", out)
	}
	if !strings.Contains(out, `src="../images/missing.png"`) {
		t.Errorf("unresolved reference must be left as is: %s", out)
	}
	if c.Unresolved() != 1 {
		t.Errorf("Unresolved() = %d, want 1", c.Unresolved())
	}
	warns := logs.FilterMessage("Image reference left as is").All()
	if len(warns) != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
	if err, ok := warns[0].ContextMap()["error"].(string); !ok || err != common.ErrUnresolvedResource.Error() {
		t.Errorf("warning error field = %v", warns[0].ContextMap()["error"])
	}
}

func TestClean_RemovesScripts(t *testing.T) {
	c := NewCleaner(nil, zaptest.NewLogger(t))
	out, ok := c.Clean(page(`<script src="x.js"/><p>kept</p><script>alert(1)</script>`), "ch.xhtml", "")
	if !ok {
		t.Fatal("Clean() returned nothing")
	}
	if strings.Contains(out, "script") || strings.Contains(out, "alert") {
		t.Errorf("scripts are not removed: %s", out)
	}
	if !strings.Contains(out, "<p>kept</p>") {
		t.Errorf("content after self closed script is lost: %s", out)
	}
	if strings.Contains(out, "color") {
		t.Errorf("style must not leak into body: %s", out)
	}
}

func TestClean_Anchor(t *testing.T) {
	body := `<p>before</p><div><h2 id="s1">Start</h2><p>after</p></div><p>tail</p>`
	c := NewCleaner(nil, zaptest.NewLogger(t))

	out, ok := c.Clean(page(body), "ch.xhtml", "s1")
	if !ok {
		t.Fatal("Clean() returned nothing")
	}
	if strings.Contains(out, "before") {
		t.Errorf("content before anchor must be dropped: %s", out)
	}
	for _, want := range []string{`<h2 id="s1">Start</h2>`, "after", "tail"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q: %s", want, out)
		}
	}
	if strings.Index(out, "after") > strings.Index(out, "tail") {
		t.Errorf("document order is broken: %s", out)
	}

	out, _ = c.Clean(page(body), "ch.xhtml", "nope")
	if !strings.Contains(out, "before") {
		t.Errorf("unknown anchor must return whole body: %s", out)
	}
}

func TestClean_Empty(t *testing.T) {
	c := NewCleaner(nil, zaptest.NewLogger(t))
	if _, ok := c.Clean(page("  "), "ch.xhtml", ""); ok {
		t.Error("empty body must be reported")
	}
}

func TestClean_Charset(t *testing.T) {
	enc, err := charmap.Windows1251.NewEncoder().String("Привет")
	if err != nil {
		t.Fatal(err)
	}
	data := []byte(`<?xml version="1.0" encoding="windows-1251"?><html><body><p>` + enc + `</p></body></html>`)

	c := NewCleaner(nil, zaptest.NewLogger(t))
	out, ok := c.Clean(data, "ch.xhtml", "")
	if !ok || !strings.Contains(out, "Привет") {
		t.Errorf("Clean() = %q, %v", out, ok)
	}
}

func TestCoverHTML(t *testing.T) {
	out := CoverHTML("/job/images/cover one.jpg")
	if !strings.Contains(out, `src="file:///job/images/cover%20one.jpg"`) || !strings.Contains(out, `class="cover"`) {
		t.Errorf("CoverHTML() = %s", out)
	}
}

func TestDocument(t *testing.T) {
	out := Document("A & B", "<p>1</p>", ChapterBreak, "<p>2</p>")
	if !strings.Contains(out, "<title>A &amp; B</title>") {
		t.Errorf("title is not escaped: %s", out)
	}
	if !strings.Contains(out, "<body><p>1</p>"+ChapterBreak+"<p>2</p></body>") {
		t.Errorf("Document() = %s", out)
	}
}
