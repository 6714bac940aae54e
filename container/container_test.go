package container

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"epdf/container/containertest"
	"epdf/toc"
)

func sampleBook() containertest.Book {
	return containertest.Book{
		Title:  "Sample",
		Author: "A. Writer",
		Chapters: []containertest.Chapter{
			{File: "text/ch1.xhtml", Title: "One", Body: `<h1 id="top">One</h1><p>first</p>`},
			{File: "text/ch2.xhtml", Title: "Two", Body: `<h1>Two</h1><p id="s1">second</p>`},
		},
		TOC: []containertest.TOCEntry{
			{Title: "One", Href: "text/ch1.xhtml"},
			{Title: "Two", Href: "text/ch2.xhtml", Children: []containertest.TOCEntry{
				{Title: "Two, part one", Href: "text/ch2.xhtml#s1"},
			}},
		},
		Images: map[string][]byte{
			"images/cover.jpg": []byte("jpeg data"),
			"images/pic.png":   []byte("png data"),
		},
		CoverImage: "images/cover.jpg",
	}
}

func openSample(t *testing.T, tb containertest.Book, opts ...Option) *Book {
	t.Helper()
	path := containertest.Write(t, t.TempDir(), "book.epub", tb)
	b, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestOpen_NCX(t *testing.T) {
	b := openSample(t, sampleBook())

	if b.Version() != "2.0" {
		t.Errorf("Version() = %q, want 2.0", b.Version())
	}
	if b.Title() != "Sample" {
		t.Errorf("Title() = %q", b.Title())
	}
	if len(b.Authors()) != 1 || b.Authors()[0] != "A. Writer" {
		t.Errorf("Authors() = %v", b.Authors())
	}
	if b.Language() != "en" {
		t.Errorf("Language() = %q", b.Language())
	}

	spine := b.Spine()
	if len(spine) != 2 || spine[0].Href != "OEBPS/text/ch1.xhtml" || spine[1].Href != "OEBPS/text/ch2.xhtml" {
		t.Fatalf("Spine() = %+v", spine)
	}

	nodes := b.TOC()
	if len(nodes) != 2 {
		t.Fatalf("TOC() has %d top level nodes, want 2", len(nodes))
	}
	if nodes[0].Heading() != "One" || nodes[0].Target().Href != "OEBPS/text/ch1.xhtml" {
		t.Errorf("first node = %q %v", nodes[0].Heading(), nodes[0].Target())
	}
	kids := nodes[1].Children()
	if len(kids) != 1 {
		t.Fatalf("second node has %d children, want 1", len(kids))
	}
	want := toc.Ref{Href: "OEBPS/text/ch2.xhtml", Anchor: "s1"}
	if kids[0].Target() != want {
		t.Errorf("child target = %v, want %v", kids[0].Target(), want)
	}
}

func TestOpen_Nav(t *testing.T) {
	tb := sampleBook()
	tb.Nav = true
	b := openSample(t, tb)

	if !strings.HasPrefix(b.Version(), "3") {
		t.Errorf("Version() = %q, want 3.0", b.Version())
	}
	nodes := b.TOC()
	if len(nodes) != 2 {
		t.Fatalf("TOC() has %d top level nodes, want 2", len(nodes))
	}
	// landmarks navigation must be ignored
	for _, ref := range toc.FlattenAll(nodes) {
		if strings.Contains(ref.Href, "bogus") {
			t.Errorf("landmarks entry leaked into TOC: %v", ref)
		}
	}
	if got := toc.Count(nodes); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestOpen_AnchorOnlyReference(t *testing.T) {
	tb := sampleBook()
	tb.TOC = []containertest.TOCEntry{{Title: "Inside", Href: "#frag"}}
	b := openSample(t, tb)

	nodes := b.TOC()
	if len(nodes) != 1 {
		t.Fatalf("TOC() = %v", nodes)
	}
	want := toc.Ref{Href: "OEBPS/toc.ncx", Anchor: "frag"}
	if nodes[0].Target() != want {
		t.Errorf("Target() = %v, want %v", nodes[0].Target(), want)
	}
}

func TestOpen_NoTOC(t *testing.T) {
	tb := sampleBook()
	tb.NoTOC = true
	b := openSample(t, tb)
	if len(b.TOC()) != 0 {
		t.Errorf("TOC() = %v, want empty", b.TOC())
	}
	if len(b.Spine()) != 2 {
		t.Errorf("Spine() length = %d, want 2", len(b.Spine()))
	}
}

func TestOpen_NoContainerDescription(t *testing.T) {
	tb := sampleBook()
	tb.NoContainer = true
	b := openSample(t, tb)
	if len(b.Spine()) != 2 {
		t.Errorf("Spine() length = %d, want 2", len(b.Spine()))
	}
}

func TestOpen_EmptySpine(t *testing.T) {
	tb := sampleBook()
	tb.Chapters = nil
	tb.NoTOC = true
	path := containertest.Write(t, t.TempDir(), "empty.epub", tb)
	if _, err := Open(path); err == nil {
		t.Fatal("Open() expected error for empty spine")
	}
}

func TestOpen_NotArchive(t *testing.T) {
	path := t.TempDir() + "/garbage.epub"
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("Open() expected error for non archive")
	}
}

func TestOpen_FixZip(t *testing.T) {
	path := containertest.Write(t, t.TempDir(), "book.epub", sampleBook())
	b, err := Open(path, WithFixZip(true))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	repaired := b.repaired
	if repaired == "" {
		t.Fatal("repaired copy expected")
	}
	if len(b.Spine()) != 2 {
		t.Errorf("Spine() length = %d, want 2", len(b.Spine()))
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(repaired); !os.IsNotExist(err) {
		t.Errorf("repaired copy should be removed on Close, stat error = %v", err)
	}
}

func TestBook_Cover(t *testing.T) {
	b := openSample(t, sampleBook())
	it, ok := b.Cover()
	if !ok {
		t.Fatal("Cover() not found")
	}
	if it.Href != "OEBPS/images/cover.jpg" {
		t.Errorf("Cover() = %+v", it)
	}

	tb := sampleBook()
	tb.CoverImage = ""
	tb.Images = map[string][]byte{"images/pic.png": []byte("png")}
	if _, ok := openSample(t, tb).Cover(); ok {
		t.Error("Cover() should not be found")
	}
}

func TestBook_ReadFile(t *testing.T) {
	b := openSample(t, sampleBook())

	data, err := b.ReadFile("OEBPS/text/ch1.xhtml")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "first") {
		t.Errorf("unexpected content %q", data)
	}
	if _, err := b.ReadFile("oebps/TEXT/CH1.xhtml"); err != nil {
		t.Errorf("case insensitive ReadFile() error = %v", err)
	}
	if _, err := b.ReadFile("OEBPS/missing.xhtml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadFile() error = %v, want ErrNotFound", err)
	}
	if !b.Exists("/OEBPS/content.opf") {
		t.Error("Exists() should ignore leading slash")
	}
}

func TestBook_Resources(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tb := sampleBook()
	b := openSample(t, tb, WithLogger(zap.New(core)))

	got := map[string]string{}
	err := b.Resources(func(name string, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		got[name] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("Resources() error = %v", err)
	}
	if len(got) != 2 || got["OEBPS/images/pic.png"] != "png data" || got["OEBPS/images/cover.jpg"] != "jpeg data" {
		t.Errorf("Resources() = %v", got)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected warnings: %v", logs.All())
	}

	stop := errors.New("stop")
	if err := b.Resources(func(string, io.Reader) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("Resources() error = %v, want callback error", err)
	}
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"OEBPS/content.opf", "text/ch1.xhtml", "OEBPS/text/ch1.xhtml"},
		{"OEBPS/text/ch1.xhtml", "../images/a.png", "OEBPS/images/a.png"},
		{"OEBPS/content.opf", "my%20file.xhtml", "OEBPS/my file.xhtml"},
		{"content.opf", "../escape.xhtml", ""},
		{"OEBPS/content.opf", "http://example.com/x.png", ""},
		{"OEBPS/content.opf", "/abs.xhtml", ""},
		{"OEBPS/content.opf", "", ""},
	}
	for _, tt := range tests {
		if got := resolvePath(tt.base, tt.href); got != tt.want {
			t.Errorf("resolvePath(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
