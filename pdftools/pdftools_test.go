package pdftools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"epdf/common"
	"epdf/config"
	"epdf/paged"
	"epdf/paged/pagedtest"
	"epdf/state"
)

type fixture struct {
	dir string
	lib *pagedtest.Memory
	ctx context.Context
	out *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{dir: t.TempDir(), lib: pagedtest.NewMemory(), out: new(bytes.Buffer)}

	f.ctx = state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(f.ctx)
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	env.Cfg = cfg
	env.SetLogger(zaptest.NewLogger(t))

	saved := newLibrary
	newLibrary = func(*zap.Logger) paged.Library { return f.lib }
	t.Cleanup(func() { newLibrary = saved })
	return f
}

func (f *fixture) put(t *testing.T, name string, n int, outline []paged.Bookmark) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	pages := make([]string, n)
	for i := range pages {
		pages[i] = "page text"
	}
	if err := f.lib.Put(p, pages, outline); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) run(args ...string) error {
	root := &cli.Command{Name: "epdf", Writer: f.out, Commands: Commands()}
	return root.Run(f.ctx, append([]string{"epdf"}, args...))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "1", want: []int{0}},
		{in: "1,3", want: []int{0, 2}},
		{in: "2-4", want: []int{1, 2, 3}},
		{in: " 1, 5-6 ,", want: []int{0, 4, 5}},
		{in: "", wantErr: true},
		{in: "0", wantErr: true},
		{in: "x", wantErr: true},
		{in: "4-2", wantErr: true},
		{in: "1-", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSelection(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSelection(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(got, tt.want) {
				t.Errorf("parseSelection(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTopLevel(t *testing.T) {
	entries := paged.Flatten([]paged.Bookmark{
		{Title: "A", Page: 0, Children: []paged.Bookmark{{Title: "A.1", Page: 1}}},
		{Title: "B", Page: 3},
	})
	if got := topLevel(entries); !slices.Equal(got, []int{0, 2}) {
		t.Errorf("topLevel() = %v, want [0 2]", got)
	}
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	const pdf = "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"
	write("10_ten.pdf", pdf)
	write("2_two.pdf", pdf)
	write("notes.txt", "plain text")
	write("fake.pdf", "not really")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	extra := write("extra.bin", "explicit files are not checked")

	got, err := collectInputs([]string{extra, dir}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("collectInputs() error = %v", err)
	}
	want := []string{extra, filepath.Join(dir, "2_two.pdf"), filepath.Join(dir, "10_ten.pdf")}
	if !slices.Equal(got, want) {
		t.Errorf("collectInputs() = %v, want %v", got, want)
	}

	if _, err := collectInputs([]string{filepath.Join(dir, "missing")}, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestMergeCommand(t *testing.T) {
	f := newFixture(t)
	a := f.put(t, "01_Alpha.pdf", 3, nil)
	b := f.put(t, "02_Beta.pdf", 2, []paged.Bookmark{{Title: "Inner", Page: 1}})
	dst := filepath.Join(f.dir, "out", "all.pdf")

	if err := f.run("merge", dst, a, b); err != nil {
		t.Fatalf("merge error = %v", err)
	}
	doc, ok := f.lib.Doc(dst)
	if !ok {
		t.Fatal("merged document is not saved")
	}
	if len(doc.Pages) != 5 {
		t.Errorf("pages = %d, want 5", len(doc.Pages))
	}
	var titles []string
	for _, e := range paged.Flatten(doc.Marks) {
		titles = append(titles, e.Title)
	}
	if got := strings.Join(titles, ","); got != "Alpha,Beta,Inner" {
		t.Errorf("bookmarks = %s", got)
	}

	if err := f.run("merge", dst, a); err == nil {
		t.Error("expected error for existing destination")
	}
	if err := f.run("merge", "--overwrite", dst, a); err != nil {
		t.Errorf("merge with overwrite error = %v", err)
	}
	if err := f.run("merge", dst); err == nil {
		t.Error("expected error without sources")
	}
}

func TestSplitCommand(t *testing.T) {
	outline := []paged.Bookmark{
		{Title: "One", Page: 2, Children: []paged.Bookmark{{Title: "One.1", Page: 3}}},
		{Title: "Two", Page: 6},
	}

	t.Run("top", func(t *testing.T) {
		f := newFixture(t)
		src := f.put(t, "book.pdf", 10, outline)
		if err := f.run("split", "--top", src); err != nil {
			t.Fatalf("split error = %v", err)
		}
		got := strings.Join(listDir(t, filepath.Join(f.dir, "book_parts")), ",")
		if got != "01_Front matter.pdf,02_One.pdf,03_Two.pdf" {
			t.Errorf("parts = %s", got)
		}
	})

	t.Run("chapters", func(t *testing.T) {
		f := newFixture(t)
		src := f.put(t, "book.pdf", 10, outline)
		dst := filepath.Join(f.dir, "parts")
		if err := f.run("split", "--chapters", "2", src, dst); err != nil {
			t.Fatalf("split error = %v", err)
		}
		got := strings.Join(listDir(t, dst), ",")
		if got != "01_Front matter.pdf,02_One.1.pdf" {
			t.Errorf("parts = %s", got)
		}
	})

	t.Run("size", func(t *testing.T) {
		f := newFixture(t)
		src := f.put(t, "book.pdf", 4, nil)
		dst := filepath.Join(f.dir, "parts")
		// every page holds 8 characters
		if err := f.run("split", "--threshold", "16", src, dst); err != nil {
			t.Fatalf("split error = %v", err)
		}
		got := strings.Join(listDir(t, dst), ",")
		if got != "01_book_part1.pdf,02_book_part2.pdf" {
			t.Errorf("parts = %s", got)
		}
	})

	t.Run("no outline", func(t *testing.T) {
		f := newFixture(t)
		src := f.put(t, "book.pdf", 4, nil)
		if err := f.run("split", "--top", src); !errors.Is(err, common.ErrMissingOutline) {
			t.Errorf("split error = %v, want ErrMissingOutline", err)
		}
	})

	t.Run("bad selection", func(t *testing.T) {
		f := newFixture(t)
		src := f.put(t, "book.pdf", 4, outline)
		if err := f.run("split", "--chapters", "a-b", src); err == nil {
			t.Error("expected error for bad selection")
		}
	})
}

func TestInfoCommand(t *testing.T) {
	f := newFixture(t)
	src := f.put(t, "book.pdf", 3, nil)
	if err := f.run("info", src); err != nil {
		t.Fatalf("info error = %v", err)
	}
	if want := src + ": 3 pages, 24 characters\n"; f.out.String() != want {
		t.Errorf("output = %q, want %q", f.out.String(), want)
	}
	if err := f.run("info", filepath.Join(f.dir, "missing.pdf")); !errors.Is(err, common.ErrIO) {
		t.Errorf("info error = %v, want ErrIO", err)
	}
}

func TestOutlineCommand(t *testing.T) {
	f := newFixture(t)
	src := f.put(t, "book.pdf", 5, []paged.Bookmark{
		{Title: "One", Page: 0, Children: []paged.Bookmark{{Title: "One.1", Page: 1}}},
		{Title: "Two", Page: 4},
	})
	if err := f.run("outline", src); err != nil {
		t.Fatalf("outline error = %v", err)
	}
	want := src + ": 5 pages\n" +
		"1. \"One\" [p. 1]\n" +
		"  2. \"One.1\" [p. 2]\n" +
		"3. \"Two\" [p. 5]\n"
	if f.out.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", f.out.String(), want)
	}

	bare := f.put(t, "bare.pdf", 1, nil)
	if err := f.run("outline", bare); !errors.Is(err, common.ErrMissingOutline) {
		t.Errorf("outline error = %v, want ErrMissingOutline", err)
	}
}
