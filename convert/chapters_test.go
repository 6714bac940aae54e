package convert

import (
	"slices"
	"testing"

	"epdf/toc"
)

func TestChapterRefs(t *testing.T) {
	leaf := func(href string) toc.Node { return toc.Leaf{Title: href, Ref: toc.ParseRef(href)} }

	tests := []struct {
		name string
		node toc.Node
		want []string
	}{
		{
			name: "single document",
			node: leaf("text/a.xhtml#start"),
			want: []string{"text/a.xhtml#start"},
		},
		{
			name: "anchors of one document",
			node: toc.Section{Title: "A", Ref: toc.ParseRef("text/a.xhtml"), Nodes: []toc.Node{
				leaf("text/a.xhtml#s1"),
				leaf("text/a.xhtml#s2"),
			}},
			want: []string{"text/a.xhtml"},
		},
		{
			name: "jump back into earlier document",
			node: toc.Section{Title: "A", Ref: toc.ParseRef("text/a.xhtml#top"), Nodes: []toc.Node{
				leaf("text/b.xhtml"),
				leaf("text/a.xhtml#late"),
				leaf("text/c.xhtml#x"),
			}},
			want: []string{"text/a.xhtml#top", "text/b.xhtml", "text/c.xhtml#x"},
		},
		{
			name: "section without reference",
			node: toc.Section{Title: "Part", Nodes: []toc.Node{
				leaf("text/b.xhtml"),
				leaf("text/a.xhtml"),
			}},
			want: []string{"text/b.xhtml", "text/a.xhtml"},
		},
		{
			name: "anchor only reference",
			node: toc.Section{Title: "A", Ref: toc.ParseRef("#local"), Nodes: []toc.Node{leaf("text/a.xhtml")}},
			want: []string{"text/a.xhtml"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range chapterRefs(tt.node) {
				got = append(got, r.String())
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("chapterRefs() = %v, want %v", got, tt.want)
			}
		})
	}
}
