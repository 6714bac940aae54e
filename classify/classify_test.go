package classify

import (
	"strings"
	"testing"

	"epdf/common"
	"epdf/toc"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		chapters   int
		files      int
		monolithic bool
		density    float64
	}{
		{"sixty chapters in two files", 60, 2, true, 30},
		{"one chapter per file", 10, 10, false, 1},
		{"exactly threshold", 25, 5, false, 5},
		{"above threshold", 26, 5, true, 5.2},
		{"many chapters few files", 51, 4, true, 12.75},
		{"no files", 3, 0, false, 3},
		{"empty", 0, 0, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Classify(tt.chapters, tt.files)
			if r.IsMonolithic != tt.monolithic {
				t.Errorf("IsMonolithic = %v, want %v", r.IsMonolithic, tt.monolithic)
			}
			if r.Density != tt.density {
				t.Errorf("Density = %v, want %v", r.Density, tt.density)
			}
		})
	}
}

func TestClassify_MonotonicInChapters(t *testing.T) {
	for files := 0; files <= 20; files++ {
		seen := false
		for chapters := 0; chapters <= 200; chapters++ {
			r := Classify(chapters, files)
			if seen && !r.IsMonolithic {
				t.Fatalf("files=%d: monolithic at fewer chapters but not at %d", files, chapters)
			}
			seen = seen || r.IsMonolithic
		}
	}
}

func TestResult_Strategy(t *testing.T) {
	mono := Classify(60, 2)
	for _, s := range []common.Strategy{common.StrategyAuto, common.StrategySplit, common.StrategySingle} {
		if got := mono.Strategy(s); got != common.StrategySingle {
			t.Errorf("monolithic Strategy(%v) = %v, want single", s, got)
		}
	}
	regular := Classify(3, 3)
	for _, s := range []common.Strategy{common.StrategyAuto, common.StrategySplit, common.StrategySingle} {
		if got := regular.Strategy(s); got != s {
			t.Errorf("regular Strategy(%v) = %v", s, got)
		}
	}
}

func TestClassifyTOC(t *testing.T) {
	var nodes []toc.Node
	for i := 0; i < 60; i++ {
		file := "a.xhtml"
		if i%2 == 1 {
			file = "b.xhtml"
		}
		nodes = append(nodes, toc.Leaf{Title: "c", Ref: toc.Ref{Href: file, Anchor: "x"}})
	}
	r := ClassifyTOC(nodes)
	if r.Chapters != 60 || r.Files != 2 || !r.IsMonolithic {
		t.Errorf("ClassifyTOC() = %+v", r)
	}
}

func TestResult_Report(t *testing.T) {
	rep := Classify(60, 2).Report()
	for _, want := range []string{"60", "Physical files: 2", "30.00", "monolithic"} {
		if !strings.Contains(rep, want) {
			t.Errorf("Report() missing %q:\n%s", want, rep)
		}
	}
}
