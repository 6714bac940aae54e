package convert

import (
	"strings"
	"testing"

	"epdf/common"
	"epdf/config"
)

func TestExpandTemplate(t *testing.T) {
	book := metaBook{title: "  Test Book ", authors: []string{"John Doe", "Jane Roe"}, lang: "en"}

	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{"title", "{{ .Title }}", "Test Book", false},
		{"first author", "{{ .Author }} - {{ .Title }}", "John Doe - Test Book", false},
		{"all authors", `{{ join ", " .Authors }}`, "John Doe, Jane Roe", false},
		{"source file", "{{ .SourceFile }}", "book", false},
		{"language and strategy", "{{ .Language }}-{{ .Strategy }}", "en-single", false},
		{"context", "{{ .Context }}", string(config.OutputNameTemplateFieldName), false},
		{"sprig function", "{{ .Title | upper }}", "TEST BOOK", false},
		{"parse error", "{{ .Title", "", true},
		{"unknown field", "{{ .Publisher }}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandTemplate(book, config.OutputNameTemplateFieldName, tt.template, "dir/book.epub", common.StrategySingle)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expandTemplate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("expandTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandTemplate_NoAuthors(t *testing.T) {
	got, err := expandTemplate(metaBook{title: "T"}, config.OutputNameTemplateFieldName, "{{ .Author }}{{ .Title }}", "b.epub", common.StrategyAuto)
	if err != nil {
		t.Fatalf("expandTemplate() error = %v", err)
	}
	if got != "T" {
		t.Errorf("expandTemplate() = %q", got)
	}
	if !strings.Contains(buildValues(metaBook{}, "x", "a/b.epub", common.StrategySplit).SourceFile, "b") {
		t.Error("SourceFile must be base name without extension")
	}
}
