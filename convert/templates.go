package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"epdf/common"
	"epdf/config"
)

// Book is what output naming needs to know about the source.
type Book interface {
	Title() string
	Authors() []string
	Language() string
}

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Title      string
	Authors    []string
	Author     string
	Language   string
	SourceFile string
	Strategy   string
}

func buildValues(b Book, name config.TemplateFieldName, src string, strategy common.Strategy) Values {
	v := Values{
		Context:    string(name),
		Title:      strings.TrimSpace(b.Title()),
		Authors:    b.Authors(),
		Language:   b.Language(),
		SourceFile: strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		Strategy:   strategy.String(),
	}
	if len(v.Authors) > 0 {
		v.Author = v.Authors[0]
	}
	return v
}

func expandTemplate(b Book, name config.TemplateFieldName, field, src string, strategy common.Strategy) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, buildValues(b, name, src, strategy)); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
