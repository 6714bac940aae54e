// Package classify detects books whose logical table of contents is much
// finer than physical file layout. Such books render poorly when split by
// files and are converted as a single document.
package classify

import (
	"fmt"
	"strings"

	"epdf/common"
	"epdf/toc"
)

const (
	// DensityThreshold is chapters per file ratio above which book is
	// considered monolithic.
	DensityThreshold = 5.0
	// ManyChapters and FewFiles define second monolithic condition: a lot of
	// chapters packed into very few files.
	ManyChapters = 50
	FewFiles     = 5
)

// Result of structure classification.
type Result struct {
	IsMonolithic bool
	Density      float64
	Chapters     int
	Files        int
}

// Classify scores ratio of logical chapters to distinct physical files.
func Classify(chapters, files int) Result {
	density := float64(chapters) / float64(max(files, 1))
	return Result{
		IsMonolithic: density > DensityThreshold || (chapters > ManyChapters && files < FewFiles),
		Density:      density,
		Chapters:     chapters,
		Files:        files,
	}
}

// ClassifyTOC counts top level chapters and files they reference.
func ClassifyTOC(nodes []toc.Node) Result {
	return Classify(len(nodes), toc.PhysicalFiles(nodes))
}

// Strategy returns strategy to be used for requested one. Monolithic books
// are always converted as single document, explicit single is never
// changed.
func (r Result) Strategy(requested common.Strategy) common.Strategy {
	if r.IsMonolithic {
		return common.StrategySingle
	}
	return requested
}

// Report renders human readable analysis.
func (r Result) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Logical chapters: %d\n", r.Chapters)
	fmt.Fprintf(&sb, "Physical files: %d\n", r.Files)
	fmt.Fprintf(&sb, "Density: %.2f\n", r.Density)
	if r.IsMonolithic {
		sb.WriteString("Verdict: monolithic structure, single document conversion recommended")
	} else {
		sb.WriteString("Verdict: regular structure, splitting into volumes is possible")
	}
	return sb.String()
}
