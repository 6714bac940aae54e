package pdftools

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"epdf/paged"
)

// isPDF checks file magic.
func isPDF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return filetype.IsType(buf[:n], matchers.TypePdf), nil
}

// collectInputs expands directories into PDF files they contain (not
// recursively) in natural order. Files given explicitly keep command line
// order.
func collectInputs(args []string, log *zap.Logger) ([]string, error) {
	var out []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input was not found (%s): %w", arg, err)
		}
		if !fi.IsDir() {
			out = append(out, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("unable to read directory (%s): %w", arg, err)
		}
		var files []string
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			p := filepath.Join(arg, e.Name())
			ok, err := isPDF(p)
			if err != nil || !ok {
				log.Debug("Skipping file, not recognized as PDF", zap.String("file", p), zap.Error(err))
				continue
			}
			files = append(files, p)
		}
		sort.Sort(natural.StringSlice(files))
		out = append(out, files...)
	}
	return out, nil
}

// parseSelection parses one based list of outline entries: "1,3,5-7".
// Returned indexes are zero based.
func parseSelection(list string) ([]int, error) {
	var out []int
	for part := range strings.SplitSeq(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil || a < 1 {
			return nil, fmt.Errorf("bad chapter number %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(to)); err != nil || b < a {
				return nil, fmt.Errorf("bad chapter range %q", part)
			}
		}
		for i := a; i <= b; i++ {
			out = append(out, i-1)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no chapters selected in %q", list)
	}
	return out, nil
}

// topLevel returns indexes of top level entries of flattened outline.
func topLevel(entries []paged.Entry) []int {
	var out []int
	for i, e := range entries {
		if e.Depth == 0 {
			out = append(out, i)
		}
	}
	return out
}
