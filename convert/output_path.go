package convert

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"epdf/common"
	"epdf/config"
)

const outputExt = ".pdf"

// naming keeps what is needed to derive output file names.
type naming struct {
	doc    *config.DocumentConfig
	noDirs bool
	log    *zap.Logger
}

// buildOutputPath returns constructed output file path/name based on various
// input parameters. It uses either default naming scheme or user-defined
// template and takes into account whether to preserve source directory
// structure on the output. It cleans up path and if requested transliterates
// it.
func (n naming) buildOutputPath(b Book, rel, dst string, strategy common.Strategy) string {
	outDir := n.determineOutputDir(rel, dst)
	defaultFile := n.buildDefaultFileName(rel)

	if n.doc.OutputNameTemplate == "" {
		return filepath.Join(outDir, defaultFile)
	}

	expandedName := n.expandOutputNameTemplate(b, rel, strategy)
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return filepath.Join(outDir, defaultFile)
	}

	if p := n.assemblePathWithSubdirs(outDir, expandedName); p != outDir {
		return p
	}
	return filepath.Join(outDir, defaultFile)
}

func (n naming) determineOutputDir(rel, dst string) string {
	if n.noDirs {
		return dst
	}
	return filepath.Join(dst, filepath.Dir(rel))
}

func (n naming) buildDefaultFileName(rel string) string {
	baseName := n.cleanPathSegment(strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)))
	if baseName == "" {
		baseName = "book"
	}
	return baseName + outputExt
}

func (n naming) expandOutputNameTemplate(b Book, rel string, strategy common.Strategy) string {
	expandedName, err := expandTemplate(b, config.OutputNameTemplateFieldName, n.doc.OutputNameTemplate, rel, strategy)
	if err != nil {
		n.log.Warn("Unable to prepare output filename", zap.Error(err))
		return ""
	}
	return filepath.FromSlash(expandedName)
}

// assemblePathWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a full output path,
// cleaning and transliterating segments as needed
func (n naming) assemblePathWithSubdirs(outDir, expandedName string) string {
	pathSegments := splitAndCleanPath(expandedName)

	dirParts := make([]string, 0, len(pathSegments)+1)
	dirParts = append(dirParts, outDir)
	for _, segment := range pathSegments {
		if s := n.cleanPathSegment(segment); s != "" && s != "." && s != ".." {
			dirParts = append(dirParts, s)
		}
	}
	if len(dirParts) == 1 {
		return outDir
	}
	dirParts[len(dirParts)-1] += outputExt
	return filepath.Join(dirParts...)
}

func splitAndCleanPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		segments = slices.Insert(segments, 0, tail)
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
	}

	return segments
}

func (n naming) cleanPathSegment(segment string) string {
	if n.doc.FileNameTransliterate {
		segment = config.Transliterate(segment)
	}
	return config.SanitizeFileName(segment)
}

// volumesDir returns directory volumes of output are written to.
func (n naming) volumesDir(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + n.doc.VolumesSuffix
}

// mergedPath returns path of the document merged from volumes.
func (n naming) mergedPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + n.doc.MergedSuffix + outputExt
}
