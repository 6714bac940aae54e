// Package archive builds Walk abstraction on top of "archive/zip" and knows
// how to deal with slightly broken archives produced by e-book tools.
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/encoding"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The name argument is entry name decoded according to
// requested code page. If an error is returned, processing stops.
type WalkFunc func(name string, file *zip.File) error

// Walk walks all files in the already opened archive which names start with
// prefix, calling walkFn for each item. Archives having entries with path
// traversal components ("..") or absolute paths are rejected as a whole.
// When cp is not nil it is used to decode entry names not marked as UTF-8.
func Walk(r *zip.Reader, prefix string, cp encoding.Encoding, walkFn WalkFunc) error {
	for _, f := range r.File {
		name := EntryName(f, cp)
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, prefix) {
			if err := walkFn(name, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// WalkFile opens archive on disk and walks it.
func WalkFile(archive, prefix string, cp encoding.Encoding, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()
	return Walk(&r.Reader, prefix, cp, walkFn)
}

// EntryName returns entry name. Since zip "standard" does not define file
// name encoding old archives may need archaic code page to be forced.
func EntryName(f *zip.File, cp encoding.Encoding) string {
	name := f.Name
	if cp == nil || !f.NonUTF8 {
		return name
	}
	if n, err := cp.NewDecoder().String(name); err == nil {
		return n
	}
	return name
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) || (len(name) > 1 && name[1] == ':') {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}
