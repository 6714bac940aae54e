package convert

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// header is enough for any magic we check.
const header = 262

const (
	// offsets in zip local file header
	localNameLen  = 26
	localExtraLen = 28
	localName     = 30

	epubMimetype = "application/epub+zip"
)

// isBookFile reports whether path looks like ePub container: zip with
// stored "mimetype" entry first or just zip with .epub extension.
func isBookFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, header)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	buf = buf[:n]

	if !filetype.IsType(buf, matchers.TypeZip) {
		return false, nil
	}
	return hasMimetypeEntry(buf) || strings.EqualFold(filepath.Ext(path), ".epub"), nil
}

// hasMimetypeEntry checks that the first local header of zip is "mimetype"
// entry holding ePub media type.
func hasMimetypeEntry(buf []byte) bool {
	if len(buf) < localName {
		return false
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[localNameLen:]))
	extraLen := int(binary.LittleEndian.Uint16(buf[localExtraLen:]))
	data := localName + nameLen + extraLen
	if len(buf) < data+len(epubMimetype) {
		return false
	}
	return string(buf[localName:localName+nameLen]) == "mimetype" &&
		bytes.HasPrefix(buf[data:], []byte(epubMimetype))
}
