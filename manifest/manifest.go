// Package manifest extracts embedded resources of a book into job directory
// and resolves broken resource references against them.
package manifest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"epdf/common"
	"epdf/utils/images"
)

// Source enumerates embedded resources, name is a slash separated path
// inside the container.
type Source interface {
	Resources(fn func(name string, r io.Reader) error) error
}

// Manifest maps resource basenames to extracted files. It is built once per
// job and owned by it, extraction root is removed by the job.
type Manifest struct {
	root    string
	entries map[string]string
}

type options struct {
	log       *zap.Logger
	maxW      int
	maxH      int
	quality   int
	rasterize bool
}

// Option configures Build.
type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithDownscale limits raster image dimensions, zero means no limit.
func WithDownscale(maxW, maxH, quality int) Option {
	return func(o *options) { o.maxW, o.maxH, o.quality = maxW, maxH, quality }
}

// WithRasterizeSVG replaces SVG images with PNG rasterization, manifest keys
// stay original basenames.
func WithRasterizeSVG(on bool) Option {
	return func(o *options) { o.rasterize = on }
}

// New returns empty manifest for extraction root.
func New(root string) *Manifest {
	return &Manifest{root: root, entries: make(map[string]string)}
}

// Build extracts every resource of src under root preserving its path and
// indexes it by basename. Later resource with the same basename replaces
// earlier one. Cancellation is checked before every extraction.
func Build(ctx context.Context, src Source, root string, opts ...Option) (*Manifest, error) {
	o := &options{log: zap.NewNop(), quality: 90}
	for _, opt := range opts {
		opt(o)
	}

	m := New(root)
	err := src.Resources(func(name string, r io.Reader) error {
		if err := common.CheckCancelled(ctx); err != nil {
			return err
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return common.IOError(err, "unable to read resource %s", name)
		}
		dst, err := m.extract(name, o.transform(name, data))
		if err != nil {
			return err
		}
		m.Add(name, dst)
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.log.Debug("Resource manifest built", zap.String("root", root), zap.Int("entries", len(m.entries)))
	return m, nil
}

// transform validates resource and applies configured image processing. It
// returns name the data should be stored under and the data itself.
func (o *options) transform(name string, data []byte) resource {
	isSVG := strings.EqualFold(path.Ext(name), ".svg")
	log := o.log.With(zap.String("resource", name))

	switch {
	case isSVG:
		if !o.rasterize {
			break
		}
		img, err := images.RasterizeSVG(data, o.maxW, o.maxH)
		if err != nil {
			log.Warn("Unable to rasterize SVG, keeping original", zap.Error(err))
			break
		}
		png, err := images.EncodePNG(img)
		if err != nil {
			log.Warn("Unable to encode rasterized SVG, keeping original", zap.Error(err))
			break
		}
		return resource{name: strings.TrimSuffix(name, path.Ext(name)) + ".png", data: png}
	case !filetype.IsImage(data):
		log.Warn("Resource does not look like an image")
	default:
		out, resized, err := images.Downscale(data, o.maxW, o.maxH, o.quality)
		if err != nil {
			log.Warn("Unable to downscale image, keeping original", zap.Error(err))
			break
		}
		if resized {
			log.Debug("Image downscaled", zap.Int("from", len(data)), zap.Int("to", len(out)))
			data = out
		}
	}
	return resource{name: name, data: data}
}

type resource struct {
	name string
	data []byte
}

func (m *Manifest) extract(name string, res resource) (string, error) {
	dst := filepath.Join(m.root, filepath.FromSlash(res.name))
	if rel, err := filepath.Rel(m.root, dst); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: resource %s escapes extraction root", common.ErrIO, name)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", common.IOError(err, "unable to create directory for %s", name)
	}
	if err := os.WriteFile(dst, res.data, 0644); err != nil {
		return "", common.IOError(err, "unable to extract %s", name)
	}
	return dst, nil
}

// Add indexes extracted file under basename of name, replacing previous entry.
func (m *Manifest) Add(name, extracted string) {
	m.entries[baseName(name)] = extracted
}

// Root returns extraction root.
func (m *Manifest) Root() string { return m.root }

// Len returns number of indexed basenames.
func (m *Manifest) Len() int { return len(m.entries) }

// Resolve finds extracted file for the original reference. Lookup order:
// basename in the manifest, literal relative path under root, basename under
// root. First hit wins.
func (m *Manifest) Resolve(original string) (string, bool) {
	ref := cleanRef(original)
	if ref == "" {
		return "", false
	}
	base := baseName(ref)
	if p, ok := m.entries[base]; ok {
		return p, true
	}
	if m.root == "" {
		return "", false
	}
	if rel := path.Clean(ref); !strings.HasPrefix(rel, "../") && rel != ".." && !path.IsAbs(rel) {
		if p := filepath.Join(m.root, filepath.FromSlash(rel)); isFile(p) {
			return p, true
		}
	}
	if p := filepath.Join(m.root, base); isFile(p) {
		return p, true
	}
	return "", false
}

func cleanRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}
	return strings.ReplaceAll(ref, `\`, "/")
}

func baseName(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
