package images

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Downscale decodes raster image and, when it does not fit into maxW x maxH
// box, resizes it keeping aspect ratio and encodes it back in the original
// format, formats without encoder (webp) are written as PNG. Zero limit
// means no limit in that direction. When image fits data
// is returned as is and the second value is false.
func Downscale(data []byte, maxW, maxH, quality int) ([]byte, bool, error) {
	if maxW <= 0 && maxH <= 0 {
		return data, false, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("unable to decode image config: %w", err)
	}
	if (maxW <= 0 || cfg.Width <= maxW) && (maxH <= 0 || cfg.Height <= maxH) {
		return data, false, nil
	}

	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		f = imaging.PNG
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("unable to decode image: %w", err)
	}

	w, h := fitBox(cfg.Width, cfg.Height, limit(maxW, cfg.Width), limit(maxH, cfg.Height))
	resized := imaging.Resize(img, w, h, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, resized, f, imaging.JPEGQuality(quality)); err != nil {
		return nil, false, fmt.Errorf("unable to encode image: %w", err)
	}
	return buf.Bytes(), true, nil
}

// EncodePNG encodes image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func limit(v, actual int) int {
	if v <= 0 || v > actual {
		return actual
	}
	return v
}
