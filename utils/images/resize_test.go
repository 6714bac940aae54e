package images

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDownscale(t *testing.T) {
	data := testPNG(t, 200, 100)

	tests := []struct {
		name       string
		maxW, maxH int
		resized    bool
		w, h       int
	}{
		{"no limits", 0, 0, false, 200, 100},
		{"fits", 400, 400, false, 200, 100},
		{"width", 100, 0, true, 100, 50},
		{"height", 0, 25, true, 50, 25},
		{"box", 80, 80, true, 80, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, resized, err := Downscale(data, tt.maxW, tt.maxH, 80)
			if err != nil {
				t.Fatalf("Downscale() error = %v", err)
			}
			if resized != tt.resized {
				t.Fatalf("resized = %v, want %v", resized, tt.resized)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("result is not an image: %v", err)
			}
			if format != "png" {
				t.Errorf("format = %s, want png", format)
			}
			if cfg.Width != tt.w || cfg.Height != tt.h {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.w, tt.h)
			}
		})
	}
}

func TestDownscale_BMP(t *testing.T) {
	img, _, err := image.Decode(bytes.NewReader(testPNG(t, 120, 60)))
	if err != nil {
		t.Fatal(err)
	}
	buf := new(bytes.Buffer)
	if err := bmp.Encode(buf, img); err != nil {
		t.Fatal(err)
	}

	out, resized, err := Downscale(buf.Bytes(), 60, 0, 80)
	if err != nil {
		t.Fatalf("Downscale() error = %v", err)
	}
	if !resized {
		t.Fatal("expected image to be resized")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("result is not an image: %v", err)
	}
	if format != "bmp" || cfg.Width != 60 || cfg.Height != 30 {
		t.Errorf("result = %s %dx%d, want bmp 60x30", format, cfg.Width, cfg.Height)
	}
}

func TestDownscale_WebP(t *testing.T) {
	// 1x1 lossless webp
	data, err := base64.StdEncoding.DecodeString("UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA==")
	if err != nil {
		t.Fatal(err)
	}
	out, resized, err := Downscale(data, 10, 10, 80)
	if err != nil {
		t.Fatalf("Downscale() error = %v", err)
	}
	if resized || !bytes.Equal(out, data) {
		t.Error("image fitting the box must be returned as is")
	}
}

func TestDownscale_NotImage(t *testing.T) {
	if _, _, err := Downscale([]byte("nope"), 10, 10, 80); err == nil {
		t.Error("expected error for invalid image")
	}
}

func TestEncodePNG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"></svg>`)
	img, err := RasterizeSVG(svg, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil || format != "png" {
		t.Errorf("DecodeConfig() = %s, %v", format, err)
	}
}
