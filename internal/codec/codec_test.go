package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"slices"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/gogpu/framing/format"
)

func testPixels() []format.RGBA8 {
	return []format.RGBA8{
		{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255},
		{R: 10, G: 20, B: 30, A: 128}, {A: 0}, {R: 1, G: 2, B: 3, A: 255},
	}
}

func TestPNGRoundTrip(t *testing.T) {
	want := testPixels()
	var buf bytes.Buffer
	if err := EncodePNG(&buf, 3, 2, want); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	img, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if img.Width() != 3 || img.Height() != 2 {
		t.Fatalf("size = %dx%d, want 3x2", img.Width(), img.Height())
	}
	if !slices.Equal(img.Pixels(), want) {
		t.Errorf("pixels = %v, want %v", img.Pixels(), want)
	}
	if got := img.Pixel(0, 1); got != want[3] {
		t.Errorf("Pixel(0, 1) = %v, want %v", got, want[3])
	}
}

func TestBMPDecode(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, src); err != nil {
		t.Fatalf("bmp.Encode failed: %v", err)
	}
	img, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got, want := img.Pixel(0, 0), (format.RGBA8{R: 200, G: 100, B: 50, A: 255}); got != want {
		t.Errorf("Pixel(0, 0) = %v, want %v", got, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := DecodeBytes(nil); !errors.Is(err, ErrEmptyData) {
		t.Errorf("DecodeBytes(nil) error = %v, want ErrEmptyData", err)
	}
	if _, err := DecodeBytes([]byte("not an image")); err == nil {
		t.Error("DecodeBytes(garbage) should fail")
	}
	if _, err := DecodeFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("DecodeFile(missing) should fail")
	}
}

func TestFromStdImage(t *testing.T) {
	t.Run("gray", func(t *testing.T) {
		g := image.NewGray(image.Rect(0, 0, 2, 2))
		g.SetGray(1, 1, color.Gray{Y: 77})
		img := FromStdImage(g)
		if got, want := img.Pixel(1, 1), (format.RGBA8{R: 77, G: 77, B: 77, A: 255}); got != want {
			t.Errorf("Pixel(1, 1) = %v, want %v", got, want)
		}
	})

	t.Run("premultiplied", func(t *testing.T) {
		m := image.NewRGBA(image.Rect(0, 0, 2, 1))
		m.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		m.SetRGBA(1, 0, color.RGBA{R: 64, A: 128})
		img := FromStdImage(m)
		if got := img.Pixel(0, 0); got != (format.RGBA8{R: 10, G: 20, B: 30, A: 255}) {
			t.Errorf("opaque pixel = %v", got)
		}
		if got := img.Pixel(1, 0); got.A != 128 || got.R < 126 || got.R > 128 {
			t.Errorf("translucent pixel = %v, want un-premultiplied red near 127", got)
		}
	})

	t.Run("sub-image", func(t *testing.T) {
		m := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		m.SetNRGBA(2, 2, color.NRGBA{G: 9, A: 255})
		img := FromStdImage(m.SubImage(image.Rect(2, 2, 4, 4)))
		if img.Width() != 2 || img.Height() != 2 {
			t.Fatalf("size = %dx%d, want 2x2", img.Width(), img.Height())
		}
		if got := img.Pixel(0, 0); got.G != 9 {
			t.Errorf("Pixel(0, 0) = %v, want G=9", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		img := FromStdImage(image.NewNRGBA(image.Rectangle{}))
		if img.Width() != 0 || len(img.Pixels()) != 0 {
			t.Errorf("empty image = %dx%d", img.Width(), img.Height())
		}
	})
}

func TestEncodeErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, 3, 3, testPixels()); !errors.Is(err, ErrPixelCount) {
		t.Errorf("EncodePNG short error = %v, want ErrPixelCount", err)
	}
	if err := EncodeJPEG(&buf, 3, 3, testPixels(), 80); !errors.Is(err, ErrPixelCount) {
		t.Errorf("EncodeJPEG short error = %v, want ErrPixelCount", err)
	}
}

func TestEncodeJPEGQualityClamp(t *testing.T) {
	for _, q := range []int{-5, 0, 50, 500} {
		var buf bytes.Buffer
		if err := EncodeJPEG(&buf, 3, 2, testPixels(), q); err != nil {
			t.Errorf("EncodeJPEG(quality=%d) failed: %v", q, err)
		}
		if buf.Len() == 0 {
			t.Errorf("EncodeJPEG(quality=%d) wrote nothing", q)
		}
	}
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "out.png")
	if err := SaveFile(path, 3, 2, testPixels()); err != nil {
		t.Fatalf("SaveFile(png) failed: %v", err)
	}
	img, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if !slices.Equal(img.Pixels(), testPixels()) {
		t.Errorf("saved pixels = %v", img.Pixels())
	}

	if err := SaveFile(filepath.Join(dir, "out.jpeg"), 3, 2, testPixels()); err != nil {
		t.Errorf("SaveFile(jpeg) failed: %v", err)
	}
	if err := SaveFile(filepath.Join(dir, "out.gif"), 3, 2, testPixels()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("SaveFile(gif) error = %v, want ErrUnsupportedFormat", err)
	}
}
