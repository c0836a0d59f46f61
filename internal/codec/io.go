package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Register the extra decoders with image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/framing/format"
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when saving to an extension with no
	// encoder.
	ErrUnsupportedFormat = errors.New("codec: unsupported format")

	// ErrEmptyData is returned when decoding an empty byte slice.
	ErrEmptyData = errors.New("codec: empty data")

	// ErrPixelCount is returned when a pixel slice is shorter than
	// width*height.
	ErrPixelCount = errors.New("codec: not enough pixels")
)

// Decode decodes an image from r, auto-detecting PNG, JPEG, GIF, BMP, TIFF
// and WebP.
func Decode(r io.Reader) (*Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return FromStdImage(img), nil
}

// DecodeBytes decodes an image held in memory.
func DecodeBytes(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	return Decode(bytes.NewReader(data))
}

// DecodeFile decodes the image file at path.
func DecodeFile(path string) (*Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("codec: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// EncodePNG writes width × height row-major pixels to w as PNG.
func EncodePNG(w io.Writer, width, height int, pixels []format.RGBA8) error {
	if err := checkCount(width, height, pixels); err != nil {
		return err
	}
	if err := png.Encode(w, ToNRGBA(width, height, pixels)); err != nil {
		return fmt.Errorf("codec: encode PNG: %w", err)
	}
	return nil
}

// EncodeJPEG writes width × height row-major pixels to w as JPEG with the
// given quality, clamped to 1-100.
func EncodeJPEG(w io.Writer, width, height int, pixels []format.RGBA8, quality int) error {
	if err := checkCount(width, height, pixels); err != nil {
		return err
	}
	quality = max(1, min(quality, 100))
	if err := jpeg.Encode(w, ToNRGBA(width, height, pixels), &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("codec: encode JPEG: %w", err)
	}
	return nil
}

// SaveFile encodes pixels to path, choosing PNG or JPEG from the extension.
func SaveFile(path string, width, height int, pixels []format.RGBA8) error {
	var encode func(io.Writer) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		encode = func(w io.Writer) error { return EncodePNG(w, width, height, pixels) }
	case ".jpg", ".jpeg":
		encode = func(w io.Writer) error { return EncodeJPEG(w, width, height, pixels, 90) }
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("codec: create file: %w", err)
	}
	if err := encode(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func checkCount(width, height int, pixels []format.RGBA8) error {
	if width < 0 || height < 0 || len(pixels) < width*height {
		return fmt.Errorf("%w: %dx%d needs %d, got %d", ErrPixelCount, width, height, width*height, len(pixels))
	}
	return nil
}
