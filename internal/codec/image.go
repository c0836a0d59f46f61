// Package codec decodes image files into frames and encodes flat pixel
// slices back to files.
package codec

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/framing/format"
)

// Image is a decoded, non-premultiplied RGBA8 picture stored row-major.
type Image struct {
	width  int
	height int
	pix    []format.RGBA8
}

// NewImage returns a transparent black image of the given size.
// Non-positive sizes produce an empty image.
func NewImage(width, height int) *Image {
	if width <= 0 || height <= 0 {
		return &Image{}
	}
	return &Image{width: width, height: height, pix: make([]format.RGBA8, width*height)}
}

func (m *Image) Width() int  { return m.width }
func (m *Image) Height() int { return m.height }

// Pixel returns the pixel at (x, y).
func (m *Image) Pixel(x, y int) format.RGBA8 { return m.pix[y*m.width+x] }

// SetPixel sets the pixel at (x, y).
func (m *Image) SetPixel(x, y int, p format.RGBA8) { m.pix[y*m.width+x] = p }

// Pixels returns the backing row-major slice.
func (m *Image) Pixels() []format.RGBA8 { return m.pix }

// FromStdImage converts img to an Image. *image.RGBA and *image.NRGBA are
// copied directly; anything else is converted through x/image/draw.
func FromStdImage(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	if len(out.pix) == 0 {
		return out
	}

	switch src := img.(type) {
	case *image.NRGBA:
		copyRows(out, src.Pix, src.Stride)
	case *image.RGBA:
		// Premultiplied, so opaque pixels copy as-is and the rest are
		// converted one by one.
		for y := range out.height {
			row := src.Pix[y*src.Stride:]
			for x := range out.width {
				o := x * 4
				c := color.RGBA{R: row[o], G: row[o+1], B: row[o+2], A: row[o+3]}
				if c.A == 0xff {
					out.pix[y*out.width+x] = format.RGBA8{R: c.R, G: c.G, B: c.B, A: c.A}
					continue
				}
				out.pix[y*out.width+x] = format.RGBA8FromColor(c)
			}
		}
	default:
		nrgba := image.NewNRGBA(image.Rect(0, 0, out.width, out.height))
		draw.Copy(nrgba, image.Point{}, img, b, draw.Src, nil)
		copyRows(out, nrgba.Pix, nrgba.Stride)
	}
	return out
}

func copyRows(dst *Image, pix []uint8, stride int) {
	for y := range dst.height {
		row := pix[y*stride:]
		for x := range dst.width {
			o := x * 4
			dst.pix[y*dst.width+x] = format.RGBA8{R: row[o], G: row[o+1], B: row[o+2], A: row[o+3]}
		}
	}
}

// ToNRGBA converts a row-major pixel slice of the given size to a standard
// library image.
func ToNRGBA(width, height int, pixels []format.RGBA8) *image.NRGBA {
	nrgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, p := range pixels[:width*height] {
		o := i * 4
		nrgba.Pix[o] = p.R
		nrgba.Pix[o+1] = p.G
		nrgba.Pix[o+2] = p.B
		nrgba.Pix[o+3] = p.A
	}
	return nrgba
}
