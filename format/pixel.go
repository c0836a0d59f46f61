package format

import (
	"fmt"
	"image/color"
)

// Wire is implemented by pixel types that can be converted into the wire
// representation W accepted by a [Format].
type Wire[W any] interface {
	Wire() W
}

// RGBA8 is a non-premultiplied 8-bit RGBA pixel.
type RGBA8 struct {
	R, G, B, A uint8
}

// Wire returns the pixel as [4]uint8 in R, G, B, A order.
func (p RGBA8) Wire() [4]uint8 { return [4]uint8{p.R, p.G, p.B, p.A} }

// RGBA implements color.Color.
func (p RGBA8) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A}.RGBA()
}

func (p RGBA8) String() string {
	return fmt.Sprintf("RGBA8(%d, %d, %d, %d)", p.R, p.G, p.B, p.A)
}

// RGBA8FromColor converts any color.Color to a non-premultiplied RGBA8.
func RGBA8FromColor(c color.Color) RGBA8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBA8{R: n.R, G: n.G, B: n.B, A: n.A}
}

// BGRA8 is a pixel stored in B, G, R, A memory order, as read back from
// BGRA surfaces.
type BGRA8 struct {
	B, G, R, A uint8
}

// Wire returns the pixel as [4]uint8 in R, G, B, A order.
func (p BGRA8) Wire() [4]uint8 { return [4]uint8{p.R, p.G, p.B, p.A} }

// RGBA implements color.Color.
func (p BGRA8) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A}.RGBA()
}

// Gray8 is an 8-bit single-channel pixel.
type Gray8 struct {
	Y uint8
}

// Wire returns the luminance byte.
func (p Gray8) Wire() uint8 { return p.Y }

// RGBA implements color.Color.
func (p Gray8) RGBA() (r, g, b, a uint32) {
	return color.Gray{Y: p.Y}.RGBA()
}
