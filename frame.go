package framing

import (
	"iter"

	"github.com/gogpu/framing/format"
)

// Frame is a width × height grid of pixels of type P.
//
// Pixel has an unchecked precondition: 0 <= x < Width() and
// 0 <= y < Height(). Frames are free to return anything for coordinates
// outside that range, so callers generate coordinates from Width and Height
// rather than checking them.
type Frame[P any] interface {
	Width() int
	Height() int
	Pixel(x, y int) P
}

// Pixels returns the pixels of frame in row-major order: element i is
// Pixel(i % w, i / w). The sequence is lazy and reads the frame as it is
// consumed, so the frame must stay valid until iteration ends.
func Pixels[P any](frame Frame[P]) iter.Seq[P] {
	w, h := frame.Width(), frame.Height()
	return func(yield func(P) bool) {
		if w <= 0 || h <= 0 {
			return
		}
		for i := range w * h {
			if !yield(frame.Pixel(i%w, i/w)) {
				return
			}
		}
	}
}

// WirePixels returns the pixels of frame in the same order as Pixels,
// converted to the wire representation W.
func WirePixels[W any, P format.Wire[W]](frame Frame[P]) iter.Seq[W] {
	return func(yield func(W) bool) {
		for p := range Pixels(frame) {
			if !yield(p.Wire()) {
				return
			}
		}
	}
}
