package framing

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/gogpu/framing/gpubuf"
)

// LengthMismatchError is returned by NewBuffer when the buffer does not hold
// exactly width*height elements. Expected is -1 when a dimension is
// negative or width*height does not fit in an int.
type LengthMismatchError struct {
	Width    int
	Height   int
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	if e.Expected < 0 {
		return fmt.Sprintf("framing: %dx%d is not a valid frame size, the buffer had %d pixels", e.Width, e.Height, e.Actual)
	}
	return fmt.Sprintf("framing: the buffer had to have %d pixels, but had %d pixels", e.Expected, e.Actual)
}

// pixelCount returns width*height, or -1 if either is negative or the
// product overflows.
func pixelCount(width, height int) int {
	if width < 0 || height < 0 {
		return -1
	}
	hi, lo := bits.Mul(uint(width), uint(height))
	if hi != 0 || lo > math.MaxInt {
		return -1
	}
	return int(lo) //nolint:gosec // G115: checked against MaxInt
}

// Buffer wraps a linear GPU buffer so it can be used as a frame.
//
// The shape is fixed at construction; Buffer itself holds no pixels and no
// lock. Views obtained from Read and Write hold the buffer's lock until they
// are released.
type Buffer[T any] struct {
	buf    *gpubuf.Buffer[T]
	width  int
	height int
}

// NewBuffer wraps buf as a width × height frame. buf must hold exactly
// width*height elements, otherwise a *LengthMismatchError is returned.
func NewBuffer[T any](buf *gpubuf.Buffer[T], width, height int) (*Buffer[T], error) {
	expected := pixelCount(width, height)
	actual := buf.Len()
	if expected < 0 || expected != actual {
		return nil, &LengthMismatchError{Width: width, Height: height, Expected: expected, Actual: actual}
	}
	return &Buffer[T]{buf: buf, width: width, height: height}, nil
}

// Width returns the width in pixels.
func (b *Buffer[T]) Width() int { return b.width }

// Height returns the height in pixels.
func (b *Buffer[T]) Height() int { return b.height }

// Underlying returns the wrapped buffer.
func (b *Buffer[T]) Underlying() *gpubuf.Buffer[T] { return b.buf }

// Read locks the buffer for reading and returns a read-only frame.
// Lock errors from gpubuf are returned unchanged.
func (b *Buffer[T]) Read() (*Reader[T], error) {
	g, err := b.buf.ReadLock()
	if err != nil {
		return nil, err
	}
	return &Reader[T]{guard: g, pixels: g.Elements(), width: b.width, height: b.height}, nil
}

// Write locks the buffer exclusively and returns a mutable frame.
// Lock errors from gpubuf are returned unchanged.
func (b *Buffer[T]) Write() (*Writer[T], error) {
	g, err := b.buf.WriteLock()
	if err != nil {
		return nil, err
	}
	return &Writer[T]{guard: g, pixels: g.Elements(), width: b.width, height: b.height}, nil
}

// Reader is a read-only frame over a locked buffer.
type Reader[T any] struct {
	guard  *gpubuf.ReadGuard[T]
	pixels []T
	width  int
	height int
}

func (r *Reader[T]) Width() int  { return r.width }
func (r *Reader[T]) Height() int { return r.height }

// Pixel returns the pixel at (x, y). See Frame for the precondition.
func (r *Reader[T]) Pixel(x, y int) T { return r.pixels[y*r.width+x] }

// Pixels returns the pixels as a flat row-major slice. It must not be
// modified or used after Release.
func (r *Reader[T]) Pixels() []T { return r.pixels }

// Release unlocks the buffer. Release is idempotent.
func (r *Reader[T]) Release() {
	r.pixels = nil
	r.guard.Release()
}

// Writer is an exclusive, mutable frame over a locked buffer. Changes reach
// the GPU when the writer is released.
type Writer[T any] struct {
	guard  *gpubuf.WriteGuard[T]
	pixels []T
	width  int
	height int
}

func (w *Writer[T]) Width() int  { return w.width }
func (w *Writer[T]) Height() int { return w.height }

// Pixel returns the pixel at (x, y). See Frame for the precondition.
func (w *Writer[T]) Pixel(x, y int) T { return w.pixels[y*w.width+x] }

// Pixels returns the pixels as a flat, mutable row-major slice. It must not
// be used after Release.
func (w *Writer[T]) Pixels() []T { return w.pixels }

// Release uploads the changes and unlocks the buffer. The buffer is
// unlocked even when the upload fails; the upload error is returned.
// Release is idempotent.
func (w *Writer[T]) Release() error {
	w.pixels = nil
	return w.guard.Release()
}

var (
	_ Frame[int] = (*Reader[int])(nil)
	_ Frame[int] = (*Writer[int])(nil)
)
