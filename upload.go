package framing

import (
	"fmt"

	"github.com/gogpu/framing/device"
	"github.com/gogpu/framing/format"
)

// Upload creates a sampled 2D image from frame.
//
// The pixels are converted to the wire type of f and handed to the device
// lazily in row-major order. Upload returns once the transfer is submitted;
// wait on the returned Future before sampling or reading the image. Errors
// from the device are returned unchanged.
func Upload[W any, P format.Wire[W]](q *device.Queue, f format.Format[W], frame Frame[P]) (*device.Image, *device.Future, error) {
	dims := device.Dimensions{Width: frame.Width(), Height: frame.Height(), Layers: 1}
	Logger().Debug("framing: upload", "dims", dims.String(), "format", f.String())
	return device.CreateImage(q, WirePixels[W](frame), dims, f)
}

// UploadArray creates a layered 2D image with one layer per frame, in
// order. All frames must have the size of frames[0]; otherwise an error
// matching device.ErrUnsupportedUsage is returned before any pixel is read
// or any GPU resource is created.
//
// UploadArray panics if frames is empty.
func UploadArray[W any, P format.Wire[W]](q *device.Queue, f format.Format[W], frames []Frame[P]) (*device.Image, *device.Future, error) {
	if len(frames) == 0 {
		panic("framing: UploadArray called with no frames")
	}

	w, h := frames[0].Width(), frames[0].Height()
	for i, fr := range frames[1:] {
		if fr.Width() != w || fr.Height() != h {
			return nil, nil, fmt.Errorf("%w: frame %d is %dx%d, frame 0 is %dx%d",
				device.ErrUnsupportedUsage, i+1, fr.Width(), fr.Height(), w, h)
		}
	}

	texels := func(yield func(W) bool) {
		for _, fr := range frames {
			for p := range WirePixels[W](fr) {
				if !yield(p) {
					return
				}
			}
		}
	}

	dims := device.Dimensions{Width: w, Height: h, Layers: len(frames)}
	Logger().Debug("framing: upload array", "dims", dims.String(), "format", f.String())
	return device.CreateImageArray(q, texels, dims, f)
}
