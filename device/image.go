package device

import (
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framing/format"
	"github.com/gogpu/framing/internal/logging"
)

// DefaultImageUsage is the usage of images created from texels: sampled by
// shaders, written by the upload and readable for copies back to buffers.
const DefaultImageUsage = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc

// Dimensions is the size of a 2D image or 2D image array.
type Dimensions struct {
	Width  int
	Height int
	Layers int
}

// Texels returns the number of texels the dimensions cover.
func (d Dimensions) Texels() int {
	return d.Width * d.Height * d.Layers
}

func (d Dimensions) String() string {
	if d.Layers == 1 {
		return fmt.Sprintf("%dx%d", d.Width, d.Height)
	}
	return fmt.Sprintf("%dx%dx%d", d.Width, d.Height, d.Layers)
}

func (d Dimensions) extent() hal.Extent3D {
	//nolint:gosec // G115: dimensions are validated positive before use
	return hal.Extent3D{Width: uint32(d.Width), Height: uint32(d.Height), DepthOrArrayLayers: uint32(d.Layers)}
}

// Image is an immutable sampled GPU image, either a single 2D image or a
// layered 2D array.
type Image struct {
	device  hal.Device
	texture hal.Texture
	view    hal.TextureView

	dims      Dimensions
	format    gputypes.TextureFormat
	texelSize int
	label     string

	destroyed atomic.Bool
}

// Texture returns the HAL texture, or nil after Destroy.
func (im *Image) Texture() hal.Texture {
	if im.destroyed.Load() {
		return nil
	}
	return im.texture
}

// View returns the default view, or nil after Destroy. Arrays get a
// 2D-array view.
func (im *Image) View() hal.TextureView {
	if im.destroyed.Load() {
		return nil
	}
	return im.view
}

// Dimensions returns the image size.
func (im *Image) Dimensions() Dimensions { return im.dims }

// Format returns the GPU texture format.
func (im *Image) Format() gputypes.TextureFormat { return im.format }

// TexelSize returns the number of bytes per texel.
func (im *Image) TexelSize() int { return im.texelSize }

// Label returns the debug label.
func (im *Image) Label() string { return im.label }

// IsDestroyed reports whether Destroy has been called.
func (im *Image) IsDestroyed() bool { return im.destroyed.Load() }

// Destroy releases the texture and its view. The caller must make sure no
// GPU work still uses the image. Destroy is idempotent.
func (im *Image) Destroy() {
	if im.destroyed.Swap(true) {
		return
	}
	if im.view != nil {
		im.device.DestroyTextureView(im.view)
	}
	if im.texture != nil {
		im.device.DestroyTexture(im.texture)
	}
}

var imageSeq atomic.Uint64

// CreateImage creates a 2D image from texels produced in row-major order.
// dims.Layers must be 0 or 1.
//
// CreateImage returns once the upload has been handed to the queue. Wait on
// the returned Future before sampling or copying the image.
func CreateImage[W any](q *Queue, texels iter.Seq[W], dims Dimensions, f format.Format[W]) (*Image, *Future, error) {
	if dims.Layers == 0 {
		dims.Layers = 1
	}
	if dims.Layers != 1 {
		return nil, nil, fmt.Errorf("%w: %d layers for a 2D image", ErrUnsupportedUsage, dims.Layers)
	}
	return createImage(q, texels, dims, f, gputypes.TextureViewDimension2D)
}

// CreateImageArray creates a layered 2D image from texels produced
// layer by layer, each layer in row-major order.
func CreateImageArray[W any](q *Queue, texels iter.Seq[W], dims Dimensions, f format.Format[W]) (*Image, *Future, error) {
	if dims.Layers < 1 {
		return nil, nil, fmt.Errorf("%w: %d layers", ErrUnsupportedDimensions, dims.Layers)
	}
	return createImage(q, texels, dims, f, gputypes.TextureViewDimension2DArray)
}

func createImage[W any](q *Queue, texels iter.Seq[W], dims Dimensions, f format.Format[W], viewDim gputypes.TextureViewDimension) (*Image, *Future, error) {
	if q == nil {
		return nil, nil, ErrNilQueue
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedDimensions, dims)
	}
	limits := gputypes.DefaultLimits()
	if dims.Width > int(limits.MaxTextureDimension2D) || dims.Height > int(limits.MaxTextureDimension2D) ||
		dims.Layers > int(limits.MaxTextureArrayLayers) {
		return nil, nil, fmt.Errorf("%w: %s exceeds device limits", ErrUnsupportedDimensions, dims)
	}

	data, err := encodeTexels(texels, dims.Texels(), f)
	if err != nil {
		return nil, nil, err
	}

	label := fmt.Sprintf("%s_image_%d", q.label, imageSeq.Add(1))
	size := dims.extent()

	texture, err := q.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        f.TextureFormat(),
		Usage:         DefaultImageUsage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("device: create texture %s (%s, %s): %w", label, dims, f, err)
	}

	view, err := q.device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        f.TextureFormat(),
		Dimension:     viewDim,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		q.device.DestroyTexture(texture)
		return nil, nil, fmt.Errorf("device: create texture view %s: %w", label, err)
	}

	im := &Image{
		device:    q.device,
		texture:   texture,
		view:      view,
		dims:      dims,
		format:    f.TextureFormat(),
		texelSize: f.TexelSize(),
		label:     label,
	}

	// WriteTexture stages the texels and completes the transfer before it
	// returns, so the upload needs no submission of its own.
	//nolint:gosec // G115: dimensions are validated against the limits
	err = q.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(dims.Width * f.TexelSize()),
			RowsPerImage: uint32(dims.Height),
		},
		&size,
	)
	if err != nil {
		im.Destroy()
		return nil, nil, fmt.Errorf("device: write texture %s: %w", label, err)
	}

	fut, err := q.Submit(nil, label+"_upload")
	if err != nil {
		im.Destroy()
		return nil, nil, err
	}

	logging.Logger().Debug("device: image uploaded",
		"label", label, "dims", dims.String(), "format", f.String(), "bytes", len(data))
	return im, fut, nil
}

// encodeTexels drains texels into a tightly packed byte slice of exactly
// want texels. The sequence is stopped as soon as it overruns.
func encodeTexels[W any](texels iter.Seq[W], want int, f format.Format[W]) ([]byte, error) {
	size := f.TexelSize()
	data := make([]byte, want*size)

	n := 0
	overrun := false
	for w := range texels {
		if n == want {
			overrun = true
			break
		}
		f.PutTexel(data[n*size:], w)
		n++
	}

	if overrun {
		return nil, fmt.Errorf("%w: sequence yields more than %d texels", ErrTexelCount, want)
	}
	if n != want {
		return nil, fmt.Errorf("%w: got %d texels, want %d", ErrTexelCount, n, want)
	}
	return data, nil
}
