package framing

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framing/device"
)

// copyPitchAlignment is the row alignment WebGPU (and DX12) require for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// CopyToBuffer copies one layer of img into the buffer wrapped by dst.
//
// The image size must equal dst's size and the image texel size must equal
// the buffer element size; otherwise an error matching
// device.ErrUnsupportedUsage is returned. Rows must be a multiple of four
// bytes long.
//
// The buffer is in use by the GPU until the returned Future completes:
// dst.Read and dst.Write fail with gpubuf.ErrInFlight until Wait returns
// (or the Future is released), after which Read sees the copied pixels.
func CopyToBuffer[T any](q *device.Queue, img *device.Image, layer int, dst *Buffer[T]) (*device.Future, error) {
	if q == nil {
		return nil, device.ErrNilQueue
	}
	if img.IsDestroyed() {
		return nil, device.ErrImageDestroyed
	}

	dims := img.Dimensions()
	switch {
	case layer < 0 || layer >= dims.Layers:
		return nil, fmt.Errorf("%w: layer %d of %d", device.ErrUnsupportedUsage, layer, dims.Layers)
	case dims.Width != dst.width || dims.Height != dst.height:
		return nil, fmt.Errorf("%w: image is %dx%d, buffer is %dx%d",
			device.ErrUnsupportedUsage, dims.Width, dims.Height, dst.width, dst.height)
	case img.TexelSize() != dst.buf.ElemSize():
		return nil, fmt.Errorf("%w: texel is %d bytes, buffer element is %d bytes",
			device.ErrUnsupportedUsage, img.TexelSize(), dst.buf.ElemSize())
	}

	//nolint:gosec // G115: dimensions are positive and fit uint32
	w, h := uint32(dims.Width), uint32(dims.Height)
	bytesPerRow := w * uint32(img.TexelSize()) //nolint:gosec // texel sizes are tiny
	if bytesPerRow%4 != 0 {
		return nil, fmt.Errorf("%w: row of %d bytes is not 4-byte aligned", device.ErrUnsupportedUsage, bytesPerRow)
	}
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)

	release, err := dst.buf.BeginGPUAccess(true)
	if err != nil {
		return nil, err
	}

	fut, err := encodeCopy(q, img, uint32(layer), dst.buf.Raw(), w, h, bytesPerRow, alignedBytesPerRow) //nolint:gosec // layer is range-checked
	if err != nil {
		release()
		return nil, err
	}
	fut.OnComplete(release)

	Logger().Debug("framing: copy to buffer", "image", img.Label(), "layer", layer, "buffer", dst.buf.Label())
	return fut, nil
}

// encodeCopy records the texture-to-buffer copy through a row-aligned
// staging buffer and submits it.
func encodeCopy(q *device.Queue, img *device.Image, layer uint32, dst hal.Buffer, w, h, bytesPerRow, alignedBytesPerRow uint32) (*device.Future, error) {
	dev := q.Device()
	label := img.Label() + "_readback"

	staging, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_staging",
		Size:  uint64(alignedBytesPerRow) * uint64(h),
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("framing: create staging buffer: %w", err)
	}

	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		dev.DestroyBuffer(staging)
		return nil, fmt.Errorf("framing: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		encoder.Destroy()
		dev.DestroyBuffer(staging)
		return nil, fmt.Errorf("framing: begin encoding: %w", err)
	}

	texture := img.Texture()

	// Uploads leave images in the sampled state, and so does this copy.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: texture,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageTextureBinding,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	encoder.CopyTextureToBuffer(texture, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: texture, MipLevel: 0, Origin: hal.Origin3D{X: 0, Y: 0, Z: layer}},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: texture,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	// Strip the row padding on the GPU so the destination stays tightly
	// packed, width*height elements long.
	var regions []hal.BufferCopy
	if alignedBytesPerRow == bytesPerRow {
		regions = []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: uint64(bytesPerRow) * uint64(h)}}
	} else {
		regions = make([]hal.BufferCopy, h)
		for row := range h {
			regions[row] = hal.BufferCopy{
				SrcOffset: uint64(row) * uint64(alignedBytesPerRow),
				DstOffset: uint64(row) * uint64(bytesPerRow),
				Size:      uint64(bytesPerRow),
			}
		}
	}
	encoder.CopyBufferToBuffer(staging, dst, regions)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		encoder.Destroy()
		dev.DestroyBuffer(staging)
		return nil, fmt.Errorf("framing: end encoding: %w", err)
	}

	fut, err := q.Submit([]hal.CommandBuffer{cmdBuf}, label)
	if err != nil {
		dev.FreeCommandBuffer(cmdBuf)
		dev.DestroyBuffer(staging)
		return nil, err
	}
	fut.OnComplete(func() { dev.DestroyBuffer(staging) })
	return fut, nil
}
