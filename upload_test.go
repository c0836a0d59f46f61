package framing

import (
	"bytes"
	"errors"
	"math"
	"math/bits"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framing/device"
	"github.com/gogpu/framing/format"
	"github.com/gogpu/framing/gpubuf"
	"github.com/gogpu/framing/internal/codec"
)

// textureWrite is one recorded hal.Queue.WriteTexture call.
type textureWrite struct {
	data   []byte
	layout hal.ImageDataLayout
	size   hal.Extent3D
}

// recordingQueue wraps a HAL queue and records texture writes.
type recordingQueue struct {
	hal.Queue
	writes   []textureWrite
	writeErr error
}

func (r *recordingQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	r.writes = append(r.writes, textureWrite{data: slices.Clone(data), layout: *layout, size: *size})
	return r.Queue.WriteTexture(dst, data, layout, size)
}

// recordingDevice wraps a HAL device so the texture barriers of every
// command encoder it creates are recorded.
type recordingDevice struct {
	hal.Device
	barriers []hal.TextureBarrier
}

func (d *recordingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &recordingEncoder{CommandEncoder: enc, dev: d}, nil
}

type recordingEncoder struct {
	hal.CommandEncoder
	dev *recordingDevice
}

func (e *recordingEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	e.dev.barriers = append(e.dev.barriers, barriers...)
	e.CommandEncoder.TransitionTextures(barriers)
}

func createRecordingQueue(t *testing.T) (*device.Queue, *recordingDevice, *recordingQueue) {
	t.Helper()
	base := createNoopQueue(t)
	dev := &recordingDevice{Device: base.Device()}
	rq := &recordingQueue{Queue: base.Raw()}
	q, err := device.NewQueue(dev, rq, device.WithLabel("test"))
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	return q, dev, rq
}

func TestUpload_TexelBytes(t *testing.T) {
	q, _, rq := createRecordingQueue(t)
	f := sliceFrame[format.RGBA8]{w: 2, h: 2, px: []format.RGBA8{
		{R: 1, G: 2, B: 3, A: 4}, {R: 5, G: 6, B: 7, A: 8},
		{R: 9, G: 10, B: 11, A: 12}, {R: 13, G: 14, B: 15, A: 16},
	}}

	img, fut, err := Upload[[4]uint8, format.RGBA8](q, format.RGBA8Unorm, f)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer img.Destroy()
	fut.Release()

	if len(rq.writes) != 1 {
		t.Fatalf("%d texture writes, want 1", len(rq.writes))
	}
	w := rq.writes[0]
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if !bytes.Equal(w.data, want) {
		t.Errorf("texels = %v, want %v", w.data, want)
	}
	if w.layout.BytesPerRow != 8 || w.layout.RowsPerImage != 2 {
		t.Errorf("layout = %+v, want 8 bytes per row and 2 rows", w.layout)
	}
	if w.size != (hal.Extent3D{Width: 2, Height: 2, DepthOrArrayLayers: 1}) {
		t.Errorf("size = %+v", w.size)
	}
}

func TestUpload_BGRASwizzle(t *testing.T) {
	q, _, rq := createRecordingQueue(t)
	f := sliceFrame[format.RGBA8]{w: 1, h: 1, px: []format.RGBA8{{R: 10, G: 20, B: 30, A: 40}}}

	img, fut, err := Upload[[4]uint8, format.RGBA8](q, format.BGRA8Unorm, f)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer img.Destroy()
	fut.Release()

	if want := []byte{30, 20, 10, 40}; !bytes.Equal(rq.writes[0].data, want) {
		t.Errorf("texels = %v, want %v", rq.writes[0].data, want)
	}
}

func TestUploadArray_FrameOrder(t *testing.T) {
	q, _, rq := createRecordingQueue(t)
	frames := []Frame[format.Gray8]{
		sliceFrame[format.Gray8]{w: 2, h: 2, px: []format.Gray8{{Y: 1}, {Y: 2}, {Y: 3}, {Y: 4}}},
		sliceFrame[format.Gray8]{w: 2, h: 2, px: []format.Gray8{{Y: 5}, {Y: 6}, {Y: 7}, {Y: 8}}},
	}

	img, fut, err := UploadArray[uint8, format.Gray8](q, format.R8Unorm, frames)
	if err != nil {
		t.Fatalf("UploadArray failed: %v", err)
	}
	defer img.Destroy()
	fut.Release()

	w := rq.writes[0]
	if want := []byte{1, 2, 3, 4, 5, 6, 7, 8}; !bytes.Equal(w.data, want) {
		t.Errorf("texels = %v, want frame-major %v", w.data, want)
	}
	if w.size.DepthOrArrayLayers != 2 {
		t.Errorf("layers = %d, want 2", w.size.DepthOrArrayLayers)
	}
}

func TestUpload_PNGRoundTrip(t *testing.T) {
	src := codec.NewImage(3, 2)
	for y := range 2 {
		for x := range 3 {
			src.SetPixel(x, y, format.RGBA8{R: uint8(x * 80), G: uint8(y * 200), B: uint8(x + y), A: 255})
		}
	}

	var encoded bytes.Buffer
	if err := codec.EncodePNG(&encoded, src.Width(), src.Height(), src.Pixels()); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	decoded, err := codec.DecodeBytes(encoded.Bytes())
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}

	q, _, rq := createRecordingQueue(t)
	for _, f := range []Frame[format.RGBA8]{src, decoded} {
		img, fut, err := Upload[[4]uint8](q, format.RGBA8Unorm, f)
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
		fut.Release()
		img.Destroy()
	}

	if len(rq.writes) != 2 {
		t.Fatalf("%d texture writes, want 2", len(rq.writes))
	}
	if !bytes.Equal(rq.writes[0].data, rq.writes[1].data) {
		t.Errorf("decoded upload = %v, want %v", rq.writes[1].data, rq.writes[0].data)
	}
}

func TestUpload_WriteFailure(t *testing.T) {
	q, _, rq := createRecordingQueue(t)
	errWrite := errors.New("device lost")
	rq.writeErr = errWrite

	_, _, err := Upload[[4]uint8](q, format.RGBA8Unorm, solid(2, 2, format.RGBA8{}, nil))
	if !errors.Is(err, errWrite) {
		t.Errorf("Upload error = %v, want %v", err, errWrite)
	}
}

func TestCopyToBuffer_Barriers(t *testing.T) {
	q, dev, _ := createRecordingQueue(t)
	img, fut, err := Upload[[4]uint8](q, format.RGBA8Unorm, solid(2, 2, format.RGBA8{A: 255}, nil))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer img.Destroy()
	fut.Release()

	buf := newBuffer(t, q, make([]format.RGBA8, 4), 2, 2)
	copyFut, err := CopyToBuffer(q, img, 0, buf)
	if err != nil {
		t.Fatalf("CopyToBuffer failed: %v", err)
	}
	if err := copyFut.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	b := dev.barriers
	if len(b) != 2 {
		t.Fatalf("%d texture barriers, want 2", len(b))
	}
	// Uploaded images are in the sampled state.
	if b[0].Usage.OldUsage != gputypes.TextureUsageTextureBinding || b[0].Usage.NewUsage != gputypes.TextureUsageCopySrc {
		t.Errorf("first barrier = %+v, want TextureBinding -> CopySrc", b[0].Usage)
	}
	if b[1].Usage.OldUsage != b[0].Usage.NewUsage || b[1].Usage.NewUsage != gputypes.TextureUsageTextureBinding {
		t.Errorf("second barrier = %+v, want CopySrc -> TextureBinding", b[1].Usage)
	}
}

func TestNewBuffer_Overflow(t *testing.T) {
	q := createNoopQueue(t)
	raw, err := gpubuf.New[int](q, 4, "overflow")
	if err != nil {
		t.Fatalf("gpubuf.New failed: %v", err)
	}
	defer raw.Destroy()

	// wrap*4 overflows to exactly 4.
	const wrap = 1<<(bits.UintSize-2) + 1
	tests := []struct {
		name          string
		width, height int
	}{
		{"wraps to length", wrap, 4},
		{"max int", math.MaxInt, 2},
		{"negative", -2, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuffer(raw, tt.width, tt.height)
			var lm *LengthMismatchError
			if !errors.As(err, &lm) {
				t.Fatalf("NewBuffer(%d, %d) error = %v, want *LengthMismatchError", tt.width, tt.height, err)
			}
			if lm.Expected != -1 || lm.Actual != 4 {
				t.Errorf("mismatch = {%d, %d}, want {-1, 4}", lm.Expected, lm.Actual)
			}
		})
	}
}
