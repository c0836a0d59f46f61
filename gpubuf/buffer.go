// Package gpubuf provides a linear GPU buffer of fixed-size elements that
// the host can lock for reading or writing.
//
// A Buffer keeps a host copy of its contents next to the GPU allocation.
// Write guards flush the host copy to the GPU when released; read and
// write guards refresh it from the GPU first if GPU work wrote the buffer
// since the last refresh.
//
// Locking follows a single-writer XOR multiple-readers discipline and never
// blocks: contention is reported as an error so the caller can retry once
// the other access has finished. GPU work that uses the buffer registers
// itself with BeginGPUAccess; while it is outstanding the host cannot take
// conflicting locks.
package gpubuf

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framing/device"
	"github.com/gogpu/framing/internal/logging"
)

// Buffer errors.
var (
	// ErrDestroyed is returned when operating on a destroyed buffer.
	ErrDestroyed = errors.New("gpubuf: buffer has been destroyed")

	// ErrWriteLocked is returned when the buffer is locked for writing.
	ErrWriteLocked = errors.New("gpubuf: buffer is locked for writing")

	// ErrReadLocked is returned when exclusive access is requested while
	// the buffer is locked for reading.
	ErrReadLocked = errors.New("gpubuf: buffer is locked for reading")

	// ErrInFlight is returned when GPU work using the buffer has not been
	// waited for.
	ErrInFlight = errors.New("gpubuf: buffer is in use by the GPU")

	// ErrInvalidLength is returned when creating a buffer with no elements.
	ErrInvalidLength = errors.New("gpubuf: invalid buffer length")

	// ErrInvalidElement is returned for zero-sized element types.
	ErrInvalidElement = errors.New("gpubuf: element type has zero size")
)

// Usage is the usage of every Buffer: the destination of GPU copies and
// mappable for host reads. WebGPU allows MapRead only together with CopyDst.
const Usage = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst

// copyBufferAlignment is the alignment of buffer sizes and copy sizes.
const copyBufferAlignment = 4

// Buffer is a GPU buffer holding Len() elements of type T.
//
// T must be a plain-old-data type (no pointers, slices, maps or strings):
// its in-memory representation is what the GPU sees.
//
// Buffer is safe for concurrent use. Guards are not; each guard belongs to
// the goroutine that acquired it.
type Buffer[T any] struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	raw    hal.Buffer

	label    string
	n        int
	elemSize int
	size     uint64 // aligned GPU allocation size in bytes

	host []T

	readers    int
	writer     bool
	gpuReaders int
	gpuWriters int
	stale      bool // GPU wrote since the last refresh
	dirty      bool // host writes not yet flushed
	destroyed  bool
}

// New creates a zero-filled buffer of n elements on q's device.
func New[T any](q *device.Queue, n int, label string) (*Buffer[T], error) {
	if q == nil {
		return nil, device.ErrNilQueue
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil, ErrInvalidElement
	}

	byteLen := uint64(n) * uint64(elemSize) //nolint:gosec // G115: n is validated positive
	size := (byteLen + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)

	raw, err := q.Device().CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpubuf: create buffer %q: %w", label, err)
	}

	logging.Logger().Debug("gpubuf: buffer created", "label", label, "len", n, "bytes", size)

	return &Buffer[T]{
		device:   q.Device(),
		queue:    q.Raw(),
		raw:      raw,
		label:    label,
		n:        n,
		elemSize: elemSize,
		size:     size,
		host:     make([]T, n),
	}, nil
}

// FromSlice creates a buffer holding a copy of data and uploads it.
func FromSlice[T any](q *device.Queue, data []T, label string) (*Buffer[T], error) {
	b, err := New[T](q, len(data), label)
	if err != nil {
		return nil, err
	}
	w, err := b.WriteLock()
	if err != nil {
		b.Destroy()
		return nil, err
	}
	copy(w.Elements(), data)
	if err := w.Release(); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// Len returns the number of elements.
func (b *Buffer[T]) Len() int { return b.n }

// ElemSize returns the size of one element in bytes.
func (b *Buffer[T]) ElemSize() int { return b.elemSize }

// Size returns the GPU allocation size in bytes.
func (b *Buffer[T]) Size() uint64 { return b.size }

// Label returns the debug label.
func (b *Buffer[T]) Label() string { return b.label }

// Raw returns the HAL buffer, or nil after Destroy.
func (b *Buffer[T]) Raw() hal.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	return b.raw
}

// IsDestroyed reports whether Destroy has been called.
func (b *Buffer[T]) IsDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// ReadLock locks the buffer for reading. It fails with ErrWriteLocked while
// a write guard is outstanding and with ErrInFlight while GPU work writing
// the buffer is outstanding.
func (b *Buffer[T]) ReadLock() (*ReadGuard[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	if b.writer {
		return nil, ErrWriteLocked
	}
	if b.gpuWriters > 0 {
		return nil, ErrInFlight
	}
	if err := b.refreshLocked(); err != nil {
		return nil, err
	}
	b.readers++
	return &ReadGuard[T]{buf: b}, nil
}

// WriteLock locks the buffer for exclusive writing. It fails with
// ErrWriteLocked or ErrReadLocked while any other guard is outstanding and
// with ErrInFlight while any GPU work using the buffer is outstanding.
func (b *Buffer[T]) WriteLock() (*WriteGuard[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	if b.writer {
		return nil, ErrWriteLocked
	}
	if b.readers > 0 {
		return nil, ErrReadLocked
	}
	if b.gpuReaders > 0 || b.gpuWriters > 0 {
		return nil, ErrInFlight
	}
	if err := b.refreshLocked(); err != nil {
		return nil, err
	}
	b.writer = true
	return &WriteGuard[T]{buf: b}, nil
}

// BeginGPUAccess registers GPU work that reads (write == false) or writes
// the buffer. Host locks that conflict with it fail until the returned
// release function is called; a GPU write additionally makes the next host
// lock refresh its copy from the GPU. Release is safe to call more than
// once.
//
// Host writes whose flush failed are retried first; a GPU read must not
// see stale contents.
func (b *Buffer[T]) BeginGPUAccess(write bool) (release func(), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	if b.writer {
		return nil, ErrWriteLocked
	}
	if write && b.readers > 0 {
		return nil, ErrReadLocked
	}
	if b.dirty {
		if err := b.flushLocked(); err != nil {
			return nil, err
		}
	}

	if write {
		b.gpuWriters++
	} else {
		b.gpuReaders++
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if write {
				b.gpuWriters--
				b.stale = true
			} else {
				b.gpuReaders--
			}
		})
	}, nil
}

// Destroy releases the GPU allocation. Outstanding guards stay readable but
// no longer flush. Destroy is idempotent.
func (b *Buffer[T]) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	raw := b.raw
	b.raw = nil
	b.mu.Unlock()

	if raw != nil {
		b.device.DestroyBuffer(raw)
	}
	logging.Logger().Debug("gpubuf: buffer destroyed", "label", b.label)
}

// bytes returns the host copy reinterpreted as bytes.
func (b *Buffer[T]) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(b.host))), b.n*b.elemSize) //nolint:gosec // plain-old-data elements
}

// refreshLocked copies the GPU contents into the host copy if GPU work
// wrote the buffer since the last refresh. b.mu must be held.
func (b *Buffer[T]) refreshLocked() error {
	if !b.stale {
		return nil
	}
	m, err := b.device.MapBuffer(b.raw, 0, b.size)
	if err != nil {
		return fmt.Errorf("gpubuf: map %q: %w", b.label, err)
	}
	copy(b.bytes(), unsafe.Slice((*byte)(m.Ptr), b.size))
	if err := b.device.UnmapBuffer(b.raw); err != nil {
		return fmt.Errorf("gpubuf: unmap %q: %w", b.label, err)
	}
	b.stale = false
	logging.Logger().Debug("gpubuf: host copy refreshed", "label", b.label, "bytes", b.size)
	return nil
}

// flushLocked uploads the host copy. On failure the buffer stays dirty so
// the next flush retries. b.mu must be held.
func (b *Buffer[T]) flushLocked() error {
	if b.destroyed {
		b.dirty = false
		return nil
	}
	data := b.bytes()
	if uint64(len(data)) != b.size {
		padded := make([]byte, b.size)
		copy(padded, data)
		data = padded
	}
	if err := b.queue.WriteBuffer(b.raw, 0, data); err != nil {
		b.dirty = true
		return fmt.Errorf("gpubuf: write %q: %w", b.label, err)
	}
	b.dirty = false
	return nil
}
