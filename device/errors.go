package device

import "errors"

// Device errors.
var (
	// ErrNilQueue is returned when a nil queue is passed to an operation.
	ErrNilQueue = errors.New("device: queue is nil")

	// ErrNilHALDevice is returned when wrapping a nil HAL device or queue.
	ErrNilHALDevice = errors.New("device: HAL device or queue is nil")

	// ErrNoAdapter is returned when the backend exposes no GPU adapter.
	ErrNoAdapter = errors.New("device: no GPU adapters found")

	// ErrBackendUnavailable is returned when the requested backend is not
	// compiled in or not registered.
	ErrBackendUnavailable = errors.New("device: backend not available")

	// ErrProviderNotHAL is returned when a device provider does not expose
	// HAL device and queue objects.
	ErrProviderNotHAL = errors.New("device: provider does not expose HAL types")

	// ErrUnsupportedUsage is returned when an image request combines
	// parameters the image cannot be created with, such as array layers of
	// different sizes or a readback of mismatched shape.
	ErrUnsupportedUsage = errors.New("device: unsupported image usage")

	// ErrUnsupportedDimensions is returned for non-positive image sizes.
	ErrUnsupportedDimensions = errors.New("device: unsupported image dimensions")

	// ErrTexelCount is returned when a texel sequence yields a different
	// number of texels than the image dimensions require.
	ErrTexelCount = errors.New("device: texel count does not match dimensions")

	// ErrImageDestroyed is returned when operating on a destroyed image.
	ErrImageDestroyed = errors.New("device: image has been destroyed")

	// ErrTimeout is returned when submitted work did not complete within
	// the wait timeout.
	ErrTimeout = errors.New("device: timed out waiting for GPU")

	// ErrFutureReleased is returned when waiting on a released future.
	ErrFutureReleased = errors.New("device: future has been released")
)
