// Package device is the GPU side of framing: it owns the queue handle,
// creates sampled images from lazily produced texels, and represents
// in-flight GPU work as a [Future].
//
// It sits directly on gogpu/wgpu's HAL (zero CGO, Vulkan/Metal/DX12/GLES
// backends). A [Queue] is either opened standalone with [Open], shared from
// a host application with [FromProvider], or wrapped around existing HAL
// objects with [NewQueue].
//
// # Images
//
// [CreateImage] and [CreateImageArray] consume an iter.Seq of wire pixels in
// row-major order (layer-major for arrays), encode them with a
// format.Format, and upload them with a single queue write. The returned
// [Future] must be waited on before the image is sampled or read back.
//
// # Completion
//
// A [Future] tracks the queue submission index of its work and observes
// completion through hal.Queue.PollCompleted. It owns the submitted command
// buffers and frees them once the work is done.
//
// # Errors
//
// Validation failures match [ErrUnsupportedUsage], [ErrUnsupportedDimensions]
// or [ErrTexelCount] under errors.Is. Driver failures are wrapped with %w
// and otherwise passed through untouched.
package device
