package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // register the Vulkan backend

	"github.com/gogpu/framing/internal/logging"
)

// DefaultWaitTimeout bounds how long Future.Wait blocks.
const DefaultWaitTimeout = 5 * time.Second

// InstanceFactory creates HAL instances. Every hal.Backend is one; tests pass
// the noop API directly.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	backend     gputypes.Backend
	factory     InstanceFactory
	label       string
	waitTimeout time.Duration
}

func defaultOptions() options {
	return options{
		backend:     gputypes.BackendVulkan,
		label:       "framing",
		waitTimeout:  DefaultWaitTimeout,
	}
}

// WithBackend selects the registered HAL backend Open uses.
// Defaults to Vulkan.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithInstanceFactory makes Open create its instance from f instead of a
// registered backend.
//
// Example:
//
//	q, err := device.Open(device.WithInstanceFactory(&noop.API{}))
func WithInstanceFactory(f InstanceFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithLabel sets the prefix of GPU debug labels.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithWaitTimeout sets the timeout used by Future.Wait.
// Non-positive values keep the default.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// Queue is a GPU work-submission queue together with the device it belongs
// to. WebGPU exposes a single queue per device, so the queue carries no
// family index; ownership is tracked instead, and Close only destroys what
// the Queue created.
//
// Queue is safe for concurrent use.
type Queue struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	owned    bool

	label       string
	waitTimeout time.Duration

	closeOnce sync.Once
}

// NewQueue wraps an existing HAL device and queue. The returned Queue does
// not own them.
func NewQueue(device hal.Device, queue hal.Queue, opts ...Option) (*Queue, error) {
	if device == nil || queue == nil {
		return nil, ErrNilHALDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue{
		device:      device,
		queue:       queue,
		label:       o.label,
		waitTimeout: o.waitTimeout,
	}, nil
}

// Open creates a standalone device and returns its queue. Discrete and
// integrated GPUs are preferred over software adapters.
func Open(opts ...Option) (*Queue, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	factory := o.factory
	if factory == nil {
		backend, ok := hal.GetBackend(o.backend)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, o.backend)
		}
		factory = backend
	}

	instance, err := factory.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("device: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("device: open device: %w", err)
	}

	logging.Logger().Info("device: GPU opened", "adapter", selected.Info.Name, "label", o.label)

	return &Queue{
		device:      openDev.Device,
		queue:       openDev.Queue,
		instance:    instance,
		owned:       true,
		label:       o.label,
		waitTimeout: o.waitTimeout,
	}, nil
}

// FromProvider shares the device of a host application (e.g. gogpu). Either
// the provider implements HalDevice() any and HalQueue() any, or its
// Device() value implements HalDevice() hal.Device and HalQueue() hal.Queue
// the way *wgpu.Device does. The returned Queue does not own the device.
func FromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	type halDevice interface {
		HalDevice() hal.Device
		HalQueue() hal.Queue
	}

	if provider == nil {
		return nil, ErrProviderNotHAL
	}

	var device hal.Device
	var queue hal.Queue
	switch p := provider.(type) {
	case halProvider:
		var ok bool
		if device, ok = p.HalDevice().(hal.Device); !ok || device == nil {
			return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProviderNotHAL)
		}
		if queue, ok = p.HalQueue().(hal.Queue); !ok || queue == nil {
			return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProviderNotHAL)
		}
	default:
		hd, ok := provider.Device().(halDevice)
		if !ok {
			return nil, ErrProviderNotHAL
		}
		device, queue = hd.HalDevice(), hd.HalQueue()
		if device == nil || queue == nil {
			return nil, fmt.Errorf("%w: device has no HAL objects", ErrProviderNotHAL)
		}
	}
	logging.Logger().Debug("device: using shared GPU device")
	return NewQueue(device, queue, opts...)
}

// Device returns the HAL device.
func (q *Queue) Device() hal.Device { return q.device }

// Raw returns the HAL queue.
func (q *Queue) Raw() hal.Queue { return q.queue }

// Label returns the debug label prefix.
func (q *Queue) Label() string { return q.label }

// WaitTimeout returns the timeout Future.Wait uses.
func (q *Queue) WaitTimeout() time.Duration { return q.waitTimeout }

// Owned reports whether Close destroys the device.
func (q *Queue) Owned() bool { return q.owned }

// Submit submits cmds and returns a Future for their completion. The
// Future takes ownership of the command buffers and frees them once the
// GPU is done. With no command buffers nothing is submitted and the
// Future is already complete.
func (q *Queue) Submit(cmds []hal.CommandBuffer, label string) (*Future, error) {
	if len(cmds) == 0 {
		return newCompletedFuture(q.device, q.waitTimeout, label), nil
	}
	index, err := q.queue.Submit(cmds)
	if err != nil {
		return nil, fmt.Errorf("device: submit %s: %w", label, err)
	}
	return newFuture(q.device, q.queue, index, cmds, q.waitTimeout, label), nil
}

// Close destroys the device and instance if the Queue created them.
// Shared devices are left untouched. Close is idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		if !q.owned {
			return
		}
		if q.device != nil {
			if err := q.device.WaitIdle(); err != nil {
				logging.Logger().Warn("device: wait idle before close", "label", q.label, "err", err)
			}
			q.device.Destroy()
		}
		if q.instance != nil {
			q.instance.Destroy()
		}
		logging.Logger().Debug("device: GPU closed", "label", q.label)
	})
}
