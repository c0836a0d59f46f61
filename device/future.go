package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framing/internal/logging"
)

// Poll intervals of Future.WaitTimeout. The interval doubles from min to
// max while the work is outstanding.
const (
	minPollInterval = 50 * time.Microsecond
	maxPollInterval = 2 * time.Millisecond
)

// Future is the completion handle of submitted GPU work.
//
// The work is complete once the queue reports the submission index as
// completed. Observing completion through Wait or Done frees the command
// buffers and runs the OnComplete callbacks; Release must be called instead
// when the Future is abandoned without a successful Wait.
//
// Future is safe for concurrent use.
type Future struct {
	mu sync.Mutex

	device  hal.Device
	queue   hal.Queue
	index   uint64
	cmds    []hal.CommandBuffer
	timeout time.Duration
	label   string

	done      bool
	released  bool
	callbacks []func()
}

func newFuture(device hal.Device, queue hal.Queue, index uint64, cmds []hal.CommandBuffer, timeout time.Duration, label string) *Future {
	return &Future{
		device:  device,
		queue:   queue,
		index:   index,
		cmds:    cmds,
		timeout: timeout,
		label:   label,
	}
}

// newCompletedFuture returns a Future for work that finished before it was
// handed out.
func newCompletedFuture(device hal.Device, timeout time.Duration, label string) *Future {
	return &Future{
		device:  device,
		timeout: timeout,
		label:   label,
		done:    true,
	}
}

// Label returns the debug label of the submission.
func (f *Future) Label() string { return f.label }

// Index returns the queue submission index, or 0 for work that needed no
// submission.
func (f *Future) Index() uint64 { return f.index }

// Done reports whether the work has completed. It never blocks; a true
// result has the same effect as a successful Wait.
func (f *Future) Done() bool {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done {
		return true
	}
	if !f.completed() {
		return false
	}
	f.complete()
	return true
}

// Wait blocks until the GPU work completes or the queue's wait timeout
// elapses.
func (f *Future) Wait() error {
	return f.WaitTimeout(f.timeout)
}

// WaitTimeout blocks until the GPU work completes or d elapses.
// It returns ErrTimeout if the queue did not report completion in time.
func (f *Future) WaitTimeout(d time.Duration) error {
	f.mu.Lock()
	done, released := f.done, f.released
	f.mu.Unlock()
	if done {
		return nil
	}
	if released {
		return ErrFutureReleased
	}

	if err := f.poll(d); err != nil {
		return err
	}
	f.complete()
	return nil
}

// OnComplete registers fn to run once the work is known to be complete.
// If that already happened, fn runs immediately.
func (f *Future) OnComplete(fn func()) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		fn()
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Release gives up the Future. Pending work is waited for once; if the wait
// fails the whole device is drained with WaitIdle. When that fails too the
// command buffers are leaked and the callbacks never run, so resources
// guarded by them stay in use. Release is idempotent.
func (f *Future) Release() {
	f.mu.Lock()
	if f.done || f.released {
		f.mu.Unlock()
		return
	}
	f.released = true
	f.mu.Unlock()

	if err := f.poll(f.timeout); err != nil {
		logging.Logger().Warn("device: draining device to release GPU work", "label", f.label, "err", err)
		if err := f.device.WaitIdle(); err != nil {
			logging.Logger().Warn("device: leaking unfinished GPU work", "label", f.label, "err", err)
			return
		}
	}
	f.complete()
}

func (f *Future) completed() bool {
	return f.queue == nil || f.queue.PollCompleted() >= f.index
}

// poll waits for the submission index to complete without holding f.mu.
func (f *Future) poll(d time.Duration) error {
	deadline := time.Now().Add(d)
	interval := minPollInterval
	for !f.completed() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: %s after %v", ErrTimeout, f.label, d)
		}
		time.Sleep(min(interval, remaining))
		interval = min(interval*2, maxPollInterval)
	}
	return nil
}

// complete marks the work done, frees the command buffers and runs the
// callbacks exactly once.
func (f *Future) complete() {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	cmds := f.cmds
	f.cmds = nil
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, cmd := range cmds {
		f.device.FreeCommandBuffer(cmd)
	}
	logging.Logger().Debug("device: GPU work complete", "label", f.label, "index", f.index)

	// Callbacks run outside the lock so they may use the Future.
	for _, fn := range callbacks {
		fn()
	}
}
