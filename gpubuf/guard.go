package gpubuf

// ReadGuard is a shared read lock on a Buffer. Release it when done; the
// elements must not be used afterwards.
type ReadGuard[T any] struct {
	buf      *Buffer[T]
	released bool
}

// Elements returns the buffer contents. The slice must not be modified.
func (g *ReadGuard[T]) Elements() []T {
	return g.buf.host
}

// Release unlocks the buffer. Release is idempotent.
func (g *ReadGuard[T]) Release() {
	if g.released {
		return
	}
	g.released = true

	b := g.buf
	b.mu.Lock()
	b.readers--
	b.mu.Unlock()
}

// WriteGuard is an exclusive lock on a Buffer. Changes made through
// Elements are uploaded to the GPU when the guard is released.
type WriteGuard[T any] struct {
	buf      *Buffer[T]
	released bool
}

// Elements returns the mutable buffer contents.
func (g *WriteGuard[T]) Elements() []T {
	return g.buf.host
}

// Release uploads the contents and unlocks the buffer. The buffer is
// unlocked even if the upload fails; the error is returned and the upload
// is retried before the next GPU access. Release is idempotent.
func (g *WriteGuard[T]) Release() error {
	if g.released {
		return nil
	}
	g.released = true

	b := g.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writer = false
	return b.flushLocked()
}
