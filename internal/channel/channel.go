// Package channel implements a bounded, in-process FIFO hand-off between
// any number of producers and consumers.
//
// Writers block while the buffer is full and readers block while it is
// empty. A producer ends the stream with Complete (or CompleteWithError);
// after that every write fails with ErrClosed while readers keep draining
// whatever is still buffered before observing io.EOF or a *FailedError.
//
// Blocked goroutines are served strictly in arrival order: when an item
// arrives and readers are waiting, it is handed to the oldest reader, and
// when a slot frees up the oldest blocked writer's item takes it. Neither
// side can be overtaken by a later caller, so no waiter starves.
package channel

import (
	"context"
	"io"
	"sync"
)

// Channel is a bounded FIFO queue. Use New to create one and the Writer and
// Reader handles to operate on it.
type Channel[T any] struct {
	name string
	obs  Observer

	mu        sync.Mutex
	buf       *ring[T]
	completed bool
	err       error
	readers   waitQueue[T]
	writers   waitQueue[T]
	drained   chan struct{}
}

type Option func(*options)

type options struct {
	name string
	obs  Observer
}

// WithName labels the channel in Stats and in observer callbacks made by
// the metrics package.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithObserver installs hooks called on every state change. Hooks run with
// the channel lock held and must not call back into the channel.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// New creates a channel holding at most capacity items.
func New[T any](capacity int, opts ...Option) (*Channel[T], error) {
	if capacity <= 0 {
		return nil, ErrCapacityInvalid
	}
	o := options{obs: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Channel[T]{
		name:    o.name,
		obs:     o.obs,
		buf:     newRing[T](capacity),
		drained: make(chan struct{}),
	}, nil
}

func (c *Channel[T]) Writer() *Writer[T] { return &Writer[T]{c: c} }

func (c *Channel[T]) Reader() *Reader[T] { return &Reader[T]{c: c} }

func (c *Channel[T]) Name() string { return c.name }

func (c *Channel[T]) Cap() int { return c.buf.cap() }

func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

func (c *Channel[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Channel[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:           c.name,
		Length:         c.buf.len(),
		Capacity:       c.buf.cap(),
		State:          c.state(),
		BlockedReaders: c.readers.len(),
		BlockedWriters: c.writers.len(),
	}
}

// Dispose completes the channel if needed and discards any buffered items,
// returning how many were dropped. Readers see end-of-stream afterwards.
func (c *Channel[T]) Dispose() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.completed {
		c.completeLocked(nil)
	}
	n := c.buf.reset()
	c.obs.Discarded(n)
	c.markDrained()
	return n
}

func (c *Channel[T]) state() State {
	switch {
	case !c.completed:
		return StateOpen
	case c.buf.len() > 0:
		return StateCompleted
	default:
		return StateDrained
	}
}

func (c *Channel[T]) write(ctx context.Context, v T) error {
	c.mu.Lock()
	if c.completed {
		c.obs.Rejected()
		c.mu.Unlock()
		return ErrClosed
	}
	if c.writers.len() == 0 && c.deliver(v) {
		c.mu.Unlock()
		return nil
	}
	if ctx.Err() != nil {
		err := abandoned(ctx)
		c.obs.Abandoned(OpWrite, err)
		c.mu.Unlock()
		return err
	}

	w := newWaiter(v)
	elem := c.writers.push(w)
	c.obs.Waiting(OpWrite)
	c.mu.Unlock()

	select {
	case <-w.ready:
		return w.err
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if w.served() {
		return w.err
	}
	c.writers.remove(elem)
	err := abandoned(ctx)
	c.obs.Abandoned(OpWrite, err)
	return err
}

func (c *Channel[T]) tryWrite(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		c.obs.Rejected()
		return ErrClosed
	}
	if c.writers.len() > 0 || !c.deliver(v) {
		return ErrFull
	}
	return nil
}

// deliver hands v to the oldest blocked reader or appends it to the buffer.
// It reports false when the buffer is full. Must be called with c.mu held.
func (c *Channel[T]) deliver(v T) bool {
	if r := c.readers.pop(); r != nil {
		if c.buf.len() != 0 {
			panic("channel: reader blocked on non-empty buffer")
		}
		r.serve(v, nil)
		c.obs.Wrote(0)
		c.obs.Took(0)
		return true
	}
	if c.buf.full() {
		return false
	}
	c.buf.push(v)
	c.obs.Wrote(c.buf.len())
	return true
}

func (c *Channel[T]) read(ctx context.Context) (T, error) {
	var zero T

	c.mu.Lock()
	if v, ok, err := c.take(); ok {
		c.mu.Unlock()
		return v, err
	}
	if ctx.Err() != nil {
		err := abandoned(ctx)
		c.obs.Abandoned(OpRead, err)
		c.mu.Unlock()
		return zero, err
	}

	w := newWaiter(zero)
	elem := c.readers.push(w)
	c.obs.Waiting(OpRead)
	c.mu.Unlock()

	select {
	case <-w.ready:
		return w.item, w.err
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if w.served() {
		return w.item, w.err
	}
	c.readers.remove(elem)
	err := abandoned(ctx)
	c.obs.Abandoned(OpRead, err)
	return zero, err
}

func (c *Channel[T]) tryRead() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok, err := c.take(); ok {
		return v, err
	}
	var zero T
	return zero, ErrEmpty
}

// take pops the head item, or reports end-of-stream once the channel is
// completed and empty. ok is false when the caller would have to wait.
// Must be called with c.mu held.
func (c *Channel[T]) take() (v T, ok bool, err error) {
	if c.buf.len() > 0 {
		v = c.buf.pop()
		if w := c.writers.pop(); w != nil {
			c.buf.push(w.item)
			w.serve(w.item, nil)
			c.obs.Wrote(c.buf.len())
		}
		c.obs.Took(c.buf.len())
		c.markDrained()
		return v, true, nil
	}
	if c.completed {
		return v, true, c.endOfStream()
	}
	return v, false, nil
}

func (c *Channel[T]) complete(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return false
	}
	c.completeLocked(err)
	return true
}

// completeLocked sets the latch and releases every waiter. Blocked readers
// only exist while the buffer is empty, so they all see end-of-stream;
// blocked writers are rejected and their items never enter the buffer.
func (c *Channel[T]) completeLocked(err error) {
	c.completed = true
	c.err = err
	var zero T
	eos := c.endOfStream()
	c.readers.drain(func(w *waiter[T]) { w.serve(zero, eos) })
	c.writers.drain(func(w *waiter[T]) {
		c.obs.Rejected()
		w.serve(zero, ErrClosed)
	})
	c.obs.Completed(err)
	c.markDrained()
}

func (c *Channel[T]) endOfStream() error {
	if c.err != nil {
		return &FailedError{Err: c.err}
	}
	return io.EOF
}

func (c *Channel[T]) markDrained() {
	if !c.completed || c.buf.len() > 0 {
		return
	}
	select {
	case <-c.drained:
	default:
		close(c.drained)
	}
}
