package channel

import "context"

// Writer is the producer side of a Channel. Any number of Writers may be
// used concurrently.
type Writer[T any] struct {
	c *Channel[T]
}

// Write appends v, waiting while the channel is full. It returns ErrClosed
// without waiting once the channel is completed, and an error matching
// ErrCancelled or ErrTimedOut if ctx ends first, in which case v was not
// written.
func (w *Writer[T]) Write(ctx context.Context, v T) error {
	return w.c.write(ctx, v)
}

// TryWrite appends v only if that is possible without waiting. It returns
// ErrFull or ErrClosed otherwise.
func (w *Writer[T]) TryWrite(v T) error {
	return w.c.tryWrite(v)
}

// Complete marks the end of the stream and wakes every blocked reader and
// writer. It reports whether this call completed the channel; later calls
// do nothing.
func (w *Writer[T]) Complete() bool {
	return w.c.complete(nil)
}

// CompleteWithError is Complete for a failed stream: once the buffer is
// drained readers get a *FailedError wrapping err instead of io.EOF.
func (w *Writer[T]) CompleteWithError(err error) bool {
	return w.c.complete(err)
}
