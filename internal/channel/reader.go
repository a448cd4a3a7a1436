package channel

import (
	"context"
	"iter"
)

// Reader is the consumer side of a Channel. Concurrent Readers compete for
// items; each item goes to exactly one of them.
type Reader[T any] struct {
	c *Channel[T]
}

// Read removes and returns the oldest item, waiting while the channel is
// empty and open. Once the channel is completed and empty it returns io.EOF,
// or a *FailedError if the stream was completed with an error.
func (r *Reader[T]) Read(ctx context.Context) (T, error) {
	return r.c.read(ctx)
}

// TryRead is Read without waiting: it returns ErrEmpty when nothing is
// buffered and the channel is still open.
func (r *Reader[T]) TryRead() (T, error) {
	return r.c.tryRead()
}

// All ranges over items until the end of the stream. A non-nil error is
// yielded once, last, if the stream failed or ctx ended.
func (r *Reader[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := r.c.read(ctx)
			if err != nil {
				if !IsEndOfStream(err) {
					yield(v, err)
				}
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Done is closed once the channel is completed and fully drained.
func (r *Reader[T]) Done() <-chan struct{} {
	return r.c.drained
}

func (r *Reader[T]) Len() int { return r.c.Len() }

func (r *Reader[T]) Cap() int { return r.c.Cap() }
