package channel

// ring is a fixed-capacity FIFO over a slot array. It is not safe for
// concurrent use; Channel serializes access to it.
type ring[T any] struct {
	values []T
	head   int
	size   int
}

func newRing[T any](size int) *ring[T] {
	return &ring[T]{values: make([]T, size)}
}

func (r *ring[T]) push(v T) {
	if r.size == len(r.values) {
		panic("channel: ring overflow")
	}
	r.values[(r.head+r.size)%len(r.values)] = v
	r.size++
}

func (r *ring[T]) pop() T {
	if r.size == 0 {
		panic("channel: ring underflow")
	}
	var zero T
	v := r.values[r.head]
	r.values[r.head] = zero
	r.head = (r.head + 1) % len(r.values)
	r.size--
	return v
}

// reset drops every buffered value and returns how many were dropped.
func (r *ring[T]) reset() int {
	n := r.size
	var zero T
	for i := range r.values {
		r.values[i] = zero
	}
	r.head = 0
	r.size = 0
	return n
}

func (r *ring[T]) len() int   { return r.size }
func (r *ring[T]) cap() int   { return len(r.values) }
func (r *ring[T]) full() bool { return r.size == len(r.values) }
