package channel

import "container/list"

// waiter is a goroutine suspended in Read or Write. Whoever serves it fills
// in item/err and closes ready while holding the channel mutex; the waiter
// only reads those fields after ready is closed.
type waiter[T any] struct {
	ready chan struct{}
	item  T
	err   error
}

func newWaiter[T any](item T) *waiter[T] {
	return &waiter[T]{ready: make(chan struct{}), item: item}
}

func (w *waiter[T]) serve(item T, err error) {
	select {
	case <-w.ready:
		panic("channel: waiter served twice")
	default:
	}
	w.item = item
	w.err = err
	close(w.ready)
}

func (w *waiter[T]) served() bool {
	select {
	case <-w.ready:
		return true
	default:
		return false
	}
}

// waitQueue keeps suspended goroutines in arrival order so the oldest one
// is always served first.
type waitQueue[T any] struct {
	l list.List
}

func (q *waitQueue[T]) push(w *waiter[T]) *list.Element {
	return q.l.PushBack(w)
}

func (q *waitQueue[T]) pop() *waiter[T] {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	return q.l.Remove(e).(*waiter[T])
}

func (q *waitQueue[T]) remove(e *list.Element) {
	q.l.Remove(e)
}

func (q *waitQueue[T]) len() int {
	return q.l.Len()
}

// drain removes every waiter, oldest first.
func (q *waitQueue[T]) drain(fn func(*waiter[T])) {
	for w := q.pop(); w != nil; w = q.pop() {
		fn(w)
	}
}
