package channel

type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// Observer receives channel events, typically to feed metrics. depth is the
// number of buffered items after the event.
type Observer interface {
	Wrote(depth int)
	Took(depth int)
	// Rejected is called for every write refused because the channel was
	// completed, including blocked writers released by completion.
	Rejected()
	Waiting(op Op)
	// Abandoned is called when a call gives up because its context ended;
	// err matches ErrCancelled or ErrTimedOut.
	Abandoned(op Op, err error)
	Completed(err error)
	// Discarded is called when Dispose drops n buffered items; the buffer
	// is empty afterwards.
	Discarded(n int)
}

type nopObserver struct{}

func (nopObserver) Wrote(int)           {}
func (nopObserver) Took(int)            {}
func (nopObserver) Rejected()           {}
func (nopObserver) Waiting(Op)          {}
func (nopObserver) Abandoned(Op, error) {}
func (nopObserver) Completed(error)     {}
func (nopObserver) Discarded(int)       {}
