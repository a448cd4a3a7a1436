package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	ErrClosed          = errors.New("channel: write on completed channel")
	ErrFailed          = errors.New("channel: completed with error")
	ErrCancelled       = errors.New("channel: operation cancelled")
	ErrTimedOut        = errors.New("channel: operation timed out")
	ErrCapacityInvalid = errors.New("channel: capacity must be positive")
	ErrEmpty           = errors.New("channel: empty")
	ErrFull            = errors.New("channel: full")
)

// FailedError is returned by reads once a channel completed with an error
// has no buffered items left. It unwraps to the producer's error.
type FailedError struct {
	Err error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrFailed, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

func (e *FailedError) Is(target error) bool { return target == ErrFailed }

// abandoned maps a finished context to ErrTimedOut or ErrCancelled, keeping
// the context error in the chain.
func abandoned(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimedOut, err)
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// IsEndOfStream reports whether err is the clean end-of-stream signal.
func IsEndOfStream(err error) bool {
	return err == io.EOF
}
