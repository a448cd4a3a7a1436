package channel

type State int

const (
	// StateOpen accepts writes; items may or may not be buffered.
	StateOpen State = iota
	// StateCompleted rejects writes but still holds items to drain.
	StateCompleted
	// StateDrained is terminal: completed and empty.
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCompleted:
		return "completed"
	case StateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of a channel.
type Stats struct {
	Name           string `json:"name"`
	Length         int    `json:"length"`
	Capacity       int    `json:"capacity"`
	State          State  `json:"state"`
	BlockedReaders int    `json:"blocked_readers"`
	BlockedWriters int    `json:"blocked_writers"`
}
