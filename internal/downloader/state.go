package downloader

// State is a step of the per-file download state machine
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateBackingOff
	StateRotating
	StateSucceeded
	StatePermanentlyFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateBackingOff:
		return "backing_off"
	case StateRotating:
		return "rotating"
	case StateSucceeded:
		return "succeeded"
	case StatePermanentlyFailed:
		return "permanently_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StatePermanentlyFailed
}
