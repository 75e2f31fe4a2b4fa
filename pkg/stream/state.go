package stream

// State is the lifecycle state of a Session.
//
//	idle ──▶ open ──▶ completed
//	  │        ├────▶ aborted
//	  │        └────▶ failed
//	  ├─────────────▶ aborted   (canceled before opening)
//	  └─────────────▶ failed    (request could not be issued)
type State int

const (
	StateIdle State = iota
	StateOpen
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}
