package roomconn

// State is the observable lifecycle state of a RoomConnection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateRetrying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRetrying:
		return "retrying"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}
