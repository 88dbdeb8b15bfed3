package roomlog

// ConnectionState is the lifecycle state of a room's push subscription.
type ConnectionState int

const (
	// StateDisconnected means no subscription is active.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the transport dial is in progress.
	StateConnecting

	// StateJoined means the transport is up and the room-join intent
	// has been announced.
	StateJoined
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	default:
		return "unknown"
	}
}
