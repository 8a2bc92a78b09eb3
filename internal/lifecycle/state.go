package lifecycle

// State of the connection lifecycle.
type State int32

const (
	// StateUnauthenticated has no channel. Only an authentication event leaves it.
	StateUnauthenticated State = iota
	// StateConnecting is dialing a new channel generation.
	StateConnecting
	// StateActive has a ready channel whose messages are routed to its session.
	StateActive
	// StateHandoff has asked the current channel to close and will open the
	// next generation with the pending token once it has.
	StateHandoff
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateHandoff:
		return "handoff"
	}
	return "invalid"
}

type eventKind int

const (
	evAuthenticated eventKind = iota
	evAuthFailed
	evOpened
	evOpenFailed
	evMessage
	evClosed
	evCloseTimeout
)

func (k eventKind) String() string {
	switch k {
	case evAuthenticated:
		return "authenticated"
	case evAuthFailed:
		return "auth_failed"
	case evOpened:
		return "opened"
	case evOpenFailed:
		return "open_failed"
	case evMessage:
		return "message"
	case evClosed:
		return "closed"
	case evCloseTimeout:
		return "close_timeout"
	}
	return "invalid"
}

// event is the unit of work of the manager loop. Channel events carry the
// generation of the channel that produced them.
type event struct {
	kind       eventKind
	generation uint64
	token      string
	channel    Channel
	payload    []byte
	err        error
}
