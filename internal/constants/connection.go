package constants

import "time"

// Close codes and reasons sent when the client closes a channel on purpose.
const (
	CloseNormal = 1000

	CloseReasonReauth     = "re-authenticating"
	CloseReasonAuthFailed = "authentication failed"
	CloseReasonShutdown   = "client shutting down"
)

const (
	// DefaultTokenParam is the query parameter carrying the bearer token.
	DefaultTokenParam = "token"

	// DefaultHandshakeTimeout bounds the websocket opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultHandoffGrace is how long the old channel may take to confirm
	// its close during a re-authentication handoff before it is dropped.
	DefaultHandoffGrace = 5 * time.Second

	// DefaultWriteTimeout bounds a single outgoing frame.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultEventBuffer is the capacity of the lifecycle event queue.
	DefaultEventBuffer = 256
)

// Auth defaults.
const (
	DefaultLoginTimeout  = 10 * time.Second
	DefaultLoginRetries  = 5
	DefaultBaseDelay     = 1 * time.Second
	DefaultMaxDelay      = 30 * time.Second
	DefaultRefreshMargin = 5 * time.Minute
)
