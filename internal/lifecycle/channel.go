package lifecycle

import "context"

// Channel is one generation of the persistent connection to the server.
//
// Receive is called from a single reader goroutine; the other methods are
// called from the manager's event loop.
type Channel interface {
	// Send writes one text frame.
	Send(payload []byte) error
	// Receive blocks until the next frame arrives or the channel closes.
	Receive() ([]byte, error)
	// CloseGracefully asks the peer to close with the given code and reason.
	CloseGracefully(code int, reason string) error
	// Close drops the transport immediately.
	Close() error
}

// Dialer opens channels. An empty token means the channel is opened
// without authentication.
type Dialer interface {
	Dial(ctx context.Context, token string) (Channel, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, token string) (Channel, error)

// Dial calls f(ctx, token).
func (f DialerFunc) Dial(ctx context.Context, token string) (Channel, error) {
	return f(ctx, token)
}
