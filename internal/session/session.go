package session

import (
	"sync/atomic"
	"time"

	"github.com/benmeehan/signal-agent/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender is the outgoing half of a channel.
type Sender interface {
	Send(payload []byte) error
}

// Session is the client state bound to one channel generation: the channel,
// the token it was opened with, the signal store and the user count.
type Session struct {
	ID         string
	Generation uint64
	Token      string
	CreatedAt  time.Time

	Store   *store.SignalStore
	Channel Sender

	userCount atomic.Int64
}

// New creates a session with an empty store for the given generation.
func New(generation uint64, token string, channel Sender, observer store.Observer, logger zerolog.Logger) *Session {
	return &Session{
		ID:         uuid.New().String(),
		Generation: generation,
		Token:      token,
		CreatedAt:  time.Now(),
		Store:      store.NewSignalStore(generation, observer, logger),
		Channel:    channel,
	}
}

// SetUserCount records the connected-user count reported by the server.
func (s *Session) SetUserCount(n int) {
	s.userCount.Store(int64(n))
}

// UserCount returns the last reported connected-user count.
func (s *Session) UserCount() int {
	return int(s.userCount.Load())
}
