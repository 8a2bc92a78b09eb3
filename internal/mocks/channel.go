package mocks

import (
	"errors"
	"sync"
)

// ErrChannelClosed is returned by FakeChannel once it is closed.
var ErrChannelClosed = errors.New("fake channel closed")

// FakeChannel is an in-memory channel. Frames pushed with Deliver are
// returned by Receive; frames written with Send are recorded.
//
// Like a websocket connection, the end of Receive (peer close or drop) does
// not release the transport: only Close does.
type FakeChannel struct {
	// AutoClose makes CloseGracefully behave like a peer that echoes the
	// close frame immediately.
	AutoClose bool
	// SendErr, when set, is returned by Send.
	SendErr error

	inbox     chan []byte
	ended     chan struct{}
	closed    chan struct{}
	endOnce   sync.Once
	closeOnce sync.Once

	mu          sync.Mutex
	sent        [][]byte
	closeCode   int
	closeReason string
	graceful    int
	closeCalls  int
}

// NewFakeChannel creates an open FakeChannel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{
		inbox:  make(chan []byte, 64),
		ended:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Deliver queues a frame from the peer.
func (c *FakeChannel) Deliver(payload string) {
	select {
	case c.inbox <- []byte(payload):
	case <-c.ended:
	}
}

func (c *FakeChannel) Send(payload []byte) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	select {
	case <-c.ended:
		return ErrChannelClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

// Receive returns queued frames before reporting the close.
func (c *FakeChannel) Receive() ([]byte, error) {
	select {
	case payload := <-c.inbox:
		return payload, nil
	case <-c.ended:
		select {
		case payload := <-c.inbox:
			return payload, nil
		default:
			return nil, ErrChannelClosed
		}
	}
}

func (c *FakeChannel) CloseGracefully(code int, reason string) error {
	c.mu.Lock()
	c.closeCode = code
	c.closeReason = reason
	c.graceful++
	c.mu.Unlock()
	if c.AutoClose {
		c.PeerClose()
	}
	return nil
}

// PeerClose simulates the server finishing the close handshake or dropping
// the connection. Receive ends; the channel itself stays open until Close.
func (c *FakeChannel) PeerClose() {
	c.endOnce.Do(func() { close(c.ended) })
}

func (c *FakeChannel) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	c.PeerClose()
	return nil
}

// CloseCalls returns how many times Close was called.
func (c *FakeChannel) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// IsClosed reports whether Close was called.
func (c *FakeChannel) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Sent returns the frames written so far.
func (c *FakeChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, s := range c.sent {
		out[i] = string(s)
	}
	return out
}

// CloseRequest returns the code and reason of the last graceful close and
// how many were requested.
func (c *FakeChannel) CloseRequest() (code int, reason string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason, c.graceful
}
