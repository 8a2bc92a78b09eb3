package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/signal-agent/internal/lifecycle"
	"github.com/benmeehan/signal-agent/internal/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDialer struct {
	mu      sync.Mutex
	tokens  []string
	channel *mocks.FakeChannel
}

func (d *recordingDialer) Dial(_ context.Context, token string) (lifecycle.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
	return d.channel, nil
}

func (d *recordingDialer) Tokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

func TestConnectionService_NoAuthConnectsOnStart(t *testing.T) {
	ch := mocks.NewFakeChannel()
	ch.AutoClose = true
	dialer := &recordingDialer{channel: ch}
	mgr := lifecycle.NewManager(dialer, 50*time.Millisecond, nil, nil, zerolog.Nop())

	cs := NewConnectionService(mgr, false, time.Second, zerolog.Nop())
	require.NoError(t, cs.Start())

	require.Eventually(t, func() bool { return mgr.State() == lifecycle.StateActive }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{""}, dialer.Tokens())
	assert.Equal(t, []string{`{"command":1}`}, ch.Sent())

	err := cs.Start()
	assert.Error(t, err)
	assert.Equal(t, "connection service is already running", err.Error())

	require.NoError(t, cs.Stop())
	assert.Equal(t, lifecycle.StateUnauthenticated, mgr.State())
	assert.True(t, ch.IsClosed())

	err = cs.Start()
	assert.Error(t, err)
	assert.Equal(t, "connection service cannot be restarted", err.Error())
	assert.Equal(t, []string{""}, dialer.Tokens())
}

func TestConnectionService_WaitsForToken(t *testing.T) {
	dialer := &recordingDialer{channel: mocks.NewFakeChannel()}
	mgr := lifecycle.NewManager(dialer, 50*time.Millisecond, nil, nil, zerolog.Nop())

	cs := NewConnectionService(mgr, true, time.Second, zerolog.Nop())
	require.NoError(t, cs.Start())
	defer cs.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, dialer.Tokens())
	assert.Equal(t, lifecycle.StateUnauthenticated, mgr.State())

	mgr.Authenticate("tok")
	require.Eventually(t, func() bool { return mgr.State() == lifecycle.StateActive }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"tok"}, dialer.Tokens())
}

func TestConnectionService_Stop_NotRunning(t *testing.T) {
	mgr := lifecycle.NewManager(&recordingDialer{}, time.Second, nil, nil, zerolog.Nop())
	cs := NewConnectionService(mgr, true, time.Second, zerolog.Nop())

	err := cs.Stop()
	assert.Error(t, err)
	assert.Equal(t, "connection service is not running", err.Error())
}
