package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/signal-agent/internal/lifecycle"
	"github.com/rs/zerolog"
)

// ConnectionService runs the connection manager loop. The manager runs at
// most once, so a stopped service cannot be started again.
type ConnectionService struct {
	manager     *lifecycle.Manager
	authEnabled bool
	stopTimeout time.Duration
	logger      zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	mu      sync.Mutex
}

// NewConnectionService creates a ConnectionService. Without auth the channel
// is opened once, with no token, as soon as the service starts.
func NewConnectionService(manager *lifecycle.Manager, authEnabled bool, stopTimeout time.Duration, logger zerolog.Logger) *ConnectionService {
	return &ConnectionService{
		manager:     manager,
		authEnabled: authEnabled,
		stopTimeout: stopTimeout,
		logger:      logger,
	}
}

// Start launches the manager loop.
func (cs *ConnectionService) Start() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ctx != nil {
		return errors.New("connection service is already running")
	}
	if cs.stopped {
		return errors.New("connection service cannot be restarted")
	}
	cs.ctx, cs.cancel = context.WithCancel(context.Background())

	go func() {
		if err := cs.manager.Run(cs.ctx); err != nil {
			cs.logger.Error().Err(err).Msg("Connection manager exited")
		}
	}()

	if !cs.authEnabled {
		cs.logger.Info().Msg("Authentication disabled, connecting without a token")
		cs.manager.Authenticate("")
	}
	return nil
}

// Stop cancels the loop and waits for it to close every channel.
func (cs *ConnectionService) Stop() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ctx == nil {
		return errors.New("connection service is not running")
	}
	cs.cancel()
	cs.ctx, cs.cancel = nil, nil
	cs.stopped = true

	select {
	case <-cs.manager.Done():
		cs.logger.Info().Msg("Connection service stopped")
		return nil
	case <-time.After(cs.stopTimeout):
		return errors.New("timed out waiting for the connection manager to stop")
	}
}
