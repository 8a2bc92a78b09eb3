package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benmeehan/signal-agent/internal/metrics"
	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/benmeehan/signal-agent/pkg/jwt"
	"github.com/benmeehan/signal-agent/pkg/login"
	"github.com/rs/zerolog"
)

// AuthSink receives the outcome of every login.
type AuthSink interface {
	Authenticate(token string)
	AuthenticationFailed(err error)
}

// AuthService logs in, hands the token to the sink and logs in again before
// the token expires. Every successful login is a new authentication event.
type AuthService struct {
	// Configuration
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
	refreshMargin time.Duration

	// Dependencies
	authenticator login.Authenticator
	sink          AuthSink
	jwtManager    jwt.JWTManagerInterface
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	// Internal state
	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAuthService initializes and returns a new AuthService instance. m may be nil.
func NewAuthService(
	maxRetries int,
	baseDelay time.Duration,
	maxDelay time.Duration,
	refreshMargin time.Duration,
	authenticator login.Authenticator,
	sink AuthSink,
	jwtManager jwt.JWTManagerInterface,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
		refreshMargin: refreshMargin,
		authenticator: authenticator,
		sink:          sink,
		jwtManager:    jwtManager,
		metrics:       m,
		logger:        logger,
		kick:          make(chan struct{}, 1),
	}
}

// Start performs the first login in the background and keeps the token fresh.
func (as *AuthService) Start() error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ctx != nil {
		return errors.New("auth service is already running")
	}
	as.ctx, as.cancel = context.WithCancel(context.Background())

	as.wg.Add(1)
	go func() {
		defer as.wg.Done()
		as.run(as.ctx)
	}()

	as.logger.Info().Msg("Auth service started")
	return nil
}

// Stop ends the refresh loop and forgets the token.
func (as *AuthService) Stop() error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ctx == nil {
		return errors.New("auth service is not running")
	}
	as.cancel()
	as.wg.Wait()
	as.ctx, as.cancel = nil, nil
	as.jwtManager.Clear()

	as.logger.Info().Msg("Auth service stopped")
	return nil
}

// Reauthenticate asks for an immediate login, also after a failure.
func (as *AuthService) Reauthenticate() {
	select {
	case as.kick <- struct{}{}:
	default:
	}
}

func (as *AuthService) run(ctx context.Context) {
	for {
		creds, err := as.loginWithRetry(ctx)
		if ctx.Err() != nil {
			return
		}

		var wait <-chan time.Time
		if err != nil {
			as.jwtManager.Clear()
			as.sink.AuthenticationFailed(err)
		} else if err := as.jwtManager.SaveJWT(creds.Token, creds.Expire); err != nil {
			as.sink.AuthenticationFailed(fmt.Errorf("failed to store token: %w", err))
		} else {
			as.sink.Authenticate(creds.Token)
			wait = as.refreshTimer(as.jwtManager.ExpiresAt())
		}

		select {
		case <-ctx.Done():
			return
		case <-as.kick:
			as.logger.Info().Msg("Re-authentication requested")
		case <-wait:
			as.logger.Info().Msg("Token close to expiry, refreshing")
		}
	}
}

// refreshTimer fires refreshMargin before expire. A zero expire never fires.
func (as *AuthService) refreshTimer(expire time.Time) <-chan time.Time {
	if expire.IsZero() {
		return nil
	}
	in := time.Until(expire) - as.refreshMargin
	if in < as.baseDelay {
		in = as.baseDelay
	}
	as.logger.Debug().Time("expire", expire).Dur("refresh_in", in).Msg("Scheduled token refresh")
	return time.After(in)
}

func (as *AuthService) loginWithRetry(ctx context.Context) (models.Credentials, error) {
	var lastErr error
	for attempt := 0; attempt <= as.maxRetries; attempt++ {
		creds, err := as.authenticator.Login(ctx)
		if err == nil {
			as.count("success")
			as.logger.Info().Int("attempt", attempt+1).Time("expire", creds.Expire).Msg("Logged in")
			return creds, nil
		}
		lastErr = err

		if errors.Is(err, login.ErrUnauthorized) {
			as.count("rejected")
			as.logger.Error().Err(err).Msg("Login rejected")
			return models.Credentials{}, err
		}
		as.count("error")
		if attempt == as.maxRetries {
			break
		}

		delay := as.backoff(attempt)
		as.logger.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", delay).Msg("Login failed, retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return models.Credentials{}, ctx.Err()
		}
	}
	return models.Credentials{}, fmt.Errorf("login failed after %d attempts: %w", as.maxRetries+1, lastErr)
}

// backoff doubles the base delay per attempt up to maxDelay, then keeps
// between 75% and 125% of it.
func (as *AuthService) backoff(attempt int) time.Duration {
	delay := as.baseDelay << uint(min(attempt, 30))
	if delay > as.maxDelay || delay <= 0 {
		delay = as.maxDelay
	}
	return time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
}

func (as *AuthService) count(result string) {
	if as.metrics != nil {
		as.metrics.AuthAttempts.WithLabelValues(result).Inc()
	}
}
