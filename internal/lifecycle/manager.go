package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/internal/dispatcher"
	"github.com/benmeehan/signal-agent/internal/metrics"
	"github.com/benmeehan/signal-agent/internal/session"
	"github.com/benmeehan/signal-agent/internal/store"
	"github.com/rs/zerolog"
)

// ErrClosed is returned when the manager loop is already running or has exited.
var ErrClosed = errors.New("connection manager is closed")

// connection is one channel generation as seen by the loop.
type connection struct {
	generation uint64
	token      string
	channel    Channel // nil while dialing
	session    *session.Session
	dispatcher *dispatcher.Dispatcher
	cancelDial context.CancelFunc
	closing    bool // close was requested by this client
	graceTimer *time.Timer
}

// Manager owns channel creation, the authentication handshake and
// re-authentication handoffs. All channel events are processed in arrival
// order by the single goroutine running Run.
type Manager struct {
	dialer       Dialer
	handoffGrace time.Duration
	observer     store.Observer
	metrics      *metrics.Metrics
	logger       zerolog.Logger

	events  chan event
	done    chan struct{}
	running atomic.Bool

	// Owned by the loop goroutine.
	ctx          context.Context
	generation   uint64
	conn         *connection
	draining     map[uint64]*connection
	pendingToken *string

	state   atomic.Int32
	current atomic.Pointer[session.Session]
}

// NewManager creates a manager in StateUnauthenticated. observer receives
// the store events of every session and may be nil.
func NewManager(dialer Dialer, handoffGrace time.Duration, observer store.Observer, m *metrics.Metrics, logger zerolog.Logger) *Manager {
	if handoffGrace <= 0 {
		handoffGrace = constants.DefaultHandoffGrace
	}
	return &Manager{
		dialer:       dialer,
		handoffGrace: handoffGrace,
		observer:     observer,
		metrics:      m,
		logger:       logger,
		events:       make(chan event, constants.DefaultEventBuffer),
		done:         make(chan struct{}),
		draining:     make(map[uint64]*connection),
	}
}

// Authenticate reports a fresh token from the login flow. With a ready
// channel this triggers a handoff to a new channel; otherwise a channel is
// opened directly.
func (m *Manager) Authenticate(token string) {
	m.post(event{kind: evAuthenticated, token: token})
}

// AuthenticationFailed closes any open channel and returns to
// StateUnauthenticated. No new channel is opened.
func (m *Manager) AuthenticationFailed(err error) {
	m.post(event{kind: evAuthFailed, err: err})
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Current returns the session of the active channel, or nil.
func (m *Manager) Current() *session.Session {
	return m.current.Load()
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Run processes events until ctx is cancelled, then closes every channel.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrClosed
	}
	m.ctx = ctx
	defer close(m.done)

	m.logger.Info().Msg("Connection manager started")
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			m.logger.Info().Msg("Connection manager stopped")
			return nil
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Manager) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
		if ev.channel != nil {
			_ = ev.channel.Close()
		}
	}
}

func (m *Manager) handle(ev event) {
	switch ev.kind {
	case evAuthenticated:
		m.onAuthenticated(ev.token)
	case evAuthFailed:
		m.onAuthFailed(ev.err)
	case evOpened:
		m.onOpened(ev.generation, ev.channel)
	case evOpenFailed:
		m.onOpenFailed(ev.generation, ev.err)
	case evMessage:
		m.onMessage(ev.generation, ev.payload)
	case evClosed:
		m.onClosed(ev.generation, ev.err)
	case evCloseTimeout:
		m.onCloseTimeout(ev.generation)
	}
}

func (m *Manager) onAuthenticated(token string) {
	switch m.State() {
	case StateActive:
		m.handoff(token)
	case StateHandoff:
		m.logger.Info().Msg("New token during handoff, replacing the pending one")
		m.pendingToken = &token
	case StateConnecting:
		m.logger.Info().Uint64("generation", m.conn.generation).Msg("New token before the channel was ready, abandoning it")
		m.retire(constants.CloseReasonReauth)
		m.open(token)
	default:
		m.open(token)
	}
}

// handoff replaces the ready channel: the new token is armed first, then
// the old channel is asked to close. The next generation opens once the old
// one reports its close.
func (m *Manager) handoff(token string) {
	m.pendingToken = &token
	m.setState(StateHandoff)
	m.logger.Info().Uint64("generation", m.conn.generation).Msg("Re-authenticated, handing off to a new channel")
	m.requestClose(m.conn, constants.CloseReasonReauth)
}

func (m *Manager) onAuthFailed(err error) {
	m.logger.Error().Err(err).Msg("Authentication failed, closing the channel")
	m.pendingToken = nil
	m.retire(constants.CloseReasonAuthFailed)
	m.setState(StateUnauthenticated)
}

// retire stops routing to the current connection and closes it.
func (m *Manager) retire(reason string) {
	conn := m.conn
	if conn == nil {
		return
	}
	m.conn = nil
	m.current.Store(nil)

	if conn.channel == nil {
		conn.cancelDial()
		return
	}
	if !conn.closing {
		m.requestClose(conn, reason)
	}
	m.draining[conn.generation] = conn
}

func (m *Manager) open(token string) {
	m.generation++
	gen := m.generation

	dialCtx, cancel := context.WithCancel(m.ctx)
	m.conn = &connection{generation: gen, token: token, cancelDial: cancel}
	m.setState(StateConnecting)
	m.logger.Info().Uint64("generation", gen).Bool("authenticated", token != "").Msg("Opening channel")

	go func() {
		ch, err := m.dialer.Dial(dialCtx, token)
		if err != nil {
			m.post(event{kind: evOpenFailed, generation: gen, err: err})
			return
		}
		m.post(event{kind: evOpened, generation: gen, channel: ch})
	}()
}

func (m *Manager) onOpened(gen uint64, ch Channel) {
	conn := m.conn
	if conn == nil || conn.generation != gen {
		m.logger.Debug().Uint64("generation", gen).Msg("Dropping channel of an abandoned generation")
		m.countStale()
		_ = ch.Close()
		return
	}
	conn.cancelDial()
	conn.channel = ch

	logger := m.logger.With().Uint64("generation", gen).Logger()
	conn.session = session.New(gen, conn.token, ch, m.observer, logger)
	conn.dispatcher = dispatcher.New(conn.session, m.metrics, logger)

	go m.readLoop(gen, ch)

	if err := conn.dispatcher.Activate(); err != nil {
		logger.Error().Err(err).Msg("Failed to activate session")
		_ = ch.Close()
		return
	}

	m.current.Store(conn.session)
	m.setState(StateActive)
	if m.metrics != nil {
		m.metrics.ChannelsOpened.Inc()
	}
	logger.Info().Str("session_id", conn.session.ID).Msg("Channel open")
}

func (m *Manager) onOpenFailed(gen uint64, err error) {
	if m.conn == nil || m.conn.generation != gen {
		m.logger.Debug().Uint64("generation", gen).Err(err).Msg("Ignoring dial failure of an abandoned generation")
		return
	}
	m.logger.Error().Uint64("generation", gen).Err(err).Msg("Failed to open channel")
	m.conn.cancelDial()
	m.conn = nil
	m.setState(StateUnauthenticated)
}

func (m *Manager) readLoop(gen uint64, ch Channel) {
	for {
		payload, err := ch.Receive()
		if err != nil {
			m.post(event{kind: evClosed, generation: gen, err: err})
			return
		}
		m.post(event{kind: evMessage, generation: gen, payload: payload})
	}
}

func (m *Manager) onMessage(gen uint64, payload []byte) {
	conn := m.conn
	if conn == nil || conn.generation != gen || conn.dispatcher == nil {
		m.logger.Debug().Uint64("generation", gen).Msg("Dropping message of a stale generation")
		m.countStale()
		return
	}
	conn.dispatcher.Handle(payload)
}

func (m *Manager) onClosed(gen uint64, err error) {
	if conn, ok := m.draining[gen]; ok {
		delete(m.draining, gen)
		conn.stopGraceTimer()
		_ = conn.channel.Close()
		m.countClosed("requested")
		m.logger.Info().Uint64("generation", gen).Msg("Retired channel closed")
		return
	}

	conn := m.conn
	if conn == nil || conn.generation != gen {
		m.logger.Debug().Uint64("generation", gen).Msg("Ignoring close of a stale generation")
		return
	}
	conn.stopGraceTimer()
	// The end of Receive does not release the transport.
	_ = conn.channel.Close()
	m.conn = nil
	m.current.Store(nil)

	if !conn.closing {
		m.countClosed("unexpected")
		m.logger.Warn().Uint64("generation", gen).Err(err).Msg("Channel closed unexpectedly, waiting for a new authentication")
		m.setState(StateUnauthenticated)
		return
	}

	m.countClosed("requested")
	if m.pendingToken != nil {
		token := *m.pendingToken
		m.pendingToken = nil
		m.logger.Info().Uint64("generation", gen).Msg("Old channel closed, opening the next generation")
		m.open(token)
		return
	}
	m.setState(StateUnauthenticated)
}

func (m *Manager) onCloseTimeout(gen uint64) {
	conn, ok := m.draining[gen]
	if !ok && m.conn != nil && m.conn.generation == gen {
		conn, ok = m.conn, true
	}
	if !ok || conn.channel == nil {
		return
	}
	m.logger.Warn().Uint64("generation", gen).Dur("grace", m.handoffGrace).Msg("Channel did not confirm close in time, dropping it")
	_ = conn.channel.Close()
}

func (m *Manager) requestClose(conn *connection, reason string) {
	conn.closing = true
	if err := conn.channel.CloseGracefully(constants.CloseNormal, reason); err != nil {
		m.logger.Warn().Uint64("generation", conn.generation).Err(err).Msg("Failed to send close frame, dropping the channel")
		_ = conn.channel.Close()
	}
	gen := conn.generation
	conn.graceTimer = time.AfterFunc(m.handoffGrace, func() {
		m.post(event{kind: evCloseTimeout, generation: gen})
	})
}

func (m *Manager) shutdown() {
	m.pendingToken = nil
	if m.conn != nil {
		m.retire(constants.CloseReasonShutdown)
	}
	for gen, conn := range m.draining {
		conn.stopGraceTimer()
		_ = conn.channel.Close()
		delete(m.draining, gen)
	}
	m.setState(StateUnauthenticated)
}

func (m *Manager) setState(s State) {
	prev := State(m.state.Swap(int32(s)))
	if m.metrics != nil {
		m.metrics.ConnectionState.Set(float64(s))
	}
	if prev != s {
		m.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("Connection state changed")
	}
}

func (m *Manager) countStale() {
	if m.metrics != nil {
		m.metrics.StaleEvents.Inc()
	}
}

func (m *Manager) countClosed(cause string) {
	if m.metrics != nil {
		m.metrics.ChannelsClosed.WithLabelValues(cause).Inc()
	}
}

func (c *connection) stopGraceTimer() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}
}
