package dispatcher

import (
	"errors"
	"fmt"

	"github.com/benmeehan/signal-agent/internal/codec"
	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/internal/metrics"
	"github.com/benmeehan/signal-agent/internal/session"
	"github.com/rs/zerolog"
)

// State of a dispatcher.
type State int

const (
	// Unauthenticated dispatchers route nothing; only the opening handshake may be sent.
	Unauthenticated State = iota
	// Active dispatchers route every incoming message.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "unauthenticated"
}

// Outcome classifies what happened to one incoming message.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeMalformed
	OutcomeMissingStatus
	OutcomeServerError
	OutcomeUnknownCommand
	OutcomeInactive
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeMissingStatus:
		return "missing_status"
	case OutcomeServerError:
		return "server_error"
	case OutcomeUnknownCommand:
		return "unknown_command"
	case OutcomeInactive:
		return "inactive"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result reports how a message was handled.
type Result struct {
	Outcome Outcome
	Command constants.CommandID
	Applied int
	Skipped int
	Err     error
}

type handlerFunc func(msg codec.Message) Result

// Dispatcher decodes the messages of one session and routes them by command.
type Dispatcher struct {
	session *session.Session
	state   State
	routes  map[constants.CommandID]handlerFunc

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an Unauthenticated dispatcher bound to sess. logger is expected
// to carry the session's generation.
func New(sess *session.Session, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		session: sess,
		state:   Unauthenticated,
		metrics: m,
		logger:  logger.With().Str("session_id", sess.ID).Logger(),
	}
	d.routes = map[constants.CommandID]handlerFunc{
		constants.CommandFullList:     d.handleFullList,
		constants.CommandDeltaList:    d.handleDeltaList,
		constants.CommandUserCount:    d.handleUserCount,
		constants.CommandSingleUpdate: d.handleSingleUpdate,
	}
	return d
}

// State returns the current dispatcher state.
func (d *Dispatcher) State() State {
	return d.state
}

// Activate requests the full signal list and starts routing.
func (d *Dispatcher) Activate() error {
	payload, err := codec.Encode(constants.CommandFullList)
	if err != nil {
		return err
	}
	if err := d.session.Channel.Send(payload); err != nil {
		return fmt.Errorf("failed to request full signal list: %w", err)
	}
	d.state = Active
	d.logger.Info().Msg("Requested full signal list")
	return nil
}

// Handle decodes raw and applies it to the session. It never fails; every
// problem is logged and reported through the returned Result.
func (d *Dispatcher) Handle(raw []byte) Result {
	result := d.handle(raw)
	if d.metrics != nil {
		d.metrics.MessagesTotal.WithLabelValues(result.Outcome.String(), result.Command.String()).Inc()
	}
	return result
}

func (d *Dispatcher) handle(raw []byte) Result {
	if d.state != Active {
		d.logger.Warn().Msg("Message received before the session was active, dropping it")
		return Result{Outcome: OutcomeInactive}
	}

	msg, err := codec.Decode(raw)
	if err != nil {
		event := d.logger.Warn().Err(err)
		if errors.Is(err, codec.ErrInvalidBody) {
			event = event.Bytes("payload", raw)
		}
		event.Msg("Dropping malformed message")
		return Result{Outcome: OutcomeMalformed, Err: err}
	}

	h := msg.Header()
	switch msg.(type) {
	case *codec.Unrouted:
		d.logger.Warn().Int("command", int(h.Command)).Bytes("payload", raw).Msg("Message has no status field, not routing it")
		return Result{Outcome: OutcomeMissingStatus, Command: h.Command}
	case *codec.ServerError:
		d.logger.Error().
			Int("command", int(h.Command)).
			Int("status", h.Status).
			Str("error", h.Error).
			Msg("Server reported an error")
		return Result{Outcome: OutcomeServerError, Command: h.Command}
	}

	route, ok := d.routes[h.Command]
	if !ok {
		d.logger.Warn().Int("command", int(h.Command)).Msg("Unknown command")
		return Result{Outcome: OutcomeUnknownCommand, Command: h.Command}
	}
	return route(msg)
}

func (d *Dispatcher) handleFullList(msg codec.Message) Result {
	list := msg.(*codec.FullList)
	d.session.Store.ReplaceAll(list.Records)
	if d.metrics != nil {
		d.metrics.SignalsTotal.Set(float64(d.session.Store.Len()))
	}
	d.logger.Info().Int("total", d.session.Store.Len()).Msg("Full signal list received")
	return Result{Outcome: OutcomeApplied, Command: constants.CommandFullList, Applied: len(list.Records)}
}

func (d *Dispatcher) handleDeltaList(msg codec.Message) Result {
	list := msg.(*codec.DeltaList)
	count := d.session.Store.ApplyDelta(list.Updates)
	d.countUpdates(count.Applied, count.Skipped)
	return Result{
		Outcome: OutcomeApplied,
		Command: constants.CommandDeltaList,
		Applied: count.Applied,
		Skipped: count.Skipped,
	}
}

func (d *Dispatcher) handleUserCount(msg codec.Message) Result {
	count := msg.(*codec.UserCount)
	d.session.SetUserCount(count.Number)
	if d.metrics != nil {
		d.metrics.ConnectedUsers.Set(float64(count.Number))
	}
	d.logger.Debug().Int("users", count.Number).Msg("Connected users updated")
	return Result{Outcome: OutcomeApplied, Command: constants.CommandUserCount}
}

func (d *Dispatcher) handleSingleUpdate(msg codec.Message) Result {
	update := msg.(*codec.SingleUpdate)
	result := Result{Outcome: OutcomeApplied, Command: constants.CommandSingleUpdate}
	if d.session.Store.ApplySingle(update.Update) {
		result.Applied = 1
	} else {
		result.Skipped = 1
	}
	d.countUpdates(result.Applied, result.Skipped)
	return result
}

func (d *Dispatcher) countUpdates(applied, skipped int) {
	if d.metrics == nil {
		return
	}
	d.metrics.UpdatesApplied.Add(float64(applied))
	d.metrics.UpdatesDangling.Add(float64(skipped))
}
