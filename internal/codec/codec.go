package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/internal/models"
)

var (
	// ErrMalformed is returned when a payload cannot be parsed as a message.
	ErrMalformed = errors.New("malformed message")
	// ErrInvalidBody is returned when a routable message lacks a field its
	// command requires. It is always wrapped together with ErrMalformed.
	ErrInvalidBody = errors.New("invalid message body")
)

// request is the only outgoing shape of the protocol.
type request struct {
	Command constants.CommandID `json:"command"`
}

// Encode serializes an outgoing command.
func Encode(command constants.CommandID) ([]byte, error) {
	data, err := json.Marshal(request{Command: command})
	if err != nil {
		return nil, fmt.Errorf("failed to encode command %d: %w", command, err)
	}
	return data, nil
}

// envelope holds the fields common to every incoming message. Pointers
// distinguish an absent field from a zero value.
type envelope struct {
	Command *int   `json:"command"`
	Status  *int   `json:"status"`
	Error   string `json:"error"`
}

type wireRecord struct {
	Index     *int     `json:"index"`
	Name      *string  `json:"name"`
	Type      *int     `json:"type"`
	Period    *float64 `json:"period"`
	Value     *float64 `json:"value"`
	State     *int     `json:"state"`
	Timestamp *int64   `json:"timestamp"`
}

type fullListBody struct {
	Pids *[]wireRecord `json:"pids"`
}

type userCountBody struct {
	Number *int `json:"number"`
}

// Decode parses an incoming payload into one of the Message variants.
//
// A payload without a status decodes to Unrouted and a negative status to
// ServerError; neither is an error. Only unparsable payloads and routable
// messages missing required fields fail.
func Decode(raw []byte) (Message, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrMalformed)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	h := Header{Error: env.Error}
	if env.Command != nil {
		h.Command = constants.CommandID(*env.Command)
	}
	if env.Status != nil {
		h.Status = *env.Status
		h.HasStatus = true
	}

	switch {
	case !h.HasStatus:
		return &Unrouted{base{h}}, nil
	case h.Status < 0 || h.Command < 0:
		return &ServerError{base{h}}, nil
	}

	switch h.Command {
	case constants.CommandFullList:
		records, err := decodeFullList(raw)
		if err != nil {
			return nil, err
		}
		return &FullList{base: base{h}, Records: records}, nil

	case constants.CommandDeltaList:
		updates, err := decodeDeltaList(raw)
		if err != nil {
			return nil, err
		}
		return &DeltaList{base: base{h}, Updates: updates}, nil

	case constants.CommandUserCount:
		var body userCountBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, invalidBody("%v", err)
		}
		if body.Number == nil {
			return nil, invalidBody("missing number")
		}
		return &UserCount{base: base{h}, Number: *body.Number}, nil

	case constants.CommandSingleUpdate:
		var w wireRecord
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, invalidBody("%v", err)
		}
		update, err := w.partial()
		if err != nil {
			return nil, invalidBody("%v", err)
		}
		return &SingleUpdate{base: base{h}, Update: update}, nil
	}

	return &Unknown{base{h}}, nil
}

func decodeFullList(raw []byte) ([]models.SignalRecord, error) {
	var body fullListBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, invalidBody("%v", err)
	}
	if body.Pids == nil {
		return nil, invalidBody("missing pids")
	}

	records := make([]models.SignalRecord, 0, len(*body.Pids))
	for i, w := range *body.Pids {
		record, err := w.record()
		if err != nil {
			return nil, invalidBody("pids[%d]: %v", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeDeltaList(raw []byte) ([]models.PartialSignal, error) {
	var body fullListBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, invalidBody("%v", err)
	}
	if body.Pids == nil {
		return nil, invalidBody("missing pids")
	}

	updates := make([]models.PartialSignal, 0, len(*body.Pids))
	for i, w := range *body.Pids {
		update, err := w.partial()
		if err != nil {
			return nil, invalidBody("pids[%d]: %v", i, err)
		}
		updates = append(updates, update)
	}
	return updates, nil
}

func (w wireRecord) partial() (models.PartialSignal, error) {
	switch {
	case w.Index == nil:
		return models.PartialSignal{}, errors.New("missing index")
	case *w.Index < 0:
		return models.PartialSignal{}, fmt.Errorf("negative index %d", *w.Index)
	case w.Value == nil:
		return models.PartialSignal{}, errors.New("missing value")
	case w.State == nil:
		return models.PartialSignal{}, errors.New("missing state")
	case w.Timestamp == nil:
		return models.PartialSignal{}, errors.New("missing timestamp")
	}
	return models.PartialSignal{
		Index:     *w.Index,
		Value:     *w.Value,
		State:     models.SignalState(*w.State),
		Timestamp: *w.Timestamp,
	}, nil
}

func (w wireRecord) record() (models.SignalRecord, error) {
	p, err := w.partial()
	if err != nil {
		return models.SignalRecord{}, err
	}
	switch {
	case w.Name == nil:
		return models.SignalRecord{}, errors.New("missing name")
	case w.Type == nil:
		return models.SignalRecord{}, errors.New("missing type")
	case w.Period == nil:
		return models.SignalRecord{}, errors.New("missing period")
	}
	return models.SignalRecord{
		Index:     p.Index,
		Name:      *w.Name,
		Type:      models.SignalType(*w.Type),
		Period:    time.Duration(*w.Period),
		Value:     p.Value,
		State:     p.State,
		Timestamp: p.Timestamp,
	}, nil
}

func invalidBody(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrMalformed, ErrInvalidBody, fmt.Sprintf(format, args...))
}
