package codec

import (
	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/internal/models"
)

// Header carries the fields every incoming message may have.
type Header struct {
	Command   constants.CommandID
	Status    int
	HasStatus bool
	Error     string
}

// Message is one of FullList, DeltaList, UserCount, SingleUpdate,
// ServerError, Unknown or Unrouted.
type Message interface {
	Header() Header
	isMessage()
}

type base struct {
	h Header
}

func (b base) Header() Header { return b.h }
func (base) isMessage() {}

// FullList replaces the whole signal store.
type FullList struct {
	base
	Records []models.SignalRecord
}

// DeltaList mutates the records it names.
type DeltaList struct {
	base
	Updates []models.PartialSignal
}

// UserCount reports how many clients the server has.
type UserCount struct {
	base
	Number int
}

// SingleUpdate mutates one record.
type SingleUpdate struct {
	base
	Update models.PartialSignal
}

// ServerError is any message with a negative status or command.
type ServerError struct {
	base
}

// Unknown has a non-negative status but a command this client does not know.
type Unknown struct {
	base
}

// Unrouted has no status field and must not be routed.
type Unrouted struct {
	base
}
