package models

import (
	"fmt"
	"time"
)

// SignalType is the kind of instrumentation point. Wire values are fixed.
type SignalType int

const (
	SignalAnalogical SignalType = 0
	SignalDiscrete   SignalType = 1
	SignalDigital    SignalType = 2
)

func (t SignalType) String() string {
	switch t {
	case SignalAnalogical:
		return "Analogical"
	case SignalDiscrete:
		return "Discrete"
	case SignalDigital:
		return "Digital"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// SignalState is the quality of the last measurement. Wire values are fixed.
type SignalState int

const (
	StateNeverUpdated SignalState = 0
	StateOK           SignalState = 1
	StateBad          SignalState = 2
)

func (s SignalState) String() string {
	switch s {
	case StateNeverUpdated:
		return "Never Updated"
	case StateOK:
		return "OK"
	case StateBad:
		return "Bad"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// SignalRecord is the unit of monitored state. Index, Name, Type and Period
// are fixed once the record is created by a full snapshot.
type SignalRecord struct {
	Index     int           `json:"index"`
	Name      string        `json:"name"`
	Type      SignalType    `json:"type"`
	Period    time.Duration `json:"period"`
	Value     float64       `json:"value"`
	State     SignalState   `json:"state"`
	Timestamp int64         `json:"timestamp"` // nanoseconds since epoch
}

// MeasuredAt converts the record timestamp to a time.Time.
func (r SignalRecord) MeasuredAt() time.Time {
	return time.Unix(0, r.Timestamp)
}

// PartialSignal is a measurement targeting an existing record.
type PartialSignal struct {
	Index     int         `json:"index"`
	Value     float64     `json:"value"`
	State     SignalState `json:"state"`
	Timestamp int64       `json:"timestamp"`
}

// AppliedCount reports the outcome of a delta batch.
type AppliedCount struct {
	Applied        int
	Skipped        int
	SkippedIndices []int
}
