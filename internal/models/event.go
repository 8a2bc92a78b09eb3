package models

// StoreEventKind distinguishes a full replace from a single-record change.
type StoreEventKind int

const (
	EventReplaced StoreEventKind = iota
	EventUpdated
)

func (k StoreEventKind) String() string {
	if k == EventReplaced {
		return "replaced"
	}
	return "updated"
}

// StoreEvent is emitted by the signal store after every mutation a view
// needs to know about.
//
// For EventReplaced, Visible holds the displayable records in index order and
// Total the size of the whole store. For EventUpdated, Update holds the new
// value/state/timestamp of the changed record.
type StoreEvent struct {
	Kind       StoreEventKind `json:"kind"`
	Generation uint64         `json:"generation"`
	Update     PartialSignal  `json:"update"`
	Visible    []SignalRecord `json:"visible,omitempty"`
	Total      int            `json:"total"`
}
