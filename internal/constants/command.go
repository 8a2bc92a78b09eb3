package constants

// CommandID identifies a message on the dashboard channel, in both directions.
type CommandID int

const (
	// CommandFullList requests (client) or carries (server) the complete signal list.
	CommandFullList CommandID = 1
	// CommandDeltaList carries a sparse list of signals whose value changed.
	CommandDeltaList CommandID = 2
	// CommandUserCount carries the number of clients connected to the server.
	CommandUserCount CommandID = 3
	// CommandSingleUpdate carries one signal measurement at top level.
	CommandSingleUpdate CommandID = 4
)

// String returns the name used in logs and metric labels.
func (c CommandID) String() string {
	switch c {
	case CommandFullList:
		return "full_list"
	case CommandDeltaList:
		return "delta_list"
	case CommandUserCount:
		return "user_count"
	case CommandSingleUpdate:
		return "single_update"
	}
	if c < 0 {
		return "server_error"
	}
	return "unknown"
}

// Response statuses. Any negative status is an error reported by the server.
const (
	StatusOK                  = 0
	StatusRequestNotSupported = -1
	StatusBadRequest          = -2
)

// DisplayIndexLimit bounds which records reach the presentation layer.
// Records at or above it stay in the store but are never rendered.
const DisplayIndexLimit = 100
