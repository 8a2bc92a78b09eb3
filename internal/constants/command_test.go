package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandID_String(t *testing.T) {
	cases := map[CommandID]string{
		CommandFullList:     "full_list",
		CommandDeltaList:    "delta_list",
		CommandUserCount:    "user_count",
		CommandSingleUpdate: "single_update",
		0:                   "unknown",
		12:                  "unknown",
		-3:                  "server_error",
	}
	for id, want := range cases {
		assert.Equal(t, want, id.String(), "command %d", int(id))
	}
}
