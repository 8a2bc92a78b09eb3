package codec

import (
	"testing"
	"time"

	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	data, err := Encode(constants.CommandFullList)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":1}`, string(data))
}

func TestDecode_NotJSON(t *testing.T) {
	for _, raw := range []string{``, `{`, `not json`, `{"command":1,}`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
		assert.NotErrorIs(t, err, ErrInvalidBody, raw)
	}
}

func TestDecode_WrongEnvelopeTypes(t *testing.T) {
	_, err := Decode([]byte(`{"command":"one","status":0}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`[1,2,3]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_MissingStatus(t *testing.T) {
	msg, err := Decode([]byte(`{"command":1,"pids":[]}`))
	require.NoError(t, err)

	assert.IsType(t, &Unrouted{}, msg)
	assert.False(t, msg.Header().HasStatus)
	assert.Equal(t, constants.CommandFullList, msg.Header().Command)
}

func TestDecode_NegativeStatus(t *testing.T) {
	msg, err := Decode([]byte(`{"command":1,"status":-1,"error":"boom"}`))
	require.NoError(t, err)

	require.IsType(t, &ServerError{}, msg)
	h := msg.Header()
	assert.Equal(t, -1, h.Status)
	assert.Equal(t, "boom", h.Error)
}

func TestDecode_NegativeCommand(t *testing.T) {
	msg, err := Decode([]byte(`{"command":-2,"status":0,"error":"bad request"}`))
	require.NoError(t, err)
	assert.IsType(t, &ServerError{}, msg)
}

func TestDecode_ServerErrorIgnoresBody(t *testing.T) {
	msg, err := Decode([]byte(`{"command":1,"status":-2,"pids":"garbage"}`))
	require.NoError(t, err)
	assert.IsType(t, &ServerError{}, msg)
}

func TestDecode_FullList(t *testing.T) {
	raw := `{"command":1,"status":0,"pids":[
		{"index":2,"name":"pressure","type":0,"period":1000000000,"value":1.5,"state":1,"timestamp":42},
		{"index":0,"name":"valve","type":2,"period":500,"value":0,"state":0,"timestamp":0}
	]}`
	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	list, ok := msg.(*FullList)
	require.True(t, ok)
	require.Len(t, list.Records, 2)
	assert.Equal(t, models.SignalRecord{
		Index:     2,
		Name:      "pressure",
		Type:      models.SignalAnalogical,
		Period:    time.Second,
		Value:     1.5,
		State:     models.StateOK,
		Timestamp: 42,
	}, list.Records[0])
	assert.Equal(t, models.SignalDigital, list.Records[1].Type)
}

func TestDecode_FullListEmpty(t *testing.T) {
	msg, err := Decode([]byte(`{"command":1,"status":0,"pids":[]}`))
	require.NoError(t, err)

	list, ok := msg.(*FullList)
	require.True(t, ok)
	assert.Empty(t, list.Records)
}

func TestDecode_FullListInvalidBody(t *testing.T) {
	cases := map[string]string{
		"missing pids":     `{"command":1,"status":0}`,
		"pids not a list":  `{"command":1,"status":0,"pids":{}}`,
		"missing name":     `{"command":1,"status":0,"pids":[{"index":0,"type":0,"period":1,"value":0,"state":0,"timestamp":0}]}`,
		"missing period":   `{"command":1,"status":0,"pids":[{"index":0,"name":"a","type":0,"value":0,"state":0,"timestamp":0}]}`,
		"negative index":   `{"command":1,"status":0,"pids":[{"index":-1,"name":"a","type":0,"period":1,"value":0,"state":0,"timestamp":0}]}`,
		"value wrong type": `{"command":1,"status":0,"pids":[{"index":0,"name":"a","type":0,"period":1,"value":"x","state":0,"timestamp":0}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.ErrorIs(t, err, ErrInvalidBody)
		})
	}
}

func TestDecode_DeltaList(t *testing.T) {
	raw := `{"command":2,"status":0,"pids":[{"index":0,"value":3.25,"state":2,"timestamp":7}]}`
	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	delta, ok := msg.(*DeltaList)
	require.True(t, ok)
	assert.Equal(t, []models.PartialSignal{{Index: 0, Value: 3.25, State: models.StateBad, Timestamp: 7}}, delta.Updates)
}

func TestDecode_DeltaListMissingTimestamp(t *testing.T) {
	_, err := Decode([]byte(`{"command":2,"status":0,"pids":[{"index":0,"value":1,"state":1}]}`))
	assert.ErrorIs(t, err, ErrInvalidBody)
}

func TestDecode_UserCount(t *testing.T) {
	msg, err := Decode([]byte(`{"command":3,"status":0,"number":5}`))
	require.NoError(t, err)

	count, ok := msg.(*UserCount)
	require.True(t, ok)
	assert.Equal(t, 5, count.Number)

	_, err = Decode([]byte(`{"command":3,"status":0}`))
	assert.ErrorIs(t, err, ErrInvalidBody)
}

func TestDecode_SingleUpdate(t *testing.T) {
	msg, err := Decode([]byte(`{"command":4,"status":0,"index":9,"value":-1,"state":1,"timestamp":100}`))
	require.NoError(t, err)

	single, ok := msg.(*SingleUpdate)
	require.True(t, ok)
	assert.Equal(t, models.PartialSignal{Index: 9, Value: -1, State: models.StateOK, Timestamp: 100}, single.Update)

	_, err = Decode([]byte(`{"command":4,"status":0,"value":1,"state":1,"timestamp":1}`))
	assert.ErrorIs(t, err, ErrInvalidBody)
}

func TestDecode_UnknownCommand(t *testing.T) {
	msg, err := Decode([]byte(`{"command":99,"status":0}`))
	require.NoError(t, err)
	assert.IsType(t, &Unknown{}, msg)
	assert.Equal(t, constants.CommandID(99), msg.Header().Command)
}

func TestDecode_MissingCommand(t *testing.T) {
	msg, err := Decode([]byte(`{"status":0}`))
	require.NoError(t, err)
	assert.IsType(t, &Unknown{}, msg)
	assert.Equal(t, constants.CommandID(0), msg.Header().Command)
}

func TestDecode_UnknownStateValuePreserved(t *testing.T) {
	msg, err := Decode([]byte(`{"command":4,"status":0,"index":1,"value":0,"state":7,"timestamp":0}`))
	require.NoError(t, err)

	single := msg.(*SingleUpdate)
	assert.Equal(t, models.SignalState(7), single.Update.State)
	assert.Equal(t, "Unknown(7)", single.Update.State.String())
}
