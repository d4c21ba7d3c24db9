package streaming

import (
	"encoding/json"
	"testing"

	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSnapshot(t *testing.T) {
	snap := core.Snapshot{MissionID: "m-1", State: core.InitialState(), Pattern: core.PatternGrid}

	data, err := Encode(TypeSnapshot, snap)
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeSnapshot, env.Type)

	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "m-1", got["missionId"])
}

func TestDecodeCommand(t *testing.T) {
	env, err := Decode([]byte(`{"type":"command","payload":{"action":"pattern","value":"orbit"}}`))
	require.NoError(t, err)
	require.Equal(t, TypeCommand, env.Type)

	var cmd CommandPayload
	require.NoError(t, json.Unmarshal(env.Payload, &cmd))
	assert.Equal(t, CommandPayload{Action: "pattern", Value: "orbit"}, cmd)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}
