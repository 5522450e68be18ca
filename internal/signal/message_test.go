package signal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{
		"type": "join",
		"roomId": "consult-1",
		"userId": "alice",
		"role": "DOCTOR",
		"displayName": "Dr. Alice"
	}`))
	require.NoError(t, err)
	assert.Equal(t, KindJoin, msg.Kind)
	assert.Equal(t, "consult-1", msg.RoomID)
	assert.Equal(t, "alice", msg.UserID)
	assert.Equal(t, "DOCTOR", msg.Role)
	assert.Equal(t, "Dr. Alice", msg.DisplayName)
}

func TestDecodeMessage_Malformed(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"type": "join",`))
	assert.Error(t, err)
}

func TestHasPayload(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  bool
	}{
		{"absent", `{"type": "offer"}`, false},
		{"explicit null", `{"type": "offer", "sdp": null}`, false},
		{"string payload", `{"type": "offer", "sdp": "v=0"}`, true},
		{"object payload", `{"type": "offer", "sdp": {"type": "offer", "sdp": "v=0"}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, hasPayload(msg.SDP))
		})
	}
}

// The relay must never reshape the negotiation payload it forwards.
func TestMessage_PayloadRoundTrip(t *testing.T) {
	const sdp = `{"type":"offer","sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1\r\n"}`

	msg, err := DecodeMessage([]byte(`{"type":"offer","sdp":` + sdp + `}`))
	require.NoError(t, err)

	forwarded := &Message{Kind: KindOffer, SDP: msg.SDP, FromUserID: "alice"}
	encoded, err := json.Marshal(forwarded)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(encoded, &wire))
	assert.JSONEq(t, sdp, string(wire["sdp"]))
	assert.JSONEq(t, `"alice"`, string(wire["fromUserId"]))
}

func TestErrorMessage(t *testing.T) {
	encoded, err := json.Marshal(errorMessage(CodeRoomFull, "room is full (maximum 2 participants)"))
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(encoded, &wire))
	assert.Equal(t, "error", wire["type"])
	assert.Equal(t, CodeRoomFull, wire["code"])
	assert.Equal(t, "room is full (maximum 2 participants)", wire["message"])

	// Unrelated envelope fields stay off the wire.
	assert.NotContains(t, wire, "roomId")
	assert.NotContains(t, wire, "sdp")
}
