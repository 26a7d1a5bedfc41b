package roomconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		name        string
		base        string
		room        string
		participant string
		want        string
	}{
		{"https origin", "https://festival.example.com", "ABCD", "p1", "wss://festival.example.com/ws/ABCD?participant_id=p1"},
		{"http origin", "http://localhost:8080", "ABCD", "", "ws://localhost:8080/ws/ABCD"},
		{"ws kept", "ws://10.0.0.2:9000", "global", "", "ws://10.0.0.2:9000/ws/global"},
		{"wss kept", "wss://festival.example.com", "XY12", "", "wss://festival.example.com/ws/XY12"},
		{"path prefix", "https://example.com/party/", "ABCD", "", "wss://example.com/party/ws/ABCD"},
		{"bare host", "localhost:8080", "ABCD", "", "ws://localhost:8080/ws/ABCD"},
		{"empty base", "", "ABCD", "", "ws://localhost:8080/ws/ABCD"},
		{"query escaped", "http://localhost", "ABCD", "a b&c", "ws://localhost/ws/ABCD?participant_id=a+b%26c"},
		{"upper scheme", "HTTPS://example.com", "ABCD", "", "wss://example.com/ws/ABCD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Address(tt.base, tt.room, tt.participant)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressErrors(t *testing.T) {
	_, err := Address("http://localhost", "", "")
	assert.ErrorIs(t, err, errEmptyRoom)

	_, err = Address("ftp://localhost", "ABCD", "")
	assert.Error(t, err)

	_, err = Address("http://", "ABCD", "")
	assert.Error(t, err)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"round_start","round":2,"game_key":"horse"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeRoundStart, ev.Type)
	assert.Equal(t, "horse", ev.String("game_key"))
	assert.Equal(t, "", ev.String("round"))
	assert.Equal(t, float64(2), ev.Fields["round"])

	for _, raw := range []string{`{}`, `{"type":""}`, `{"type":null}`, `{"type":["x"]}`} {
		_, err := DecodeEvent([]byte(raw))
		assert.ErrorIs(t, err, ErrUntypedFrame, raw)
	}

	for _, raw := range []string{``, `ping`, `[1,2]`, `"team_update"`, `{"type":`} {
		_, err := DecodeEvent([]byte(raw))
		assert.Error(t, err, raw)
		assert.NotErrorIs(t, err, ErrUntypedFrame, raw)
	}
}

func TestIsPong(t *testing.T) {
	assert.True(t, isPong([]byte("pong")))
	assert.True(t, isPong([]byte("  pong\r\n")))
	assert.False(t, isPong([]byte("ping")))
	assert.False(t, isPong([]byte(`{"type":"pong"}`)))
}

func TestNewIntent(t *testing.T) {
	in := NewIntent("emote", map[string]any{"emoji": "🎣", "type": "other"})
	assert.Equal(t, Intent{"type": "emote", "emoji": "🎣"}, in)

	data, err := encodeOutbound(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"emote","emoji":"🎣"}`, string(data))

	data, err = encodeOutbound("ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", string(data))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "retrying", StateRetrying.String())
	assert.Equal(t, "unknown", State(42).String())
}
