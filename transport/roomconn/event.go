package roomconn

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Keep-alive tokens exchanged as bare text frames.
const (
	pingToken = "ping"
	pongToken = "pong"
)

// Event types the room server pushes. Consumers may receive others.
const (
	TypePlayerJoin       = "player_join"
	TypePlayerDisconnect = "player_disconnect"
	TypeHostTransfer     = "host_transfer"
	TypeTeamUpdate       = "team_update"
	TypeGameStart        = "game_start"
	TypeRoundStart       = "round_start"
	TypeEnterGame        = "enter_game"
	TypeScoreUpdate      = "score_update"
	TypeRoundEnd         = "round_end"
	TypeGameSummary      = "game_summary"
	TypeRoomUpdate       = "room_update"
)

// ErrUntypedFrame is returned by DecodeEvent for JSON values that are not
// objects with a non-empty string "type" field.
var ErrUntypedFrame = errors.New("roomconn: frame has no type")

// Event is a decoded inbound frame.
type Event struct {
	// Type is the value of the frame's "type" field.
	Type string
	// Fields holds the whole decoded object, "type" included.
	Fields map[string]any
	// Raw is the frame exactly as received.
	Raw json.RawMessage
}

// Decode unmarshals the raw frame into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// String returns the string field named key, or "" when absent.
func (e Event) String(key string) string {
	s, _ := e.Fields[key].(string)
	return s
}

// DecodeEvent parses a text frame into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Event{}, fmt.Errorf("roomconn: decode frame: %w", err)
	}
	typ, _ := fields["type"].(string)
	if typ == "" {
		return Event{}, ErrUntypedFrame
	}
	return Event{
		Type:   typ,
		Fields: fields,
		Raw:    append(json.RawMessage(nil), data...),
	}, nil
}

// isPong reports whether a text frame is the server's keep-alive reply.
func isPong(data []byte) bool {
	return string(bytes.TrimSpace(data)) == pongToken
}

// Intent is an outbound tagged record.
type Intent map[string]any

// NewIntent builds an Intent of the given type. A "type" key in fields is
// ignored.
func NewIntent(typ string, fields map[string]any) Intent {
	in := make(Intent, len(fields)+1)
	for k, v := range fields {
		in[k] = v
	}
	in["type"] = typ
	return in
}

// encodeOutbound serializes a value handed to Send. Byte slices and
// strings are sent verbatim.
func encodeOutbound(v any) ([]byte, error) {
	switch m := v.(type) {
	case []byte:
		return m, nil
	case string:
		return []byte(m), nil
	case json.RawMessage:
		return m, nil
	}
	return json.Marshal(v)
}
