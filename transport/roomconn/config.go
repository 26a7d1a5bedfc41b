package roomconn

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultReconnectDelay    = 2 * time.Second
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultSendQueueSize     = 64
)

// Config tunes a RoomConnection. The zero value is usable.
type Config struct {
	// ParticipantID is appended to the address as participant_id when set.
	ParticipantID string

	// BaseURL is the server origin, e.g. "https://festival.example.com" or
	// "ws://localhost:8080". Defaults to DefaultBaseURL.
	BaseURL string

	// ReconnectDelay is the fixed wait between an unexpected close and the
	// next dial. There is no retry limit.
	ReconnectDelay time.Duration

	// HeartbeatInterval is the period of the "ping" keep-alive while open.
	HeartbeatInterval time.Duration

	// Debug enables debug-level logs: state changes, dropped frames and
	// discarded sends.
	Debug bool

	// Logger receives the connection's logs. Nil disables logging.
	Logger *zerolog.Logger

	Dialer Dialer
	Clock  clockwork.Clock

	// SendQueueSize bounds frames waiting for the writer. Sends beyond it
	// are dropped.
	SendQueueSize int

	// OnTeamUpdate and OnScoreUpdate are invoked after the Handler for
	// team_update and score_update events respectively.
	OnTeamUpdate  func(Event)
	OnScoreUpdate func(Event)
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.Dialer == nil {
		c.Dialer = GorillaDialer{}
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

func (c Config) logger(roomID string) zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	l := c.Logger.With().Str("component", "roomconn").Str("room", roomID).Logger()
	if !c.Debug && l.GetLevel() < zerolog.InfoLevel {
		l = l.Level(zerolog.InfoLevel)
	}
	return l
}
