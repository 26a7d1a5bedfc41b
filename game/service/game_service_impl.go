package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/festival-lobby/game/config"
	"github.com/wricardo/festival-lobby/game/room"
)

// lobbyServiceImpl implements the LobbyService interface
type lobbyServiceImpl struct {
	rooms  RoomStore
	games  Catalog
	events Publisher
	clock  clockwork.Clock
}

// Option configures the lobby service
type Option func(*lobbyServiceImpl)

// WithClock replaces the wall clock
func WithClock(c clockwork.Clock) Option {
	return func(s *lobbyServiceImpl) { s.clock = c }
}

// NewLobbyService creates a new lobby service. A nil publisher drops events.
func NewLobbyService(rooms RoomStore, games Catalog, events Publisher, opts ...Option) LobbyService {
	if events == nil {
		events = nopPublisher{}
	}
	s := &lobbyServiceImpl{
		rooms:  rooms,
		games:  games,
		events: events,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom opens a room whose host is the caller
func (s *lobbyServiceImpl) CreateRoom(ctx context.Context, req CreateRoomRequest) (*JoinResult, error) {
	r, err := s.rooms.Create(ctx, room.Options{
		Name:       req.Name,
		Mode:       room.Mode(strings.ToLower(string(req.Mode))),
		HostName:   req.HostName,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		return nil, err
	}

	host := r.Host()
	log.Info().
		Str("room_code", r.Code).
		Str("mode", string(r.Mode)).
		Str("host", host.Name).
		Msg("Room created")

	s.publishRoomUpdate(r, "created")
	return &JoinResult{
		RoomCode: r.Code,
		PlayerID: host.ID,
		Name:     host.Name,
		IsHost:   true,
		Room:     s.info(r),
	}, nil
}

// JoinRoom adds a player to a waiting room
func (s *lobbyServiceImpl) JoinRoom(ctx context.Context, code, name string) (*JoinResult, error) {
	var joined room.Player
	r, err := s.rooms.Update(ctx, code, func(r *room.Room) error {
		p, err := r.Join(name, s.clock.Now())
		if err != nil {
			return err
		}
		joined = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("room_code", r.Code).
		Str("player_id", joined.ID).
		Str("team", joined.Team).
		Msg("Player joined")

	s.events.PublishRoom(r.Code, PlayerEvent{
		Type:     EventPlayerJoin,
		PlayerID: joined.ID,
		Name:     joined.Name,
		Team:     joined.Team,
		Room:     r.Code,
	})
	s.publishTeams(r)
	s.publishRoomUpdate(r, "joined")

	return &JoinResult{
		RoomCode: r.Code,
		PlayerID: joined.ID,
		Name:     joined.Name,
		Team:     joined.Team,
		Room:     s.info(r),
	}, nil
}

// ListRooms returns every live room, oldest first
func (s *lobbyServiceImpl) ListRooms(ctx context.Context) ([]*RoomInfo, error) {
	rooms := s.rooms.List()
	result := make([]*RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		result = append(result, s.info(r))
	}
	return result, nil
}

// GetRoom retrieves room information
func (s *lobbyServiceImpl) GetRoom(ctx context.Context, code string) (*RoomInfo, error) {
	r, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.info(r), nil
}

// StartGame closes the lobby and begins play
func (s *lobbyServiceImpl) StartGame(ctx context.Context, code string) (*RoomInfo, error) {
	r, err := s.rooms.Update(ctx, code, func(r *room.Room) error {
		return r.Start(s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("room_code", r.Code).Int("players", len(r.Contestants())).Msg("Game started")

	s.events.PublishRoom(r.Code, GameStartEvent{
		Type:        EventGameStart,
		Room:        r.Code,
		TotalRounds: len(s.games.Stages()),
	})
	s.publishRoomUpdate(r, "started")
	return s.info(r), nil
}

// StartRound opens the next mini-game and sends connected players into it
func (s *lobbyServiceImpl) StartRound(ctx context.Context, code string) (*RoundInfo, error) {
	stages := s.games.Stages()

	var started room.Round
	var players []string
	r, err := s.rooms.Update(ctx, code, func(r *room.Room) error {
		round, err := r.StartRound(stages, s.clock.Now())
		if err != nil {
			return err
		}
		started = *round
		for _, p := range r.Contestants() {
			if p.Connected {
				players = append(players, p.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("room_code", r.Code).
		Str("round_id", started.ID).
		Int("round", started.Index).
		Str("game_key", started.GameKey).
		Msg("Round started")

	s.events.PublishRoom(r.Code, RoundStartEvent{
		Type:        EventRoundStart,
		Round:       started.Index,
		RoundID:     started.ID,
		GameKey:     started.GameKey,
		Duration:    started.DurationSeconds,
		TotalRounds: r.TotalRounds,
	})
	for _, id := range players {
		s.events.PublishRoom(r.Code, EnterGameEvent{
			Type:     EventEnterGame,
			PlayerID: id,
			GameKey:  started.GameKey,
			RoundID:  started.ID,
		})
	}

	return &RoundInfo{
		RoomCode:    r.Code,
		RoundID:     started.ID,
		Round:       started.Index,
		GameKey:     started.GameKey,
		Duration:    started.DurationSeconds,
		TotalRounds: r.TotalRounds,
	}, nil
}

// SubmitScore records one player's result for a running round
func (s *lobbyServiceImpl) SubmitScore(ctx context.Context, roundID, playerID string, score int, meta json.RawMessage) (*ScoreResult, error) {
	code, err := s.rooms.RoomForRound(roundID)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 && !json.Valid(meta) {
		return nil, fmt.Errorf("%w: meta is not valid JSON", room.ErrInvalidScore)
	}

	var total int
	r, err := s.rooms.Update(ctx, code, func(r *room.Room) error {
		if _, err := r.SubmitScore(roundID, playerID, score, meta, s.clock.Now()); err != nil {
			return err
		}
		total = r.Player(playerID).Score
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("room_code", r.Code).
		Str("round_id", roundID).
		Str("player_id", playerID).
		Int("score", score).
		Msg("Score submitted")

	s.events.PublishRoom(r.Code, ScoreUpdateEvent{
		Type:       EventScoreUpdate,
		PlayerID:   playerID,
		Score:      score,
		TotalScore: total,
		RoundID:    roundID,
	})

	return &ScoreResult{
		OK:         true,
		RoundID:    roundID,
		PlayerID:   playerID,
		Score:      score,
		TotalScore: total,
	}, nil
}

// EndRound closes a round. After the last round the room is finished and
// the summary is pushed.
func (s *lobbyServiceImpl) EndRound(ctx context.Context, roundID string) (*EndRoundResult, error) {
	code, err := s.rooms.RoomForRound(roundID)
	if err != nil {
		return nil, room.ErrRoundNotActive
	}

	var ended room.Round
	var last bool
	r, err := s.rooms.Update(ctx, code, func(r *room.Room) error {
		round, isLast, err := r.EndRound(roundID, s.clock.Now())
		if err != nil {
			return err
		}
		ended, last = *round, isLast
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("room_code", r.Code).
		Str("round_id", roundID).
		Int("round", ended.Index).
		Bool("last", last).
		Msg("Round ended")

	s.events.PublishRoom(r.Code, RoundEndEvent{
		Type:       EventRoundEnd,
		RoundID:    roundID,
		RoundIndex: ended.Index,
	})

	result := &EndRoundResult{
		OK:         true,
		RoomCode:   r.Code,
		RoundID:    roundID,
		RoundIndex: ended.Index,
		LastRound:  last,
	}
	if last {
		summary := r.Summary()
		result.Summary = &summary
		s.events.PublishRoom(r.Code, GameSummaryEvent{Type: EventGameSummary, Summary: summary})
		s.publishRoomUpdate(r, "finished")
	}
	return result, nil
}

// Summary returns the current scoreboard
func (s *lobbyServiceImpl) Summary(ctx context.Context, code string) (*room.Summary, error) {
	r, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	summary := r.Summary()
	if summary.TotalRounds == 0 {
		summary.TotalRounds = len(s.games.Stages())
	}
	return &summary, nil
}

// ListGames returns the mini-game catalog
func (s *lobbyServiceImpl) ListGames(ctx context.Context) ([]config.Game, error) {
	return s.games.List(), nil
}

// ParticipantConnected marks a player online. An empty playerID is an
// anonymous viewer and changes nothing.
func (s *lobbyServiceImpl) ParticipantConnected(ctx context.Context, code, playerID string) error {
	if playerID == "" {
		return nil
	}
	r, err := s.rooms.Update(ctx, code, func(r *room.Room) error {
		return r.Connect(playerID, s.clock.Now())
	})
	if err != nil {
		return err
	}
	s.publishTeams(r)
	return nil
}

// ParticipantDisconnected marks a player offline and moves hosting on when
// the host leaves.
func (s *lobbyServiceImpl) ParticipantDisconnected(ctx context.Context, code, playerID string) error {
	if playerID == "" {
		return nil
	}

	var newHost *room.Player
	r, err := s.rooms.Update(ctx, code, func(r *room.Room) error {
		next, err := r.Disconnect(playerID, s.clock.Now())
		if err != nil {
			return err
		}
		if next != nil {
			copied := *next
			newHost = &copied
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.events.PublishRoom(r.Code, PlayerEvent{Type: EventPlayerDisconnect, PlayerID: playerID})
	s.publishTeams(r)
	if newHost != nil {
		log.Info().
			Str("room_code", r.Code).
			Str("from", playerID).
			Str("to", newHost.ID).
			Msg("Host transferred")
		s.events.PublishRoom(r.Code, PlayerEvent{
			Type:     EventHostTransfer,
			PlayerID: newHost.ID,
			Name:     newHost.Name,
		})
	}
	s.publishRoomUpdate(r, "left")
	return nil
}

func (s *lobbyServiceImpl) info(r *room.Room) *RoomInfo {
	info := toRoomInfo(r)
	if info.TotalRounds == 0 {
		info.TotalRounds = len(s.games.Stages())
	}
	return info
}

func (s *lobbyServiceImpl) publishTeams(r *room.Room) {
	teams := r.Teams()
	if teams == nil {
		teams = []room.TeamMember{}
	}
	s.events.PublishRoom(r.Code, TeamUpdateEvent{Type: EventTeamUpdate, Teams: teams})
}

func (s *lobbyServiceImpl) publishRoomUpdate(r *room.Room, action string) {
	s.events.PublishGlobal(RoomUpdateEvent{
		Type:   EventRoomUpdate,
		Action: action,
		Room:   r.Code,
		Status: r.Status,
	})
}
