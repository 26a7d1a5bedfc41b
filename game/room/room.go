package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyName         = errors.New("name is required")
	ErrNameTooLong       = errors.New("name is too long")
	ErrInvalidMode       = errors.New("mode must be solo or team")
	ErrInvalidMaxPlayers = errors.New("invalid max players")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyStarted    = errors.New("game already started")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrNotPlaying        = errors.New("room not started")
	ErrRoundActive       = errors.New("round already running")
	ErrNoMoreRounds      = errors.New("no more rounds")
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundFinished     = errors.New("round finished")
	ErrRoundNotActive    = errors.New("round not active")
	ErrAlreadySubmitted  = errors.New("score already submitted")
	ErrPlayerNotFound    = errors.New("player not in room")
	ErrHostCannotScore   = errors.New("host does not play")
	ErrInvalidScore      = errors.New("score must not be negative")
)

// NewID returns a fresh player or round id.
var NewID = uuid.NewString

// Options describe a room to create.
type Options struct {
	Name       string
	Mode       Mode
	HostName   string
	MaxPlayers int
}

// New creates a waiting room whose first member is its host.
func New(code string, opts Options, now time.Time) (*Room, error) {
	name, err := cleanName(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("room %w", err)
	}
	hostName, err := cleanName(opts.HostName)
	if err != nil {
		return nil, fmt.Errorf("host %w", err)
	}

	mode := opts.Mode
	switch mode {
	case "":
		mode = ModeSolo
	case ModeSolo, ModeTeam:
	default:
		return nil, ErrInvalidMode
	}

	maxPlayers := opts.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = DefaultMaxPlayers
	}
	if maxPlayers < 1 || maxPlayers > MaxPlayersLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxPlayers, opts.MaxPlayers)
	}

	r := &Room{
		Code:       code,
		Name:       name,
		Mode:       mode,
		HostName:   hostName,
		MaxPlayers: maxPlayers,
		Status:     StatusWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.Players = append(r.Players, &Player{
		ID:         NewID(),
		Name:       hostName,
		IsHost:     true,
		Spectator:  true,
		JoinedAt:   now,
		LastSeenAt: now,
	})
	return r, nil
}

// Join adds a player. In team mode the player goes to the smaller team,
// red on a tie.
func (r *Room) Join(name string, now time.Time) (*Player, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(r.Contestants()) >= r.MaxPlayers {
		return nil, ErrRoomFull
	}

	p := &Player{
		ID:         NewID(),
		Name:       name,
		JoinedAt:   now,
		LastSeenAt: now,
	}
	if r.Mode == ModeTeam {
		p.Team = r.smallerTeam()
	}
	r.Players = append(r.Players, p)
	r.UpdatedAt = now
	return p, nil
}

// Start moves a waiting room into play.
func (r *Room) Start(now time.Time) error {
	if r.Status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(r.Contestants()) == 0 {
		return ErrNotEnoughPlayers
	}
	r.Status = StatusPlaying
	r.UpdatedAt = now
	return nil
}

// StartRound opens the next round of the sequence.
func (r *Room) StartRound(stages []Stage, now time.Time) (*Round, error) {
	if r.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	if r.ActiveRound() != nil {
		return nil, ErrRoundActive
	}
	next := len(r.Rounds) + 1
	if next > len(stages) {
		return nil, ErrNoMoreRounds
	}

	stage := stages[next-1]
	round := &Round{
		ID:              NewID(),
		Index:           next,
		GameKey:         stage.GameKey,
		DurationSeconds: stage.DurationSeconds,
		Status:          RoundPlaying,
		StartedAt:       now,
	}
	r.Rounds = append(r.Rounds, round)
	r.TotalRounds = len(stages)
	r.UpdatedAt = now
	return round, nil
}

// SubmitScore records a player's score for a running round and adds it to
// their total. Each player scores at most once per round.
func (r *Room) SubmitScore(roundID, playerID string, score int, meta json.RawMessage, now time.Time) (*Result, error) {
	round := r.Round(roundID)
	if round == nil {
		return nil, ErrRoundNotFound
	}
	if round.Status != RoundPlaying {
		return nil, ErrRoundFinished
	}
	p := r.Player(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if p.Spectator {
		return nil, ErrHostCannotScore
	}
	if score < 0 {
		return nil, ErrInvalidScore
	}
	for _, res := range round.Results {
		if res.PlayerID == playerID {
			return nil, ErrAlreadySubmitted
		}
	}

	res := Result{PlayerID: playerID, Score: score, Meta: meta, SubmittedAt: now}
	round.Results = append(round.Results, res)
	p.Score += score
	p.LastSeenAt = now
	r.UpdatedAt = now
	return &res, nil
}

// EndRound closes a running round. It reports whether that was the last
// round, in which case the room is finished.
func (r *Room) EndRound(roundID string, now time.Time) (*Round, bool, error) {
	round := r.Round(roundID)
	if round == nil || round.Status != RoundPlaying {
		return nil, false, ErrRoundNotActive
	}
	ended := now
	round.Status = RoundFinished
	round.EndedAt = &ended
	r.UpdatedAt = now

	last := r.TotalRounds > 0 && round.Index >= r.TotalRounds
	if last {
		r.Status = StatusFinished
	}
	return round, last, nil
}

// Connect marks a player's push channel as up.
func (r *Room) Connect(playerID string, now time.Time) error {
	p := r.Player(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.Connected = true
	p.LastSeenAt = now
	r.UpdatedAt = now
	return nil
}

// Disconnect marks a player as gone. When the host leaves, hosting passes to
// the earliest-joined connected player, who is returned.
func (r *Room) Disconnect(playerID string, now time.Time) (*Player, error) {
	p := r.Player(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	p.Connected = false
	r.UpdatedAt = now
	if !p.IsHost {
		return nil, nil
	}

	for _, candidate := range r.Players {
		if candidate.Connected && candidate.ID != p.ID {
			p.IsHost = false
			candidate.IsHost = true
			return candidate, nil
		}
	}
	return nil, nil
}

// Player looks up a member by id.
func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Host returns the current host.
func (r *Room) Host() *Player {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// Contestants returns the players who compete, in join order. The room's
// creator only spectates, even after handing hosting over.
func (r *Room) Contestants() []*Player {
	var out []*Player
	for _, p := range r.Players {
		if !p.Spectator {
			out = append(out, p)
		}
	}
	return out
}

// Round looks up a round by id.
func (r *Room) Round(id string) *Round {
	for _, round := range r.Rounds {
		if round.ID == id {
			return round
		}
	}
	return nil
}

// ActiveRound returns the running round, if any.
func (r *Room) ActiveRound() *Round {
	for _, round := range r.Rounds {
		if round.Status == RoundPlaying {
			return round
		}
	}
	return nil
}

// Teams returns the connected roster ordered by team, then join order.
func (r *Room) Teams() []TeamMember {
	var members []TeamMember
	for _, p := range r.Players {
		if !p.Connected {
			continue
		}
		members = append(members, TeamMember{
			ID:     p.ID,
			Name:   p.Name,
			Team:   p.Team,
			Score:  p.Score,
			IsHost: p.IsHost,
		})
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Team < members[j].Team
	})
	return members
}

// Summary ranks contestants by total score. Equal scores share a rank.
func (r *Room) Summary() Summary {
	s := Summary{
		RoomCode:    r.Code,
		Mode:        r.Mode,
		Status:      r.Status,
		TotalRounds: r.TotalRounds,
	}
	for _, round := range r.Rounds {
		if round.Status == RoundFinished {
			s.RoundsPlayed++
		}
	}

	players := r.Contestants()
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	for i, p := range players {
		rank := i + 1
		if i > 0 && p.Score == players[i-1].Score {
			rank = s.Standings[i-1].Rank
		}
		s.Standings = append(s.Standings, Standing{
			Rank:     rank,
			PlayerID: p.ID,
			Name:     p.Name,
			Team:     p.Team,
			Score:    p.Score,
		})
	}

	if r.Mode == ModeTeam {
		totals := map[string]*TeamTotal{
			TeamRed:  {Team: TeamRed},
			TeamBlue: {Team: TeamBlue},
		}
		for _, p := range players {
			if t, ok := totals[p.Team]; ok {
				t.Score += p.Score
				t.Players++
			}
		}
		s.Teams = []TeamTotal{*totals[TeamRed], *totals[TeamBlue]}
		switch {
		case s.Teams[0].Score > s.Teams[1].Score:
			s.Winner = TeamRed
		case s.Teams[1].Score > s.Teams[0].Score:
			s.Winner = TeamBlue
		}
		return s
	}

	if len(s.Standings) > 0 && s.Standings[0].Score > 0 {
		if len(s.Standings) == 1 || s.Standings[1].Rank != 1 {
			s.Winner = s.Standings[0].Name
		}
	}
	return s
}

// Clone returns a deep copy safe to hand to encoders while the original
// keeps changing.
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp := *p
		c.Players[i] = &cp
	}
	c.Rounds = make([]*Round, len(r.Rounds))
	for i, round := range r.Rounds {
		cr := *round
		cr.Results = append([]Result(nil), round.Results...)
		if round.EndedAt != nil {
			ended := *round.EndedAt
			cr.EndedAt = &ended
		}
		c.Rounds[i] = &cr
	}
	return &c
}

func (r *Room) smallerTeam() string {
	red, blue := 0, 0
	for _, p := range r.Players {
		switch p.Team {
		case TeamRed:
			red++
		case TeamBlue:
			blue++
		}
	}
	if blue < red {
		return TeamBlue
	}
	return TeamRed
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if len([]rune(name)) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}
