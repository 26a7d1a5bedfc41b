// Command simulate plays a whole festival against a running lobby with bot
// players. Each bot attaches a resilient room connection, waits for its
// enter_game push and posts a random score over REST; the simulated host
// starts every round, waits for the scores to come back as score_update
// events and ends the round. Useful for smoke-testing a deployment and for
// watching the game screens fill up without a room full of people.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/festival-lobby/api"
	"github.com/wricardo/festival-lobby/game/room"
	"github.com/wricardo/festival-lobby/game/service"
	"github.com/wricardo/festival-lobby/transport/roomconn"
)

// Options drive one simulated festival
type Options struct {
	Server       string
	Players      int
	Mode         room.Mode
	MaxScore     int
	ThinkTime    time.Duration
	RoundTimeout time.Duration
	Seed         uint64
	Logger       *zerolog.Logger
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	cmd := &cli.Command{
		Name:  "simulate",
		Usage: "Play a festival with bot players",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "Lobby server URL", Sources: cli.EnvVars("FESTIVAL_SERVER")},
			&cli.StringFlag{Name: "mode", Value: "solo", Usage: "solo or team"},
			&cli.DurationFlag{Name: "think", Value: 500 * time.Millisecond, Usage: "Longest a bot waits before scoring"},
			&cli.DurationFlag{Name: "round-timeout", Value: 30 * time.Second, Usage: "How long the host waits for scores"},
			&cli.StringSliceFlag{Name: "bot", Value: nil, Usage: "Bot names (repeatable); default four bots"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			names := cmd.StringSlice("bot")
			summary, err := Simulate(ctx, Options{
				Server:       cmd.String("server"),
				Players:      len(names),
				Mode:         room.Mode(cmd.String("mode")),
				ThinkTime:    cmd.Duration("think"),
				RoundTimeout: cmd.Duration("round-timeout"),
				Seed:         uint64(time.Now().UnixNano()),
				Logger:       &log.Logger,
			}, names...)
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}
}

func (o Options) withDefaults() Options {
	if o.Players <= 0 {
		o.Players = 4
	}
	if o.MaxScore <= 0 {
		o.MaxScore = 100
	}
	if o.RoundTimeout <= 0 {
		o.RoundTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// bot is one simulated contestant
type bot struct {
	name   string
	id     string
	rest   *api.Client
	conn   *roomconn.RoomConnection
	think  time.Duration
	logger *zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
	max int
	wg  sync.WaitGroup
}

func (b *bot) HandleEvent(ev roomconn.Event) {
	if ev.Type != service.EventEnterGame || ev.String("player_id") != b.id {
		return
	}
	roundID := ev.String("round_id")

	b.mu.Lock()
	score := b.rng.IntN(b.max + 1)
	var wait time.Duration
	if b.think > 0 {
		wait = time.Duration(b.rng.Int64N(int64(b.think)))
	}
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		time.Sleep(wait)
		meta := []byte(fmt.Sprintf(`{"bot":true,"think_ms":%d}`, wait.Milliseconds()))
		if _, err := b.rest.SubmitScore(context.Background(), roundID, b.id, score, meta); err != nil {
			b.logger.Warn().Err(err).Str("bot", b.name).Msg("Score rejected")
			return
		}
		b.logger.Debug().Str("bot", b.name).Int("score", score).Str("game_key", ev.String("game_key")).Msg("Bot scored")
	}()
}

// Simulate runs one festival to the end and returns the final scoreboard.
// names overrides the generated bot names.
func Simulate(ctx context.Context, opts Options, names ...string) (*room.Summary, error) {
	opts = opts.withDefaults()
	if len(names) == 0 {
		for i := 1; i <= opts.Players; i++ {
			names = append(names, fmt.Sprintf("Bot %d", i))
		}
	}
	rest := api.NewClient(opts.Server)
	logger := opts.Logger

	created, err := rest.CreateRoom(ctx, service.CreateRoomRequest{
		Name:     "Simulated Festival",
		Mode:     opts.Mode,
		HostName: "Sim Host",
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	code := created.RoomCode
	logger.Info().Str("room_code", code).Int("bots", len(names)).Msg("Room created")

	// The host watches score_update events to know when a round is complete.
	scores := make(chan string, 64)
	host := roomconn.New(code, roomconn.HandlerFunc(func(roomconn.Event) {}), roomconn.Config{
		ParticipantID: created.PlayerID,
		BaseURL:       opts.Server,
		Logger:        logger,
		OnScoreUpdate: func(ev roomconn.Event) {
			select {
			case scores <- ev.String("round_id"):
			default:
			}
		},
	})
	defer host.Close()

	bots := make([]*bot, 0, len(names))
	defer func() {
		for _, b := range bots {
			b.conn.Close()
			b.wg.Wait()
		}
	}()
	for i, name := range names {
		joined, err := rest.JoinRoom(ctx, code, name)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", name, err)
		}
		b := &bot{
			name:   name,
			id:     joined.PlayerID,
			rest:   rest,
			think:  opts.ThinkTime,
			logger: logger,
			rng:    rand.New(rand.NewPCG(opts.Seed, uint64(i))),
			max:    opts.MaxScore,
		}
		b.conn = roomconn.New(code, b, roomconn.Config{
			ParticipantID: b.id,
			BaseURL:       opts.Server,
			Logger:        logger,
		})
		bots = append(bots, b)
	}

	if err := waitReady(ctx, rest, code, host, bots, 10*time.Second); err != nil {
		return nil, err
	}

	info, err := rest.StartGame(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}
	logger.Info().Str("room_code", code).Int("rounds", info.TotalRounds).Msg("Game started")

	for {
		round, err := rest.StartRound(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("start round: %w", err)
		}
		logger.Info().Int("round", round.Round).Str("game_key", round.GameKey).Msg("Round started")

		got := waitScores(ctx, scores, round.RoundID, len(bots), opts.RoundTimeout)
		if got < len(bots) {
			logger.Warn().Int("round", round.Round).Int("scores", got).Msg("Round timed out, ending anyway")
		}

		ended, err := rest.EndRound(ctx, round.RoundID)
		if err != nil {
			return nil, fmt.Errorf("end round: %w", err)
		}
		if ended.LastRound {
			return ended.Summary, nil
		}
	}
}

// waitReady blocks until every socket is open and the room lists every bot
// as connected, since enter_game only reaches connected contestants.
func waitReady(ctx context.Context, rest *api.Client, code string, host *roomconn.RoomConnection, bots []*bot, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		ready := host.Ready()
		for _, b := range bots {
			ready = ready && b.conn.Ready()
		}
		if ready && allConnected(ctx, rest, code, bots) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("bots did not connect in time")
		case <-tick.C:
		}
	}
}

func allConnected(ctx context.Context, rest *api.Client, code string, bots []*bot) bool {
	info, err := rest.GetRoom(ctx, code)
	if err != nil {
		return false
	}
	connected := map[string]bool{}
	for _, p := range info.Players {
		connected[p.ID] = p.Connected
	}
	for _, b := range bots {
		if !connected[b.id] {
			return false
		}
	}
	return true
}

// waitScores counts score_update events for roundID until want arrive
func waitScores(ctx context.Context, scores <-chan string, roundID string, want int, timeout time.Duration) int {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	got := 0
	for got < want {
		select {
		case <-ctx.Done():
			return got
		case <-deadline.C:
			return got
		case id := <-scores:
			if id == roundID {
				got++
			}
		}
	}
	return got
}

func printSummary(s *room.Summary) {
	if s == nil {
		return
	}
	fmt.Printf("\n🎉 Festival %s finished after %d rounds\n", s.RoomCode, s.RoundsPlayed)
	for _, st := range s.Standings {
		fmt.Printf("  %d. %-12s %4d\n", st.Rank, st.Name, st.Score)
	}
	for _, t := range s.Teams {
		fmt.Printf("  Team %-5s %4d\n", t.Team, t.Score)
	}
	if s.Winner != "" {
		fmt.Printf("Winner: %s\n", s.Winner)
	}
}
