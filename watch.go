package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/festival-lobby/api"
	"github.com/wricardo/festival-lobby/transport/roomconn"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Attach to a room's push channel and print every event",
		ArgsUsage: "<room_code|global>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "Lobby server URL", Sources: cli.EnvVars("FESTIVAL_SERVER")},
			&cli.StringFlag{Name: "participant", Usage: "Player ID to attach as; empty watches anonymously"},
			&cli.DurationFlag{Name: "reconnect-delay", Value: roomconn.DefaultReconnectDelay, Usage: "Wait between reconnect attempts"},
			&cli.DurationFlag{Name: "heartbeat", Value: roomconn.DefaultHeartbeatInterval, Usage: "Keep-alive ping interval"},
		},
		Action: runWatch,
	}
}

// watcher prints room events and keeps a fresh roster by refetching the room
// whenever the team changes
type watcher struct {
	out    io.Writer
	rest   *api.Client
	roomID string

	mu sync.Mutex
}

func (w *watcher) HandleEvent(ev roomconn.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s %s %s\n", time.Now().Format("15:04:05"), ev.Type, compact(ev.Raw))
}

// refresh runs on team_update, the same pattern the game pages use
func (w *watcher) refresh(ctx context.Context) {
	info, err := w.rest.GetRoom(ctx, w.roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_code", w.roomID).Msg("Failed to refresh room")
		return
	}

	names := make([]string, 0, len(info.Players))
	for _, p := range info.Players {
		name := p.Name
		if p.IsHost {
			name += "*"
		}
		if !p.Connected {
			name += " (offline)"
		}
		names = append(names, name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s roster %s [%s] %s\n", time.Now().Format("15:04:05"), info.Code, info.Status, strings.Join(names, ", "))
}

func compact(raw json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	roomID := cmd.Args().First()
	if roomID == "" {
		return fmt.Errorf("room code is required")
	}

	server := cmd.String("server")
	w := &watcher{out: os.Stdout, rest: api.NewClient(server), roomID: roomID}

	var refreshes sync.WaitGroup
	cfg := roomconn.Config{
		ParticipantID:     cmd.String("participant"),
		BaseURL:           server,
		ReconnectDelay:    cmd.Duration("reconnect-delay"),
		HeartbeatInterval: cmd.Duration("heartbeat"),
		Debug:             cmd.Bool("debug"),
		Logger:            &log.Logger,
	}
	if !strings.EqualFold(roomID, "global") {
		cfg.OnTeamUpdate = func(roomconn.Event) {
			// Refresh off the dispatch goroutine.
			refreshes.Add(1)
			go func() {
				defer refreshes.Done()
				w.refresh(ctx)
			}()
		}
	}

	conn := roomconn.New(roomID, w, cfg)
	log.Info().Str("address", conn.Address()).Msg("Watching room")

	<-ctx.Done()
	conn.Close()
	refreshes.Wait()
	return nil
}
