// Command analyze prints quick, human-readable heuristics about the room
// snapshots a lobby server left in its data directory. It summarizes each
// room's status, players and rounds, and highlights rooms that look stuck:
// rounds running far past their duration, rooms nobody can play, and
// finished festivals that ended in a tie.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wricardo/festival-lobby/game/room"
	"github.com/wricardo/festival-lobby/game/session"
)

// RoomAnalysis is the verdict for one snapshot
type RoomAnalysis struct {
	Code         string
	Name         string
	Status       room.Status
	Contestants  int
	Connected    int
	RoundsPlayed int
	TotalRounds  int
	Leader       string
	Warnings     []string
}

func main() {
	dataDir := "rooms"
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	store, err := session.NewFilePersistence(dataDir)
	if err != nil {
		fmt.Printf("Error opening %s: %v\n", dataDir, err)
		os.Exit(1)
	}
	if err := analyzeStore(context.Background(), os.Stdout, store, time.Now()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// analyzeStore reports on every room in store
func analyzeStore(ctx context.Context, w io.Writer, store session.Persistence, now time.Time) error {
	codes, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d room snapshots\n", len(codes))

	for _, code := range codes {
		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", code)
		r, err := store.Load(ctx, code)
		if err != nil {
			fmt.Fprintf(w, "Error loading room: %v\n", err)
			continue
		}
		printAnalysis(w, analyzeRoom(r, now))
	}
	return nil
}

func analyzeRoom(r *room.Room, now time.Time) RoomAnalysis {
	a := RoomAnalysis{
		Code:        r.Code,
		Name:        r.Name,
		Status:      r.Status,
		TotalRounds: r.TotalRounds,
	}

	contestants := r.Contestants()
	a.Contestants = len(contestants)
	for _, p := range r.Players {
		if p.Connected {
			a.Connected++
		}
	}

	summary := r.Summary()
	a.RoundsPlayed = summary.RoundsPlayed
	a.Leader = summary.Winner

	if a.Contestants == 0 {
		a.Warnings = append(a.Warnings, "No contestants joined; the room can never start")
	}
	if r.Status == room.StatusPlaying && a.Connected == 0 {
		a.Warnings = append(a.Warnings, "Game in progress but nobody is connected")
	}
	if active := r.ActiveRound(); active != nil {
		limit := time.Duration(active.DurationSeconds) * time.Second * 2
		if limit > 0 && now.Sub(active.StartedAt) > limit {
			a.Warnings = append(a.Warnings, fmt.Sprintf("Round %d (%s) running for %s, over twice its %ds duration",
				active.Index, active.GameKey, now.Sub(active.StartedAt).Round(time.Second), active.DurationSeconds))
		}
		if missing := a.Contestants - len(active.Results); missing > 0 {
			a.Warnings = append(a.Warnings, fmt.Sprintf("Round %d is waiting on %d scores", active.Index, missing))
		}
	}
	if r.Status == room.StatusFinished && a.Leader == "" {
		a.Warnings = append(a.Warnings, "Festival finished without a winner (tie or no scores)")
	}
	return a
}

func printAnalysis(w io.Writer, a RoomAnalysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Status: %s\n", a.Status)
	fmt.Fprintf(w, "Contestants: %d (%d sockets connected)\n", a.Contestants, a.Connected)
	fmt.Fprintf(w, "Rounds: %d/%d\n", a.RoundsPlayed, a.TotalRounds)
	if a.Leader != "" {
		fmt.Fprintf(w, "Leader: %s\n", a.Leader)
	}

	if len(a.Warnings) == 0 {
		fmt.Fprintf(w, "✅ Nothing unusual\n")
		return
	}
	for _, warning := range a.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warning)
	}
}
