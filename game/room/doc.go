// Package room holds the rules of a festival lobby.
//
// A Room is created by its host, filled by players while waiting, then
// plays a fixed sequence of mini-game rounds. Each round accepts one score
// per player; scores accumulate into player totals and the final Summary
// ranks players (and, in team mode, the red and blue teams).
//
// The package is pure state: no I/O, no locking and no clocks. Callers pass
// the current time in and serialize access to a Room themselves. Snapshots
// handed to other goroutines should be taken with Clone.
//
// Lifecycle:
//
//	waiting ──Start──▶ playing ──EndRound(last)──▶ finished
//
// Within playing, rounds alternate StartRound → SubmitScore* → EndRound.
package room
