// Package service provides the business logic layer for the festival lobby.
//
// The service package implements:
//   - Room creation and joining
//   - The game flow: start, rounds, score submission, summary
//   - Presence tracking driven by the push channel, including host transfer
//   - Push event publication for every state change
//
// Core Interfaces:
//
// LobbyService is the main service interface used by the REST and MCP
// transports. RoomStore abstracts room storage (session.Manager), Catalog the
// mini-game sequence (config.Manager) and Publisher the push channel
// (websocket.Hub).
//
// Events:
//
// Every successful mutation publishes JSON events with a "type" field to the
// room's channel, and lobby-level changes publish room_update to the global
// channel. Events are published after the room lock is released, in the
// order the mutation produced them:
//
//	JoinRoom                 player_join, team_update, room_update(global)
//	StartGame                game_start, room_update(global)
//	StartRound               round_start, enter_game (one per connected player)
//	SubmitScore              score_update
//	EndRound                 round_end, game_summary + room_update(global) after the last round
//	ParticipantConnected     team_update
//	ParticipantDisconnected  player_disconnect, team_update, host_transfer, room_update(global)
//
// Usage:
//
//	rooms := session.NewManager()
//	games, _ := config.NewManager("")
//	hub := websocket.NewHub()
//	lobby := service.NewLobbyService(rooms, games, hub)
//
//	created, err := lobby.CreateRoom(ctx, service.CreateRoomRequest{Name: "Night Market", HostName: "Mai"})
//	joined, err := lobby.JoinRoom(ctx, created.RoomCode, "Ana")
package service
