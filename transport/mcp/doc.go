// Package mcp exposes the festival lobby to AI agents over the Model Context
// Protocol.
//
// The Client here holds no game state. Every tool call is proxied to a
// running lobby server through the api package's REST client, so agents
// see exactly what browsers see.
//
// MCP Tools:
//   - create_room, join_room, list_rooms, get_room
//   - start_game, start_round, submit_score, end_round, game_summary
//   - list_games
//
// Tool failures (unknown rooms, scores for closed rounds, missing arguments)
// come back as MCP tool errors carrying the server's message, never as
// protocol errors.
//
// Transport Modes:
//   - Stdio: `festival mcp --server http://host:8080`
//   - HTTP: the serve command mounts the same tools at POST /mcp
package mcp
