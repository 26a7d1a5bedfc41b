// Package api provides the lobby's HTTP REST API and a typed client for it.
//
// Endpoints:
//
// Lobby:
//   - GET /health - Liveness plus connected socket count
//   - GET /games - Mini-game catalog
//
// Rooms:
//   - POST /rooms - Create a room; the caller becomes host
//   - GET /rooms - List rooms, optionally ?status=waiting|playing|finished
//   - POST /rooms/join - Join by {"room_code", "name"}
//   - GET /rooms/{code} - Room snapshot
//   - POST /rooms/{code}/start - Close the lobby and start play
//   - POST /rooms/{code}/round/start - Open the next mini-game
//   - GET /rooms/{code}/summary - Scoreboard
//
// Rounds:
//   - POST /rounds/{round_id}/submit - {"player_id", "score", "meta"}
//   - POST /rounds/{round_id}/end - Close the round
//
// WebSocket:
//   - GET /ws/global - Lobby-wide push channel
//   - GET /ws/{room_code}?participant_id=ID - Room push channel
//
// Errors are JSON objects of the form {"error": "message"}. Unknown rooms,
// rounds and players answer 404, invalid input 400 and requests that do not
// fit the room's current state 409.
//
// Usage:
//
//	server := api.NewServer(lobby, hub)
//	http.ListenAndServe(":8080", server)
//
//	client := api.NewClient("http://localhost:8080")
//	room, err := client.GetRoom(ctx, "ABCD")
package api
