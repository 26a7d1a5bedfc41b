// Package websocket provides the lobby's push channel.
//
// A Hub keeps sockets grouped by room code. Every published event is
// marshalled once and written to each socket as its own text frame, so a
// client never has to split frames. The "global" room is the lobby-wide
// channel: PublishGlobal reaches every socket in every room.
//
// Clients connect with an optional participant_id query parameter. When it is
// set on a room socket, the hub's presence hooks are told when the socket
// attaches and when it goes away; the lobby service uses them to mark
// players online and to move hosting on.
//
// Inbound frames are limited to heartbeats and a few social intents:
//
//	"ping"                     answered with "pong"
//	{"type":"ping"}            answered with {"type":"pong"}
//	{"type":"chat"|"emote"|"ready", ...}
//	                           relayed to the rest of the room with "from" set
//
// Usage:
//
//	hub := websocket.NewHub()
//	hub.SetPresenceHooks(onConnect, onDisconnect)
//	go hub.Run(ctx)
//
//	r.HandleFunc("/ws/{room_code}", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, mux.Vars(r)["room_code"])
//	})
package websocket
