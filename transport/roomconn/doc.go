// Package roomconn provides the client side of a festival room's push channel.
//
// A RoomConnection keeps one logical subscription to a room's event stream
// alive for as long as its owner (a page, a CLI watcher, a bot) wants it:
//   - It dials immediately on construction and never surfaces network errors
//   - It redials after a fixed delay whenever the socket closes unexpectedly
//   - It sends a "ping" keep-alive on a fixed interval while open
//   - It decodes inbound JSON frames into Events and hands them to a Handler
//   - It stops everything, for good, when Close is called
//
// Connection Instances:
//
// Every physical socket gets a fresh instance id. Reader, writer, dial and
// timer callbacks capture the id they were created for and re-check it under
// the connection mutex before doing anything, so a callback belonging to a
// socket that has since been closed or replaced is a no-op. This is what
// keeps Close final and Reconnect clean even though the old socket's
// goroutines may still be unwinding.
//
// States:
//
//	Idle ──New──▶ Connecting ──dial ok──▶ Open
//	                ▲    │                  │
//	                │ dial failed      socket closed
//	                │    ▼                  ▼
//	                │  Retrying ◀───────────┘
//	                │    │ delay elapsed
//	                ├────┘
//	                └──Reconnect── (any state, Destroyed included)
//
//	(any state) ──Close──▶ Destroyed
//
// Idle is only ever the state of a connection that has not started dialing;
// Reconnect goes straight to Connecting.
//
// Frames:
//
// Inbound text frames are either the literal "pong" keep-alive reply, which
// is dropped, or a JSON object carrying a string "type" field. Anything else
// is dropped and only logged when Config.Debug is set. Outbound values are
// JSON-encoded and queued for the socket's writer; when the socket is not
// open they are discarded.
//
// Usage:
//
//	conn := roomconn.New("ABCD", roomconn.HandlerFunc(func(ev roomconn.Event) {
//		switch ev.Type {
//		case "round_start":
//			// ...
//		}
//	}), roomconn.Config{
//		BaseURL:       "https://festival.example.com",
//		ParticipantID: "p1",
//	})
//	defer conn.Close()
//
//	conn.Send(roomconn.NewIntent("ready", nil))
//
// Concurrency:
//
// All methods are safe for concurrent use and may be called from inside the
// Handler. The Handler is never invoked concurrently with itself and always
// sees events in the order the socket delivered them.
package roomconn
