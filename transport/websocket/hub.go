package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed between frames from the peer. Clients send a text ping
	// every 15s by default.
	pongWait = 90 * time.Second

	// Send protocol pings to peer with this period. Must be less than pongWait.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer      = 256
	broadcastBuffer = 512
	hookBuffer      = 256
)

// GlobalRoom is the lobby-wide channel. Its broadcasts reach every client.
const GlobalRoom = "global"

// Intents clients may send; the hub relays them to the rest of the room.
var relayedIntents = map[string]bool{
	"chat":  true,
	"emote": true,
	"ready": true,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Game screens are served from other origins (dev servers, kiosks).
		return true
	},
}

// PresenceFunc is told when a participant's socket comes or goes.
type PresenceFunc func(ctx context.Context, room, playerID string)

// Client is one socket attached to a room
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	room     string
	playerID string
}

type envelope struct {
	room   string // GlobalRoom reaches everyone
	data   []byte
	except *Client
	only   *Client
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by room code
	rooms map[string]map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	// Presence callbacks run one at a time, in socket order, off the loop.
	hooks        chan func()
	onConnect    PresenceFunc
	onDisconnect PresenceFunc

	count chan chan int
	done  chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		hooks:      make(chan func(), hookBuffer),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// SetPresenceHooks installs the connect and disconnect callbacks. Call it
// before Run.
func (h *Hub) SetPresenceHooks(onConnect, onDisconnect PresenceFunc) {
	h.onConnect = onConnect
	h.onDisconnect = onDisconnect
}

// Run starts the hub's event loop and blocks until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	go h.runHooks(ctx)

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for client := range clients {
					h.removeClient(ctx, client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(ctx, client)

		case client := <-h.unregister:
			h.removeClient(ctx, client)

		case msg := <-h.broadcast:
			h.broadcastMessage(ctx, msg)

		case reply := <-h.count:
			n := 0
			for _, clients := range h.rooms {
				n += len(clients)
			}
			reply <- n
		}
	}
}

// ServeWS upgrades the request and attaches the socket to room. The
// participant_id query parameter names the player behind the socket; it may
// be empty for viewers.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room_code", room).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		room:     normalizeRoom(room),
		playerID: r.URL.Query().Get("participant_id"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// PublishRoom sends event to every client in room
func (h *Hub) PublishRoom(room string, event any) {
	h.publish(envelope{room: normalizeRoom(room)}, event)
}

// PublishGlobal sends event to every connected client
func (h *Hub) PublishGlobal(event any) {
	h.publish(envelope{room: GlobalRoom}, event)
}

// ClientCount returns the number of attached sockets
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) publish(env envelope, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room_code", env.room).Msg("Failed to marshal broadcast message")
		return
	}
	env.data = data

	select {
	case h.broadcast <- env:
	default:
		log.Warn().Str("room_code", env.room).Msg("Broadcast queue full, dropping message")
	}
}

// registerClient adds a client to its room
func (h *Hub) registerClient(ctx context.Context, client *Client) {
	if h.rooms[client.room] == nil {
		h.rooms[client.room] = make(map[*Client]bool)
	}
	h.rooms[client.room][client] = true

	log.Debug().
		Str("room_code", client.room).
		Str("player_id", client.playerID).
		Int("clients", len(h.rooms[client.room])).
		Msg("Client registered")

	if h.onConnect != nil && client.playerID != "" && client.room != GlobalRoom {
		room, id := client.room, client.playerID
		h.enqueueHook(func() { h.onConnect(ctx, room, id) })
	}
}

// removeClient detaches a client. Removing twice is a no-op.
func (h *Hub) removeClient(ctx context.Context, client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}

	log.Debug().
		Str("room_code", client.room).
		Str("player_id", client.playerID).
		Int("clients", len(clients)).
		Msg("Client unregistered")

	if h.onDisconnect != nil && client.playerID != "" && client.room != GlobalRoom {
		room, id := client.room, client.playerID
		h.enqueueHook(func() { h.onDisconnect(ctx, room, id) })
	}
}

// broadcastMessage delivers one frame per message; slow clients are dropped
func (h *Hub) broadcastMessage(ctx context.Context, msg envelope) {
	deliver := func(clients map[*Client]bool) {
		for client := range clients {
			if client == msg.except {
				continue
			}
			select {
			case client.send <- msg.data:
			default:
				log.Warn().Str("room_code", client.room).Msg("Client send buffer full, disconnecting")
				h.removeClient(ctx, client)
			}
		}
	}

	if msg.only != nil {
		if clients := h.rooms[msg.only.room]; clients[msg.only] {
			deliver(map[*Client]bool{msg.only: true})
		}
		return
	}
	if msg.room == GlobalRoom {
		for _, clients := range h.rooms {
			deliver(clients)
		}
		return
	}
	deliver(h.rooms[msg.room])
}

func (h *Hub) enqueueHook(fn func()) {
	select {
	case h.hooks <- fn:
	default:
		log.Warn().Msg("Presence hook queue full, dropping callback")
	}
}

func (h *Hub) runHooks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-h.hooks:
			fn()
		}
	}
}

// readPump reads client frames until the socket fails
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("room_code", c.room).Msg("WebSocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(message)
	}
}

// handle answers heartbeats and relays intents
func (c *Client) handle(message []byte) {
	text := strings.TrimSpace(string(message))
	switch strings.ToLower(text) {
	case "":
		return
	case "ping":
		c.reply([]byte("pong"))
		return
	}

	var intent map[string]any
	if err := json.Unmarshal([]byte(text), &intent); err != nil {
		log.Debug().Str("room_code", c.room).Msg("Ignoring non-JSON client frame")
		return
	}
	typ, _ := intent["type"].(string)
	if typ == "ping" {
		c.reply([]byte(`{"type":"pong"}`))
		return
	}
	if !relayedIntents[typ] || c.room == GlobalRoom {
		log.Debug().Str("room_code", c.room).Str("type", typ).Msg("Ignoring client intent")
		return
	}

	intent["from"] = c.playerID
	data, err := json.Marshal(intent)
	if err != nil {
		return
	}
	select {
	case c.hub.broadcast <- envelope{room: c.room, data: data, except: c}:
	default:
		log.Warn().Str("room_code", c.room).Msg("Broadcast queue full, dropping intent")
	}
}

// reply queues a frame for this client only. The hub may close send at any
// time, so the send goes through the loop instead of the channel.
func (c *Client) reply(data []byte) {
	select {
	case c.hub.broadcast <- envelope{only: c, data: data}:
	default:
	}
}

// writePump writes queued frames, one message per frame
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func normalizeRoom(room string) string {
	room = strings.TrimSpace(room)
	if strings.EqualFold(room, GlobalRoom) {
		return GlobalRoom
	}
	return strings.ToUpper(room)
}
