package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/festival-lobby/game/room"
	"github.com/wricardo/festival-lobby/game/service"
	"github.com/wricardo/festival-lobby/game/session"
	"github.com/wricardo/festival-lobby/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.LobbyService
	hub     *websocket.Hub
	router  *mux.Router
	started time.Time
}

// NewServer creates a new API server
func NewServer(lobby service.LobbyService, hub *websocket.Hub) *Server {
	s := &Server{
		service: lobby,
		hub:     hub,
		router:  mux.NewRouter(),
		started: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/games", s.handleListGames).Methods("GET")

	// Rooms. /rooms/join must be registered before /rooms/{code}.
	s.router.HandleFunc("/rooms", s.handleCreateRoom).Methods("POST")
	s.router.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	s.router.HandleFunc("/rooms/join", s.handleJoinRoom).Methods("POST")
	s.router.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods("GET")
	s.router.HandleFunc("/rooms/{code}/start", s.handleStartGame).Methods("POST")
	s.router.HandleFunc("/rooms/{code}/round/start", s.handleStartRound).Methods("POST")
	s.router.HandleFunc("/rooms/{code}/summary", s.handleSummary).Methods("GET")

	// Rounds
	s.router.HandleFunc("/rounds/{round_id}/submit", s.handleSubmitScore).Methods("POST")
	s.router.HandleFunc("/rounds/{round_id}/end", s.handleEndRound).Methods("POST")

	// WebSocket
	s.router.HandleFunc("/ws/"+websocket.GlobalRoom, s.handleGlobalSocket)
	s.router.HandleFunc("/ws/{room_code}", s.handleRoomSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps lobby errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrRoomNotFound),
		errors.Is(err, room.ErrRoundNotFound),
		errors.Is(err, room.ErrPlayerNotFound):
		return http.StatusNotFound

	case errors.Is(err, room.ErrEmptyName),
		errors.Is(err, room.ErrNameTooLong),
		errors.Is(err, room.ErrInvalidMode),
		errors.Is(err, room.ErrInvalidMaxPlayers),
		errors.Is(err, room.ErrInvalidScore),
		errors.Is(err, room.ErrHostCannotScore):
		return http.StatusBadRequest

	case errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrAlreadyStarted),
		errors.Is(err, room.ErrNotEnoughPlayers),
		errors.Is(err, room.ErrNotPlaying),
		errors.Is(err, room.ErrRoundActive),
		errors.Is(err, room.ErrNoMoreRounds),
		errors.Is(err, room.ErrRoundFinished),
		errors.Is(err, room.ErrRoundNotActive),
		errors.Is(err, room.ErrAlreadySubmitted),
		errors.Is(err, session.ErrRoomAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.service.ListGames(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(games),
		"games": games,
	})
}

// Room Handlers

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := s.service.CreateRoom(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	// Optional status filter: waiting, playing, finished
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := rooms[:0]
		for _, info := range rooms {
			if string(info.Status) == status {
				filtered = append(filtered, info)
			}
		}
		rooms = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetRoom(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomCode string `json:"room_code"`
		Name     string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RoomCode == "" {
		respondError(w, http.StatusBadRequest, "room_code is required")
		return
	}

	joined, err := s.service.JoinRoom(r.Context(), req.RoomCode, req.Name)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, joined)
}

// Game Flow Handlers

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.StartGame(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.service.StartRound(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string          `json:"player_id"`
		Score    *int            `json:"score"`
		Meta     json.RawMessage `json:"meta,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PlayerID == "" || req.Score == nil {
		respondError(w, http.StatusBadRequest, "player_id and score are required")
		return
	}

	result, err := s.service.SubmitScore(r.Context(), mux.Vars(r)["round_id"], req.PlayerID, *req.Score, req.Meta)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleEndRound(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.EndRound(r.Context(), mux.Vars(r)["round_id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// WebSocket Handlers

func (s *Server) handleGlobalSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, websocket.GlobalRoom)
}

func (s *Server) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["room_code"]

	// Verify room exists before upgrading
	if _, err := s.service.GetRoom(r.Context(), code); err != nil {
		http.Error(w, "Invalid room", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, code)
}
