package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/alteredfree/altered-server-go/internal/config"
	"github.com/alteredfree/altered-server-go/internal/game"
)

// Server exposes the engine's boundary operations as an HTTP+JSON API and a
// websocket watch endpoint.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	engine   *game.Engine
	registry *game.Registry
	hub      *Hub

	httpServer *http.Server
}

// NewServer wires the routes and connects the engine's notifications to the
// watch hub.
func NewServer(cfg config.ServerConfig, engine *game.Engine, registry *game.Registry, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		registry: registry,
		hub:      NewHub(logger),
	}
	engine.SetNotificationHandler(s.hub.Broadcast)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/game/create", s.handleCreate)
	mux.HandleFunc("/game/join", s.handleJoin)
	mux.HandleFunc("/game/start", s.handleStart)
	mux.HandleFunc("/game/play_actions", s.handlePlayActions)
	mux.HandleFunc("/game/get_available_actions", s.handleAvailableActions)
	mux.HandleFunc("/game/get_all_running_games", s.handleListMatches)
	mux.HandleFunc("/game/watch", s.hub.HandleWatch)

	s.httpServer = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting HTTP server", zap.String("address", s.cfg.Address))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes all watch connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

// payloads ------------------------------------------------------------------

type participantPayload struct {
	GameID string   `json:"game_id,omitempty"`
	ID     int      `json:"id,omitempty"`
	Name   string   `json:"name"`
	Deck   []string `json:"deck"`
}

type actionsPayload struct {
	GameID  string        `json:"game_id"`
	ID      int           `json:"id"`
	Actions []game.Action `json:"actions"`
}

type playerData struct {
	GameID string       `json:"game_id"`
	Player *game.Player `json:"player"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// handlers ------------------------------------------------------------------

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.respond(w, http.StatusOK, envelope{Success: true, Message: "Altered TCG"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload participantPayload
	if !s.decode(w, r, &payload) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	m, player, err := s.engine.CreateMatch(ctx, payload.Name, payload.Deck)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.registry.Add(m)

	s.respond(w, http.StatusOK, envelope{Success: true, Data: playerData{GameID: m.ID, Player: player}})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var payload participantPayload
	if !s.decode(w, r, &payload) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	m, err := s.resolveMatch(ctx, payload.GameID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	player, err := s.engine.Join(ctx, m, payload.Name, payload.Deck)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, envelope{Success: true, Data: playerData{GameID: m.ID, Player: player}})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload participantPayload
	if !s.decode(w, r, &payload) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	m, err := s.resolveMatch(ctx, payload.GameID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	status, err := s.engine.Start(ctx, m)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, envelope{Success: status.Started, Message: status.Message})
}

func (s *Server) handlePlayActions(w http.ResponseWriter, r *http.Request) {
	var payload actionsPayload
	if !s.decode(w, r, &payload) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	m, err := s.resolveMatch(ctx, payload.GameID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	player, err := s.engine.SubmitActions(ctx, m, payload.ID, payload.Actions)
	if err != nil {
		s.respondError(w, err)
		return
	}

	// Phase progression is explicit: every mutating request advances any
	// guard that its mutation satisfied.
	if _, err := s.engine.Advance(ctx, m); err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, envelope{Success: true, Data: playerData{GameID: m.ID, Player: player}})
}

func (s *Server) handleAvailableActions(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	participantID, _ := strconv.Atoi(r.URL.Query().Get("id"))

	ctx, cancel := s.requestContext(r)
	defer cancel()

	m, err := s.resolveMatch(ctx, gameID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	// Queries are side-effect free; the advancement the reference engine
	// hid inside its query path happens here, before reading.
	if _, err := s.engine.Advance(ctx, m); err != nil {
		s.respondError(w, err)
		return
	}

	player, err := s.engine.AvailableActions(ctx, m, participantID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, envelope{Success: true, Data: playerData{GameID: m.ID, Player: player}})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, envelope{Success: true, Data: s.registry.IDs()})
}

// helpers -------------------------------------------------------------------

// resolveMatch finds a live match, falling back to snapshot recovery.
func (s *Server) resolveMatch(ctx context.Context, gameID string) (*game.Match, error) {
	if gameID == "" {
		return nil, game.ErrMatchNotFound
	}
	if m, ok := s.registry.Get(gameID); ok {
		return m, nil
	}
	return s.registry.Restore(ctx, gameID)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.LockTimeout > 0 {
		return context.WithTimeout(r.Context(), s.cfg.LockTimeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Method != http.MethodPost {
		s.respond(w, http.StatusMethodNotAllowed, envelope{Success: false, Message: "method not allowed"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respond(w, http.StatusBadRequest, envelope{Success: false, Message: "malformed request body"})
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondError maps engine errors to structured failure payloads; internal
// faults never leak past a generic message.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrMatchNotFound):
		s.respond(w, http.StatusNotFound, envelope{Success: false, Message: err.Error()})
	case errors.Is(err, game.ErrInvalidParticipant),
		errors.Is(err, game.ErrUnknownParticipant),
		errors.Is(err, game.ErrInvalidMove),
		errors.Is(err, game.ErrInvalidZone):
		s.respond(w, http.StatusBadRequest, envelope{Success: false, Message: err.Error()})
	case errors.Is(err, game.ErrMatchFull),
		errors.Is(err, game.ErrMatchAlreadyStarted):
		s.respond(w, http.StatusConflict, envelope{Success: false, Message: err.Error()})
	case errors.Is(err, game.ErrLockTimeout):
		s.respond(w, http.StatusServiceUnavailable, envelope{Success: false, Message: err.Error()})
	default:
		s.logger.Error("internal error", zap.Error(err))
		s.respond(w, http.StatusInternalServerError, envelope{Success: false, Message: "internal error"})
	}
}
