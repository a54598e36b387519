package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alteredfree/altered-server-go/internal/game"
	"github.com/alteredfree/altered-server-go/internal/snapshot"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// watchMessage is pushed to subscribers on every match mutation.
type watchMessage struct {
	Type    string                `json:"type"`
	MatchID string                `json:"match_id"`
	Event   string                `json:"event"`
	Phase   string                `json:"phase"`
	Day     int                   `json:"day"`
	State   *snapshot.MatchRecord `json:"state,omitempty"`
}

type watchClient struct {
	matchID string
	send    chan []byte
}

// Hub fans engine notifications out to websocket watchers, keyed by match id.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*watchClient]bool
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]map[*watchClient]bool),
	}
}

// Broadcast delivers a match notification to every watcher of that match.
// Slow watchers are dropped rather than blocking the engine.
func (h *Hub) Broadcast(n game.MatchNotification) {
	msg := watchMessage{
		Type:    "match_update",
		MatchID: n.MatchID,
		Event:   n.Event,
		Phase:   n.Phase,
		Day:     n.Day,
		State:   n.State,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode watch message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[n.MatchID] {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients[n.MatchID], client)
		}
	}
}

// HandleWatch upgrades the connection and streams match updates for the
// requested match id.
func (h *Hub) HandleWatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("game_id")
	if matchID == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &watchClient{
		matchID: matchID,
		send:    make(chan []byte, 16),
	}
	h.register(client)

	h.logger.Info("watcher connected", zap.String("match_id", matchID))

	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

func (h *Hub) register(client *watchClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.matchID] == nil {
		h.clients[client.matchID] = make(map[*watchClient]bool)
	}
	h.clients[client.matchID][client] = true
}

func (h *Hub) unregister(client *watchClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if watchers, ok := h.clients[client.matchID]; ok {
		if _, present := watchers[client]; present {
			delete(watchers, client)
			close(client.send)
		}
		if len(watchers) == 0 {
			delete(h.clients, client.matchID)
		}
	}
}

// readPump discards inbound frames; the watch stream is one-way. It exists
// to process control frames and detect the close.
func (h *Hub) readPump(conn *websocket.Conn, client *watchClient) {
	defer func() {
		h.unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, client *watchClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseAll drops every watcher, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for matchID, watchers := range h.clients {
		for client := range watchers {
			close(client.send)
		}
		delete(h.clients, matchID)
	}
}
