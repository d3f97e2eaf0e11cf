package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dharmateja69/4-in-Row/internal/domain"
	"github.com/Dharmateja69/4-in-Row/internal/service/matchmaking"
)

// Handler upgrades HTTP requests and drives the per-connection loop.
type Handler struct {
	ConnManager *ConnectionManager
	Matches     *matchmaking.Orchestrator
	Heartbeat   time.Duration
	Upgrader    websocket.Upgrader
}

func NewHandler(cm *ConnectionManager, matches *matchmaking.Orchestrator, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Handler{
		ConnManager: cm,
		Matches:     matches,
		Heartbeat:   heartbeat,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket is the HTTP handler that upgrades the connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade error: %v", err)
		return
	}
	h.handleConnection(conn)
}

// handleConnection manages the lifecycle of a single socket. The first
// message must be a join (or rejoin) carrying the username; everything
// after that is routed by verb.
func (h *Handler) handleConnection(conn *websocket.Conn) {
	readWindow := 2 * h.Heartbeat
	conn.SetReadDeadline(time.Now().Add(readWindow))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWindow))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(h.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// WriteControl is safe alongside a concurrent writer;
				// WriteMessage is not.
				deadline := time.Now().Add(10 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	var username string

	// First message identifies the player.
	msg, err := h.readMessage(conn)
	if err != nil {
		log.Printf("[WS] read error during join: %v", err)
		conn.Close()
		return
	}
	if (msg.Type != "join" && msg.Type != "rejoin") || msg.Payload.Username == "" {
		log.Printf("[WS] first message must be a join with a username")
		conn.WriteJSON(domain.ServerMessage{Type: "error", Error: "join required"})
		conn.Close()
		return
	}
	username = msg.Payload.Username
	h.ConnManager.Register(username, conn)
	log.Printf("[WS] connection established for %s", username)

	h.route(username, msg)

	defer func() {
		if !h.ConnManager.IsCurrent(username, conn) {
			// Superseded by a newer socket; the new one owns the player.
			return
		}
		log.Printf("[WS] connection closed for %s", username)
		h.Matches.Dequeue(username)
		if gameID, ok := h.Matches.InGame(username); ok {
			h.Matches.OnDisconnect(gameID, username)
		}
		h.ConnManager.UnregisterIfCurrent(username, conn)
	}()

	for {
		msg, err := h.readMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] %s disconnected unexpectedly: %v", username, err)
			}
			return
		}
		if !h.ConnManager.IsCurrent(username, conn) {
			return
		}
		h.route(username, msg)
	}
}

func (h *Handler) readMessage(conn *websocket.Conn) (domain.ClientMessage, error) {
	var msg domain.ClientMessage
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[WS] invalid message: %v", err)
		return domain.ClientMessage{Type: "invalid"}, nil
	}
	return msg, nil
}

// route dispatches one client verb.
func (h *Handler) route(username string, msg domain.ClientMessage) {
	switch msg.Type {
	case "join":
		// A join that names a game is a reconnect attempt; fall back to
		// the queue when the game cannot be resumed.
		if msg.Payload.GameID != "" && h.Matches.Rejoin(msg.Payload.GameID, username) {
			return
		}
		h.Matches.Enqueue(username)

	case "rejoin":
		if msg.Payload.GameID == "" {
			h.ConnManager.SendToUser(username, domain.ServerMessage{
				Type: "rejoinFailed", Reason: domain.RejoinUnknownGame,
			})
			return
		}
		h.Matches.Rejoin(msg.Payload.GameID, username)

	case "move":
		if msg.Payload.GameID == "" {
			h.ConnManager.SendToUser(username, domain.ServerMessage{Type: "error", Error: "gameId required"})
			return
		}
		h.Matches.OnMove(msg.Payload.GameID, username, msg.Payload.Col)

	case "resign":
		if msg.Payload.GameID == "" {
			return
		}
		h.Matches.Resign(msg.Payload.GameID, username)

	case "leaveQueue":
		h.Matches.Dequeue(username)

	default:
		h.ConnManager.SendToUser(username, domain.ServerMessage{Type: "error", Error: "unknown message type"})
	}
}
