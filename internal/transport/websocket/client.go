package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dharmateja69/4-in-Row/internal/domain"
)

// ConnectionManager tracks the single live socket per username.
type ConnectionManager struct {
	connections map[string]*websocket.Conn

	// writeMu serializes writes per socket; conn.WriteJSON is not
	// safe for concurrent use.
	writeMu map[string]*sync.Mutex

	mu sync.RWMutex // protects the maps themselves
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		writeMu:     make(map[string]*sync.Mutex),
	}
}

// Register installs conn as the user's current socket, closing any
// previous one so a username never has two live connections.
func (cm *ConnectionManager) Register(username string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if old, exists := cm.connections[username]; exists && old != conn {
		old.Close()
	}
	cm.connections[username] = conn
	cm.writeMu[username] = &sync.Mutex{}
}

// UnregisterIfCurrent removes the mapping only when conn is still the
// user's current socket, so closing a superseded connection cannot tear
// down its replacement.
func (cm *ConnectionManager) UnregisterIfCurrent(username string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if current, exists := cm.connections[username]; exists && current == conn {
		current.Close()
		delete(cm.connections, username)
		delete(cm.writeMu, username)
	}
}

func (cm *ConnectionManager) IsCurrent(username string, conn *websocket.Conn) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	current, exists := cm.connections[username]
	return exists && current == conn
}

// SendToUser writes a message to the user's current socket. A user with
// no live connection is a silent no-op, never an error.
func (cm *ConnectionManager) SendToUser(username string, msg domain.ServerMessage) {
	cm.mu.RLock()
	conn, exists := cm.connections[username]
	mu, muExists := cm.writeMu[username]
	cm.mu.RUnlock()

	if !exists || !muExists {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(msg)
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}
