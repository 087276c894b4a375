// Package realtime fans board-refresh messages out to websocket clients
// subscribed to a project.
package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*websocket.Conn]bool // project ID -> connections
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*websocket.Conn]bool)}
}

func (h *Hub) Register(projectID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[projectID] == nil {
		h.clients[projectID] = make(map[*websocket.Conn]bool)
	}
	h.clients[projectID][conn] = true
}

func (h *Hub) Unregister(projectID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.remove(projectID, conn)
}

// remove expects h.mu to be held.
func (h *Hub) remove(projectID uint, conn *websocket.Conn) {
	if clients, ok := h.clients[projectID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.clients, projectID)
		}
	}
}

// BroadcastRefresh tells every client watching the project to re-fetch its
// board. Dead connections are dropped along the way.
func (h *Hub) BroadcastRefresh(projectID uint) {
	h.mu.RLock()
	clients, exists := h.clients[projectID]
	if !exists || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy so the lock is not held while writing to sockets.
	conns := make([]*websocket.Conn, 0, len(clients))
	for conn := range clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Printf("Failed to set write deadline for broadcast: %v", err)
			continue
		}

		err := conn.WriteJSON(map[string]interface{}{
			"type":       "refresh",
			"message":    "Board data updated",
			"project_id": projectID,
		})

		if err != nil {
			log.Printf("Failed to broadcast refresh to client: %v", err)
			h.mu.Lock()
			h.remove(projectID, conn)
			h.mu.Unlock()
			conn.Close()
		}
	}
}
