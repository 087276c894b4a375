package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/realtime"
	"github.com/teamflow-dev/teamflow/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type WSHandler struct {
	authz *authz.Authorizer
	hub   *realtime.Hub
}

func NewWSHandler(az *authz.Authorizer, hub *realtime.Hub) *WSHandler {
	return &WSHandler{authz: az, hub: hub}
}

// Serve upgrades the connection and keeps the client subscribed to board
// refreshes for one project until it goes away.
func (h *WSHandler) Serve(c *gin.Context) {
	userID, err := utils.GetCurrentUserID(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.ParamUint(c, "project_id")

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, _, err := h.authz.RequireForProject(userID, projectID, authz.ActionView); err != nil {
		respondAccessError(c, err, "Project")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)

	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.hub.Register(projectID, conn)

	go h.readLoop(projectID, conn)
	go h.pingLoop(conn)
}

func (h *WSHandler) readLoop(projectID uint, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(projectID, conn)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Websocket closed unexpectedly: %v", err)
			}
			return
		}
	}
}

func (h *WSHandler) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}

		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}
