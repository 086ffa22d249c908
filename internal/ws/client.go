package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/pkg/jwt"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client roles.
const (
	RoleVisitor    = "visitor"
	RoleAgent      = "agent"
	RoleSuperAdmin = "superadmin"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Widget is embedded on hospital sites
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

type Client struct {
	Conn       *websocket.Conn
	Send       chan []byte
	Hub        *Hub
	Role       string
	HospitalID uint
	SessionID  string
	UserName   string
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("ws read error", "error", err)
			}
			break
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.Hub.log.Warn("ws bad event", "error", err)
			continue
		}

		go c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Type {
	case EventUserJoin:
		c.handleJoin(event)
	case EventUserMessage:
		c.handleUserMessage(event)
	case EventUserRequestHuman:
		c.handleRequestHuman(event)
	case "ping":
		c.sendEvent("pong", nil)
	default:
		c.Hub.log.Debug("ws unknown event type", "type", event.Type)
	}
}

func (c *Client) handleJoin(event Event) {
	var payload struct {
		HospitalID uint   `json:"hospitalId"`
		SessionID  string `json:"sessionId"`
		UserName   string `json:"userName"`
	}
	if !c.decode(event, &payload) {
		return
	}
	if payload.SessionID == "" {
		c.sendError("sessionId is required")
		return
	}
	// Announcing presence retargets the client; visitors do this when
	// the widget opens in human mode.
	c.Hub.retarget(c, payload.HospitalID, payload.SessionID, payload.UserName)
}

func (c *Client) handleUserMessage(event Event) {
	var payload struct {
		HospitalID uint   `json:"hospitalId"`
		SessionID  string `json:"sessionId"`
		Message    string `json:"message"`
		ChatType   string `json:"chatType"`
	}
	if !c.decode(event, &payload) {
		return
	}
	if payload.Message == "" {
		c.sendError("message is required")
		return
	}
	hospitalID, sessionID, userName := c.target(payload.HospitalID, payload.SessionID)
	chatType := payload.ChatType
	if chatType == "" {
		chatType = models.ChatTypeHuman
	}
	if err := c.Hub.gateway.VisitorMessage(hospitalID, sessionID, userName, payload.Message, chatType); err != nil {
		c.Hub.log.LogError(err, "ws visitor message failed", "hospital_id", hospitalID, "session_id", sessionID)
		c.sendError("failed to process message")
	}
}

func (c *Client) handleRequestHuman(event Event) {
	var payload struct {
		HospitalID uint   `json:"hospitalId"`
		SessionID  string `json:"sessionId"`
		UserName   string `json:"userName"`
		UserEmail  string `json:"userEmail"`
	}
	if !c.decode(event, &payload) {
		return
	}
	hospitalID, sessionID, _ := c.target(payload.HospitalID, payload.SessionID)
	if err := c.Hub.gateway.RequestHuman(hospitalID, sessionID, payload.UserName, payload.UserEmail); err != nil {
		c.Hub.log.LogError(err, "ws request human failed", "hospital_id", hospitalID, "session_id", sessionID)
		c.sendError("failed to request human support")
	}
}

// target prefers the payload's addressing and falls back to the values
// set at join time.
func (c *Client) target(hospitalID uint, sessionID string) (uint, string, string) {
	joinedHospital, joinedSession, userName := c.Hub.clientTarget(c)
	if hospitalID == 0 {
		hospitalID = joinedHospital
	}
	if sessionID == "" {
		sessionID = joinedSession
	}
	return hospitalID, sessionID, userName
}

func (c *Client) decode(event Event, out interface{}) bool {
	data, err := json.Marshal(event.Content)
	if err == nil {
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		c.Hub.log.Warn("ws bad event payload", "type", event.Type, "error", err)
		c.sendError("malformed event payload")
		return false
	}
	return true
}

func (c *Client) sendEvent(eventType string, content interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Content: content})
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.sendEvent(EventError, map[string]string{"message": msg})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades a visitor widget connection. Visitors identify with
// hospitalId and sessionId query params; no auth token is required.
func ServeWs(hub *Hub, c *gin.Context) {
	hospitalID, err := strconv.ParseUint(c.Query("hospitalId"), 10, 64)
	if err != nil || hospitalID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hospitalId is required"})
		return
	}
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "ws upgrade failed")
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Hub:        hub,
		Role:       RoleVisitor,
		HospitalID: uint(hospitalID),
		SessionID:  sessionID,
		UserName:   c.Query("userName"),
	}
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// ServeAgentWs upgrades an agent-console connection. The JWT from the
// token query param decides the role: hospital agents see their
// hospital's chats, super-admins additionally get contact-form events.
func ServeAgentWs(hub *Hub, jwtService *jwt.Service, c *gin.Context) {
	claims, err := jwtService.ValidateToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	role := RoleAgent
	var hospitalID uint
	if claims.Role == jwt.RoleSuperAdmin {
		role = RoleSuperAdmin
	}
	if claims.HospitalID != nil {
		hospitalID = *claims.HospitalID
	}
	if role == RoleAgent && hospitalID == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "agent account has no hospital"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "ws upgrade failed")
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Hub:        hub,
		Role:       role,
		HospitalID: hospitalID,
		UserName:   claims.Email,
	}
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
