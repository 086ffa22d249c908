package ws

import (
	"encoding/json"
	"sync"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/pkg/logger"
)

// Server→client event types.
const (
	EventNewMessage  = "chat:newMessage"
	EventAdminJoined = "chat:adminJoined"
	EventClosed      = "chat:closed"
	EventAdminTyping = "chat:adminTyping"
	EventNewContact  = "contact:new"
	EventError       = "error"
)

// Client→server event types.
const (
	EventUserJoin         = "user:join"
	EventUserMessage      = "user:message"
	EventUserRequestHuman = "user:requestHuman"
)

// Event is the wire envelope for both directions.
type Event struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content,omitempty"`
}

// ChatGateway is the slice of the chat services the hub needs to handle
// inbound visitor events.
type ChatGateway interface {
	VisitorMessage(hospitalID uint, sessionID, userName, message, chatType string) error
	RequestHuman(hospitalID uint, sessionID, userName, userEmail string) error
}

// Hub routes chat events to connected clients. Visitors are keyed by
// (hospital, session); agents subscribe to their hospital; super-admins
// additionally receive contact-form notifications.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	gateway    ChatGateway
	log        *logger.Logger
	mu         sync.Mutex
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// SetGateway wires the inbound event handler. Set once at startup,
// before Run.
func (h *Hub) SetGateway(gateway ChatGateway) {
	h.gateway = gateway
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.log.Debug("ws client registered", "role", client.Role, "hospital_id", client.HospitalID, "session_id", client.SessionID)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
		}
	}
}

// sendTo delivers the event to every connected client matching the
// filter. Delivery is at-most-once; a client with a full send buffer is
// dropped and must reconnect and re-fetch session state.
func (h *Hub) sendTo(event Event, match func(*Client) bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.LogError(err, "ws event marshal failed", "type", event.Type)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			close(client.Send)
			delete(h.clients, client)
			h.log.Warn("ws client dropped, send buffer full", "session_id", client.SessionID)
		}
	}
}

// retarget re-addresses a connected client. The hub lock keeps the
// routing fields consistent with concurrent sendTo matching.
func (h *Hub) retarget(c *Client, hospitalID uint, sessionID, userName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.HospitalID = hospitalID
	c.SessionID = sessionID
	if userName != "" {
		c.UserName = userName
	}
}

// clientTarget reads a client's routing fields under the hub lock.
func (h *Hub) clientTarget(c *Client) (uint, string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.HospitalID, c.SessionID, c.UserName
}

func sessionMatch(hospitalID uint, sessionID string) func(*Client) bool {
	return func(c *Client) bool {
		if c.HospitalID != hospitalID {
			return false
		}
		switch c.Role {
		case RoleVisitor:
			return c.SessionID == sessionID
		case RoleAgent, RoleSuperAdmin:
			return true
		}
		return false
	}
}

// NotifyMessage pushes an appended message to the visitor's client and
// the hospital's agent consoles.
func (h *Hub) NotifyMessage(hospitalID uint, sessionID string, message models.ChatMessage) {
	h.sendTo(Event{Type: EventNewMessage, Content: map[string]interface{}{
		"sessionId": sessionID,
		"message":   message,
	}}, sessionMatch(hospitalID, sessionID))
}

// NotifyAgentJoined tells the visitor a human picked up the chat.
func (h *Hub) NotifyAgentJoined(hospitalID uint, sessionID string, agentName string) {
	h.sendTo(Event{Type: EventAdminJoined, Content: map[string]interface{}{
		"sessionId": sessionID,
		"agentName": agentName,
	}}, sessionMatch(hospitalID, sessionID))
}

// NotifyClosed tells the visitor the chat ended.
func (h *Hub) NotifyClosed(hospitalID uint, sessionID string) {
	h.sendTo(Event{Type: EventClosed, Content: map[string]interface{}{
		"sessionId": sessionID,
	}}, sessionMatch(hospitalID, sessionID))
}

// NotifyAgentTyping relays the typing indicator to the visitor only.
func (h *Hub) NotifyAgentTyping(hospitalID uint, sessionID string, typing bool) {
	h.sendTo(Event{Type: EventAdminTyping, Content: map[string]interface{}{
		"sessionId": sessionID,
		"isTyping":  typing,
	}}, func(c *Client) bool {
		return c.Role == RoleVisitor && c.HospitalID == hospitalID && c.SessionID == sessionID
	})
}

// NotifyContact pushes a new contact-form submission to all connected
// super-admins.
func (h *Hub) NotifyContact(msg models.ContactMessage) {
	h.sendTo(Event{Type: EventNewContact, Content: msg}, func(c *Client) bool {
		return c.Role == RoleSuperAdmin
	})
}
