package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

func addClient(hub *Hub, role string, hospitalID uint, sessionID string) *Client {
	client := &Client{
		Send:       make(chan []byte, 8),
		Hub:        hub,
		Role:       role,
		HospitalID: hospitalID,
		SessionID:  sessionID,
	}
	hub.mu.Lock()
	hub.clients[client] = true
	hub.mu.Unlock()
	return client
}

func receivedTypes(c *Client) []string {
	var types []string
	for {
		select {
		case data := <-c.Send:
			var event Event
			if err := json.Unmarshal(data, &event); err == nil {
				types = append(types, event.Type)
			}
		default:
			return types
		}
	}
}

func TestNotifyMessageTargetsSessionAndAgents(t *testing.T) {
	hub := NewHub(testLogger())

	visitor := addClient(hub, RoleVisitor, 1, "visitor-1")
	otherVisitor := addClient(hub, RoleVisitor, 1, "visitor-2")
	agent := addClient(hub, RoleAgent, 1, "")
	otherHospitalAgent := addClient(hub, RoleAgent, 2, "")

	hub.NotifyMessage(1, "visitor-1", models.NewChatMessage(models.RoleAssistant, "hello"))

	assert.Equal(t, []string{EventNewMessage}, receivedTypes(visitor))
	assert.Empty(t, receivedTypes(otherVisitor))
	assert.Equal(t, []string{EventNewMessage}, receivedTypes(agent))
	assert.Empty(t, receivedTypes(otherHospitalAgent))
}

func TestNotifyAgentTypingOnlyReachesVisitor(t *testing.T) {
	hub := NewHub(testLogger())

	visitor := addClient(hub, RoleVisitor, 1, "visitor-1")
	agent := addClient(hub, RoleAgent, 1, "")

	hub.NotifyAgentTyping(1, "visitor-1", true)

	require.Equal(t, []string{EventAdminTyping}, receivedTypes(visitor))
	assert.Empty(t, receivedTypes(agent))
}

func TestNotifyContactReachesSuperAdminsOnly(t *testing.T) {
	hub := NewHub(testLogger())

	superAdmin := addClient(hub, RoleSuperAdmin, 0, "")
	agent := addClient(hub, RoleAgent, 1, "")
	visitor := addClient(hub, RoleVisitor, 1, "visitor-1")

	hub.NotifyContact(models.ContactMessage{Name: "Ana", Subject: "Partnership"})

	assert.Equal(t, []string{EventNewContact}, receivedTypes(superAdmin))
	assert.Empty(t, receivedTypes(agent))
	assert.Empty(t, receivedTypes(visitor))
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(testLogger())

	client := addClient(hub, RoleVisitor, 1, "visitor-1")
	// Fill the send buffer so the next event cannot be delivered.
	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("{}")
	}

	hub.NotifyClosed(1, "visitor-1")

	hub.mu.Lock()
	_, stillRegistered := hub.clients[client]
	hub.mu.Unlock()
	assert.False(t, stillRegistered)
}

func TestClosedEventPayload(t *testing.T) {
	hub := NewHub(testLogger())
	visitor := addClient(hub, RoleVisitor, 1, "visitor-1")

	hub.NotifyClosed(1, "visitor-1")

	data := <-visitor.Send
	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventClosed, event.Type)
	content, ok := event.Content.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "visitor-1", content["sessionId"])
}

func TestRetargetMovesClientBetweenSessions(t *testing.T) {
	hub := NewHub(testLogger())
	visitor := addClient(hub, RoleVisitor, 1, "visitor-1")

	hub.retarget(visitor, 2, "visitor-9", "Ana")

	hub.NotifyMessage(1, "visitor-1", models.NewChatMessage(models.RoleAssistant, "old room"))
	assert.Empty(t, receivedTypes(visitor))

	hub.NotifyMessage(2, "visitor-9", models.NewChatMessage(models.RoleAssistant, "new room"))
	assert.Equal(t, []string{EventNewMessage}, receivedTypes(visitor))

	hospitalID, sessionID, userName := hub.clientTarget(visitor)
	assert.Equal(t, uint(2), hospitalID)
	assert.Equal(t, "visitor-9", sessionID)
	assert.Equal(t, "Ana", userName)
}

func TestRetargetIsSafeDuringDelivery(t *testing.T) {
	hub := NewHub(testLogger())
	visitor := addClient(hub, RoleVisitor, 1, "visitor-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.NotifyMessage(1, "visitor-1", models.NewChatMessage(models.RoleAssistant, "ping"))
			receivedTypes(visitor)
		}
		close(done)
	}()
	for i := 0; i < 200; i++ {
		hub.retarget(visitor, 1, "visitor-1", "")
	}
	<-done
}
