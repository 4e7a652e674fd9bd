package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/averyowl/chat/modules/auth"
	"github.com/averyowl/chat/modules/broadcast"
	"github.com/averyowl/chat/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// socketEvent is the envelope for every inbound socket frame.
type socketEvent struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

// socketError is pushed to a single client when its request fails.
type socketError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// upgradeMiddleware authenticates the connection once before the websocket
// upgrade. The token comes from the Authorization header or, for browser
// clients that cannot set headers on websocket requests, a token query
// parameter.
func (m *Module) upgradeMiddleware(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := extractToken(c)
	if token == "" {
		token = c.Query("token")
	}

	claims, err := m.verifier.VerifyToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "invalid or missing token"})
	}

	c.Locals(claimsLocal, claims)
	return c.Next()
}

// handleSocket runs the read loop for one authenticated connection. All
// outbound traffic, replies included, goes through the hub client's send
// queue so the connection has a single writer.
func (m *Module) handleSocket(conn *websocket.Conn) {
	claims, _ := conn.Locals(claimsLocal).(*auth.Claims)
	if claims == nil {
		_ = conn.Close()
		return
	}
	identity := chat.Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
	}

	client := broadcast.NewClient(uuid.New().String(), identity.UserID, identity.Handle(), conn)
	m.hub.Register(client)
	defer m.hub.Unregister(client)

	_ = client.SendJSON(fiber.Map{"type": "connected", "userId": identity.UserID})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("socket read ended", "clientID", client.ID, "error", err)
			return
		}

		var event socketEvent
		if err := json.Unmarshal(data, &event); err != nil {
			_ = client.SendJSON(socketError{Type: "errorMessage", Message: "malformed event"})
			continue
		}

		switch event.Type {
		case "joinRoom":
			m.handleJoinRoom(client, identity, event.Room)
		case "leaveRoom":
			m.hub.UnsubscribeAll(client.ID)
		case "chatMessage":
			m.handleChatMessage(client, identity, event)
		default:
			_ = client.SendJSON(socketError{Type: "errorMessage", Message: "unknown event type"})
		}
	}
}

// handleJoinRoom authorizes the subscription against stored membership
// before adding the connection as a broadcast target.
func (m *Module) handleJoinRoom(client *broadcast.Client, identity chat.Identity, roomID string) {
	ctx := context.Background()

	member, err := m.chatModule.Rooms().IsMember(ctx, roomID, identity.UserID)
	if err != nil {
		_ = client.SendJSON(socketError{Type: "errorMessage", Message: "failed to check room access"})
		return
	}
	if !member {
		slog.Warn("rejected join for non-member",
			"userID", identity.UserID, "roomID", roomID)
		_ = client.SendJSON(socketError{Type: "errorMessage", Message: "Access denied to this room."})
		return
	}

	m.hub.Subscribe(client.ID, roomID)
}

func (m *Module) handleChatMessage(client *broadcast.Client, identity chat.Identity, event socketEvent) {
	ctx := context.Background()

	_, err := m.chatModule.Service().SendMessage(ctx, client.ID, identity, event.Room, event.Message)
	if err != nil {
		msg := "failed to send message"
		if err == chat.ErrNotAuthorized {
			msg = "Access denied to this room."
		}
		_ = client.SendJSON(socketError{Type: "errorMessage", Message: msg})
	}
}
