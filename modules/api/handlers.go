package api

import (
	"errors"
	"strconv"

	"github.com/averyowl/chat/modules/auth"
	"github.com/averyowl/chat/modules/chat"
	"github.com/gofiber/fiber/v2"
)

func identityFrom(claims *auth.Claims) chat.Identity {
	return chat.Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
	}
}

// statusForError maps service sentinels to HTTP status codes. Anything
// unmapped is a persistence or internal failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, chat.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, chat.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, chat.ErrNotMember),
		errors.Is(err, chat.ErrInvalidOperation),
		errors.Is(err, chat.ErrInvalidRequest),
		errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrUserExists),
		errors.Is(err, auth.ErrWrongPassword):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "internal server error"
	}
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

func (m *Module) handleRegister(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if _, err := m.authService.Register(c.Context(), req); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(MessageResponse{Message: "User registered successfully."})
}

func (m *Module) handleLogin(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	token, err := m.authService.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(auth.LoginResponse{Message: "Login successful.", Token: token})
}

func (m *Module) handleVerifyToken(c *fiber.Ctx) error {
	// Checks the signature and that the account behind the claims still
	// exists, so a token minted before deletion stops validating.
	user, err := m.authService.VerifyToken(c.Context(), extractToken(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"valid":    true,
		"userId":   user.ID,
		"email":    user.Email,
		"fullName": user.FullName(),
	})
}

func (m *Module) handleGetProfile(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	user, err := m.authService.GetUser(c.Context(), claims.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(auth.ProfileResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func (m *Module) handleUpdateProfile(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	var req auth.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := m.authService.UpdateProfile(c.Context(), claims.UserID, req); err != nil {
		return fail(c, err)
	}
	return c.JSON(MessageResponse{Message: "Profile updated successfully."})
}

func (m *Module) handleListUsers(c *fiber.Ctx) error {
	users, err := m.authService.ListUsers(c.Context())
	if err != nil {
		return fail(c, err)
	}

	summaries := make([]auth.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, auth.UserSummary{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		})
	}
	return c.JSON(summaries)
}

func (m *Module) handleListRooms(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	rooms, err := m.chatModule.Rooms().ListByUser(c.Context(), claims.UserID)
	if err != nil {
		return fail(c, err)
	}

	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		view := RoomView{
			ID:      room.ID,
			Name:    room.Name,
			IsDM:    room.IsDirect,
			IsOwner: !room.IsDirect && room.OwnerID == claims.UserID,
		}
		if room.IsDirect {
			members, err := m.chatModule.Rooms().Members(c.Context(), room.ID)
			if err != nil {
				return fail(c, err)
			}
			for _, member := range members {
				if member.ID != claims.UserID {
					view.OtherUserFirstName = member.FirstName
					break
				}
			}
		}
		views = append(views, view)
	}
	return c.JSON(views)
}

func (m *Module) handleCreateRoom(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	room, err := m.chatModule.Coordinator().Create(c.Context(), req.Name, req.Users, identityFrom(claims))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Room created successfully.",
		"roomId":  room.ID,
	})
}

func (m *Module) handleLeaveRoom(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	roomID := c.Params("id")

	outcome, err := m.chatModule.Coordinator().Leave(c.Context(), roomID, identityFrom(claims))
	if err != nil {
		return fail(c, err)
	}

	if outcome == chat.RoomDeleted {
		return c.JSON(MessageResponse{Message: "Room deleted because it was empty."})
	}
	return c.JSON(MessageResponse{Message: "You have left the room."})
}

func (m *Module) handleDeleteRoom(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	roomID := c.Params("id")

	if err := m.chatModule.Coordinator().Delete(c.Context(), roomID, identityFrom(claims)); err != nil {
		return fail(c, err)
	}
	return c.JSON(MessageResponse{Message: "Room deleted successfully."})
}

func (m *Module) handleListMessages(c *fiber.Ctx) error {
	roomID := c.Query("room")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "room query parameter is required"})
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = parsed
	}

	messages, err := m.chatModule.Service().History(c.Context(), roomID, limit)
	if err != nil {
		return fail(c, err)
	}

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, MessageView{
			ID:        msg.ID,
			Room:      msg.RoomID,
			User:      msg.Author,
			Message:   msg.Body,
			Timestamp: msg.Timestamp,
		})
	}
	return c.JSON(views)
}

func (m *Module) handleDeleteMessage(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	messageID := c.Params("id")

	if err := m.chatModule.Service().DeleteMessage(c.Context(), messageID, identityFrom(claims)); err != nil {
		return fail(c, err)
	}
	return c.JSON(MessageResponse{Message: "Message deleted successfully."})
}
