package chat

import (
	"errors"

	domain "github.com/averyowl/chat/domain/user"
)

// Sentinel errors for room and message operations.
var (
	// ErrNotFound is returned when a room or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned on an ownership or authorship violation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotAuthorized is returned when a session is not subscribed to the
	// room it is sending to.
	ErrNotAuthorized = errors.New("not authorized for this room")
	// ErrNotMember is returned when the caller is not part of the room.
	ErrNotMember = errors.New("user not part of this room")
	// ErrInvalidOperation is returned for operations direct-message rooms
	// reject unconditionally.
	ErrInvalidOperation = errors.New("operation not allowed on a direct message room")
	// ErrInvalidRequest is returned for malformed creation requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// Identity is the authenticated caller of a room or message operation, as
// carried by the verified token.
type Identity struct {
	UserID   string
	Email    string
	FullName string
}

// Handle returns the caller's stable author label.
func (i Identity) Handle() string {
	return domain.HandleFromEmail(i.Email)
}

// LeaveOutcome distinguishes a plain departure from a departure that
// emptied and deleted the room.
type LeaveOutcome int

const (
	// LeftRoom means the caller left and the room still exists.
	LeftRoom LeaveOutcome = iota
	// RoomDeleted means the caller was the last member and the room was
	// deleted.
	RoomDeleted
)

// SessionRegistry is the live-connection state the coordinator keeps
// consistent with membership mutations. Implemented by broadcast.Hub.
type SessionRegistry interface {
	IsSubscribed(clientID, roomID string) bool
	DropRoom(roomID string)
	DropUserRoom(userID, roomID string)
}

// Broadcaster fans a payload out to every live subscriber of a room.
// Implemented by broadcast.Hub.
type Broadcaster interface {
	Publish(roomID string, payload any)
}
