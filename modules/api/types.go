package api

import "time"

// CreateRoomRequest is the body for POST /create-room.
type CreateRoomRequest struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

// RoomView is one element of the GET /rooms response. For direct rooms the
// display name is the other participant's first name and ownership does not
// apply.
type RoomView struct {
	ID                 string `json:"_id"`
	Name               string `json:"name"`
	IsDM               bool   `json:"isDM"`
	OtherUserFirstName string `json:"otherUserFirstName,omitempty"`
	IsOwner            bool   `json:"isOwner"`
}

// MessageView is one element of the GET /messages response.
type MessageView struct {
	ID        string    `json:"_id"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageResponse is a plain status payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
