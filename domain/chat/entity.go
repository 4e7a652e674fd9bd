package chat

import "time"

// SystemAuthor is the author label of coordinator-generated notices. No
// account ever maps to it, so system messages are not deletable.
const SystemAuthor = "System"

// GlobalRoomName is the shared room every account is added to at
// registration time.
const GlobalRoomName = "global"

// Room represents a chat room. Direct-message rooms are created in pairs at
// registration time and carry no ownership semantics.
type Room struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	OwnerID   string    `json:"owner_id,omitempty"`
	IsDirect  bool      `json:"is_direct"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomMember is a membership row. The composite key makes membership
// idempotent at the schema level.
type RoomMember struct {
	RoomID string `gorm:"primaryKey" json:"room_id"`
	UserID string `gorm:"primaryKey" json:"user_id"`
}

// Message is a persisted chat message. Immutable after creation except for
// hard deletion.
type Message struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	RoomID    string    `gorm:"index" json:"room_id"`
	Author    string    `json:"user"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
