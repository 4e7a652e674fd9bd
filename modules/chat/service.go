package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/averyowl/chat/domain/chat"
	"github.com/averyowl/chat/modules/cache"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ChatEvent is the payload broadcast to room subscribers for both user and
// system messages.
type ChatEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"_id"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Service implements the message send/persist path and history reads.
type Service struct {
	rooms       *RoomRepository
	messages    *MessageRepository
	registry    SessionRegistry
	broadcaster Broadcaster
	cache       *cache.Cache
	group       singleflight.Group
	logger      *slog.Logger
}

// NewService creates the message service.
func NewService(rooms *RoomRepository, messages *MessageRepository, registry SessionRegistry, broadcaster Broadcaster) *Service {
	return &Service{
		rooms:       rooms,
		messages:    messages,
		registry:    registry,
		broadcaster: broadcaster,
		logger:      slog.Default(),
	}
}

// SetCache enables cache-aside history reads. A nil cache leaves reads
// going straight to the store.
func (s *Service) SetCache(c *cache.Cache) {
	s.cache = c
}

// SendMessage persists a message from a live session and broadcasts it to
// the room, echo to the sender included. The session must currently
// subscribe to the room; room membership was authorized at subscribe time.
// Persistence failure means no broadcast and the error is surfaced to the
// sender only.
func (s *Service) SendMessage(ctx context.Context, sessionID string, sender Identity, roomID, body string) (*domain.Message, error) {
	if !s.registry.IsSubscribed(sessionID, roomID) {
		s.logger.Warn("unauthorized send attempt",
			"sessionID", sessionID, "userID", sender.UserID, "roomID", roomID)
		return nil, ErrNotAuthorized
	}
	return s.persistAndPublish(ctx, roomID, sender.Handle(), body)
}

// SendSystemMessage persists and broadcasts a coordinator-authored notice.
// The system is always authorized, so no subscription check applies.
func (s *Service) SendSystemMessage(ctx context.Context, roomID, body string) (*domain.Message, error) {
	return s.persistAndPublish(ctx, roomID, domain.SystemAuthor, body)
}

func (s *Service) persistAndPublish(ctx context.Context, roomID, author, body string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Author:    author,
		Body:      body,
		Timestamp: time.Now(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, roomID)

	s.broadcaster.Publish(roomID, ChatEvent{
		Type:      "chatMessage",
		ID:        msg.ID,
		User:      msg.Author,
		Message:   msg.Body,
		Timestamp: msg.Timestamp,
	})
	return msg, nil
}

// History returns the room's messages ordered by timestamp ascending.
// Returns ErrNotFound once the room no longer exists, even though orphaned
// messages may remain in the store. A limit of zero returns everything.
func (s *Service) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		return nil, err
	}

	// Only full-history reads are cached; limited reads are rare and go
	// straight to the store.
	if s.cache == nil || limit > 0 {
		return s.messages.ListByRoom(ctx, roomID, limit)
	}

	key := historyKey(roomID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var messages []domain.Message
		if err := json.Unmarshal(data, &messages); err == nil {
			return messages, nil
		}
		s.logger.Warn("discarding undecodable history cache entry", "roomID", roomID)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		messages, err := s.messages.ListByRoom(ctx, roomID, 0)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(messages); err == nil {
			if err := s.cache.Set(ctx, key, data); err != nil {
				s.logger.Warn("failed to cache history", "roomID", roomID, "error", err)
			}
		}
		return messages, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Message), nil
}

// DeleteMessage hard-deletes a message. Only the original author may delete
// it; the check is against the author label, so a user keeps delete rights
// over historical messages after leaving the room, and system messages are
// never deletable.
func (s *Service) DeleteMessage(ctx context.Context, messageID string, caller Identity) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.Author != caller.Handle() {
		s.logger.Warn("forbidden message delete attempt",
			"userID", caller.UserID, "messageID", messageID)
		return ErrForbidden
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}
	s.invalidateHistory(ctx, msg.RoomID)
	return nil
}

func (s *Service) invalidateHistory(ctx context.Context, roomID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, historyKey(roomID)); err != nil {
		s.logger.Warn("failed to invalidate history cache", "roomID", roomID, "error", err)
	}
}

func historyKey(roomID string) string {
	return fmt.Sprintf("history:%s", roomID)
}
