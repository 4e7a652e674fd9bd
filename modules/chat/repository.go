package chat

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/averyowl/chat/domain/chat"
	userdomain "github.com/averyowl/chat/domain/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomRepository handles room and membership persistence using GORM.
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new RoomRepository.
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Transaction runs fn against a transaction-scoped repository so a
// multi-step mutation commits or rolls back as one unit.
func (r *RoomRepository) Transaction(ctx context.Context, fn func(tx *RoomRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RoomRepository{db: tx})
	})
}

// Create persists a room and its initial membership in one transaction.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		for _, userID := range memberIDs {
			member := domain.RoomMember{RoomID: room.ID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return fmt.Errorf("failed to add member: %w", err)
			}
		}
		return nil
	})
}

// FindByID finds a room by ID.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// FindByName finds a room by its unique name.
func (r *RoomRepository) FindByName(ctx context.Context, name string) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ListByUser returns every room the user is a member of.
func (r *RoomRepository) ListByUser(ctx context.Context, userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.created_at ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// Members returns the user records of every member of the room.
func (r *RoomRepository) Members(ctx context.Context, roomID string) ([]userdomain.User, error) {
	var users []userdomain.User
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", roomID).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// IsMember reports whether the user is a member of the room.
func (r *RoomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddMember adds a user to the room. Idempotent.
func (r *RoomRepository) AddMember(ctx context.Context, roomID, userID string) error {
	member := domain.RoomMember{RoomID: roomID, UserID: userID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

// RemoveMember removes a user from the room. Returns ErrNotMember when no
// membership row existed.
func (r *RoomRepository) RemoveMember(ctx context.Context, roomID, userID string) error {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.RoomMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotMember
	}
	return nil
}

// UpdateOwner persists a new owner for the room.
func (r *RoomRepository) UpdateOwner(ctx context.Context, roomID, ownerID string) error {
	return r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		Update("owner_id", ownerID).Error
}

// Delete removes the room and its membership rows in one transaction.
// Messages are intentionally left in place.
func (r *RoomRepository) Delete(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.RoomMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Room{}, "id = ?", roomID).Error
	})
}

// MessageRepository handles message persistence using GORM.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a message.
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// FindByID finds a message by ID.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListByRoom returns the room's messages ordered by timestamp ascending.
// A limit of zero returns the full history.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	query := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Delete hard-deletes a message.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Message{}, "id = ?", id).Error
}
