package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	domain "github.com/averyowl/chat/domain/chat"
	userdomain "github.com/averyowl/chat/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Coordinator mutates room membership and keeps the live broadcast topology
// consistent with the store: leave with ownership handoff, room deletion,
// creation, and registration-time provisioning. All mutations of one room
// are serialized behind a per-room mutex.
type Coordinator struct {
	rooms    *RoomRepository
	service  *Service
	registry SessionRegistry
	picker   SuccessorPicker
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator creates a membership coordinator with the default random
// successor policy.
func NewCoordinator(rooms *RoomRepository, service *Service, registry SessionRegistry) *Coordinator {
	return &Coordinator{
		rooms:    rooms,
		service:  service,
		registry: registry,
		picker:   RandomPicker{},
		locks:    make(map[string]*sync.Mutex),
		logger:   slog.Default(),
	}
}

// SetSuccessorPicker replaces the owner-handoff policy.
func (c *Coordinator) SetSuccessorPicker(p SuccessorPicker) {
	c.picker = p
}

// roomLock returns the mutex serializing mutations of one room. Lock
// entries are never removed; rooms are few and the per-entry cost is a
// mutex.
func (c *Coordinator) roomLock(roomID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[roomID] = lock
	}
	return lock
}

// Create creates a room owned by the caller. The creator is always included
// in the member set and duplicates are collapsed.
func (c *Coordinator) Create(ctx context.Context, name string, userIDs []string, creator Identity) (*domain.Room, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrInvalidRequest)
	}

	// The creator is forced in, so the member set is never empty.
	members := dedupe(append(userIDs, creator.UserID))

	room := &domain.Room{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   creator.UserID,
		IsDirect:  false,
		CreatedAt: time.Now(),
	}
	if err := c.rooms.Create(ctx, room, members); err != nil {
		return nil, err
	}

	c.logger.Info("room created", "roomID", room.ID, "name", name, "ownerID", creator.UserID)
	return room, nil
}

// Leave removes the caller from the room. An emptied room is deleted in the
// same step. A leaving owner hands ownership to a remaining member chosen
// by the successor policy, announced with one system message. Concurrent
// leaves on the same room are strictly ordered, and the membership,
// deletion, and owner writes commit or roll back as one unit so a failure
// mid-sequence never leaves an ownerless or empty room behind.
func (c *Coordinator) Leave(ctx context.Context, roomID string, caller Identity) (LeaveOutcome, error) {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := c.rooms.FindByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if room.IsDirect {
		return 0, ErrInvalidOperation
	}

	var (
		outcome   LeaveOutcome
		successor *userdomain.User
		announce  bool
	)
	err = c.rooms.Transaction(ctx, func(tx *RoomRepository) error {
		if err := tx.RemoveMember(ctx, roomID, caller.UserID); err != nil {
			return err
		}
		remaining, err := tx.Members(ctx, roomID)
		if err != nil {
			return err
		}

		if len(remaining) == 0 {
			outcome = RoomDeleted
			return tx.Delete(ctx, roomID)
		}

		outcome = LeftRoom
		if room.OwnerID == caller.UserID {
			next := c.picker.Pick(remaining)
			if err := tx.UpdateOwner(ctx, roomID, next.ID); err != nil {
				return err
			}
			successor = &next
			// With a single member left the handoff is trivial and announced
			// to no one.
			announce = len(remaining) >= 2
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.registry.DropUserRoom(caller.UserID, roomID)

	if outcome == RoomDeleted {
		// No audience left; no system message.
		c.registry.DropRoom(roomID)
		c.logger.Info("room deleted because it was empty", "roomID", roomID)
		return RoomDeleted, nil
	}

	if successor != nil {
		if announce {
			notice := fmt.Sprintf("%s left the room. %s is now the owner.",
				caller.FullName, successor.FullName())
			if _, err := c.service.SendSystemMessage(ctx, roomID, notice); err != nil {
				c.logger.Error("failed to announce new owner", "roomID", roomID, "error", err)
			}
		}
		c.logger.Info("ownership reassigned",
			"roomID", roomID, "from", caller.UserID, "to", successor.ID)
	}

	return LeftRoom, nil
}

// Delete removes a room on the owner's request. Membership rows go with the
// room; messages are retained as orphans.
func (c *Coordinator) Delete(ctx context.Context, roomID string, caller Identity) error {
	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := c.rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsDirect {
		return ErrInvalidOperation
	}
	if room.OwnerID != caller.UserID {
		c.logger.Warn("forbidden room delete attempt", "roomID", roomID, "userID", caller.UserID)
		return ErrForbidden
	}

	if err := c.rooms.Delete(ctx, roomID); err != nil {
		return err
	}
	c.registry.DropRoom(roomID)
	c.logger.Info("room deleted", "roomID", roomID, "ownerID", caller.UserID)
	return nil
}

// OnUserRegistered adds the new account to the global room and provisions a
// direct-message room with every existing account. Invoked once per
// registration by the account service.
func (c *Coordinator) OnUserRegistered(ctx context.Context, newUserID string, existingUserIDs []string) error {
	if err := c.joinGlobalRoom(ctx, newUserID); err != nil {
		return err
	}

	for _, otherID := range existingUserIDs {
		if err := c.ensureDirectRoom(ctx, newUserID, otherID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) joinGlobalRoom(ctx context.Context, userID string) error {
	room, err := c.rooms.FindByName(ctx, domain.GlobalRoomName)
	if err == ErrNotFound {
		room = &domain.Room{
			ID:        uuid.New().String(),
			Name:      domain.GlobalRoomName,
			IsDirect:  false,
			CreatedAt: time.Now(),
		}
		err = c.rooms.Create(ctx, room, nil)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent registration created it between the lookup and
			// the insert; use theirs.
			room, err = c.rooms.FindByName(ctx, domain.GlobalRoomName)
		}
		if err != nil {
			return fmt.Errorf("failed to create global room: %w", err)
		}
	} else if err != nil {
		return err
	}
	return c.rooms.AddMember(ctx, room.ID, userID)
}

// ensureDirectRoom creates the DM room for a user pair if absent. The name
// is the sorted id pair, so each pair maps to exactly one room.
func (c *Coordinator) ensureDirectRoom(ctx context.Context, userA, userB string) error {
	pair := []string{userA, userB}
	sort.Strings(pair)
	name := pair[0] + "-" + pair[1]

	_, err := c.rooms.FindByName(ctx, name)
	if err == nil {
		return nil
	}
	if err != ErrNotFound {
		return err
	}

	room := &domain.Room{
		ID:        uuid.New().String(),
		Name:      name,
		IsDirect:  true,
		CreatedAt: time.Now(),
	}
	err = c.rooms.Create(ctx, room, pair)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race to a concurrent registration; the pair's room
		// already exists with both members.
		return nil
	}
	return err
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
