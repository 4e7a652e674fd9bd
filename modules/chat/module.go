package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/averyowl/chat/modules/broadcast"
	"github.com/averyowl/chat/modules/cache"
	"github.com/go-monolith/mono"
	"gorm.io/gorm"
)

// Module bundles the room, message, and membership services behind the
// application lifecycle.
type Module struct {
	db          *gorm.DB
	rooms       *RoomRepository
	messages    *MessageRepository
	service     *Service
	coordinator *Coordinator
}

// NewModule creates the chat module on an already-migrated database. Hub
// wiring happens later via SetHub, before the app starts.
func NewModule(db *gorm.DB) *Module {
	return &Module{
		db:       db,
		rooms:    NewRoomRepository(db),
		messages: NewMessageRepository(db),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetHub wires the live-connection hub into the message service and the
// membership coordinator. Must be called before Start.
func (m *Module) SetHub(hub *broadcast.Hub) {
	m.service = NewService(m.rooms, m.messages, hub, hub)
	m.coordinator = NewCoordinator(m.rooms, m.service, hub)
}

// SetCache enables cache-aside history reads. Optional.
func (m *Module) SetCache(c *cache.Cache) {
	if m.service != nil && c != nil {
		m.service.SetCache(c)
	}
}

// Start initializes the chat module.
func (m *Module) Start(ctx context.Context) error {
	if m.service == nil || m.coordinator == nil {
		return fmt.Errorf("chat module missing hub; call SetHub before Start")
	}
	log.Println("[chat] Module started")
	return nil
}

// Stop shuts down the chat module.
func (m *Module) Stop(ctx context.Context) error {
	log.Println("[chat] Module stopped")
	return nil
}

// Health reports database reachability and room count.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: "Database handle unavailable"}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: "Database unreachable"}
	}

	var roomCount int64
	m.db.WithContext(ctx).Table("rooms").Count(&roomCount)

	return mono.HealthStatus{
		Healthy: true,
		Message: "Chat module is operational",
		Details: map[string]interface{}{
			"rooms": roomCount,
		},
	}
}

// Service returns the message service.
func (m *Module) Service() *Service {
	return m.service
}

// Coordinator returns the membership coordinator.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}

// Rooms returns the room repository.
func (m *Module) Rooms() *RoomRepository {
	return m.rooms
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)
