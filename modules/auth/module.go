package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/gorm"
)

// Module provides account services as a mono module.
type Module struct {
	db      *gorm.DB
	repo    *UserRepository
	service *Service
	jwt     *JWTManager
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new account module on an already-open database.
func NewModule(db *gorm.DB, jwtConfig JWTConfig) *Module {
	jwt := NewJWTManager(jwtConfig)
	repo := NewUserRepository(db)
	return &Module{
		db:      db,
		repo:    repo,
		jwt:     jwt,
		service: NewService(repo, NewPasswordHasher(), jwt),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[auth] Module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database unreachable: %v", err)}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// Service returns the account service.
func (m *Module) Service() *Service {
	return m.service
}

// JWT returns the token manager.
func (m *Module) JWT() *JWTManager {
	return m.jwt
}

// Repository returns the user repository.
func (m *Module) Repository() *UserRepository {
	return m.repo
}
