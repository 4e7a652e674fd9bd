package api

import (
	"context"
	"fmt"
	"log"

	"github.com/averyowl/chat/modules/auth"
	"github.com/averyowl/chat/modules/broadcast"
	"github.com/averyowl/chat/modules/chat"
	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Module exposes the HTTP and websocket surface. Dependencies are wired by
// the composition root via the setters before the app starts.
type Module struct {
	app  *fiber.App
	port int

	authService *auth.Service
	verifier    TokenVerifier
	chatModule  *chat.Module
	hub         *broadcast.Hub
	checkers    []HealthChecker
}

// HealthChecker is a named module that can report its health. Satisfied by
// the auth, chat, broadcast, and cache modules.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// NewModule creates the API module listening on the given port.
func NewModule(port int) *Module {
	return &Module{port: port}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// SetAuth wires the account service and token verifier.
func (m *Module) SetAuth(service *auth.Service, verifier TokenVerifier) {
	m.authService = service
	m.verifier = verifier
}

// SetChat wires the chat module.
func (m *Module) SetChat(cm *chat.Module) {
	m.chatModule = cm
}

// SetHub wires the live-connection hub.
func (m *Module) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// SetHealthCheckers registers the modules reported by GET /health.
func (m *Module) SetHealthCheckers(checkers ...HealthChecker) {
	m.checkers = checkers
}

// Start builds the router and begins serving.
func (m *Module) Start(ctx context.Context) error {
	if m.authService == nil || m.verifier == nil || m.chatModule == nil || m.hub == nil {
		return fmt.Errorf("api module missing dependencies; call the setters before Start")
	}

	m.app = fiber.New(fiber.Config{
		AppName: "roomchat",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
		},
	})

	m.app.Use(recover.New())
	m.app.Use(cors.New())
	m.app.Use(logger.New())

	m.registerRoutes()

	go func() {
		if err := m.app.Listen(fmt.Sprintf(":%d", m.port)); err != nil {
			log.Printf("API server stopped: %v", err)
		}
	}()

	log.Printf("API module started on port %d", m.port)
	return nil
}

func (m *Module) registerRoutes() {
	m.app.Post("/register", m.handleRegister)
	m.app.Post("/login", m.handleLogin)
	m.app.Get("/health", m.handleHealth)

	// Verification goes through the account service rather than the bearer
	// middleware so it also confirms the account still exists.
	m.app.Get("/verify-token", m.handleVerifyToken)

	// The socket route authenticates in its own upgrade middleware (it also
	// accepts a token query parameter), so it sits before the bearer group.
	m.app.Use("/ws", m.upgradeMiddleware)
	m.app.Get("/ws", websocket.New(m.handleSocket))

	protected := m.app.Group("/", AuthMiddleware(m.verifier))
	protected.Get("/profile", m.handleGetProfile)
	protected.Put("/profile", m.handleUpdateProfile)
	protected.Get("/users", m.handleListUsers)
	protected.Get("/rooms", m.handleListRooms)
	protected.Post("/create-room", m.handleCreateRoom)
	protected.Post("/rooms/:id/leave", m.handleLeaveRoom)
	protected.Delete("/rooms/:id", m.handleDeleteRoom)
	protected.Get("/messages", m.handleListMessages)
	protected.Delete("/messages/:id", m.handleDeleteMessage)
}

func (m *Module) handleHealth(c *fiber.Ctx) error {
	healthy := true
	details := make(map[string]interface{}, len(m.checkers))
	for _, checker := range m.checkers {
		status := checker.Health(c.Context())
		if !status.Healthy {
			healthy = false
		}
		details[checker.Name()] = status
	}

	code := fiber.StatusOK
	if !healthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"healthy": healthy,
		"modules": details,
	})
}

// Stop shuts the server down gracefully.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("API module stopping")
	return m.app.ShutdownWithContext(ctx)
}

// App returns the underlying fiber app, used by tests.
func (m *Module) App() *fiber.App {
	return m.app
}

var _ mono.Module = (*Module)(nil)
