package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	chatdomain "github.com/averyowl/chat/domain/chat"
	userdomain "github.com/averyowl/chat/domain/user"
	"github.com/averyowl/chat/modules/api"
	"github.com/averyowl/chat/modules/auth"
	"github.com/averyowl/chat/modules/broadcast"
	"github.com/averyowl/chat/modules/cache"
	"github.com/averyowl/chat/modules/chat"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Room Chat Service ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	db, err := openDatabase(getEnv("DB_PATH", "roomchat.db"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	// Create modules
	broadcastModule := broadcast.NewModule()
	cacheModule := cache.NewModule(
		os.Getenv("REDIS_ADDR"),
		"roomchat",
		getEnvDuration("CACHE_TTL", 5*time.Minute),
	)
	chatModule := chat.NewModule(db)
	authModule := auth.NewModule(db, auth.JWTConfig{
		SecretKey:     getEnv("JWT_SECRET", auth.DefaultJWTConfig().SecretKey),
		TokenDuration: getEnvDuration("JWT_TTL", auth.DefaultJWTConfig().TokenDuration),
		Issuer:        auth.DefaultJWTConfig().Issuer,
	})
	apiModule := api.NewModule(getEnvInt("PORT", 3000))

	// Manual wiring; the hub and services are not exposed via a container.
	chatModule.SetHub(broadcastModule.Hub())
	chatModule.SetCache(cacheModule.Cache())
	authModule.Service().SetProvisioner(chatModule.Coordinator())
	apiModule.SetAuth(authModule.Service(), authModule.JWT())
	apiModule.SetChat(chatModule)
	apiModule.SetHub(broadcastModule.Hub())
	apiModule.SetHealthCheckers(authModule, chatModule, broadcastModule, cacheModule)

	// Order: infrastructure first, then domain, then the HTTP surface.
	app.Register(broadcastModule)
	app.Register(cacheModule)
	app.Register(chatModule)
	app.Register(authModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// openDatabase opens the shared SQLite store and migrates the schema. One
// handle is shared by the auth and chat modules so membership and account
// rows live in the same database.
func openDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&userdomain.User{},
		&chatdomain.Room{},
		&chatdomain.RoomMember{},
		&chatdomain.Message{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func printStartupInfo() {
	port := getEnv("PORT", "3000")

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  POST   /register          - Create an account")
	log.Println("  POST   /login             - Obtain a bearer token")
	log.Println("  GET    /verify-token      - Validate a bearer token")
	log.Println("  GET    /profile           - Current account profile")
	log.Println("  PUT    /profile           - Update profile / password")
	log.Println("  GET    /users             - List registered accounts")
	log.Println("  GET    /rooms             - Rooms for the current account")
	log.Println("  POST   /create-room       - Create a group room")
	log.Println("  POST   /rooms/:id/leave   - Leave a room")
	log.Println("  DELETE /rooms/:id         - Delete an owned room")
	log.Println("  GET    /messages?room=    - Room message history")
	log.Println("  DELETE /messages/:id      - Delete an authored message")
	log.Println("  GET    /health            - Health check")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?token=<jwt>):", port)
	log.Println("  Message types: joinRoom, leaveRoom, chatMessage")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
