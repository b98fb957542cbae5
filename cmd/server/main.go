package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dm-chat/internal/auth"
	"dm-chat/internal/config"
	"dm-chat/internal/database"
	"dm-chat/internal/handlers"
	"dm-chat/internal/services"
	"dm-chat/internal/websocket"
	"dm-chat/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize services
	authService := auth.NewService(db, cfg)
	roomService := services.NewRoomService(db)
	msgService := services.NewMessageService(db)

	// Initialize the live-routing hub
	hub := websocket.NewHub(db)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	chatHandlers := handlers.NewChatHandlers(authService, roomService, msgService, db)
	wsHandlers := handlers.NewWebSocketHandlers(authService, roomService, msgService, hub)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, chatHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, chatHandlers *handlers.ChatHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("POST /register", authHandlers.Register)
	mux.HandleFunc("POST /login", authHandlers.Login)
	mux.HandleFunc("POST /logout", authHandlers.Logout)

	// Chat routes
	mux.HandleFunc("GET /users", chatHandlers.ListUsers)
	mux.HandleFunc("POST /room", chatHandlers.GetOrCreateRoom)
	mux.HandleFunc("GET /rooms", chatHandlers.ListRooms)
	mux.HandleFunc("GET /messages/{room_id}", chatHandlers.GetMessages)

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
