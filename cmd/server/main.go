/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission audit engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment / .env)
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  SERVER_PORT    HTTP server port (default: 8080)
  DB_PATH        SQLite database path (default: ./data/commission.db)
                 Use ":memory:" for an in-memory database
  CORS_ORIGINS   Comma-separated allowed origins
  AUDIT_WORKERS  Concurrent agents per audit run (default: 4)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/commission.db ./server

  # Run with in-memory database
  DB_PATH=:memory: ./server

  # Run on different port
  SERVER_PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration keys and defaults
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brokerops/commission-engine/api"
	"github.com/brokerops/commission-engine/config"
	"github.com/brokerops/commission-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler and router
	handler := api.NewHandler(store, cfg.AuditWorkers)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.ServerPort)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
