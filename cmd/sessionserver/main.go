package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/palletdamage/internal/buildinfo"
	"github.com/xelth-com/palletdamage/internal/config"
	"github.com/xelth-com/palletdamage/internal/handlers"
	"github.com/xelth-com/palletdamage/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.Server.Users) == 0 {
		log.Println("⚠️ SESSION_SERVER_USERS is empty, nobody can log in")
	}

	// 2. Websocket hub for session events
	hub := websocket.NewHub()
	go hub.Run()

	// 3. HTTP router
	router, err := handlers.NewRouter(cfg.Server, hub)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("🚀 Session server %s starting on port %s", buildinfo.Current(), cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("⚠️  Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	hub.Stop()

	log.Println("✅ Shutdown complete")
}
