package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/xelth-com/palletdamage/internal/buildinfo"
	"github.com/xelth-com/palletdamage/internal/config"
	"github.com/xelth-com/palletdamage/internal/middleware"
	"github.com/xelth-com/palletdamage/internal/utils"
	"github.com/xelth-com/palletdamage/internal/websocket"
)

// Router wraps the mux router and the session server state
type Router struct {
	*mux.Router
	store      *SessionStore
	hub        *websocket.Hub
	users      map[string]string // username -> bcrypt hash
	secret     string
	tokenTTL   time.Duration
	storageDir string
}

// NewRouter creates the session server router. Passwords in cfg.Users are
// hashed here and never kept in plain text. hub may be nil.
func NewRouter(cfg config.ServerConfig, hub *websocket.Hub) (*Router, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	users := make(map[string]string, len(cfg.Users))
	for name, pass := range cfg.Users {
		hash, err := utils.HashPassword(pass)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password of %s: %w", name, err)
		}
		users[name] = hash
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	r := &Router{
		Router:     mux.NewRouter(),
		store:      NewSessionStore(),
		hub:        hub,
		users:      users,
		secret:     cfg.JWTSecret,
		tokenTTL:   ttl,
		storageDir: cfg.StorageDir,
	}

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.HandleFunc("/api/auth/login", r.login).Methods("POST")
	if hub != nil {
		r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWs(hub, w, req)
		})
	}

	api := r.PathPrefix("/api/sessions").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))
	api.HandleFunc("", r.listPending).Methods("GET")
	api.HandleFunc("/{id}", r.getDetails).Methods("GET")
	api.HandleFunc("/{id}", r.patchSession).Methods("PATCH")
	api.HandleFunc("/{id}", r.deleteSession).Methods("DELETE")
	api.HandleFunc("/{id}/summary", r.getSummary).Methods("GET")
	api.HandleFunc("/{id}/images", r.uploadImage).Methods("POST")
	api.HandleFunc("/{id}/pdf", r.uploadPDF).Methods("POST")
	api.HandleFunc("/{id}/finalize", r.finalize).Methods("POST")

	return r, nil
}

// healthCheck returns the health status of the server
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"build":  buildinfo.Current(),
	})
}

// notify tells websocket listeners that a session changed
func (r *Router) notify(eventType, sessionID string) {
	if r.hub == nil {
		return
	}
	if !r.hub.Broadcast(websocket.Message{Type: eventType, SessionID: sessionID}) {
		log.Printf("⚠️ Dropped %s event for %s", eventType, sessionID)
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
