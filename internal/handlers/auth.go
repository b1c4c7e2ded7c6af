package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/xelth-com/palletdamage/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the access token
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// login checks worker credentials and issues a JWT
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	hash, ok := r.users[loginReq.Username]
	if !ok || !utils.CheckPasswordHash(loginReq.Password, hash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateToken(loginReq.Username, r.secret, r.tokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	log.Printf("🔑 %s logged in", loginReq.Username)
	respondJSON(w, http.StatusOK, LoginResponse{Token: token, Username: loginReq.Username})
}
