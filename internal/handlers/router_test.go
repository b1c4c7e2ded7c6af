package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/xelth-com/palletdamage/internal/config"
	"github.com/xelth-com/palletdamage/internal/websocket"
)

func newTestRouter(t *testing.T, hub *websocket.Hub) *Router {
	t.Helper()
	r, err := NewRouter(config.ServerConfig{
		JWTSecret: "router-secret",
		TokenTTL:  time.Hour,
		Users:     map[string]string{"jan": "pw"},
	}, hub)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Username: "jan", Password: "pw"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body)
	}
	var resp LoginResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	return resp.Token
}

func TestNewRouter_RequiresSecret(t *testing.T) {
	if _, err := NewRouter(config.ServerConfig{}, nil); err == nil {
		t.Fatal("expected error without JWT secret")
	}
}

func TestRouter_SessionsRequireAuth(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_PatchValidation(t *testing.T) {
	r := newTestRouter(t, nil)
	token := login(t, r)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"no fields", `{"fields":{}}`, http.StatusBadRequest},
		{"ok", `{"fields":{"header_data.place":"Gate"}}`, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/sessions/s1", strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRouter_BroadcastsSessionEvents(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()
	r := newTestRouter(t, hub)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	for deadline := time.Now().Add(2 * time.Second); hub.ClientCount() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	token := login(t, r)
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/sessions/s9", strings.NewReader(`{"fields":{"a":"b"}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg websocket.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "session_updated" || msg.SessionID != "s9" {
		t.Errorf("unexpected event %+v", msg)
	}
}

func TestRouter_HealthReportsBuild(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Build  struct {
			Version string `json:"version"`
		} `json:"build"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Build.Version == "" {
		t.Errorf("unexpected health body: %+v", body)
	}
}
