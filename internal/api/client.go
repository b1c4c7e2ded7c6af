// Package api is the HTTP client of the session server
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xelth-com/palletdamage/internal/config"
	"github.com/xelth-com/palletdamage/internal/models"
)

// APIError is a non-2xx answer of the server
type APIError struct {
	Status  int
	Message string
}

// Error returns the server message so it can be shown to the user as is
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
}

// Client talks to the session server with a bearer token
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string

	mu    sync.RWMutex
	token string
}

// NewClient creates a client; call Login before the first request or let
// the first 401 trigger it
func NewClient(cfg config.APIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Login exchanges the configured credentials for a token
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := c.send(req, &out); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return nil
}

// Token returns the current access token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// bodyFunc builds a fresh request body for every attempt
type bodyFunc func() (io.Reader, string, error)

func jsonBody(v interface{}) bodyFunc {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// do sends an authenticated request. A 401 triggers one re-login and retry.
func (c *Client) do(ctx context.Context, method, path string, body bodyFunc, out interface{}) error {
	if c.Token() == "" && c.username != "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}
	err := c.attempt(ctx, method, path, body, out)
	if unauthorized(err) && c.username != "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
		err = c.attempt(ctx, method, path, body, out)
	}
	return err
}

func unauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func (c *Client) attempt(ctx context.Context, method, path string, body bodyFunc, out interface{}) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		r, ct, err := body()
		if err != nil {
			return err
		}
		reader, contentType = r, ct
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func sessionPath(id string, rest ...string) string {
	p := "/api/sessions/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// UpdateSession merges dotted-path fields into the session document
func (c *Client) UpdateSession(ctx context.Context, sessionID string, fields map[string]string) error {
	return c.do(ctx, http.MethodPatch, sessionPath(sessionID), jsonBody(map[string]interface{}{"fields": fields}), nil)
}

// GetSessionSummary returns the pallet count and indices of a session
func (c *Client) GetSessionSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	var out models.SessionSummary
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "summary"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSessionDetails returns the full session document
func (c *Client) GetSessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	var out models.SessionDetails
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadImage sends a pallet photo; existingFileID overwrites an earlier upload
func (c *Client) UploadImage(ctx context.Context, sessionID string, palletIndex int, imageType, filePath, existingFileID string) (string, error) {
	fields := map[string]string{
		"pallet_index": strconv.Itoa(palletIndex),
		"image_type":   imageType,
	}
	if existingFileID != "" {
		fields["file_id"] = existingFileID
	}
	var out models.UploadedFile
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "images"), multipartBody(fields, filePath), &out); err != nil {
		return "", err
	}
	if out.FileID == "" {
		return "", fmt.Errorf("server returned no file id")
	}
	return out.FileID, nil
}

// UploadPDF sends one language variant of the report
func (c *Client) UploadPDF(ctx context.Context, sessionID, language, filePath string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "pdf"),
		multipartBody(map[string]string{"language": language}, filePath), nil)
}

// FinalizeSession closes the session on the server
func (c *Client) FinalizeSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "finalize"), nil, nil)
}

// ListPendingSessions returns unfinished sessions of the logged-in user
func (c *Client) ListPendingSessions(ctx context.Context) ([]models.PendingSession, error) {
	var out []models.PendingSession
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession removes a session
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil)
}

// multipartBody streams form fields plus the file at path as "file"
func multipartBody(fields map[string]string, path string) bodyFunc {
	return func() (io.Reader, string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
		}
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer f.Close()
			for k, v := range fields {
				if err := mw.WriteField(k, v); err != nil {
					pw.CloseWithError(err)
					return
				}
			}
			part, err := mw.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, f); err != nil {
				pw.CloseWithError(err)
				return
			}
			pw.CloseWithError(mw.Close())
		}()
		return pr, mw.FormDataContentType(), nil
	}
}
