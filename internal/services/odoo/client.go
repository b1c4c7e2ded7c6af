package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kolo/xmlrpc"
)

// Config holds Odoo connection settings
type Config struct {
	URL      string
	Database string
	Username string
	Password string
}

// Client represents an Odoo XML-RPC client
type Client struct {
	cfg       Config
	commonURL string
	objectURL string

	mu  sync.Mutex
	uid int
}

// NewClient creates a new Odoo client
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:       cfg,
		commonURL: fmt.Sprintf("%s/xmlrpc/2/common", cfg.URL),
		objectURL: fmt.Sprintf("%s/xmlrpc/2/object", cfg.URL),
	}
}

// Authenticate authenticates with Odoo and returns the user ID
func (c *Client) Authenticate() (int, error) {
	client, err := xmlrpc.NewClient(c.commonURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{c.cfg.Database, c.cfg.Username, c.cfg.Password, make([]interface{}, 0)}
	var uid int
	if err := client.Call("authenticate", args, &uid); err != nil {
		return 0, fmt.Errorf("authentication failed: %w", err)
	}
	if uid == 0 {
		return 0, fmt.Errorf("authentication failed: invalid credentials")
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	return uid, nil
}

func (c *Client) ensureAuth() (int, error) {
	c.mu.Lock()
	uid := c.uid
	c.mu.Unlock()
	if uid != 0 {
		return uid, nil
	}
	return c.Authenticate()
}

// SearchRead performs a generic search_read operation and decodes the rows
// into result (pointer to slice of structs with json tags)
func (c *Client) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, limit int, result interface{}) error {
	uid, err := c.ensureAuth()
	if err != nil {
		return err
	}
	client, err := xmlrpc.NewClient(c.objectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{
		c.cfg.Database,
		uid,
		c.cfg.Password,
		model,
		"search_read",
		[]interface{}{domain},
		map[string]interface{}{
			"fields": fields,
			"limit":  limit,
		},
	}

	type callResult struct {
		rows []map[string]interface{}
		err  error
	}
	done := make(chan callResult, 1)
	go func() {
		var rows []map[string]interface{}
		err := client.Call("execute_kw", args, &rows)
		done <- callResult{rows: rows, err: err}
	}()

	var res callResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return fmt.Errorf("failed to execute search_read: %w", res.err)
	}

	// Convert raw maps to target struct via JSON
	jsonData, err := json.Marshal(res.rows)
	if err != nil {
		return fmt.Errorf("failed to marshal raw result: %w", err)
	}
	if err := json.Unmarshal(jsonData, result); err != nil {
		return fmt.Errorf("failed to unmarshal into target: %w", err)
	}
	return nil
}
