// Package backend implements the HTTP client for the crisis-monitoring API.
// It covers the endpoints consumed by the synchronization layer: task start
// and status, the alert feed, mark-read actions, and the unread summary.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nadmax/vigil/internal/alerts"
	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/task"
)

// DefaultTimeout bounds every request. A timed-out poll is a transient
// failure retried on the next tick, never a task or alert failure.
const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	// Token is the bearer credential attached to every request.
	Token   string
	UserID  string
	Timeout time.Duration
	Encoder Encoder
}

type Client struct {
	baseURL string
	token   string
	userID  string
	httpc   *http.Client
	enc     Encoder
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vigil: backend base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("vigil: invalid backend base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Encoder == nil {
		cfg.Encoder = &JSONEncoder{}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		userID:  cfg.UserID,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		enc:     cfg.Encoder,
	}, nil
}

// TaskStatus is the get-task-status response. Result is present only once the
// status is terminal.
type TaskStatus struct {
	Status task.Status     `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

type startTaskRequest struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

type startTaskResponse struct {
	TaskID string `json:"task_id"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type unreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// StartTask asks the server to launch a background job and returns the
// server-assigned task id.
func (c *Client) StartTask(ctx context.Context, kind string, params map[string]any) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("vigil: task kind is required")
	}

	body, err := c.enc.Encode(startTaskRequest{Kind: kind, Params: params})
	if err != nil {
		return "", fmt.Errorf("vigil: failed to encode start-task request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/tasks/start", nil, body)
	if err != nil {
		return "", err
	}

	var resp startTaskResponse
	if err := c.enc.Decode(data, &resp); err != nil {
		return "", fmt.Errorf("vigil: failed to decode start-task response: %w", err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("vigil: start-task response carried no task id")
	}
	return resp.TaskID, nil
}

// GetTaskStatus fetches the current status of a background job.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID)+"/status", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp TaskStatus
	if err := c.enc.Decode(data, &resp); err != nil {
		return nil, fmt.Errorf("vigil: failed to decode task status: %w", err)
	}
	if !resp.Status.Valid() {
		return nil, fmt.Errorf("vigil: server reported unknown task status %q", resp.Status)
	}
	return &resp, nil
}

// ListAlerts fetches a page of the alert feed, descending by recency.
func (c *Client) ListAlerts(ctx context.Context, skip, limit int) ([]alerts.Alert, error) {
	query := url.Values{
		"user_id": {c.userID},
		"skip":    {strconv.Itoa(skip)},
		"limit":   {strconv.Itoa(limit)},
	}
	data, err := c.do(ctx, http.MethodGet, "/api/alerts", query, nil)
	if err != nil {
		return nil, err
	}

	var page []alerts.Alert
	if err := c.enc.Decode(data, &page); err != nil {
		return nil, fmt.Errorf("vigil: failed to decode alert page: %w", err)
	}
	return page, nil
}

// MarkAlertRead marks a single alert as read on the server.
func (c *Client) MarkAlertRead(ctx context.Context, alertID int64) error {
	path := "/api/alerts/" + strconv.FormatInt(alertID, 10) + "/read"
	data, err := c.do(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return err
	}
	return c.decodeOK(data, "mark-alert-read")
}

// MarkAllRead marks every alert for the user as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	query := url.Values{"user_id": {c.userID}}
	data, err := c.do(ctx, http.MethodPost, "/api/alerts/read-all", query, nil)
	if err != nil {
		return err
	}
	return c.decodeOK(data, "mark-all-read")
}

// GetUnreadCount fetches the scalar unread badge count.
func (c *Client) GetUnreadCount(ctx context.Context) (int, error) {
	query := url.Values{"user_id": {c.userID}}
	data, err := c.do(ctx, http.MethodGet, "/api/alerts/unread-count", query, nil)
	if err != nil {
		return 0, err
	}

	var resp unreadCountResponse
	if err := c.enc.Decode(data, &resp); err != nil {
		return 0, fmt.Errorf("vigil: failed to decode unread count: %w", err)
	}
	return resp.UnreadCount, nil
}

func (c *Client) decodeOK(data []byte, endpoint string) error {
	var resp okResponse
	if err := c.enc.Decode(data, &resp); err != nil {
		return fmt.Errorf("vigil: failed to decode %s response: %w", endpoint, err)
	}
	if !resp.OK {
		return fmt.Errorf("vigil: server rejected %s", endpoint)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("vigil: failed to build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vigil: %s %s failed: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vigil: failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httputil.ClassifyStatus(resp.StatusCode, path, string(data))
	}
	return data, nil
}
