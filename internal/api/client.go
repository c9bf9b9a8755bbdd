// Package api is a client for the robot dashboard backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotOK is returned when the backend answers with ok:false.
var ErrNotOK = errors.New("backend reported failure")

// StatusError is returned for non-2xx responses without a usable envelope.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.Path, e.Code)
}

// Reply is the {ok, msg} envelope returned by command endpoints.
type Reply struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

// Client talks to the backend HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for baseURL (e.g. http://localhost:5000).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Path: path}
	}
	return io.ReadAll(resp.Body)
}

// post sends body to path and decodes the {ok, msg} envelope. The envelope
// is decoded even from error statuses since the backend reports failures
// like "device not registered" with a 4xx and a message.
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, out any) (Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return Reply{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, err
	}

	var env struct {
		OK      *bool  `json:"ok"`
		Status  string `json:"status"`
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil || (env.OK == nil && env.Status == "") {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Reply{}, &StatusError{Code: resp.StatusCode, Path: path}
		}
		return Reply{}, fmt.Errorf("%s: malformed response", path)
	}

	reply := Reply{Msg: env.Msg}
	if reply.Msg == "" {
		reply.Msg = env.Message
	}
	if env.OK != nil {
		reply.OK = *env.OK
	} else {
		reply.OK = env.Status == "success"
	}
	if !reply.OK {
		if reply.Msg != "" {
			return reply, fmt.Errorf("%s: %w: %s", path, ErrNotOK, reply.Msg)
		}
		return reply, fmt.Errorf("%s: %w", path, ErrNotOK)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return reply, fmt.Errorf("%s: decode response: %w", path, err)
		}
	}
	return reply, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (Reply, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Reply{}, err
		}
		body = bytes.NewReader(b)
	}
	return c.post(ctx, path, "application/json", body, nil)
}

// idValue sends numeric ids as JSON numbers; the backend looks robots up by
// integer primary key.
func idValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// Navigate sets a navigation target for robot id.
func (c *Client) Navigate(ctx context.Context, id string, lat, lng float64) (Reply, error) {
	return c.postJSON(ctx, "/api/robot/navigate", map[string]any{
		"id":  idValue(id),
		"lat": lat,
		"lng": lng,
	})
}

// Control queues a control command (e.g. GRAB, RESET, STOP) for robot id.
func (c *Client) Control(ctx context.Context, id, command string) (Reply, error) {
	return c.postJSON(ctx, "/api/robot/control", map[string]any{
		"id":      idValue(id),
		"command": command,
	})
}

// Register adds a robot to the backend registry.
func (c *Client) Register(ctx context.Context, deviceID, name string) (Reply, error) {
	return c.postJSON(ctx, "/api/robot/register", map[string]string{
		"device_id": deviceID,
		"name":      name,
	})
}

// Delete removes robot id from the backend registry.
func (c *Client) Delete(ctx context.Context, id string) (Reply, error) {
	return c.postJSON(ctx, "/api/robot/delete/"+url.PathEscape(id), nil)
}
