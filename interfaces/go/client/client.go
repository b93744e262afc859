// Package client is a small typed client for the relay's HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client { return &Client{BaseURL: baseURL, HTTP: http.DefaultClient} }

type Session struct {
	ID           string `json:"session_id"`
	IngestionURL string `json:"ingestion_url"`
	StreamURL    string `json:"stream_url"`
	RequestsURL  string `json:"requests_url"`
	ExpiresAt    string `json:"expires_at"`
}

type Request struct {
	ID            string            `json:"request_id"`
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	QueryParams   map[string]string `json:"query_params"`
	Headers       map[string]string `json:"headers"`
	Body          string            `json:"body"`
	IPAddress     string            `json:"ip_address"`
	UserAgent     string            `json:"user_agent"`
	Timestamp     string            `json:"timestamp"`
	ContentLength int               `json:"content_length"`
}

type History struct {
	SessionID     string    `json:"session_id"`
	TotalRequests int       `json:"total_requests"`
	Requests      []Request `json:"requests"`
}

type Health struct {
	Status        string `json:"status"`
	Redis         string `json:"redis"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SSEChannels   int    `json:"sse_channels"`
}

// Event is one server-sent event from a session stream.
type Event struct {
	Event string
	Data  json.RawMessage
}

// APIError is a non-2xx reply.
type APIError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message) }

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}

func (c *Client) CreateSession(ctx context.Context) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/c", nil, &s)
	return s, err
}

// Send delivers a call to the session's ingestion endpoint and returns the
// captured request id. subpath and query may be empty.
func (c *Client) Send(ctx context.Context, sessionID, method, subpath, query string, body []byte) (string, error) {
	path := "/i/" + url.PathEscape(sessionID)
	if subpath != "" {
		path += "/" + strings.TrimLeft(subpath, "/")
	}
	if query != "" {
		path += "?" + query
	}
	var out struct {
		Status    string `json:"status"`
		RequestID string `json:"request_id"`
	}
	if err := c.do(ctx, method, path, bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	return out.RequestID, nil
}

func (c *Client) Requests(ctx context.Context, sessionID string, limit, offset int) (History, error) {
	var h History
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/r/%s?limit=%d&offset=%d", url.PathEscape(sessionID), limit, offset), nil, &h)
	return h, err
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// Stream calls fn for every event on the session's SSE feed. It returns when
// ctx ends or fn fails; a clean server close returns nil.
func (c *Client) Stream(ctx context.Context, sessionID string, fn func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/s/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	var ev Event
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.Event == "" {
				continue
			}
			if err := fn(ev); err != nil {
				return err
			}
			ev = Event{}
		case strings.HasPrefix(line, "event:"):
			ev.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data = json.RawMessage(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return sc.Err()
}
