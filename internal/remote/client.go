// Package remote implements the list RemoteStore over the tasklist REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/auth"
	"github.com/vyrodovalexey/tasklist/internal/model"
	"github.com/vyrodovalexey/tasklist/internal/tasklist"
)

// RequestIDHeader carries the per-call request id.
const RequestIDHeader = "X-Request-ID"

// DefaultTimeout bounds a single REST call.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

// Client errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidBaseURL    = errors.New("base URL must be an absolute http or https URL")
	ErrUnexpectedPayload = errors.New("unexpected response payload")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Is makes a 404 match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to a tasklist server. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
	apiKey     string
	username   string
	password   string
	logger     *zap.Logger
}

var _ tasklist.RemoteStore = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIKey authenticates every call with an API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBasicAuth authenticates every call with HTTP Basic credentials.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultTimeout,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// FetchItems returns the caller's items of listID ordered by position.
func (c *Client) FetchItems(ctx context.Context, listID string) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, http.MethodGet, itemsPath(listID), nil, &items); err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	return items, nil
}

// CreateItem stores a new item and returns it as the server saved it.
func (c *Client) CreateItem(ctx context.Context, listID string, req model.CreateItemRequest) (*model.Item, error) {
	var item model.Item
	if err := c.do(ctx, http.MethodPost, itemsPath(listID), req, &item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	if !item.Persisted() {
		return nil, fmt.Errorf("create item: %w: missing id", ErrUnexpectedPayload)
	}
	return &item, nil
}

// UpdateItems sends one bulk update and returns how many items were written.
func (c *Client) UpdateItems(ctx context.Context, listID string, items []model.ItemUpdate) (int, error) {
	var result model.UpdateItemsResult
	body := model.UpdateItemsRequest{Items: items}
	if err := c.do(ctx, http.MethodPatch, itemsPath(listID), body, &result); err != nil {
		return 0, fmt.Errorf("update items: %w", err)
	}
	return result.Updated, nil
}

// DeleteItem removes an item and reports whether the server removed a row.
func (c *Client) DeleteItem(ctx context.Context, listID, itemID string) (bool, error) {
	var result model.DeleteItemResult
	path := itemsPath(listID) + "/" + url.PathEscape(itemID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	return result.Success, nil
}

func itemsPath(listID string) string {
	return "/api/v1/lists/" + url.PathEscape(listID) + "/items"
}

// do performs one REST call and decodes the data of the response envelope
// into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	c.authenticate(req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	envelope := model.APIResponse[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedPayload, err)
	}
	if !envelope.Success {
		return &StatusError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedPayload, err)
	}

	return nil
}

func (c *Client) authenticate(h http.Header) {
	switch {
	case c.apiKey != "":
		h.Set(auth.APIKeyHeader, c.apiKey)
	case c.username != "":
		r := http.Request{Header: h}
		r.SetBasicAuth(c.username, c.password)
	}
}

// statusError builds a StatusError from the server's error body, falling
// back to the raw text for non-JSON bodies.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body model.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: body.Message}
	}

	return &StatusError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}
}
