//go:build functional

// Package functional provides wire-level tests for the list API and the
// event stream, run against an in-process server.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/tasklist/internal/auth"
	"github.com/vyrodovalexey/tasklist/internal/config"
	"github.com/vyrodovalexey/tasklist/internal/model"
	"github.com/vyrodovalexey/tasklist/internal/server"
	"github.com/vyrodovalexey/tasklist/internal/store"
)

const (
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	readyTimeout            = 10 * time.Second
	listenHost              = "127.0.0.1"
)

// Credentials the authenticated list server accepts.
const (
	AliceKey  = "alice-key"
	BobKey    = "bob-key"
	CarolUser = "carol"
	CarolPass = "carol-secret"
)

// TestServer is a list server listening on a free local port.
type TestServer struct {
	Server  *server.Server
	Store   *store.MemoryStore
	BaseURL string
	WSURL   string

	stopOnce sync.Once
	t        *testing.T
}

// ServerOption adjusts the server config and its authenticators.
type ServerOption func(cfg *config.Config, authenticators *[]auth.Authenticator)

// WithAuth makes alice-key and bob-key act as alice and bob, and lets carol
// sign in with a password.
func WithAuth(t *testing.T) ServerOption {
	return func(cfg *config.Config, authenticators *[]auth.Authenticator) {
		cfg.AuthMode = "multi"

		keys, err := auth.NewAPIKeyAuthenticator(AliceKey + ":alice," + BobKey + ":bob")
		if err != nil {
			t.Fatalf("NewAPIKeyAuthenticator: %v", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(CarolPass), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt: %v", err)
		}
		basic, err := auth.NewBasicAuthenticator(CarolUser + ":" + string(hash))
		if err != nil {
			t.Fatalf("NewBasicAuthenticator: %v", err)
		}
		*authenticators = append(*authenticators, keys, basic)
	}
}

// NewTestServer starts a list server backed by a fresh memory store. It is
// stopped when the test ends.
func NewTestServer(t *testing.T, opts ...ServerOption) *TestServer {
	t.Helper()

	listener, err := net.Listen("tcp", listenHost+":0")
	if err != nil {
		t.Fatalf("no free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	cfg := &config.Config{
		ServerPort:      port,
		LogLevel:        "error",
		ShutdownTimeout: DefaultRequestTimeout,
		MetricsEnabled:  true,
		AuthMode:        "none",
		Store:           config.StoreMemory,
	}
	var authenticators []auth.Authenticator
	for _, opt := range opts {
		opt(cfg, &authenticators)
	}
	var authenticator auth.Authenticator
	if len(authenticators) > 0 {
		authenticator = auth.NewMultiAuthenticator(authenticators...)
	}

	items := store.NewMemoryStore()
	ts := &TestServer{
		Server:  server.New(cfg, zap.NewNop(), items, authenticator, nil),
		Store:   items,
		BaseURL: fmt.Sprintf("http://%s:%d", listenHost, port),
		WSURL:   fmt.Sprintf("ws://%s:%d", listenHost, port),
		t:       t,
	}
	go func() {
		if err := ts.Server.Start(); err != nil {
			t.Logf("list server: %v", err)
		}
	}()
	t.Cleanup(ts.Stop)
	ts.awaitHealthy()
	return ts
}

func (ts *TestServer) awaitHealthy() {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		if resp, err := http.Get(ts.BaseURL + "/health"); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	ts.t.Fatalf("list server on %s never became healthy", ts.BaseURL)
}

// Stop shuts the server down; later calls do nothing.
func (ts *TestServer) Stop() {
	ts.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
		defer cancel()
		if err := ts.Server.Shutdown(ctx); err != nil {
			ts.t.Logf("shutdown: %v", err)
		}
	})
}

// ItemsPath returns the collection path of a list.
func ItemsPath(listID string) string {
	return "/api/v1/lists/" + listID + "/items"
}

// HTTPClient sends list API requests, adding its headers to each one.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	headers map[string]string
}

func NewHTTPClient(baseURL string, headers map[string]string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		baseURL: baseURL,
		headers: headers,
	}
}

// Request is one API call. A string Body is sent raw, anything else as JSON.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response is a fully read API reply.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	switch v := req.Body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for _, headers := range []map[string]string{c.headers, req.Headers} {
		for key, value := range headers {
			httpReq.Header.Set(key, value)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: raw}, nil
}

// Post creates an item from body on path.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// MustDo sends req and fails the test if it never got a reply.
func MustDo(t *testing.T, c *HTTPClient, req Request) *Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
	defer cancel()

	resp, err := c.Do(ctx, req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.Path, err)
	}
	return resp
}

// ParseData decodes the data of a success envelope into out. The server
// omits empty data, which leaves out untouched.
func ParseData(t *testing.T, resp *Response, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		t.Fatalf("reply %q is not an envelope: %v", resp.Body, err)
	}
	if !envelope.Success {
		t.Errorf("Expected success=true, got error %q", envelope.Error)
	}
	if len(envelope.Data) == 0 {
		return
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("data %q: %v", envelope.Data, err)
	}
}

func ParseErrorResponse(t *testing.T, resp *Response) *model.ErrorResponse {
	t.Helper()
	var errResp model.ErrorResponse
	if err := json.Unmarshal(resp.Body, &errResp); err != nil {
		t.Fatalf("reply %q is not an error body: %v", resp.Body, err)
	}
	return &errResp
}

// CreateItem adds name to listID at position and returns the stored item.
func CreateItem(t *testing.T, c *HTTPClient, listID, name string, position int) model.Item {
	t.Helper()
	resp := MustDo(t, c, Request{
		Method: http.MethodPost,
		Path:   ItemsPath(listID),
		Body:   model.CreateItemRequest{Name: name, Position: position},
	})
	AssertStatusCode(t, resp, http.StatusCreated)

	var item model.Item
	ParseData(t, resp, &item)
	return item
}

// ListItems returns the items of listID in position order.
func ListItems(t *testing.T, c *HTTPClient, listID string) []model.Item {
	t.Helper()
	resp := MustDo(t, c, Request{Method: http.MethodGet, Path: ItemsPath(listID)})
	AssertStatusCode(t, resp, http.StatusOK)

	var items []model.Item
	ParseData(t, resp, &items)
	return items
}

func AssertStatusCode(t *testing.T, resp *Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("Expected status code %d, got %d. Body: %s", want, resp.StatusCode, resp.Body)
	}
}

func AssertHeader(t *testing.T, resp *Response, key, want string) {
	t.Helper()
	if got := resp.Headers.Get(key); got != want {
		t.Errorf("Expected header %s to be %q, got %q", key, want, got)
	}
}
