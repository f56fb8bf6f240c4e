package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/auth"
	"github.com/vyrodovalexey/tasklist/internal/events"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// ListQueryParam narrows an event stream to one list.
const ListQueryParam = "list"

// wsClient is one connected event stream.
type wsClient struct {
	owner       string
	listID      string
	send        chan events.Event
	cancel      context.CancelFunc
	unsubscribe func()
}

// wants reports whether e belongs to the client's owner and, when the
// client asked for one, its list.
func (c *wsClient) wants(e events.Event) bool {
	if e.OwnerID != c.owner {
		return false
	}
	return c.listID == "" || e.ListID == c.listID
}

// WebSocketHandler streams domain events to websocket clients. Each client
// only sees events about items of the owner it authenticated as.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	bus      *events.Bus
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*wsClient
}

// NewWebSocketHandler creates a new WebSocketHandler fed by bus.
func NewWebSocketHandler(bus *events.Bus, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		bus:     bus,
		logger:  logger,
		clients: make(map[*websocket.Conn]*wsClient),
	}
}

// RegisterRoutes registers the WebSocket routes with the router.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet).Name(OpWatchEvents)
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and subscribes the connection to
// the event bus.
//
//nolint:contextcheck // intentional: WebSocket connections outlive the HTTP request context
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r.Context())
	listID := r.URL.Query().Get(ListQueryParam)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context is canceled when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())

	c := &wsClient{
		owner:  owner,
		listID: listID,
		send:   make(chan events.Event, sendBuffer),
		cancel: cancel,
	}
	c.unsubscribe = h.bus.Subscribe(func(e events.Event) {
		if !c.wants(e) {
			return
		}
		select {
		case c.send <- e:
		default:
			h.logger.Warn("websocket client too slow, dropping event",
				zap.String("owner_id", c.owner),
				zap.String("type", string(e.Type)),
				zap.String("item_id", e.ItemID),
			)
		}
	})

	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.String("owner_id", owner),
		zap.String("list_id", listID),
	)

	go h.writePump(ctx, conn, c)
	go h.readPump(ctx, conn, cancel)
}

// readPump drains client messages and notices disconnects.
func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		h.removeClient(conn)
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
			h.logger.Debug("received message", zap.ByteString("message", message))
		}
	}
}

// writePump forwards the client's events and keeps the connection alive.
func (h *WebSocketHandler) writePump(ctx context.Context, conn *websocket.Conn, c *wsClient) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(conn)
			return
		case e := <-c.send:
			if err := h.sendEvent(conn, e); err != nil {
				h.logger.Debug("failed to send event", zap.Error(err))
				return
			}
		case <-pingTicker.C:
			if err := h.sendPing(conn); err != nil {
				h.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendEvent(conn *websocket.Conn, e events.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(e)
}

func (h *WebSocketHandler) sendPing(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *WebSocketHandler) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		h.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient unsubscribes a client and forgets it.
func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.clients[conn]; exists {
		c.unsubscribe()
		c.cancel()
		delete(h.clients, conn)
		h.logger.Info("websocket client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}
}

// CloseAllConnections closes all active WebSocket connections.
func (h *WebSocketHandler) CloseAllConnections() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	// Canceling makes each writePump send a close frame.
	for _, c := range clients {
		c.unsubscribe()
		c.cancel()
	}

	time.Sleep(100 * time.Millisecond)

	h.mu.Lock()
	for conn := range h.clients {
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	h.logger.Info("all websocket connections closed")
}
