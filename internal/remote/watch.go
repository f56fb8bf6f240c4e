package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/events"
)

const closeWait = time.Second

// Watch streams the caller's domain events from the server's websocket
// endpoint to handle until ctx is cancelled or the server closes the
// stream. An empty listID watches every list. A cancelled ctx and a normal
// close both return nil.
func (c *Client) Watch(ctx context.Context, listID string, handle func(events.Event)) error {
	header := http.Header{}
	c.authenticate(header)

	conn, resp, err := c.dialer.DialContext(ctx, c.watchURL(listID), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return fmt.Errorf("watch: %w", statusError(resp))
		}
		return fmt.Errorf("watch: %w", err)
	}
	defer conn.Close()

	c.logger.Debug("watching events", zap.String("list_id", listID))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeWait))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("watch: server closed stream: %w", err)
			}
			return fmt.Errorf("watch: read event: %w", err)
		}
		handle(e)
	}
}

func (c *Client) watchURL(listID string) string {
	u := *c.baseURL
	u.Scheme = "ws"
	if c.baseURL.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path += "/ws"
	if listID != "" {
		u.RawQuery = url.Values{"list": {listID}}.Encode()
	}
	return u.String()
}
